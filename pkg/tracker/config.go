package tracker

import "time"

// Config configures a Tracker. The zero value is not useful; start from
// DefaultConfig and override as needed. All optional fields are defaulted at
// construction.
type Config struct {
	// BlockID identifies the block instance. Required.
	BlockID string `yaml:"block_id"`
	// SlideID and CourseID are optional context identifiers carried on
	// session events.
	SlideID  string `yaml:"slide_id"`
	CourseID string `yaml:"course_id"`

	// TrackInteractions enables TrackInteraction; when false the method is a
	// no-op.
	TrackInteractions bool `yaml:"track_interactions"`
	// TrackQuestions enables the question lifecycle methods.
	TrackQuestions bool `yaml:"track_questions"`
	// SendDetailedEvents emits one message per interaction/question event.
	// Counters and summaries are maintained regardless.
	SendDetailedEvents bool `yaml:"send_detailed_events"`
	// SendSummary attaches the full event detail to the completed session
	// event. The summary itself is always included on session events.
	SendSummary bool `yaml:"send_summary"`
	// SendLegacyCompletion additionally emits the reduced BLOCK_COMPLETION
	// event at completion, for hosts predating the session event shape.
	SendLegacyCompletion bool `yaml:"send_legacy_completion"`

	// PersistSession enables write-through snapshot persistence and
	// restore-on-construction.
	PersistSession bool `yaml:"persist_session"`
	// PersistDebounce is the minimum interval between snapshot writes.
	// Mutations inside the window skip the write; the next one outside it
	// persists the latest state. Zero disables throttling.
	PersistDebounce time.Duration `yaml:"persist_debounce"`
	// ProgressInterval schedules a recurring job that re-persists state
	// without emitting events. Zero or negative disables the job.
	ProgressInterval time.Duration `yaml:"progress_interval"`
	// StorageKey overrides the persistence key.
	// Defaults to "block_session_<BlockID>".
	StorageKey string `yaml:"storage_key"`
}

// DefaultConfig returns the standard configuration for a block: all tracking
// and emission toggles on, persistence on, no progress job.
func DefaultConfig(blockID string) Config {
	return Config{
		BlockID:              blockID,
		TrackInteractions:    true,
		TrackQuestions:       true,
		SendDetailedEvents:   true,
		SendSummary:          true,
		SendLegacyCompletion: true,
		PersistSession:       true,
		PersistDebounce:      0,
		ProgressInterval:     0,
	}
}

// normalize fills derived defaults.
func (c *Config) normalize() {
	if c.StorageKey == "" {
		c.StorageKey = "block_session_" + c.BlockID
	}
}
