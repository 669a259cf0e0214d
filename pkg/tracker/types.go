// Package tracker implements per-block session analytics.
//
// A Tracker owns one session for one loaded block: it buffers interaction and
// question events, maintains running counters, computes summary metrics, and
// emits self-describing events to the message bus and to registered callback
// sinks. Session state can optionally be persisted to a store keyed by block
// ID and restored on the next load, so a page reload resumes the same session.
//
// Tracking must never break the embedding block: no tracker method returns an
// error to its caller, and storage or delivery failures degrade to a logged
// warning.
package tracker

import "time"

// Outward message type discriminators. Consumers route on Message.Type and,
// for MsgBlockSession, on the nested SessionEvent.EventType.
const (
	MsgBlockInteraction = "BLOCK_INTERACTION"
	MsgBlockQuestion    = "BLOCK_QUESTION"
	MsgBlockSession     = "BLOCK_SESSION"
	MsgBlockCompletion  = "BLOCK_COMPLETION" // legacy reduced shape
)

// SessionStatus is the lifecycle state of a session.
// Completed and Abandoned are both absorbing: every further mutating call on
// the tracker becomes a guarded no-op.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether the status is one of the absorbing states.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// SessionEventType discriminates BLOCK_SESSION events.
type SessionEventType string

const (
	SessionStarted   SessionEventType = "started"
	SessionCompleted SessionEventType = "completed"
	SessionAbandoned SessionEventType = "abandoned"
)

// InteractionKind classifies a discrete user action.
type InteractionKind string

const (
	InteractionClick  InteractionKind = "click"
	InteractionInput  InteractionKind = "input"
	InteractionDrag   InteractionKind = "drag"
	InteractionScroll InteractionKind = "scroll"
	InteractionHover  InteractionKind = "hover"
	InteractionFocus  InteractionKind = "focus"
	InteractionBlur   InteractionKind = "blur"
	InteractionSubmit InteractionKind = "submit"
	InteractionSelect InteractionKind = "select"
)

// QuestionEventType tags a question lifecycle transition.
type QuestionEventType string

const (
	QuestionStarted  QuestionEventType = "started"
	QuestionAnswered QuestionEventType = "answered"
	QuestionSkipped  QuestionEventType = "skipped"
	QuestionReviewed QuestionEventType = "reviewed"
)

// InteractionEvent records a discrete user action.
// Events are immutable once appended to the session.
type InteractionEvent struct {
	SessionID   string          `json:"sessionId"`
	Kind        InteractionKind `json:"interactionType"`
	ElementID   string          `json:"elementId,omitempty"`
	ElementType string          `json:"elementType,omitempty"`
	// DurationMs is the interaction duration in milliseconds, when meaningful
	// for the kind (e.g. drag, hover).
	DurationMs int64          `json:"duration,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// QuestionEvent records a question lifecycle transition.
// Pointer fields distinguish "not supplied" from zero values; TimeToAnswerMs
// is set only when the answered question matches the currently open one.
type QuestionEvent struct {
	SessionID    string            `json:"sessionId"`
	EventType    QuestionEventType `json:"eventType"`
	QuestionID   string            `json:"questionId"`
	QuestionType string            `json:"questionType,omitempty"`
	QuestionText string            `json:"questionText,omitempty"`
	// TimeToAnswerMs is elapsed milliseconds from StartQuestion to
	// AnswerQuestion; nil when the answer did not match the open question.
	TimeToAnswerMs *int64         `json:"timeToAnswer,omitempty"`
	Answer         any            `json:"answer,omitempty"`
	CorrectAnswer  any            `json:"correctAnswer,omitempty"`
	IsCorrect      *bool          `json:"isCorrect,omitempty"`
	Score          *float64       `json:"score,omitempty"`
	MaxScore       *float64       `json:"maxScore,omitempty"`
	Attempt        int            `json:"attemptNumber,omitempty"`
	HintsUsed      int            `json:"hintsUsed,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// SlideViewEvent is a reserved event shape for slide navigation.
// No tracker operation populates it; callers may append via session state
// snapshots in a future revision.
type SlideViewEvent struct {
	SessionID  string    `json:"sessionId"`
	SlideID    string    `json:"slideId"`
	SlideIndex int       `json:"slideIndex,omitempty"`
	DurationMs int64     `json:"duration,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionState is the full mutable state of one tracked session.
// It is the unit of persistence: the tracker serializes it to the store after
// every mutation and restores it at construction.
type SessionState struct {
	SessionID string    `json:"sessionId"`
	BlockID   string    `json:"blockId"`
	StartTime time.Time `json:"startTime"`

	Interactions []InteractionEvent `json:"interactions"`
	Questions    []QuestionEvent    `json:"questions"`
	Slides       []SlideViewEvent   `json:"slides"`

	// At most one question timer is open at a time; answering by a different
	// ID leaves these stale on purpose.
	CurrentQuestionID    string    `json:"currentQuestionId,omitempty"`
	CurrentQuestionStart time.Time `json:"currentQuestionStartTime,omitzero"`

	// Running counters, kept equal to counts derivable from the event
	// sequences: TotalQuestions counts answered events, CorrectQuestions
	// counts answered events with IsCorrect.
	TotalInteractions int `json:"totalInteractions"`
	TotalQuestions    int `json:"totalQuestions"`
	CorrectQuestions  int `json:"correctQuestions"`

	Status SessionStatus `json:"status"`
}

// Summary holds aggregate metrics derived from a session's event sequences.
// It is computed fresh at every session-event emission, never maintained
// incrementally. Nil pointer fields mean "undefined": AccuracyRate is nil
// (not zero) when no questions were answered.
type Summary struct {
	QuestionsAttempted int `json:"questionsAttempted"`
	QuestionsCorrect   int `json:"questionsCorrect"`
	QuestionsIncorrect int `json:"questionsIncorrect"`
	QuestionsSkipped   int `json:"questionsSkipped"`
	// AverageTimePerQuestionMs is the mean TimeToAnswerMs over answered
	// questions that carry one; nil if none do.
	AverageTimePerQuestionMs *float64 `json:"averageTimePerQuestion,omitempty"`
	// AccuracyRate is QuestionsCorrect / answered count; nil if nothing
	// was answered.
	AccuracyRate      *float64 `json:"accuracyRate,omitempty"`
	HintsUsedTotal    int      `json:"hintsUsedTotal"`
	TotalInteractions int      `json:"totalInteractions"`
	TimeSpentMs       int64    `json:"timeSpent"`
}

// SessionEvent is the payload of a BLOCK_SESSION message.
type SessionEvent struct {
	EventType SessionEventType `json:"eventType"`
	SessionID string           `json:"sessionId"`
	BlockID   string           `json:"blockId"`
	SlideID   string           `json:"slideId,omitempty"`
	CourseID  string           `json:"courseId,omitempty"`
	Score     *float64         `json:"score,omitempty"`
	MaxScore  *float64         `json:"maxScore,omitempty"`
	TimeSpentMs int64          `json:"timeSpent,omitempty"`
	Summary   *Summary         `json:"summary,omitempty"`
	// Detail carries the full event sequences; attached to completed events
	// only when summary sending is enabled.
	Detail *SessionState  `json:"detail,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// CompletionEvent is the reduced backward-compatible payload of a
// BLOCK_COMPLETION message, emitted once at completion when configured.
type CompletionEvent struct {
	Completed   bool           `json:"completed"`
	Score       *float64       `json:"score,omitempty"`
	MaxScore    *float64       `json:"maxScore,omitempty"`
	TimeSpentMs int64          `json:"timeSpent"`
	Data        map[string]any `json:"data,omitempty"`
}
