// Package blockpulse wires the block-session tracking core together: a local
// message bus shared by trackers, editable elements, and content stores; a
// pluggable session store; and per-block trackers built from YAML config.
package blockpulse

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/blockpulse-dev/blockpulse/channel"
	"github.com/blockpulse-dev/blockpulse/pkg/content"
	"github.com/blockpulse-dev/blockpulse/pkg/security"
	"github.com/blockpulse-dev/blockpulse/pkg/store"
	"github.com/blockpulse-dev/blockpulse/pkg/tracker"
)

// Config represents the top-level configuration
type Config struct {
	Blocks        []BlockDef    `yaml:"blocks"`
	Storage       StorageConfig `yaml:"storage,omitempty"`
	Observability ObsConfig     `yaml:"observability,omitempty"`
}

// BlockDef describes one tracked block.
type BlockDef struct {
	// BlockID identifies the block instance. Required.
	BlockID  string `yaml:"block_id"`
	SlideID  string `yaml:"slide_id,omitempty"`
	CourseID string `yaml:"course_id,omitempty"`

	// Tracking toggles. Nil means "use the default" (enabled), so a config
	// that omits them still gets full tracking.
	TrackInteractions    *bool `yaml:"track_interactions,omitempty"`
	TrackQuestions       *bool `yaml:"track_questions,omitempty"`
	SendDetailedEvents   *bool `yaml:"send_detailed_events,omitempty"`
	SendSummary          *bool `yaml:"send_summary,omitempty"`
	SendLegacyCompletion *bool `yaml:"send_legacy_completion,omitempty"`
	PersistSession       *bool `yaml:"persist_session,omitempty"`

	PersistDebounce  time.Duration `yaml:"persist_debounce,omitempty"`
	ProgressInterval time.Duration `yaml:"progress_interval,omitempty"`
	StorageKey       string        `yaml:"storage_key,omitempty"`
}

// StorageConfig configures session persistence.
type StorageConfig struct {
	// Backend specifies the storage backend type.
	// Options: "memory", "file", "redis"
	// Default: "file"
	Backend string `yaml:"backend"`

	// BaseDir is the base directory for file-based storage.
	// Default: ~/.blockpulse/sessions
	BaseDir string `yaml:"base_dir,omitempty"`

	// Redis holds redis-specific settings.
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds redis backend settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	PoolSize int           `yaml:"pool_size,omitempty"`
}

// ObsConfig configures the metrics/health HTTP server.
type ObsConfig struct {
	// Port for the observability server. Zero disables it.
	Port int `yaml:"port,omitempty"`
}

// FileReader interface for reading files (testable)
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileReader implements FileReader using os.ReadFile
type OSFileReader struct{}

func (r *OSFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304 - path is from trusted config file input
}

// ConfigLoader loads configuration from a file
type ConfigLoader struct {
	fileReader FileReader
	yamlParser *security.SafeYAMLParser
}

// NewConfigLoader creates a new config loader with default security limits
func NewConfigLoader(fr FileReader) *ConfigLoader {
	return &ConfigLoader{
		fileReader: fr,
		yamlParser: security.NewSafeYAMLParser(security.DefaultYAMLLimits()),
	}
}

// NewConfigLoaderWithLimits creates a new config loader with custom YAML security limits
func NewConfigLoaderWithLimits(fr FileReader, limits security.YAMLLimits) *ConfigLoader {
	return &ConfigLoader{
		fileReader: fr,
		yamlParser: security.NewSafeYAMLParser(limits),
	}
}

// LoadConfig loads and parses a config file with security limits
func (cl *ConfigLoader) LoadConfig(configPath string) (*Config, error) {
	data, err := cl.fileReader.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	// Use secure YAML parser with size/depth/complexity limits
	if err := cl.yamlParser.UnmarshalYAML(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for i := range config.Blocks {
		if config.Blocks[i].BlockID == "" {
			return nil, fmt.Errorf("block %d: block_id is required", i)
		}
	}

	return &config, nil
}

// NewStore builds the session store selected by the config.
func NewStore(cfg StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file", "":
		return store.NewFileStore(cfg.BaseDir)
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			Prefix:      cfg.Redis.Prefix,
			SnapshotTTL: cfg.Redis.TTL,
			PoolSize:    cfg.Redis.PoolSize,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// TrackerConfig converts a block definition into a tracker configuration,
// applying defaults for omitted toggles.
func (b BlockDef) TrackerConfig() tracker.Config {
	cfg := tracker.DefaultConfig(b.BlockID)
	cfg.SlideID = b.SlideID
	cfg.CourseID = b.CourseID
	cfg.PersistDebounce = b.PersistDebounce
	cfg.ProgressInterval = b.ProgressInterval
	cfg.StorageKey = b.StorageKey

	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&cfg.TrackInteractions, b.TrackInteractions)
	apply(&cfg.TrackQuestions, b.TrackQuestions)
	apply(&cfg.SendDetailedEvents, b.SendDetailedEvents)
	apply(&cfg.SendSummary, b.SendSummary)
	apply(&cfg.SendLegacyCompletion, b.SendLegacyCompletion)
	apply(&cfg.PersistSession, b.PersistSession)
	return cfg
}

// System is one page's worth of wiring: the shared bus, the session store,
// the content registry, and a tracker per configured block.
type System struct {
	Bus      *channel.LocalBus
	Store    store.Store
	Registry *content.Registry
	Trackers map[string]*tracker.Tracker
}

// NewSystem builds a system from config: one bus, one store, one tracker per
// block. Trackers emit their started events during construction, so a caller
// that wants to observe them must subscribe on the bus first and use
// NewSystemWithBus.
func NewSystem(ctx context.Context, cfg *Config) (*System, error) {
	return NewSystemWithBus(ctx, cfg, channel.NewLocalBus())
}

// NewSystemWithBus builds a system on a caller-provided bus.
func NewSystemWithBus(ctx context.Context, cfg *Config, bus *channel.LocalBus) (*System, error) {
	st, err := NewStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	sys := &System{
		Bus:      bus,
		Store:    st,
		Registry: content.NewRegistry(bus),
		Trackers: make(map[string]*tracker.Tracker, len(cfg.Blocks)),
	}

	for _, def := range cfg.Blocks {
		if _, ok := sys.Trackers[def.BlockID]; ok {
			return nil, fmt.Errorf("duplicate block id: %s", def.BlockID)
		}
		sys.Trackers[def.BlockID] = tracker.New(ctx, def.TrackerConfig(), bus, st)
		log.Printf("Created tracker for block: %s", def.BlockID)
	}

	return sys, nil
}

// Tracker returns the tracker for a block id, if configured.
func (s *System) Tracker(blockID string) (*tracker.Tracker, bool) {
	t, ok := s.Trackers[blockID]
	return t, ok
}

// Close abandons all still-active sessions and releases the store.
func (s *System) Close(ctx context.Context) error {
	for _, t := range s.Trackers {
		t.Abandon()
	}
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("failed to close session store: %w", err)
	}
	return nil
}
