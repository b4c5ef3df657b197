package ticklog

import (
	"context"
	"fmt"
)

// Backends.
const (
	BackendNone     = "none"
	BackendJSONL    = "jsonl"
	BackendRotating = "rotating"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// Config selects and parameterises the tick log backend.
type Config struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	MongoURI   string `json:"mongo_uri"`
	Database   string `json:"database"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendSQLite:
			c.Path = "ticks.db"
		default:
			c.Path = "ticks.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.Database == "" {
		c.Database = "trafficgrid"
	}
}

// Validate checks the backend name and its required settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendJSONL, BackendRotating, BackendSQLite:
		return nil
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("tick_log: mongo backend requires mongo_uri")
		}
		return nil
	default:
		return fmt.Errorf("tick_log: unknown backend %q", c.Backend)
	}
}

// Open builds the configured store. It returns nil when the tick log is
// disabled.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case BackendJSONL:
		s, err = NewJSONLStore(cfg.Path)
	case BackendRotating:
		s, err = NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		s, err = NewSQLiteStore(cfg.Path)
	case BackendMongo:
		s, err = NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
