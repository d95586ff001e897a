package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/groundplan-io/groundplan/internal/decl"
)

// Backend stores opaque state snapshots for a provisioning engine.
// Snapshots are byte slices: this layer never interprets their content.
type Backend interface {
	// Read returns the stored snapshot, or nil when none exists yet.
	Read(ctx context.Context) ([]byte, error)

	// Write stores a snapshot, replacing any previous one.
	Write(ctx context.Context, data []byte) error

	// Lock acquires an exclusive lock on the snapshot.
	Lock() error

	// Unlock releases the lock on the snapshot.
	Unlock() error
}

// Kind identifies a snapshot store implementation.
type Kind string

const (
	KindLocal Kind = "local"
	KindS3    Kind = "s3"
	KindGCS   Kind = "gcs"
)

// DefaultLocalPath is where snapshots live when a declaration set
// carries no backend block.
const DefaultLocalPath = ".groundplan/state"

// Config is a validated backend selection.
type Config struct {
	Kind Kind

	// local
	Path string

	// s3
	Bucket        string
	Key           string
	Region        string
	DynamoDBTable string
	Encrypt       bool
	Profile       string

	// gcs
	Prefix string
}

var allowedSettings = map[Kind]map[string]bool{
	KindLocal: {"path": true},
	KindS3: {
		"bucket":         true,
		"key":            true,
		"region":         true,
		"dynamodb_table": true,
		"encrypt":        true,
		"profile":        true,
	},
	KindGCS: {"bucket": true, "prefix": true},
}

// ParseConfig validates a backend block and fills in defaults. A nil
// block selects the default local store.
func ParseConfig(b *decl.Backend) (*Config, error) {
	if b == nil {
		return &Config{Kind: KindLocal, Path: DefaultLocalPath}, nil
	}

	kind := Kind(b.Type)
	allowed, ok := allowedSettings[kind]
	if !ok {
		return nil, decl.ParseErrorf("%s: unknown backend type %q (expected local, s3, or gcs)",
			b.DeclRange, b.Type)
	}

	names := make([]string, 0, len(b.Settings))
	for name := range b.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !allowed[name] {
			return nil, decl.ParseErrorf("%s: unknown setting %q for backend %q",
				b.DeclRange, name, b.Type)
		}
	}

	cfg := &Config{Kind: kind}
	switch kind {
	case KindLocal:
		cfg.Path = b.Settings["path"]
		if cfg.Path == "" {
			cfg.Path = DefaultLocalPath
		}

	case KindS3:
		cfg.Bucket = b.Settings["bucket"]
		if cfg.Bucket == "" {
			return nil, decl.ParseErrorf("%s: backend %q requires a %q setting",
				b.DeclRange, b.Type, "bucket")
		}
		cfg.Key = b.Settings["key"]
		if cfg.Key == "" {
			cfg.Key = "groundplan/state"
		}
		cfg.Region = b.Settings["region"]
		if cfg.Region == "" {
			cfg.Region = "us-east-1"
		}
		cfg.DynamoDBTable = b.Settings["dynamodb_table"]
		cfg.Encrypt = b.Settings["encrypt"] == "true"
		cfg.Profile = b.Settings["profile"]

	case KindGCS:
		cfg.Bucket = b.Settings["bucket"]
		if cfg.Bucket == "" {
			return nil, decl.ParseErrorf("%s: backend %q requires a %q setting",
				b.DeclRange, b.Type, "bucket")
		}
		cfg.Prefix = b.Settings["prefix"]
	}

	return cfg, nil
}

// Open constructs the backend a config selects. Relative local paths
// resolve against workDir.
func (c *Config) Open(workDir string) (Backend, error) {
	switch c.Kind {
	case KindLocal:
		path := c.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		return NewManager(path), nil
	case KindS3:
		return newS3Backend(c)
	case KindGCS:
		return nil, fmt.Errorf("gcs backend not yet implemented")
	default:
		return nil, fmt.Errorf("unknown backend type: %s", c.Kind)
	}
}
