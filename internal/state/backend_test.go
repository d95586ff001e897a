package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundplan-io/groundplan/internal/decl"
)

func TestParseConfig_NilSelectsLocalDefault(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, KindLocal, cfg.Kind)
	assert.Equal(t, DefaultLocalPath, cfg.Path)
}

func TestParseConfig_LocalPath(t *testing.T) {
	cfg, err := ParseConfig(&decl.Backend{
		Type:     "local",
		Settings: map[string]string{"path": "states/prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindLocal, cfg.Kind)
	assert.Equal(t, "states/prod", cfg.Path)
}

func TestParseConfig_UnknownType(t *testing.T) {
	_, err := ParseConfig(&decl.Backend{Type: "redis"})
	require.Error(t, err)

	var parseErr *decl.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), "unknown backend type")
}

func TestParseConfig_UnknownSetting(t *testing.T) {
	_, err := ParseConfig(&decl.Backend{
		Type:     "local",
		Settings: map[string]string{"bucket": "nope"},
	})
	require.Error(t, err)

	var parseErr *decl.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), `unknown setting "bucket"`)
}

func TestParseConfig_S3RequiresBucket(t *testing.T) {
	_, err := ParseConfig(&decl.Backend{Type: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestParseConfig_S3Defaults(t *testing.T) {
	cfg, err := ParseConfig(&decl.Backend{
		Type:     "s3",
		Settings: map[string]string{"bucket": "my-bucket"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindS3, cfg.Kind)
	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, "groundplan/state", cfg.Key)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Empty(t, cfg.DynamoDBTable)
	assert.False(t, cfg.Encrypt)
}

func TestParseConfig_S3Custom(t *testing.T) {
	cfg, err := ParseConfig(&decl.Backend{
		Type: "s3",
		Settings: map[string]string{
			"bucket":         "custom-bucket",
			"key":            "plans/energy/state",
			"region":         "eu-west-1",
			"dynamodb_table": "groundplan-locks",
			"encrypt":        "true",
			"profile":        "staging",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "custom-bucket", cfg.Bucket)
	assert.Equal(t, "plans/energy/state", cfg.Key)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "groundplan-locks", cfg.DynamoDBTable)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, "staging", cfg.Profile)
}

func TestParseConfig_GCSRequiresBucket(t *testing.T) {
	_, err := ParseConfig(&decl.Backend{Type: "gcs"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestOpen_GCSNotImplemented(t *testing.T) {
	cfg, err := ParseConfig(&decl.Backend{
		Type:     "gcs",
		Settings: map[string]string{"bucket": "my-bucket"},
	})
	require.NoError(t, err)

	_, err = cfg.Open(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not yet implemented")
}

func TestOpen_LocalResolvesRelativePath(t *testing.T) {
	workDir := t.TempDir()
	cfg := &Config{Kind: KindLocal, Path: ".groundplan/state"}

	b, err := cfg.Open(workDir)
	require.NoError(t, err)

	mgr, ok := b.(*Manager)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(workDir, ".groundplan", "state"), mgr.Path())
}

func TestOpen_LocalKeepsAbsolutePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "state")
	cfg := &Config{Kind: KindLocal, Path: abs}

	b, err := cfg.Open(t.TempDir())
	require.NoError(t, err)

	mgr, ok := b.(*Manager)
	require.True(t, ok)
	assert.Equal(t, abs, mgr.Path())
}
