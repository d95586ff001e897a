package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReadWrite(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state")

	mgr := NewManager(statePath)
	ctx := context.Background()

	// 1. Read non-existent snapshot
	data, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	// 2. Write a snapshot
	snapshot := []byte(`{"serial": 1, "resources": {}}`)
	err = mgr.Write(ctx, snapshot)
	require.NoError(t, err)

	_, err = os.Stat(statePath)
	require.NoError(t, err)

	// 3. Read it back unchanged
	data, err = mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, data)
}

func TestManager_WriteCreatesDirectory(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), ".groundplan", "state")

	mgr := NewManager(statePath)
	require.NoError(t, mgr.Write(context.Background(), []byte("snapshot")))

	data, err := mgr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), data)
}

func TestManager_EncryptedRoundTrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "my-super-secret-encryption-key!!")

	statePath := filepath.Join(t.TempDir(), "state")
	mgr := NewManager(statePath)
	ctx := context.Background()

	snapshot := []byte(`{"serial": 7}`)
	require.NoError(t, mgr.Write(ctx, snapshot))

	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw), "snapshot on disk should be encrypted")
	assert.NotContains(t, string(raw), "serial")

	data, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, data)
}

func TestManager_Lock(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state")
	mgr := NewManager(statePath)

	require.NoError(t, mgr.Lock())

	err := mgr.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another process")

	require.NoError(t, mgr.Unlock())
	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())
}

func TestManager_StaleLockBroken(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state")
	mgr := NewManager(statePath)

	require.NoError(t, mgr.Lock())

	stale := time.Now().Add(-staleLockAge - time.Minute)
	require.NoError(t, os.Chtimes(mgr.lockPath(), stale, stale))

	assert.NoError(t, mgr.Lock(), "stale lock should be broken")
	require.NoError(t, mgr.Unlock())
}

func TestManager_UnlockWithoutLock(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "state"))
	assert.NoError(t, mgr.Unlock())
}
