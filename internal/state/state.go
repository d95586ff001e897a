package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Manager is the local file-backed snapshot store.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the snapshot file location.
func (m *Manager) Path() string {
	return m.path
}

// Read loads the snapshot from disk. A missing file means no snapshot
// exists and returns nil without error. Encrypted snapshots decrypt
// transparently.
func (m *Manager) Read(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", m.path, err)
	}

	data, err := DecryptState(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state: %w", err)
	}
	return data, nil
}

// Write stores the snapshot, encrypting it first when an encryption
// key is configured.
func (m *Manager) Write(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	encrypted, err := EncryptState(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	if err := os.WriteFile(m.path, encrypted, 0644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", m.path, err)
	}

	return nil
}
