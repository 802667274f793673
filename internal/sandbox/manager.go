// File: internal/sandbox/manager.go
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Manager owns the session-scoped working directories under a single root.
// Directory names are derived deterministically from the session id, so
// concurrent sessions cannot collide.
type Manager struct {
	root   string
	logger *zap.Logger
}

// NewManager creates a sandbox manager rooted at root.
func NewManager(root string, logger *zap.Logger) *Manager {
	return &Manager{
		root:   root,
		logger: logger.Named("sandbox"),
	}
}

// Dir returns the sandbox path for a session without creating it.
func (m *Manager) Dir(sessionID string) string {
	return filepath.Join(m.root, "session-"+sessionID)
}

// Prepare creates a fresh sandbox directory for the session. Any leftover
// tree from a previous run with the same id is removed first.
func (m *Manager) Prepare(sessionID string) (string, error) {
	dir := m.Dir(sessionID)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("could not clear stale sandbox %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create sandbox %s: %w", dir, err)
	}
	m.logger.Debug("Sandbox prepared.", zap.String("dir", dir))
	return dir, nil
}

// Cleanup recursively and forcibly removes the sandbox tree. It is
// idempotent: a missing directory is not an error.
func (m *Manager) Cleanup(sessionID string) error {
	dir := m.Dir(sessionID)
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Error("Failed to remove sandbox.", zap.String("dir", dir), zap.Error(err))
		return fmt.Errorf("cleanup of %s: %w", dir, err)
	}
	m.logger.Debug("Sandbox removed.", zap.String("dir", dir))
	return nil
}
