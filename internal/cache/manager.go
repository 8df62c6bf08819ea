// Package cache manages the credential file other programs read from disk.
//
// The only mutable shared state is the current file and its backups, and the one
// rule is that the current file is renamed to a backup before a new one is written.
// Install refuses to write over an existing current file, so callers must call
// RemoveOld first.
package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/internal/token"
	"github.com/vultisig/tokensync/types"
)

const (
	backupTimeLayout = "20060102_150405"
	previewLength    = 30
	dirMode          = 0o700
	fileMode         = 0o600
)

// Rotation describes what RemoveOld did.
type Rotation struct {
	Rotated    bool
	BackupPath string
}

// Verification is the result of re-reading the current file. Content is the trimmed
// file content and must not be logged; Preview is safe to log.
type Verification struct {
	Path     string
	Readable bool
	Length   int
	Preview  string
	Content  string
	Err      error
}

type Manager struct {
	logger *logrus.Logger
	now    func() time.Time
}

func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		logger: logger,
		now:    time.Now,
	}
}

// WithClock returns a copy of m that reads time from now.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{
		logger: m.logger,
		now:    now,
	}
}

func Path(directory, filename string) string {
	return filepath.Join(directory, filename)
}

// EnsureDirectory creates directory with owner-only permissions if it is missing.
func (m *Manager) EnsureDirectory(directory string) error {
	if err := os.MkdirAll(directory, dirMode); err != nil {
		return fmt.Errorf("%w: create %s: %v", types.ErrWriteFailure, directory, err)
	}
	return nil
}

// RemoveOld renames the current file, if any, to a timestamped backup. It never
// deletes. Backups created within the same second get a numeric suffix so every
// previous credential is preserved.
func (m *Manager) RemoveOld(directory, filename string) (Rotation, error) {
	current := Path(directory, filename)
	if _, err := os.Lstat(current); err != nil {
		if os.IsNotExist(err) {
			m.logger.WithField("path", current).Info("no existing credential found")
			return Rotation{}, nil
		}
		return Rotation{}, fmt.Errorf("%w: stat %s: %v", types.ErrWriteFailure, current, err)
	}

	backup, err := m.backupPath(directory, filename)
	if err != nil {
		return Rotation{}, err
	}
	if err := os.Rename(current, backup); err != nil {
		return Rotation{}, fmt.Errorf("%w: backup %s: %v", types.ErrWriteFailure, current, err)
	}
	m.logger.WithField("backup", backup).Info("old credential backed up")
	return Rotation{Rotated: true, BackupPath: backup}, nil
}

func (m *Manager) backupPath(directory, filename string) (string, error) {
	base := Path(directory, filename+".backup."+m.now().Format(backupTimeLayout))
	candidate := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("%w: stat %s: %v", types.ErrWriteFailure, candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

// Install writes content verbatim as the current file with owner-only permissions.
// The write goes through a temp file and a rename, so readers never see a partial
// credential.
func (m *Manager) Install(directory, filename, content string) (string, error) {
	if err := m.EnsureDirectory(directory); err != nil {
		return "", err
	}
	current := Path(directory, filename)
	if _, err := os.Lstat(current); err == nil {
		return "", fmt.Errorf("%w: %s already exists, rotate it first", types.ErrWriteFailure, current)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: stat %s: %v", types.ErrWriteFailure, current, err)
	}

	if err := atomic.WriteFile(current, bytes.NewReader([]byte(content))); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", types.ErrWriteFailure, current, err)
	}
	if err := os.Chmod(current, fileMode); err != nil {
		return "", fmt.Errorf("%w: chmod %s: %v", types.ErrWriteFailure, current, err)
	}
	m.logger.WithField("path", current).Info("credential saved with owner-only permissions")
	return current, nil
}

// Verify re-reads the current file. A missing, unreadable or blank file is reported
// as not readable.
func (m *Manager) Verify(directory, filename string) Verification {
	current := Path(directory, filename)
	result := Verification{Path: current}

	content, err := os.ReadFile(current)
	if err != nil {
		result.Err = err
		return result
	}
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		result.Err = fmt.Errorf("%s is empty", current)
		return result
	}

	result.Readable = true
	result.Length = utf8.RuneCountInString(trimmed)
	result.Preview = token.Preview(trimmed, previewLength)
	result.Content = trimmed
	return result
}

// Backups lists existing backups of filename, oldest name first.
func Backups(directory, filename string) ([]string, error) {
	matches, err := filepath.Glob(Path(directory, filename+".backup.*"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}
