// Package notify records "a new credential is ready" events for the team that
// consumes them. Delivery is a local append-only JSON lines log.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/types"
)

const (
	LogFilename = "jwt_notifications.log"

	EventGenerated       = "jwt_generated"
	ActionRequiredSync   = "Run the local JWT sync script to get the latest token"
	generatedMessageText = "New API development JWT has been generated and is available in the vault"
)

type Notification struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	Message        string `json:"message"`
	Config         string `json:"config"`
	ExpiresAt      string `json:"expires_at"`
	ActionRequired string `json:"action_required"`
	Location       string `json:"location"`
}

// NewGenerated describes a freshly issued credential published under tokenRecordID.
func NewGenerated(cred *types.Credential, linkage types.AppLinkage, now time.Time) Notification {
	return Notification{
		Timestamp:      now.UTC().Format(time.RFC3339),
		Event:          EventGenerated,
		Message:        generatedMessageText,
		Config:         linkage.ConfigRecordID,
		ExpiresAt:      cred.ExpiresAt.UTC().Format(time.RFC3339),
		ActionRequired: ActionRequiredSync,
		Location:       fmt.Sprintf("vault record %s", linkage.TokenRecordID),
	}
}

type Notifier struct {
	logger *logrus.Logger
}

func NewNotifier(logger *logrus.Logger) *Notifier {
	return &Notifier{
		logger: logger,
	}
}

// Send appends n to the notification log in dir and returns the log path.
func (s *Notifier) Send(dir string, n Notification) (string, error) {
	path := filepath.Join(dir, LogFilename)
	line, err := json.Marshal(n)
	if err != nil {
		return path, fmt.Errorf("json.Marshal failed: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return path, fmt.Errorf("os.MkdirAll failed: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return path, fmt.Errorf("os.OpenFile failed: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return path, fmt.Errorf("write notification: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close notification log: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return path, fmt.Errorf("os.Chmod failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"event":      n.Event,
		"expires_at": n.ExpiresAt,
		"path":       path,
	}).Info("notification logged")
	return path, nil
}
