package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/internal/cache"
	"github.com/vultisig/tokensync/internal/metrics"
	"github.com/vultisig/tokensync/internal/notify"
	"github.com/vultisig/tokensync/internal/token"
	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault"
)

type LinkageResolver interface {
	Resolve() (types.AppLinkage, error)
}

type VaultClient interface {
	FetchOne(ctx context.Context, uid string) (*types.Record, error)
	Update(ctx context.Context, uid string, update types.RecordUpdate) vault.UpdateResult
	Close() error
}

var _ VaultClient = (*vault.Client)(nil)

// VaultConnector opens a vault session for one run.
type VaultConnector func(ctx context.Context) (VaultClient, error)

// ProfileConnector connects with the access profile at path on every call.
func ProfileConnector(path, expectedApplication string, logger *logrus.Logger) VaultConnector {
	return func(ctx context.Context) (VaultClient, error) {
		client, err := vault.ConnectWithProfile(ctx, path, expectedApplication, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

type CredentialCache interface {
	RemoveOld(directory, filename string) (cache.Rotation, error)
	Install(directory, filename, content string) (string, error)
	Verify(directory, filename string) cache.Verification
}

var _ CredentialCache = (*cache.Manager)(nil)

type Notifier interface {
	Send(dir string, n notify.Notification) (string, error)
}

var _ Notifier = (*notify.Notifier)(nil)

// Dependencies are the collaborators shared by both workflows. Metrics may be nil.
type Dependencies struct {
	Resolver LinkageResolver
	Connect  VaultConnector
	Codec    *token.Codec
	Cache    CredentialCache
	Notifier Notifier
	Metrics  *metrics.LifecycleMetrics
	Logger   *logrus.Logger
	Now      func() time.Time
}

func (d *Dependencies) validate(needNotifier bool) error {
	if d.Resolver == nil {
		return fmt.Errorf("linkage resolver cannot be nil")
	}
	if d.Connect == nil {
		return fmt.Errorf("vault connector cannot be nil")
	}
	if d.Codec == nil {
		return fmt.Errorf("token codec cannot be nil")
	}
	if d.Cache == nil {
		return fmt.Errorf("credential cache cannot be nil")
	}
	if needNotifier && d.Notifier == nil {
		return fmt.Errorf("notifier cannot be nil")
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return nil
}

// rotate applies the remove-old-then-install ordering shared by both workflows.
func rotate(c CredentialCache, dir, file, content string, logger *logrus.Entry) (cache.Rotation, string, error) {
	rotation, err := c.RemoveOld(dir, file)
	if err != nil {
		return rotation, "", err
	}
	path, err := c.Install(dir, file, content)
	if err != nil {
		if rotation.Rotated {
			logger.WithField("backup", rotation.BackupPath).Error("previous credential was backed up but the new one could not be installed, no current credential is cached")
			return rotation, "", fmt.Errorf("no current credential, previous one kept at %s: %w", rotation.BackupPath, err)
		}
		return rotation, "", err
	}
	return rotation, path, nil
}

// verifyInstalled re-reads the current file and compares it with content. Both sides
// are compared without surrounding whitespace, as Verify reports it.
func verifyInstalled(c CredentialCache, dir, file, content string) (cache.Verification, error) {
	verification := c.Verify(dir, file)
	if !verification.Readable {
		return verification, fmt.Errorf("%w: %s is not readable: %v", types.ErrContentMismatch, verification.Path, verification.Err)
	}
	expected := strings.TrimSpace(content)
	if verification.Content != expected {
		return verification, fmt.Errorf("%w: %s holds %d characters, expected %d",
			types.ErrContentMismatch, verification.Path, verification.Length, len([]rune(expected)))
	}
	return verification, nil
}
