package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

// ErrRecordNotExist is returned by a RecordStorage when the uid is unknown.
// The client facade turns it into an empty fetch result.
var ErrRecordNotExist = errors.New("record does not exist")

// RecordStorage is the backend behind the vault client.
type RecordStorage interface {
	GetRecord(ctx context.Context, uid string) (*types.Record, error)
	SaveRecord(ctx context.Context, record types.Record) error
	Ping(ctx context.Context) error
	Close() error
}

func recordFileName(uid string) string {
	return uid + ".json"
}

func validUID(uid string) error {
	if uid == "" || strings.ContainsAny(uid, `/\`) || uid == "." || uid == ".." {
		return fmt.Errorf("invalid record uid %q", uid)
	}
	return nil
}

func decodeRecord(uid string, content []byte) (*types.Record, error) {
	var record types.Record
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", uid, err)
	}
	if record.UID == "" {
		record.UID = uid
	}
	return &record, nil
}

var _ RecordStorage = (*LocalRecordStorage)(nil)

// LocalRecordStorage keeps one JSON document per record under a directory. It backs
// file-based deployments and tests.
type LocalRecordStorage struct {
	cfg vault_config.LocalStorage
}

func NewLocalRecordStorage(cfg vault_config.LocalStorage) (*LocalRecordStorage, error) {
	if cfg.RecordsPath == "" {
		return nil, fmt.Errorf("records path is required")
	}
	return &LocalRecordStorage{
		cfg: cfg,
	}, nil
}

func (lrs *LocalRecordStorage) GetRecord(_ context.Context, uid string) (*types.Record, error) {
	if err := validUID(uid); err != nil {
		return nil, err
	}
	filePathName := filepath.Join(lrs.cfg.RecordsPath, recordFileName(uid))
	content, err := os.ReadFile(filePathName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordNotExist
		}
		return nil, fmt.Errorf("os.ReadFile failed: %w", err)
	}
	return decodeRecord(uid, content)
}

func (lrs *LocalRecordStorage) SaveRecord(_ context.Context, record types.Record) error {
	if err := validUID(record.UID); err != nil {
		return err
	}
	if err := os.MkdirAll(lrs.cfg.RecordsPath, 0o700); err != nil {
		return fmt.Errorf("os.MkdirAll failed: %w", err)
	}
	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.UID, err)
	}
	filePathName := filepath.Join(lrs.cfg.RecordsPath, recordFileName(record.UID))
	if err := atomic.WriteFile(filePathName, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("atomic.WriteFile failed: %w", err)
	}
	return os.Chmod(filePathName, 0o600)
}

func (lrs *LocalRecordStorage) Ping(_ context.Context) error {
	info, err := os.Stat(lrs.cfg.RecordsPath)
	if err != nil {
		return fmt.Errorf("os.Stat failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", lrs.cfg.RecordsPath)
	}
	return nil
}

func (lrs *LocalRecordStorage) Close() error {
	return nil
}
