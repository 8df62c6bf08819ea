package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

// UpdateResult is the outcome of a best-effort record update. Callers fold it into
// their summary; it never aborts a workflow.
type UpdateResult struct {
	Published bool
	Reason    string
	Err       error
}

// Client is the facade over the secrets backend. It can fetch records and, where the
// deployment allows it, update them.
type Client struct {
	storage  RecordStorage
	readOnly bool
	logger   *logrus.Logger
}

func NewClient(storage RecordStorage, readOnly bool, logger *logrus.Logger) *Client {
	return &Client{
		storage:  storage,
		readOnly: readOnly,
		logger:   logger,
	}
}

// ConnectWithProfile loads the access profile at path and connects with it.
func ConnectWithProfile(ctx context.Context, path, expectedApplication string, logger *logrus.Logger) (*Client, error) {
	cfg, err := vault_config.LoadAccessConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrVaultUnavailable, err)
	}
	return Connect(ctx, cfg, expectedApplication, logger)
}

// Connect builds the backend described by cfg and pings it. A profile bound to a
// different application than expectedApplication is reported as a conflict and left
// for the operator to resolve.
func Connect(ctx context.Context, cfg *vault_config.AccessConfig, expectedApplication string, logger *logrus.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no access config", types.ErrVaultUnavailable)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrVaultUnavailable, err)
	}
	if expectedApplication != "" && cfg.Application != "" && cfg.Application != expectedApplication {
		return nil, fmt.Errorf("%w: profile is bound to application %q, expected %q",
			types.ErrVaultConflict, cfg.Application, expectedApplication)
	}

	storage, err := newRecordStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrVaultUnavailable, err)
	}

	client := NewClient(storage, cfg.ReadOnly, logger)
	if _, err := client.Fetch(ctx); err != nil {
		_ = storage.Close()
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"backend":   cfg.Backend,
		"read_only": cfg.ReadOnly,
	}).Info("connected to vault")
	return client, nil
}

func newRecordStorage(ctx context.Context, cfg *vault_config.AccessConfig, logger *logrus.Logger) (RecordStorage, error) {
	switch cfg.Backend {
	case vault_config.BackendLocal:
		return NewLocalRecordStorage(cfg.Local)
	case vault_config.BackendS3:
		return NewBlockRecordStorage(cfg.BlockStorage, logger)
	case vault_config.BackendRedis:
		return NewRedisRecordStorage(cfg.Redis)
	case vault_config.BackendHTTP:
		return NewHTTPRecordStorage(cfg.Remote, logger)
	case vault_config.BackendPostgres:
		return NewPostgresRecordStorage(ctx, cfg.Postgres, cfg.ReadOnly, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Fetch returns the records for the given uids, skipping unknown ones. Called with
// no uids it only checks connectivity and returns an empty slice.
func (c *Client) Fetch(ctx context.Context, uids ...string) ([]types.Record, error) {
	records := make([]types.Record, 0, len(uids))
	if len(uids) == 0 {
		if err := c.storage.Ping(ctx); err != nil {
			return records, fmt.Errorf("%w: %v", types.ErrVaultUnavailable, err)
		}
		return records, nil
	}
	for _, uid := range uids {
		record, err := c.storage.GetRecord(ctx, uid)
		if err != nil {
			if errors.Is(err, ErrRecordNotExist) {
				c.logger.WithField("uid", uid).Debug("record not found")
				continue
			}
			return nil, fmt.Errorf("%w: %v", types.ErrVaultUnavailable, err)
		}
		records = append(records, *record)
	}
	return records, nil
}

// FetchOne fetches a single record, reporting an unknown uid as ErrRecordNotFound.
func (c *Client) FetchOne(ctx context.Context, uid string) (*types.Record, error) {
	records, err := c.Fetch(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrRecordNotFound, uid)
	}
	return &records[0], nil
}

// Update applies the change to an existing record. Read-only deployments, unknown
// records and backend errors all come back as an unpublished result.
func (c *Client) Update(ctx context.Context, uid string, update types.RecordUpdate) UpdateResult {
	if c.readOnly {
		return UpdateResult{Reason: "vault is read-only"}
	}
	record, err := c.FetchOne(ctx, uid)
	if err != nil {
		return UpdateResult{Reason: "record lookup failed", Err: err}
	}
	updated := update.Apply(*record)
	if err := c.storage.SaveRecord(ctx, updated); err != nil {
		return UpdateResult{Reason: "record update failed", Err: err}
	}
	return UpdateResult{Published: true}
}

func (c *Client) ReadOnly() bool {
	return c.readOnly
}

func (c *Client) Close() error {
	return c.storage.Close()
}
