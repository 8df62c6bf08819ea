package vault

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/vultisig/vultiserver/contexthelper"

	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

//go:embed migrations/*.sql
var recordMigrations embed.FS

var _ RecordStorage = (*PostgresRecordStorage)(nil)

type PostgresRecordStorage struct {
	pool   *pgxpool.Pool
	logger *logrus.Entry
}

// NewPostgresRecordStorage opens the pool and applies pending migrations. A read-only
// profile never migrates, so it cannot change the schema of a shared vault.
func NewPostgresRecordStorage(ctx context.Context, cfg vault_config.Postgres, readOnly bool, logger *logrus.Logger) (*PostgresRecordStorage, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	p := &PostgresRecordStorage{
		pool:   pool,
		logger: logger.WithField("module", "postgres_record_storage"),
	}
	if readOnly {
		p.logger.Debug("read-only profile, skipping migrations")
		return p, nil
	}
	if err := p.Migrate(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return p, nil
}

func (p *PostgresRecordStorage) Migrate() error {
	p.logger.Debug("Starting vault_records migration...")
	goose.SetBaseFS(recordMigrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(p.pool)
	defer func() {
		_ = db.Close()
	}()
	if err := goose.Up(db, "migrations", goose.WithAllowMissing()); err != nil {
		return fmt.Errorf("failed to run record migrations: %w", err)
	}
	return nil
}

func (p *PostgresRecordStorage) GetRecord(ctx context.Context, uid string) (*types.Record, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	query := `SELECT uid, title, password, notes, custom FROM vault_records WHERE uid = $1`

	var (
		record types.Record
		custom []byte
	)
	err := p.pool.QueryRow(ctx, query, uid).Scan(
		&record.UID,
		&record.Title,
		&record.Password,
		&record.Notes,
		&custom,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotExist
		}
		return nil, fmt.Errorf("failed to get record %s: %w", uid, err)
	}
	if err := json.Unmarshal(custom, &record.Custom); err != nil {
		return nil, fmt.Errorf("failed to decode custom fields of %s: %w", uid, err)
	}
	return &record, nil
}

func (p *PostgresRecordStorage) SaveRecord(ctx context.Context, record types.Record) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	custom := record.Custom
	if custom == nil {
		custom = []types.CustomField{}
	}
	customJSON, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields of %s: %w", record.UID, err)
	}
	query := `
		INSERT INTO vault_records (uid, title, password, notes, custom, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (uid) DO UPDATE SET
			title = EXCLUDED.title,
			password = EXCLUDED.password,
			notes = EXCLUDED.notes,
			custom = EXCLUDED.custom,
			updated_at = NOW()`
	_, err = p.pool.Exec(ctx, query, record.UID, record.Title, record.Password, record.Notes, customJSON)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.UID, err)
	}
	return nil
}

func (p *PostgresRecordStorage) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRecordStorage) Close() error {
	p.pool.Close()
	return nil
}
