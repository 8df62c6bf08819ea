package vault_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     AccessConfig
		wantErr string
	}{
		{
			name: "local",
			cfg:  AccessConfig{Backend: BackendLocal, Local: LocalStorage{RecordsPath: "records"}},
		},
		{
			name:    "missing backend",
			cfg:     AccessConfig{},
			wantErr: "Backend",
		},
		{
			name:    "unknown backend",
			cfg:     AccessConfig{Backend: "ftp"},
			wantErr: "Backend",
		},
		{
			name:    "local without path",
			cfg:     AccessConfig{Backend: BackendLocal},
			wantErr: "local.records_path",
		},
		{
			name:    "s3 without bucket",
			cfg:     AccessConfig{Backend: BackendS3, BlockStorage: BlockStorage{Host: "http://localhost:9000"}},
			wantErr: "block_storage.bucket",
		},
		{
			name: "redis by host",
			cfg:  AccessConfig{Backend: BackendRedis, Redis: Redis{Host: "localhost", Port: "6379"}},
		},
		{
			name:    "redis without address",
			cfg:     AccessConfig{Backend: BackendRedis},
			wantErr: "redis.conn_uri or redis.host",
		},
		{
			name:    "http with invalid url",
			cfg:     AccessConfig{Backend: BackendHTTP, Remote: Remote{URL: "not a url"}},
			wantErr: "URL",
		},
		{
			name:    "http without url",
			cfg:     AccessConfig{Backend: BackendHTTP},
			wantErr: "remote.url",
		},
		{
			name:    "postgres without dsn",
			cfg:     AccessConfig{Backend: BackendPostgres},
			wantErr: "postgres.dsn",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadAccessConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultAccessConfigPath)
	content := `{
  "backend": "http",
  "application": "api-tokens",
  "read_only": true,
  "remote": {"url": "https://vault.internal", "token": "secret-token", "timeout": "5s"}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadAccessConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendHTTP, cfg.Backend)
	assert.Equal(t, "api-tokens", cfg.Application)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, "https://vault.internal", cfg.Remote.URL)
	assert.Equal(t, "secret-token", cfg.Remote.Token)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
}

func TestLoadAccessConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAccessConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrProfileNotFound)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"backend":`), 0o600))
	_, err = LoadAccessConfig(broken)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"backend":"local"}`), 0o600))
	_, err = LoadAccessConfig(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local.records_path")
}
