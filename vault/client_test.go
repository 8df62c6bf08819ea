package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/tokensync/internal/logging"
	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

func newLocalClient(t *testing.T, readOnly bool, records ...types.Record) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewLocalRecordStorage(vault_config.LocalStorage{RecordsPath: dir})
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, storage.SaveRecord(context.Background(), r))
	}
	return NewClient(storage, readOnly, logging.NewDiscardLogger()), dir
}

func TestClient_FetchEmptyChecksConnectivity(t *testing.T) {
	client, _ := newLocalClient(t, false)

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestClient_FetchConnectivityFailsWhenBackendMissing(t *testing.T) {
	storage, err := NewLocalRecordStorage(vault_config.LocalStorage{RecordsPath: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	client := NewClient(storage, false, logging.NewDiscardLogger())

	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, types.ErrVaultUnavailable)
}

func TestClient_FetchSkipsUnknown(t *testing.T) {
	client, _ := newLocalClient(t, false, types.Record{UID: "known", Title: "JWT", Password: "tok"})

	records, err := client.Fetch(context.Background(), "unknown", "known")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "known", records[0].UID)
	assert.Equal(t, "tok", records[0].Password)

	records, err = client.Fetch(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_FetchOneNotFound(t *testing.T) {
	client, _ := newLocalClient(t, false)

	_, err := client.FetchOne(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestClient_Update(t *testing.T) {
	testCases := []struct {
		name          string
		readOnly      bool
		uid           string
		wantPublished bool
	}{
		{name: "writable vault", uid: "token", wantPublished: true},
		{name: "read-only vault", readOnly: true, uid: "token"},
		{name: "unknown record", uid: "missing"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newLocalClient(t, tc.readOnly, types.Record{UID: "token", Title: "API Development JWT"})

			result := client.Update(context.Background(), tc.uid, types.RecordUpdate{
				Password: "new-token",
				Notes:    "Generated at now",
				Fields:   map[string]string{"expires": "2030-01-01T00:00:00Z"},
			})
			assert.Equal(t, tc.wantPublished, result.Published)
			if !tc.wantPublished {
				assert.NotEmpty(t, result.Reason)
			}

			record, err := client.FetchOne(context.Background(), "token")
			require.NoError(t, err)
			if tc.wantPublished {
				assert.Equal(t, "new-token", record.Password)
				assert.Equal(t, "API Development JWT", record.Title)
				expires, ok := record.Field("EXPIRES")
				assert.True(t, ok)
				assert.Equal(t, "2030-01-01T00:00:00Z", expires)
			} else {
				assert.Empty(t, record.Password)
			}
		})
	}
}

func TestConnect(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name     string
		cfg      *vault_config.AccessConfig
		expected string
		wantErr  error
	}{
		{name: "nil profile", cfg: nil, wantErr: types.ErrVaultUnavailable},
		{
			name:    "invalid backend",
			cfg:     &vault_config.AccessConfig{Backend: "ftp"},
			wantErr: types.ErrVaultUnavailable,
		},
		{
			name: "bound to another application",
			cfg: &vault_config.AccessConfig{
				Backend:     vault_config.BackendLocal,
				Application: "other-app",
				Local:       vault_config.LocalStorage{RecordsPath: dir},
			},
			expected: "jwt-distribution",
			wantErr:  types.ErrVaultConflict,
		},
		{
			name: "unreachable local store",
			cfg: &vault_config.AccessConfig{
				Backend: vault_config.BackendLocal,
				Local:   vault_config.LocalStorage{RecordsPath: filepath.Join(dir, "missing")},
			},
			wantErr: types.ErrVaultUnavailable,
		},
		{
			name: "ok",
			cfg: &vault_config.AccessConfig{
				Backend:     vault_config.BackendLocal,
				Application: "jwt-distribution",
				Local:       vault_config.LocalStorage{RecordsPath: dir},
			},
			expected: "jwt-distribution",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := Connect(context.Background(), tc.cfg, tc.expected, logging.NewDiscardLogger())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestConnectWithProfile(t *testing.T) {
	dir := t.TempDir()
	records := filepath.Join(dir, "records")
	require.NoError(t, os.Mkdir(records, 0o700))

	_, err := ConnectWithProfile(context.Background(), filepath.Join(dir, "ksm_config.json"), "", logging.NewDiscardLogger())
	assert.ErrorIs(t, err, types.ErrVaultUnavailable)

	profile := filepath.Join(dir, "ksm_config.json")
	require.NoError(t, os.WriteFile(profile, []byte(`{"backend":"local","read_only":true,"local":{"records_path":"`+records+`"}}`), 0o600))

	client, err := ConnectWithProfile(context.Background(), profile, "", logging.NewDiscardLogger())
	require.NoError(t, err)
	assert.True(t, client.ReadOnly())
}
