package linkage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/tokensync/internal/logging"
	"github.com/vultisig/tokensync/types"
)

func newResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	t.Setenv("JWT_TOKEN_RECORD_UID", "")
	t.Setenv("JWT_CONFIG_RECORD_UID", "")
	path := filepath.Join(t.TempDir(), "appConfig.json")
	return NewResolver(path, logging.NewDiscardLogger()), path
}

func writeAppConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestResolve_EnvironmentWins(t *testing.T) {
	r, path := newResolver(t)
	writeAppConfig(t, path, `{"jwt_token_record_uid":"file-token","jwt_config_record_uid":"file-config"}`)
	t.Setenv("JWT_TOKEN_RECORD_UID", "env-token")
	t.Setenv("JWT_CONFIG_RECORD_UID", "env-config")

	linkage, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, types.AppLinkage{TokenRecordID: "env-token", ConfigRecordID: "env-config"}, linkage)
}

func TestResolve_PartialEnvironmentFallsBackToFile(t *testing.T) {
	r, path := newResolver(t)
	writeAppConfig(t, path, `{"jwt_token_record_uid":"file-token","jwt_config_record_uid":"file-config"}`)
	t.Setenv("JWT_TOKEN_RECORD_UID", "env-token")

	linkage, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "file-token", linkage.TokenRecordID)
	assert.Equal(t, "file-config", linkage.ConfigRecordID)
}

func TestResolve_MissingWritesTemplate(t *testing.T) {
	r, path := newResolver(t)

	_, err := r.Resolve()
	assert.ErrorIs(t, err, types.ErrConfigurationMissing)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var template types.AppLinkage
	require.NoError(t, json.Unmarshal(raw, &template))
	assert.Equal(t, types.TemplateAppLinkage(), template)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The second run finds the untouched template and reports it as incomplete.
	_, err = r.Resolve()
	assert.ErrorIs(t, err, types.ErrConfigurationIncomplete)
	assert.Contains(t, err.Error(), "jwt_token_record_uid")
	assert.Contains(t, err.Error(), "jwt_config_record_uid")
}

func TestResolve_Incomplete(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		missing []string
	}{
		{
			name:    "placeholder token uid",
			content: `{"jwt_token_record_uid":"YOUR_JWT_TOKEN_RECORD_UID","jwt_config_record_uid":"cfg"}`,
			missing: []string{"jwt_token_record_uid"},
		},
		{
			name:    "missing config uid",
			content: `{"jwt_token_record_uid":"tok"}`,
			missing: []string{"jwt_config_record_uid"},
		},
		{
			name:    "unparseable file",
			content: `{not json`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, path := newResolver(t)
			writeAppConfig(t, path, tc.content)

			_, err := r.Resolve()
			assert.ErrorIs(t, err, types.ErrConfigurationIncomplete)
			for _, key := range tc.missing {
				assert.Contains(t, err.Error(), key)
			}

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tc.content, string(raw), "existing file must never be overwritten")
		})
	}
}

func TestResolve_FromFile(t *testing.T) {
	r, path := newResolver(t)
	writeAppConfig(t, path, `{"jwt_token_record_uid":"tok-uid","jwt_config_record_uid":"cfg-uid"}`)

	linkage, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, types.AppLinkage{TokenRecordID: "tok-uid", ConfigRecordID: "cfg-uid"}, linkage)
}

func TestNewResolver_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultAppConfigPath, NewResolver("", logging.NewDiscardLogger()).Path())
}
