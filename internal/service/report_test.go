package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vultisig/tokensync/internal/cache"
	"github.com/vultisig/tokensync/internal/token"
	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault"
)

func TestWriteIssuanceReport(t *testing.T) {
	expiresAt := time.Date(2025, 6, 2, 8, 30, 15, 0, time.UTC)
	raw := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJpc3MiOiJhcGktZGV2ZWxvcG1lbnQtc2VydmVyIn0.signature"

	testCases := []struct {
		name     string
		publish  vault.UpdateResult
		contains []string
		absent   []string
	}{
		{
			name:     "published",
			publish:  vault.UpdateResult{Published: true},
			contains: []string{"2025-06-02 08:30:15 UTC", token.Preview(raw, 50), "Done."},
			absent:   []string{"Manual steps required"},
		},
		{
			name:     "manual",
			publish:  vault.UpdateResult{Reason: "vault is read-only"},
			contains: []string{"Manual steps required", ManualPublishSteps[1], "Manual step required (vault is read-only)"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := &IssuanceResult{
				Summary:    newSummary("run-1", "issuance"),
				Credential: &types.Credential{Raw: raw, ExpiresAt: expiresAt},
				CachePath:  "secrets/api_access.jwt",
				Publish:    tc.publish,
			}
			status := types.StepSuccess
			if !tc.publish.Published {
				status = types.StepManualRequired
			}
			result.add(types.StagePublishingToVault, status, tc.publish.Reason)
			result.Done = true

			var buf bytes.Buffer
			WriteIssuanceReport(&buf, result, nil)
			for _, s := range tc.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tc.absent {
				assert.NotContains(t, buf.String(), s)
			}
			assert.NotContains(t, buf.String(), raw, "full token must not be printed")
		})
	}
}

func TestWriteSyncReport(t *testing.T) {
	checkedAt := time.Date(2025, 6, 1, 20, 30, 15, 0, time.UTC)
	result := &SyncResult{
		Summary:      newSummary("run-2", "sync"),
		CachePath:    "secrets/api_access.jwt",
		Verification: cache.Verification{Readable: true, Length: 120},
		Notes:        "Generated at 2025-06-01T08:30:15Z",
		Inspection: &token.Inspection{
			Issuer:      types.DefaultIssuer,
			Audience:    types.DefaultAudience,
			ExpiresAt:   time.Date(2025, 6, 2, 8, 30, 15, 0, time.UTC),
			Permissions: types.DefaultPermissions(),
		},
		Valid:     true,
		CheckedAt: checkedAt,
		Rotation:  cache.Rotation{Rotated: true, BackupPath: "secrets/api_access.jwt.backup.20250601_203015"},
	}
	result.Done = true

	var buf bytes.Buffer
	WriteSyncReport(&buf, result, nil)
	out := buf.String()
	assert.Contains(t, out, "Time left:     12h0m0s")
	assert.Contains(t, out, "api:read, api:write, api:deploy")
	assert.Contains(t, out, "Generated at 2025-06-01T08:30:15Z")
	assert.Contains(t, out, "Authorization: Bearer $(cat secrets/api_access.jwt)")
	assert.Contains(t, out, "api_access.jwt.backup.20250601_203015")
}

func TestWriteSyncReport_Failure(t *testing.T) {
	result := &SyncResult{Summary: newSummary("run-3", "sync")}
	err := types.NewStageError(types.StageFetchingToken, types.ErrRecordNotFound)
	result.add(types.StageFetchingToken, types.StepFailed, err.Error())

	var buf bytes.Buffer
	WriteSyncReport(&buf, result, err)
	assert.Contains(t, buf.String(), `FAILED at stage "fetch"`)
	assert.NotContains(t, buf.String(), "Authorization")
}
