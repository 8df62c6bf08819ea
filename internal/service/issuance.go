package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/internal/cache"
	"github.com/vultisig/tokensync/internal/metrics"
	"github.com/vultisig/tokensync/internal/notify"
	"github.com/vultisig/tokensync/internal/token"
	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault"
)

// ManualPublishSteps are printed when the new credential could not be published.
var ManualPublishSteps = []string{
	"Copy the generated token from the local cache file",
	"Update the password field of the token record in the vault",
	"Notify the API engineers that a new token is available",
}

type IssuanceResult struct {
	Summary
	Linkage          types.AppLinkage
	Credential       *types.Credential
	CachePath        string
	Rotation         cache.Rotation
	Verification     cache.Verification
	Publish          vault.UpdateResult
	RecordTitle      string
	NotificationPath string
}

// Published reports whether the token record now holds the new credential.
func (r *IssuanceResult) Published() bool {
	return r.Publish.Published
}

// IssuanceService mints a credential, caches it locally and publishes it to the vault.
type IssuanceService struct {
	deps Dependencies
}

func NewIssuanceService(deps Dependencies) (*IssuanceService, error) {
	if err := deps.validate(true); err != nil {
		return nil, err
	}
	return &IssuanceService{
		deps: deps,
	}, nil
}

// Run executes one issuance. Publishing and notification failures are folded into
// the summary; every other failure ends the run with a *types.StageError.
func (s *IssuanceService) Run(ctx context.Context) (*IssuanceResult, error) {
	runID := uuid.NewString()
	result := &IssuanceResult{Summary: newSummary(runID, metrics.WorkflowIssuance)}
	logger := s.deps.Logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"workflow": metrics.WorkflowIssuance,
	})

	err := s.run(ctx, result, logger)
	if err != nil {
		stage, _ := types.FailedStage(err)
		result.add(stage, types.StepFailed, err.Error())
		logger.WithError(err).WithField("stage", stage).Error("issuance failed")
	}
	s.deps.Metrics.RecordRun(metrics.WorkflowIssuance, err)
	return result, err
}

func (s *IssuanceService) run(ctx context.Context, result *IssuanceResult, logger *logrus.Entry) error {
	linkage, err := s.deps.Resolver.Resolve()
	if err != nil {
		return types.NewStageError(types.StageResolvingConfig, err)
	}
	result.Linkage = linkage
	result.add(types.StageResolvingConfig, types.StepSuccess, "")

	client, err := s.deps.Connect(ctx)
	if err != nil {
		return types.NewStageError(types.StageConnectingVault, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("failed to close vault client")
		}
	}()
	result.add(types.StageConnectingVault, types.StepSuccess, "")

	configRecord, err := client.FetchOne(ctx, linkage.ConfigRecordID)
	if err != nil {
		return types.NewStageError(types.StageLoadingSigningConfig, err)
	}
	signing := SigningConfigFromRecord(configRecord)
	if !signing.HasSecret() {
		return types.NewStageError(types.StageLoadingSigningConfig,
			fmt.Errorf("%w: config record %s has an empty password", types.ErrSecretMissing, linkage.ConfigRecordID))
	}
	logger.WithFields(logrus.Fields{
		"issuer":           signing.Issuer,
		"audience":         signing.Audience,
		"expiration_hours": signing.ExpirationHours,
	}).Info("signing config loaded")
	result.add(types.StageLoadingSigningConfig, types.StepSuccess, "")

	now := s.deps.Now()
	cred, err := s.deps.Codec.Encode(token.NewClaimSpec(signing, now), []byte(signing.Secret))
	if err != nil {
		return types.NewStageError(types.StageGenerating, err)
	}
	// Nothing is rotated or published unless the token verifies under the same config.
	if _, err := s.deps.Codec.Verify(cred.Raw, signing, now); err != nil {
		return types.NewStageError(types.StageGenerating, fmt.Errorf("minted token failed verification: %w", err))
	}
	result.Credential = cred
	s.deps.Metrics.SetCredentialExpiry(metrics.WorkflowIssuance, cred.ExpiresAt)
	logger.WithFields(logrus.Fields{
		"expires_at": cred.ExpiresAt.Format(time.RFC3339),
		"preview":    token.Preview(cred.Raw, 30),
	}).Info("credential generated")
	result.add(types.StageGenerating, types.StepSuccess, "")

	rotation, path, err := rotate(s.deps.Cache, signing.LocalDirectory, signing.LocalFilename, cred.Raw, logger)
	result.Rotation = rotation
	if err != nil {
		return types.NewStageError(types.StageCachingLocally, err)
	}
	result.CachePath = path
	verification, err := verifyInstalled(s.deps.Cache, signing.LocalDirectory, signing.LocalFilename, cred.Raw)
	result.Verification = verification
	if err != nil {
		return types.NewStageError(types.StageCachingLocally, err)
	}
	result.add(types.StageCachingLocally, types.StepSuccess, path)

	s.publish(ctx, client, linkage, cred, result, logger)

	notification := notify.NewGenerated(cred, linkage, s.deps.Now())
	notificationPath, err := s.deps.Notifier.Send(signing.LocalDirectory, notification)
	if err != nil {
		logger.WithError(err).Warn("failed to log notification")
		result.add(types.StageNotifying, types.StepFailed, err.Error())
	} else {
		result.NotificationPath = notificationPath
		result.add(types.StageNotifying, types.StepSuccess, notificationPath)
	}

	result.Done = true
	result.add(types.StageDone, types.StepSuccess, "")
	return nil
}

// publish is best-effort: a missing record, a read-only vault or a failed save all
// leave the run successful with a manual step.
func (s *IssuanceService) publish(ctx context.Context, client VaultClient, linkage types.AppLinkage, cred *types.Credential, result *IssuanceResult, logger *logrus.Entry) {
	defer func() {
		s.deps.Metrics.RecordPublish(result.Publish.Published)
		if result.Publish.Published {
			result.add(types.StagePublishingToVault, types.StepSuccess, result.RecordTitle)
			return
		}
		logger.WithError(result.Publish.Err).WithField("reason", result.Publish.Reason).Warn("credential not published, manual step required")
		result.add(types.StagePublishingToVault, types.StepManualRequired, result.Publish.Reason)
	}()

	record, err := client.FetchOne(ctx, linkage.TokenRecordID)
	if err != nil {
		result.Publish = vault.UpdateResult{Reason: "token record lookup failed", Err: err}
		return
	}
	result.RecordTitle = record.Title

	result.Publish = client.Update(ctx, linkage.TokenRecordID, types.RecordUpdate{
		Password: cred.Raw,
		Notes:    "Generated at " + cred.GeneratedAt,
		Fields: map[string]string{
			FieldExpires: cred.ExpiresAt.Format(time.RFC3339),
		},
	})
}
