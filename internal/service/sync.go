package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/internal/cache"
	"github.com/vultisig/tokensync/internal/metrics"
	"github.com/vultisig/tokensync/internal/token"
	"github.com/vultisig/tokensync/types"
)

type SyncResult struct {
	Summary
	Linkage      types.AppLinkage
	Metadata     types.SigningConfig
	CachePath    string
	Rotation     cache.Rotation
	Verification cache.Verification
	Notes        string
	// Inspection is nil when the token could not be decoded; InspectionErr says why.
	Inspection    *token.Inspection
	InspectionErr error
	Valid         bool
	CheckedAt     time.Time
}

// SyncService installs the latest published credential in the local cache.
type SyncService struct {
	deps Dependencies
}

func NewSyncService(deps Dependencies) (*SyncService, error) {
	if err := deps.validate(false); err != nil {
		return nil, err
	}
	return &SyncService{
		deps: deps,
	}, nil
}

// Run executes one sync. An expired token is still installed and reported with
// Valid=false; only fetch, cache and verify problems fail the run.
func (s *SyncService) Run(ctx context.Context) (*SyncResult, error) {
	runID := uuid.NewString()
	result := &SyncResult{Summary: newSummary(runID, metrics.WorkflowSync)}
	logger := s.deps.Logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"workflow": metrics.WorkflowSync,
	})

	err := s.run(ctx, result, logger)
	if err != nil {
		stage, _ := types.FailedStage(err)
		result.add(stage, types.StepFailed, err.Error())
		logger.WithError(err).WithField("stage", stage).Error("sync failed")
	}
	s.deps.Metrics.RecordRun(metrics.WorkflowSync, err)
	return result, err
}

func (s *SyncService) run(ctx context.Context, result *SyncResult, logger *logrus.Entry) error {
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
		return types.NewStageError(types.StageLoadingSigningMetadata, err)
	}
	metadata := SigningMetadataFromRecord(configRecord)
	result.Metadata = metadata
	result.add(types.StageLoadingSigningMetadata, types.StepSuccess, "")

	tokenRecord, err := client.FetchOne(ctx, linkage.TokenRecordID)
	if err != nil {
		return types.NewStageError(types.StageFetchingToken, err)
	}
	// The cache file gets the password byte for byte; only the checks below trim it.
	stored := tokenRecord.Password
	raw := strings.TrimSpace(stored)
	if raw == "" {
		return types.NewStageError(types.StageFetchingToken,
			fmt.Errorf("%w: token record %s has an empty password", types.ErrEmptyToken, linkage.TokenRecordID))
	}
	result.Notes = tokenRecord.Notes
	logger.WithFields(logrus.Fields{
		"record":  tokenRecord.Title,
		"preview": token.Preview(raw, 30),
	}).Info("token fetched")
	result.add(types.StageFetchingToken, types.StepSuccess, tokenRecord.Title)

	rotation, path, err := rotate(s.deps.Cache, metadata.LocalDirectory, metadata.LocalFilename, stored, logger)
	result.Rotation = rotation
	if err != nil {
		return types.NewStageError(types.StageRotatingCache, err)
	}
	result.CachePath = path
	result.add(types.StageRotatingCache, types.StepSuccess, path)

	verification, err := verifyInstalled(s.deps.Cache, metadata.LocalDirectory, metadata.LocalFilename, stored)
	result.Verification = verification
	if err != nil {
		return types.NewStageError(types.StageVerifying, err)
	}
	result.add(types.StageVerifying, types.StepSuccess, verification.Preview)

	s.inspect(raw, result, logger)

	result.Done = true
	result.add(types.StageDone, types.StepSuccess, "")
	return nil
}

// inspect decodes the installed token for display. A malformed token is logged and
// skipped; the raw token stays installed.
func (s *SyncService) inspect(raw string, result *SyncResult, logger *logrus.Entry) {
	result.CheckedAt = s.deps.Now().UTC()
	inspection, err := s.deps.Codec.DecodeUnverified(raw)
	if err != nil {
		if !errors.Is(err, types.ErrMalformedToken) {
			err = fmt.Errorf("%w: %v", types.ErrMalformedToken, err)
		}
		result.InspectionErr = err
		logger.WithError(err).Warn("could not decode token metadata, token is still installed")
		return
	}
	result.Inspection = inspection
	result.Valid = inspection.ValidAt(result.CheckedAt)
	if inspection.HasExpiry() {
		s.deps.Metrics.SetCredentialExpiry(metrics.WorkflowSync, inspection.ExpiresAt)
	}

	fields := logrus.Fields{
		"issuer":     inspection.Issuer,
		"audience":   inspection.Audience,
		"expires_at": inspection.ExpiresAt.Format(time.RFC3339),
		"valid":      result.Valid,
	}
	if result.Valid {
		logger.WithFields(fields).Info("token is valid")
	} else {
		logger.WithFields(fields).Warn("installed token is expired")
	}
}
