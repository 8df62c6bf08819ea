package types

// Stage names a workflow state. Failures are reported against the stage they happened in.
type Stage string

const (
	StageResolvingConfig      Stage = "config"
	StageConnectingVault      Stage = "vault"
	StageLoadingSigningConfig Stage = "signing-config"
	StageGenerating           Stage = "generate"
	StageCachingLocally       Stage = "cache"
	StagePublishingToVault    Stage = "publish"
	StageNotifying            Stage = "notify"
	StageFetchingToken        Stage = "fetch"
	StageRotatingCache        Stage = "rotate"
	StageVerifying            Stage = "verify"
	StageDone                 Stage = "done"
)

// StageLoadingSigningMetadata is the sync-side name for loading the config record;
// failures are reported under the same stage as on the issuer.
const StageLoadingSigningMetadata = StageLoadingSigningConfig

// StepStatus is what the final summary prints for each step.
type StepStatus string

const (
	StepSuccess        StepStatus = "Success"
	StepManualRequired StepStatus = "Manual step required"
	StepFailed         StepStatus = "Failed"
)
