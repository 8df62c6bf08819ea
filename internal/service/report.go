package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vultisig/tokensync/internal/token"
	"github.com/vultisig/tokensync/types"
)

const (
	reportTimeLayout    = "2006-01-02 15:04:05 UTC"
	reportPreviewLength = 50
)

// WriteIssuanceReport prints the operator-facing summary of an issuance run.
func WriteIssuanceReport(w io.Writer, r *IssuanceResult, runErr error) {
	fmt.Fprintf(w, "JWT issuance summary (run %s)\n", r.RunID)
	if cred := r.Credential; cred != nil {
		fmt.Fprintf(w, "  Token preview: %s\n", token.Preview(cred.Raw, reportPreviewLength))
		fmt.Fprintf(w, "  Expires:       %s\n", cred.ExpiresAt.UTC().Format(reportTimeLayout))
	}
	if r.CachePath != "" {
		fmt.Fprintf(w, "  Cached at:     %s\n", r.CachePath)
	}
	if r.Rotation.Rotated {
		fmt.Fprintf(w, "  Backup:        %s\n", r.Rotation.BackupPath)
	}
	if r.RecordTitle != "" {
		fmt.Fprintf(w, "  Vault record:  %s\n", r.RecordTitle)
	}
	if r.NotificationPath != "" {
		fmt.Fprintf(w, "  Notification:  %s\n", r.NotificationPath)
	}
	writeSteps(w, &r.Summary)

	if r.Done && !r.Published() {
		fmt.Fprintln(w, "Manual steps required:")
		for i, step := range ManualPublishSteps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
	writeOutcome(w, r.Done, runErr)
}

// WriteSyncReport prints the operator-facing summary of a sync run.
func WriteSyncReport(w io.Writer, r *SyncResult, runErr error) {
	fmt.Fprintf(w, "JWT sync summary (run %s)\n", r.RunID)
	if r.CachePath != "" {
		fmt.Fprintf(w, "  Installed at:  %s (%d characters)\n", r.CachePath, r.Verification.Length)
	}
	if r.Rotation.Rotated {
		fmt.Fprintf(w, "  Backup:        %s\n", r.Rotation.BackupPath)
	}
	if i := r.Inspection; i != nil {
		fmt.Fprintf(w, "  Issuer:        %s\n", i.Issuer)
		fmt.Fprintf(w, "  Audience:      %s\n", i.Audience)
		if i.GeneratedAt != "" {
			fmt.Fprintf(w, "  Generated at:  %s\n", i.GeneratedAt)
		}
		if i.HasExpiry() {
			fmt.Fprintf(w, "  Expires:       %s\n", i.ExpiresAt.Format(reportTimeLayout))
		}
		if r.Valid {
			fmt.Fprintf(w, "  Time left:     %s\n", i.TimeLeft(r.CheckedAt).Truncate(time.Second))
		} else {
			fmt.Fprintln(w, "  Status:        EXPIRED, ask the issuer for a new token")
		}
		if len(i.Permissions) > 0 {
			fmt.Fprintf(w, "  Permissions:   %s\n", strings.Join(i.Permissions, ", "))
		}
	} else if r.InspectionErr != nil {
		fmt.Fprintf(w, "  Warning:       token metadata unavailable: %v\n", r.InspectionErr)
	}
	if notes := strings.TrimSpace(r.Notes); notes != "" {
		fmt.Fprintf(w, "  Notes:         %s\n", notes)
	}
	writeSteps(w, &r.Summary)

	if r.Done {
		fmt.Fprintln(w, "Usage:")
		fmt.Fprintf(w, "  Authorization: Bearer $(cat %s)\n", r.CachePath)
	}
	writeOutcome(w, r.Done, runErr)
}

func writeSteps(w io.Writer, s *Summary) {
	if len(s.Steps) == 0 {
		return
	}
	fmt.Fprintln(w, "Steps:")
	for _, step := range s.Steps {
		if step.Stage == types.StageDone {
			continue
		}
		line := fmt.Sprintf("  %-16s %s", step.Stage, step.Status)
		if step.Status != types.StepSuccess && step.Detail != "" {
			line += " (" + step.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func writeOutcome(w io.Writer, done bool, runErr error) {
	if runErr != nil {
		if stage, ok := types.FailedStage(runErr); ok {
			fmt.Fprintf(w, "FAILED at stage %q: %v\n", stage, runErr)
			return
		}
		fmt.Fprintf(w, "FAILED: %v\n", runErr)
		return
	}
	if done {
		fmt.Fprintln(w, "Done.")
	}
}
