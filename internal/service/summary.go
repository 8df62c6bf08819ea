package service

import (
	"github.com/vultisig/tokensync/types"
)

type Step struct {
	Stage  types.Stage
	Status types.StepStatus
	Detail string
}

// Summary is the step-by-step outcome of one workflow run.
type Summary struct {
	RunID    string
	Workflow string
	Steps    []Step
	Done     bool
}

func newSummary(runID, workflow string) Summary {
	return Summary{
		RunID:    runID,
		Workflow: workflow,
	}
}

func (s *Summary) add(stage types.Stage, status types.StepStatus, detail string) {
	s.Steps = append(s.Steps, Step{Stage: stage, Status: status, Detail: detail})
}

// Step returns the last recorded step for stage.
func (s *Summary) Step(stage types.Stage) (Step, bool) {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if s.Steps[i].Stage == stage {
			return s.Steps[i], true
		}
	}
	return Step{}, false
}

func (s *Summary) ManualStepRequired() bool {
	for _, step := range s.Steps {
		if step.Status == types.StepManualRequired {
			return true
		}
	}
	return false
}
