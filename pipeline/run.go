package pipeline

import (
	"slices"
	"time"

	"github.com/fnndsc/pfbuild/models"
	"github.com/fnndsc/pfbuild/steps"
)

type RunState string

const (
	RunNotStarted RunState = "not_started"
	RunRunning    RunState = "running"
	RunSucceeded  RunState = "succeeded"
	RunAborted    RunState = "aborted"
)

func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunAborted
}

type StepStatus struct {
	Step  steps.Id         `json:"step"`
	Name  string           `json:"name"`
	State models.StepState `json:"state"`
}

// Run is one traversal of the step catalog for one payload.
type Run struct {
	ID         string                       `json:"id,omitempty"`
	Payload    models.Payload               `json:"payload"`
	State      RunState                     `json:"state"`
	Steps      []StepStatus                 `json:"steps"`
	Responses  map[steps.Id]models.Response `json:"responses"`
	Error      string                       `json:"error,omitempty"`
	StartedAt  time.Time                    `json:"started_at,omitzero"`
	FinishedAt time.Time                    `json:"finished_at,omitzero"`
}

func newRun() Run {
	all := steps.All()
	st := make([]StepStatus, len(all))
	for i, s := range all {
		st[i] = StepStatus{Step: s.Id, Name: s.DisplayName, State: models.StepIdle}
	}
	return Run{
		State:     RunNotStarted,
		Steps:     st,
		Responses: make(map[steps.Id]models.Response),
	}
}

// clone deep copies r so that a snapshot never aliases the orchestrator's
// own state, down to the response details.
func (r Run) clone() Run {
	r.Steps = slices.Clone(r.Steps)
	responses := make(map[steps.Id]models.Response, len(r.Responses))
	for id, resp := range r.Responses {
		responses[id] = resp.Clone()
	}
	r.Responses = responses
	return r
}

// Active returns the step currently executing, if any.
func (r Run) Active() (steps.Id, bool) {
	for _, s := range r.Steps {
		if s.State == models.StepActive {
			return s.Step, true
		}
	}
	return "", false
}

// StepState reports the state of step in r.
func (r Run) StepState(step steps.Id) models.StepState {
	if i := step.Index(); i >= 0 && i < len(r.Steps) {
		return r.Steps[i].State
	}
	return ""
}

// Transition is emitted every time a step changes state.
type Transition struct {
	RunID    string           `json:"run_id"`
	Step     steps.Id         `json:"step"`
	State    models.StepState `json:"state"`
	Response *models.Response `json:"response,omitempty"`
	Err      error            `json:"-"`
	RunState RunState         `json:"run_state"`
	Steps    []StepStatus     `json:"steps"`
}

// FailureMessage returns the error text carried by a failed transition.
func (t Transition) FailureMessage() string {
	if t.Err == nil {
		return ""
	}
	return t.Err.Error()
}
