package models

// StepState is the lifecycle state of one step within a run.
type StepState string

const (
	StepIdle      StepState = "idle"
	StepActive    StepState = "active"
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
)

func (s StepState) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}
