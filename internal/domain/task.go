package domain

import "fmt"

// TaskKind identifies which pipeline row an envelope is routed by. The set is
// closed; anything else fails envelope validation at the edge.
type TaskKind string

const (
	TaskInference               TaskKind = "INFERENCE"
	TaskTraining                TaskKind = "TRAINING"
	TaskTrainingInference       TaskKind = "TRAINING_INFERENCE"
	TaskInferenceExplainability TaskKind = "INFERENCE_EXPLAINABILITY"
	TaskTrainingExplainability  TaskKind = "TRAINING_EXPLAINABILITY"
	TaskAnnotation              TaskKind = "ANNOTATION"
	TaskNone                    TaskKind = "NONE"
)

func (k TaskKind) Valid() bool {
	switch k {
	case TaskInference, TaskTraining, TaskTrainingInference,
		TaskInferenceExplainability, TaskTrainingExplainability,
		TaskAnnotation, TaskNone:
		return true
	}
	return false
}

// IsAnnotation reports whether the compute stage should take the annotation
// path instead of the model pipeline path.
func (k TaskKind) IsAnnotation() bool {
	return k == TaskAnnotation
}

// ResolveTaskKind upgrades a base kind to its explainability variant when at
// least one explainability method is requested. The resolution happens once,
// at intake; task kind is immutable afterwards.
func ResolveTaskKind(base TaskKind, explainability []string) TaskKind {
	if len(explainability) == 0 {
		return base
	}
	switch base {
	case TaskInference:
		return TaskInferenceExplainability
	case TaskTraining:
		return TaskTrainingExplainability
	default:
		return base
	}
}

// Stage is one step of the pipeline.
type Stage string

const (
	StageIntake   Stage = "intake"
	StageTransfer Stage = "transfer"
	StageCompute  Stage = "compute"
	StageEmit     Stage = "emit"
	StageFault    Stage = "fault"
)

// Channel is a named publish destination on the bus.
type Channel string

const (
	ChannelIntake       Channel = "intake"
	ChannelTransferDone Channel = "transfer-done"
	ChannelComputeStart Channel = "compute-start"
	ChannelComputeDone  Channel = "compute-done"
	ChannelEmitDone     Channel = "emit-done"
	ChannelFault        Channel = "fault"
)

// NextChannel is the transition table: given the stage that just completed
// successfully and the envelope's task kind, it returns the channel the
// envelope is published on. Failures never consult the table; they always go
// to ChannelFault.
//
// Subscriptions bind the table together: ChannelIntake feeds the transfer
// handler, ChannelTransferDone feeds the router dispatching to
// ChannelComputeStart, ChannelComputeStart feeds compute, ChannelComputeDone
// feeds emit. ChannelEmitDone is terminal and has no in-process consumer.
func NextChannel(stage Stage, kind TaskKind) Channel {
	if !kind.Valid() {
		panic(fmt.Sprintf("transition lookup with invalid task kind %q", kind))
	}
	switch stage {
	case StageIntake:
		return ChannelIntake
	case StageTransfer:
		return ChannelTransferDone
	case StageCompute:
		return ChannelComputeDone
	case StageEmit:
		return ChannelEmitDone
	case StageFault:
		panic("fault is terminal and never publishes onward")
	default:
		panic(fmt.Sprintf("transition lookup for unknown stage %q", stage))
	}
}

// DispatchAfterTransfer routes a transferred envelope to compute, branching on
// task kind. The switch is exhaustive over TaskKind; TaskNone has no compute
// row and is a contract violation.
func DispatchAfterTransfer(kind TaskKind) (Channel, error) {
	switch kind {
	case TaskInference, TaskTraining, TaskTrainingInference,
		TaskInferenceExplainability, TaskTrainingExplainability:
		return ChannelComputeStart, nil
	case TaskAnnotation:
		return ChannelComputeStart, nil
	case TaskNone:
		return "", ContractViolation(fmt.Errorf("task kind %s has no compute route", kind))
	default:
		return "", ContractViolation(fmt.Errorf("unhandled task kind %q", kind))
	}
}
