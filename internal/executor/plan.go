package executor

import (
	"context"

	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/internal/graph"
	"github.com/Jhh003/Ayaya-Miliastra-Editor-sub004/pkg/geometry"
)

// StepKind identifies one executable operation type.
type StepKind string

const (
	StepCreateNode         StepKind = "create_node"
	StepConnect            StepKind = "connect"
	StepCreateAndConnect   StepKind = "create_and_connect"
	StepConnectMerged      StepKind = "connect_merged"
	StepConfigNodeMerged   StepKind = "config_node_merged"
	StepSetPortTypesMerged StepKind = "set_port_types_merged"
	StepAddVariadicInputs  StepKind = "add_variadic_inputs"
	StepAddBranchOutputs   StepKind = "add_branch_outputs"
)

// Step is one operation to perform against the editor. Fields are used
// according to the kind; unused ones stay zero.
type Step struct {
	Kind   StepKind
	NodeID string
	Title  string
	Pos    geometry.Point2D

	Edges []graph.Edge

	// Params holds field name to value for config steps.
	Params map[string]string
	// PortTypes holds port name to type name for port typing steps.
	PortTypes map[string]string
	// Count is the number of inputs or outputs to add.
	Count int
}

type handlerFunc func(e *Executor, ctx context.Context, step Step) error

// StepPlan declares how the orchestrator frames one step kind: which
// preparation passes run before the handler and what gets invalidated after
// it succeeds.
type StepPlan struct {
	Handler handlerFunc

	// RequiresConnectPrepare runs the connection prewarm pass when the view
	// changed since the last one.
	RequiresConnectPrepare bool
	// RequiresViewSync re-checks node screen positions against predictions
	// before the handler runs.
	RequiresViewSync bool
	// InvalidateCacheOnSuccess drops the scene cache after the handler.
	InvalidateCacheOnSuccess bool
	// MutatesLayout advances the view token: the step adds or moves nodes.
	MutatesLayout bool
	// RecordReplayIO includes the step's declared inputs and a screenshot
	// in the replay log.
	RecordReplayIO bool
	// CreatesNode marks steps allowed to run before the first calibration.
	CreatesNode bool
}

var stepPlans = map[StepKind]StepPlan{
	StepCreateNode: {
		Handler:                  (*Executor).runCreateNode,
		InvalidateCacheOnSuccess: true,
		MutatesLayout:            true,
		RecordReplayIO:           true,
		CreatesNode:              true,
	},
	StepConnect: {
		Handler:                (*Executor).runConnect,
		RequiresConnectPrepare: true,
		RequiresViewSync:       true,
		RecordReplayIO:         true,
	},
	StepCreateAndConnect: {
		Handler:                  (*Executor).runCreateAndConnect,
		RequiresConnectPrepare:   true,
		InvalidateCacheOnSuccess: true,
		MutatesLayout:            true,
		RecordReplayIO:           true,
		CreatesNode:              true,
	},
	StepConnectMerged: {
		Handler:                (*Executor).runConnectMerged,
		RequiresConnectPrepare: true,
		RequiresViewSync:       true,
		RecordReplayIO:         true,
	},
	StepConfigNodeMerged: {
		Handler:                  (*Executor).runConfigNodeMerged,
		RequiresViewSync:         true,
		InvalidateCacheOnSuccess: true,
	},
	StepSetPortTypesMerged: {
		Handler:                  (*Executor).runSetPortTypesMerged,
		RequiresViewSync:         true,
		InvalidateCacheOnSuccess: true,
	},
	StepAddVariadicInputs: {
		Handler:                  (*Executor).runAddVariadicInputs,
		RequiresViewSync:         true,
		InvalidateCacheOnSuccess: true,
		MutatesLayout:            true,
	},
	StepAddBranchOutputs: {
		Handler:                  (*Executor).runAddBranchOutputs,
		RequiresViewSync:         true,
		InvalidateCacheOnSuccess: true,
		MutatesLayout:            true,
	},
}

// PlanFor returns the plan for a step kind.
func PlanFor(kind StepKind) (StepPlan, bool) {
	p, ok := stepPlans[kind]
	return p, ok
}
