package constants

// RunStatus is the canonical status for rows in the runs journal.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusOK      RunStatus = "OK"
	RunStatusFailed  RunStatus = "FAILED"
)

// Stage names one pass of the pipeline.
type Stage string

const (
	StageStabilize Stage = "stabilize"
	StageSplit     Stage = "split"
	StageResolve   Stage = "resolve"
	StageMerge     Stage = "group_merge_rename"
)

// Stages lists the pipeline passes in execution order.
var Stages = []Stage{StageStabilize, StageSplit, StageResolve, StageMerge}
