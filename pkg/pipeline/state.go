package pipeline

type State int

const (
	StateStart State = iota
	StateWorkspacePrepared
	StateInvoked
	StateNormalized
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateWorkspacePrepared:
		return "workspace-prepared"
	case StateInvoked:
		return "invoked"
	case StateNormalized:
		return "normalized"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage names a pipeline step for errors, logs and statistics.
type Stage string

const (
	StagePrepare   Stage = "prepare workspace"
	StageInvoke    Stage = "invoke generator"
	StageNormalize Stage = "normalize permissions"
)
