package types

// ReplayResult is a listener's decision during replay.
type ReplayResult int

const (
	Continue ReplayResult = iota
	Terminate
	Except
)

func (r ReplayResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case Terminate:
		return "terminate"
	case Except:
		return "except"
	default:
		return "unknown"
	}
}
