package coordinator

// State identifies the coordinator's position in the expiry lifecycle.
// Extending and Closed are terminal for a given expiry; reaching either
// pops the next pending expiry or settles at Idle.
type State int

const (
	StateIdle State = iota
	StateCountdown
	StateDecision
	StateMathChallenge
	StateExtending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountdown:
		return "countdown"
	case StateDecision:
		return "decision"
	case StateMathChallenge:
		return "math_challenge"
	case StateExtending:
		return "extending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
