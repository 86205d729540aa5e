package ice

// Role is this agent's ICE role. SetRole records it, but no gathering,
// check or nomination step in this package reads it.
type Role int

const (
	RoleControlling Role = iota
	RoleControlled
)

func (r Role) String() string {
	if r == RoleControlled {
		return "controlled"
	}
	return "controlling"
}

// NominationMode selects how a selected pair is confirmed.
type NominationMode int

const (
	NominationRegular NominationMode = iota
	NominationAggressive
)

// AgentState is the overall connection-establishment state machine.
type AgentState int

const (
	StateNew AgentState = iota
	StateChecking
	StateConnected
	StateCompleted
	StateFailed
	StateDisconnected
	StateClosed
)

func (s AgentState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateChecking:
		return "checking"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
