package build

import (
	"fmt"
	"sync"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateCleaning State = "cleaning"
	StateBuilding State = "building"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// IsTerminal reports whether a build invocation has finished.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle, StateDone, StateFailed:
		return to == StateCleaning
	case StateCleaning:
		return to == StateBuilding || to == StateFailed
	case StateBuilding:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

type stateMachine struct {
	mu    sync.RWMutex
	state State
}

func (m *stateMachine) get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// transition moves from the current state to `to`, rejecting disallowed moves.
func (m *stateMachine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !isAllowedTransition(m.state, to) {
		return fmt.Errorf("disallowed build transition: %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}
