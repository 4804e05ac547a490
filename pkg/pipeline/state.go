package pipeline

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned by Run while another run is in flight.
var ErrBusy = errors.New("a run is already in progress")

// SessionState is the Idle/Busy guard of an Orchestrator.
type SessionState struct {
	busy atomic.Bool
}

// acquire moves Idle to Busy and reports whether it did.
func (s *SessionState) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *SessionState) release() {
	s.busy.Store(false)
}

// Busy reports whether a run is in flight.
func (s *SessionState) Busy() bool {
	return s.busy.Load()
}
