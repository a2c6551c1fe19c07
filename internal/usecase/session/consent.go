package session

import (
	"sync"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

// ConsentSwitch is a live consent source: Current returns the snapshot,
// Updates delivers changes latest-value-wins. Set never blocks.
type ConsentSwitch struct {
	mu      sync.Mutex
	state   location.ConsentState
	updates chan location.ConsentState
}

// NewConsentSwitch creates a consent switch with an initial state.
func NewConsentSwitch(initial location.ConsentState) *ConsentSwitch {
	return &ConsentSwitch{state: initial, updates: make(chan location.ConsentState, 1)}
}

// Current returns the latest consent snapshot.
func (s *ConsentSwitch) Current() location.ConsentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates returns the change stream. Only the newest unread state is
// pending at any time.
func (s *ConsentSwitch) Updates() <-chan location.ConsentState {
	return s.updates
}

// Set replaces the consent state and notifies the consumer, dropping an
// unread predecessor.
func (s *ConsentSwitch) Set(cs location.ConsentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cs == s.state {
		return
	}
	s.state = cs
	select {
	case <-s.updates:
	default:
	}
	s.updates <- cs
}
