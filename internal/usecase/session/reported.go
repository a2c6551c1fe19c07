package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

// ReportedLocation is the device-GPS stand-in for a server-side session:
// the client reports fixes over the transport and the publisher samples
// the latest one.
type ReportedLocation struct {
	mu  sync.Mutex
	pos location.LatLng
	set bool
}

// Report stores a new fix.
func (r *ReportedLocation) Report(p location.LatLng) error {
	if !p.Valid() {
		return fmt.Errorf("%w: coordinates out of range", location.ErrInvalidFilter)
	}
	r.mu.Lock()
	r.pos = p
	r.set = true
	r.mu.Unlock()
	return nil
}

// Sample returns the latest reported fix, or location.ErrNoFix when the
// client has not reported one yet.
func (r *ReportedLocation) Sample(context.Context) (location.LatLng, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set {
		return location.LatLng{}, location.ErrNoFix
	}
	return r.pos, nil
}
