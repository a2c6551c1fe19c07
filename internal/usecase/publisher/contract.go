package publisher

import (
	"context"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

// PositionWriter persists the user's own position.
type PositionWriter interface {
	Upsert(ctx context.Context, userID string, p location.LatLng) error
}

// LocationSource provides the latest device fix. Returns
// location.ErrNoFix when no position has been reported yet.
type LocationSource interface {
	Sample(ctx context.Context) (location.LatLng, error)
}

// ConsentProvider reports the live consent snapshot.
type ConsentProvider interface {
	Current() location.ConsentState
}
