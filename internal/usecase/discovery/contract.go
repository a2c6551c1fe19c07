package discovery

import (
	"context"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

// PositionQuerier runs radius queries against the position store.
type PositionQuerier interface {
	QueryRadius(ctx context.Context, center location.LatLng, radiusKm float64) ([]location.PositionRecord, error)
}

// ProfileResolver loads profile summaries for result-set joins. A
// location.ErrProfileNotFound (or any per-entry failure) drops the
// entry from the result set, never the whole query.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) (location.ProfileSummary, error)
}
