package tracker

import (
	"context"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

// PositionWatcher opens a live position stream for one user. The
// returned channel is closed when the stop func is called or the
// context ends. Users with no position yet emit nothing until they
// first publish.
type PositionWatcher interface {
	Watch(ctx context.Context, userID string) (<-chan location.PositionRecord, func())
}
