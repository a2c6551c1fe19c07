package session

import (
	"context"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/feed"
	"github.com/Vishal01x/reflekt-proximity/internal/usecase/discovery"
)

// AreaWatch is one live proximity query owned by the coordinator.
type AreaWatch interface {
	Update(f location.DiscoveryFilter) error
	Results() *feed.Subscription[[]location.DiscoveryResult]
	Errors() *feed.Subscription[error]
	Close()
	Done() <-chan struct{}
}

// AreaWatcher starts live proximity queries.
type AreaWatcher interface {
	Watch(ctx context.Context, ownerID string, f location.DiscoveryFilter) (AreaWatch, error)
}

// TargetTracker maintains the targeted watch set.
type TargetTracker interface {
	SetWatchSet(ids []string) error
	Tracked() *feed.Subscription[[]location.TrackedPosition]
	Clear()
	Close()
}

// Publisher runs the own-position publishing loop until ctx ends.
type Publisher interface {
	Run(ctx context.Context, userID string) error
}

// PositionRemover deletes the user's stored position on privacy opt-out.
type PositionRemover interface {
	Delete(ctx context.Context, userID string) error
}

// ConsentProvider is the live consent source consumed by the coordinator.
type ConsentProvider interface {
	Current() location.ConsentState
	Updates() <-chan location.ConsentState
}

// EngineWatcher adapts the discovery engine to the AreaWatcher contract.
type EngineWatcher struct {
	Engine *discovery.Engine
}

func (e EngineWatcher) Watch(ctx context.Context, ownerID string, f location.DiscoveryFilter) (AreaWatch, error) {
	w, err := e.Engine.Watch(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return w, nil
}
