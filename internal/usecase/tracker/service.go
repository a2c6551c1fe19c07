package tracker

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/feed"
	"github.com/Vishal01x/reflekt-proximity/internal/metrics"
)

// Service maintains exactly one live position watch per member of the
// current watch set and emits full tracked snapshots on every change.
type Service struct {
	watcher PositionWatcher
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	watches  map[string]func()
	snapshot map[string]location.TrackedPosition
	tracked  *feed.Feed[[]location.TrackedPosition]
	closed   bool
}

// New creates a targeted location subscriber.
func New(watcher PositionWatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		watcher:  watcher,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		watches:  make(map[string]func()),
		snapshot: make(map[string]location.TrackedPosition),
		tracked:  feed.New[[]location.TrackedPosition](),
	}
}

// Tracked subscribes to the latest full tracked snapshot.
func (s *Service) Tracked() *feed.Subscription[[]location.TrackedPosition] {
	return s.tracked.Subscribe()
}

// SetWatchSet replaces the watch set by diffing against the current one:
// removed IDs are torn down exactly once, added IDs get exactly one new
// watch, unchanged IDs are untouched.
func (s *Service) SetWatchSet(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return location.ErrInvalidState
	}

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	changed := false
	for id, stop := range s.watches {
		if _, keep := next[id]; keep {
			continue
		}
		stop()
		delete(s.watches, id)
		delete(s.snapshot, id)
		metrics.ActiveWatches.WithLabelValues("targeted").Dec()
		changed = true
	}
	for id := range next {
		if _, have := s.watches[id]; have {
			continue
		}
		ch, stop := s.watcher.Watch(s.ctx, id)
		s.watches[id] = stop
		metrics.ActiveWatches.WithLabelValues("targeted").Inc()
		go s.consume(id, ch)
		changed = true
	}

	if changed {
		s.emitLocked()
		s.log.Debug("watch set updated", zap.Int("size", len(s.watches)))
	}
	return nil
}

// Clear tears down every watch. Idempotent.
func (s *Service) Clear() {
	_ = s.SetWatchSet(nil)
}

// ActiveWatchCount reports the number of live per-ID watches.
func (s *Service) ActiveWatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// Close clears the watch set and shuts the tracked feed. Idempotent.
func (s *Service) Close() {
	s.Clear()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.tracked.Close()
}

func (s *Service) consume(id string, ch <-chan location.PositionRecord) {
	for rec := range ch {
		s.mu.Lock()
		// a late emission after removal must not resurrect the member
		if _, live := s.watches[id]; !live {
			s.mu.Unlock()
			continue
		}
		s.snapshot[id] = location.TrackedPosition{
			UserID:    rec.UserID,
			Position:  rec.Position,
			UpdatedAt: rec.UpdatedAt,
		}
		s.emitLocked()
		s.mu.Unlock()
	}
}

func (s *Service) emitLocked() {
	out := make([]location.TrackedPosition, 0, len(s.snapshot))
	for _, tp := range s.snapshot {
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	s.tracked.Publish(out)
}
