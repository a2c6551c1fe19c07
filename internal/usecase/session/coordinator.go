package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/feed"
)

// Options tunes coordinator teardown behavior.
type Options struct {
	// TeardownGrace bounds how long a mode switch waits for the
	// outgoing mode to stop before proceeding.
	TeardownGrace time.Duration
}

// Coordinator owns the subscription mode of one user session. Exactly one
// mode is active at a time; switches tear the outgoing mode down fully
// before the incoming one starts. It consumes the live consent stream to
// start and stop the own-position publisher without changing mode.
type Coordinator struct {
	userID    string
	area      AreaWatcher
	tracker   TargetTracker
	pub       Publisher
	positions PositionRemover
	consent   ConsentProvider
	opts      Options
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mode      location.SubscriptionMode
	watch     AreaWatch
	pubCancel context.CancelFunc
	pubDone   chan struct{}
	closed    bool

	results *feed.Feed[[]location.DiscoveryResult]
	tracked *feed.Feed[[]location.TrackedPosition]
	errs    *feed.Feed[error]
}

// NewCoordinator creates a lifecycle coordinator in the Inactive mode and
// starts its consent-watch loop.
func NewCoordinator(
	userID string,
	area AreaWatcher,
	tracker TargetTracker,
	pub Publisher,
	positions PositionRemover,
	consent ConsentProvider,
	opts Options,
	log *zap.Logger,
) *Coordinator {
	if opts.TeardownGrace <= 0 {
		opts.TeardownGrace = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		userID:    userID,
		area:      area,
		tracker:   tracker,
		pub:       pub,
		positions: positions,
		consent:   consent,
		opts:      opts,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		results:   feed.New[[]location.DiscoveryResult](),
		tracked:   feed.New[[]location.TrackedPosition](),
		errs:      feed.New[error](),
	}
	go bridge(tracker.Tracked(), c.tracked)
	go c.consentLoop()
	return c
}

// Mode reports the current subscription mode.
func (c *Coordinator) Mode() location.SubscriptionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Results subscribes to discovery result sets. The feed survives mode
// switches; it only closes when the coordinator closes.
func (c *Coordinator) Results() *feed.Subscription[[]location.DiscoveryResult] {
	return c.results.Subscribe()
}

// Tracked subscribes to targeted-watch snapshots.
func (c *Coordinator) Tracked() *feed.Subscription[[]location.TrackedPosition] {
	return c.tracked.Subscribe()
}

// Errors subscribes to non-fatal coordinator and query errors.
func (c *Coordinator) Errors() *feed.Subscription[error] {
	return c.errs.Subscribe()
}

// StartAreaSearch enters the area-search mode. Requires location
// permission and GPS; on denial the coordinator stays Inactive.
func (c *Coordinator) StartAreaSearch(f location.DiscoveryFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return location.ErrInvalidState
	}

	cs := c.consent.Current()
	if !cs.LocationPermissionGranted {
		return location.ErrPermissionDenied
	}
	if !cs.GPSEnabled {
		return location.ErrHardwareUnavailable
	}
	if err := f.Validate(); err != nil {
		return err
	}

	c.teardownLocked()

	w, err := c.area.Watch(c.ctx, c.userID, f)
	if err != nil {
		return err
	}
	c.watch = w
	go bridge(w.Results(), c.results)
	go bridge(w.Errors(), c.errs)

	c.mode = location.ModeAreaSearch
	c.log.Info("mode changed", zap.String("user_id", c.userID), zap.Stringer("mode", c.mode))

	if cs.PrivacyOptedIn {
		c.startPublisherLocked()
	}
	return nil
}

// UpdateFilter replaces the area-search filter. Valid only in the
// AreaSearch mode.
func (c *Coordinator) UpdateFilter(f location.DiscoveryFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != location.ModeAreaSearch {
		return location.ErrInvalidState
	}
	return c.watch.Update(f)
}

// StartTargetedWatch enters the targeted-watch mode with the given IDs.
func (c *Coordinator) StartTargetedWatch(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return location.ErrInvalidState
	}

	c.teardownLocked()

	if err := c.tracker.SetWatchSet(ids); err != nil {
		return err
	}
	c.mode = location.ModeTargetedWatch
	c.log.Info("mode changed", zap.String("user_id", c.userID), zap.Stringer("mode", c.mode))

	if c.consent.Current().PrivacyOptedIn {
		c.startPublisherLocked()
	}
	return nil
}

// UpdateWatchSet replaces the targeted watch set. Valid only in the
// TargetedWatch mode.
func (c *Coordinator) UpdateWatchSet(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != location.ModeTargetedWatch {
		return location.ErrInvalidState
	}
	return c.tracker.SetWatchSet(ids)
}

// StopAll tears everything down and returns to Inactive. Idempotent.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	if c.mode != location.ModeInactive {
		c.mode = location.ModeInactive
		c.log.Info("mode changed", zap.String("user_id", c.userID), zap.Stringer("mode", c.mode))
	}
}

// Close is the disposal path: StopAll plus feed closure. Idempotent.
func (c *Coordinator) Close() {
	c.StopAll()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.tracker.Close()
	c.results.Close()
	c.tracked.Close()
	c.errs.Close()
}

// teardownLocked stops the active mode's workers, bounded by the grace
// period. The publisher is stopped too; mode entry restarts it.
func (c *Coordinator) teardownLocked() {
	if c.watch != nil {
		w := c.watch
		c.watch = nil
		done := make(chan struct{})
		go func() {
			w.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(c.opts.TeardownGrace):
			c.log.Warn("area watch teardown exceeded grace", zap.String("user_id", c.userID))
		}
	}
	c.tracker.Clear()
	c.stopPublisherLocked()
}

func (c *Coordinator) startPublisherLocked() {
	if c.pubCancel != nil {
		return
	}
	pctx, cancel := context.WithCancel(c.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.pub.Run(pctx, c.userID)
	}()
	c.pubCancel = cancel
	c.pubDone = done
	c.log.Info("publisher started", zap.String("user_id", c.userID))
}

func (c *Coordinator) stopPublisherLocked() {
	if c.pubCancel == nil {
		return
	}
	c.pubCancel()
	select {
	case <-c.pubDone:
	case <-time.After(c.opts.TeardownGrace):
		c.log.Warn("publisher teardown exceeded grace", zap.String("user_id", c.userID))
	}
	c.pubCancel = nil
	c.pubDone = nil
	c.log.Info("publisher stopped", zap.String("user_id", c.userID))
}

// consentLoop applies live consent changes: privacy flips start/stop the
// publisher without changing mode, and losing the search gates while in
// area search drops the session back to Inactive. Gate failures are
// surfaced once per edge, not repeatedly.
func (c *Coordinator) consentLoop() {
	lastCanSearch := c.consent.Current().CanSearch()
	for {
		select {
		case <-c.ctx.Done():
			return
		case cs, ok := <-c.consent.Updates():
			if !ok {
				return
			}
			c.applyConsent(cs, &lastCanSearch)
		}
	}
}

func (c *Coordinator) applyConsent(cs location.ConsentState, lastCanSearch *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	active := c.mode != location.ModeInactive

	if active && cs.PrivacyOptedIn && c.pubCancel == nil {
		c.startPublisherLocked()
	}
	if !cs.PrivacyOptedIn && c.pubCancel != nil {
		c.stopPublisherLocked()
		// opt-out also clears the stored position
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.TeardownGrace)
		if err := c.positions.Delete(ctx, c.userID); err != nil {
			c.log.Warn("clear stored position", zap.String("user_id", c.userID), zap.Error(err))
		}
		cancel()
	}

	canSearch := cs.CanSearch()
	if !canSearch && *lastCanSearch && c.mode == location.ModeAreaSearch {
		c.teardownLocked()
		c.mode = location.ModeInactive
		c.log.Info("mode changed", zap.String("user_id", c.userID), zap.Stringer("mode", c.mode))
		if !cs.LocationPermissionGranted {
			c.errs.Publish(location.ErrPermissionDenied)
		} else {
			c.errs.Publish(location.ErrHardwareUnavailable)
		}
	}
	*lastCanSearch = canSearch
}

// bridge copies a mode-scoped subscription into a session-stable feed.
// It exits when the source closes.
func bridge[T any](sub *feed.Subscription[T], dst *feed.Feed[T]) {
	for v := range sub.C() {
		dst.Publish(v)
	}
}
