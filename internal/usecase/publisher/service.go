package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/geo"
	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/metrics"
)

// Options tunes the publishing cadence and movement gate.
type Options struct {
	// Interval is the sampling cadence.
	Interval time.Duration
	// MinMoveMeters suppresses republishing when the device has not
	// moved at least this far since the last successful publish.
	MinMoveMeters float64
	// StaleRepublish forces a publish after this long even without
	// movement, so the stored UpdatedAt stays fresh.
	StaleRepublish time.Duration
}

// Service publishes the user's own position on a fixed cadence.
// One Service instance serves one user; Run owns the loop.
type Service struct {
	writer  PositionWriter
	source  LocationSource
	consent ConsentProvider
	opts    Options
	log     *zap.Logger

	last        location.LatLng
	havePrev    bool
	lastPublish time.Time
}

// New creates a position publisher.
func New(writer PositionWriter, source LocationSource, consent ConsentProvider, opts Options, log *zap.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{writer: writer, source: source, consent: consent, opts: opts, log: log}
}

// Run samples and publishes until ctx is canceled. It returns ctx.Err()
// on cancellation; store failures are retried and never end the loop.
func (s *Service) Run(ctx context.Context, userID string) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.tick(ctx, userID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx, userID)
		}
	}
}

// tick runs one sample-gate-publish cycle, bounded by one cadence interval.
func (s *Service) tick(ctx context.Context, userID string) {
	tctx, cancel := context.WithTimeout(ctx, s.opts.Interval)
	defer cancel()

	pos, err := s.source.Sample(tctx)
	if err != nil {
		if errors.Is(err, location.ErrNoFix) {
			s.log.Debug("no fix yet", zap.String("user_id", userID))
			return
		}
		metrics.PositionPublishesTotal.WithLabelValues("error").Inc()
		s.log.Warn("sample position", zap.String("user_id", userID), zap.Error(err))
		return
	}

	if !s.shouldPublish(pos) {
		metrics.PositionPublishesTotal.WithLabelValues("skipped").Inc()
		return
	}

	// Consent is checked after sampling, immediately before the write,
	// and again before every retry attempt: a revocation observed
	// mid-cycle must stop the upsert.
	if !s.consent.Current().CanPublish() {
		metrics.PositionPublishesTotal.WithLabelValues("denied").Inc()
		return
	}

	if err := s.publish(tctx, userID, pos); err != nil {
		metrics.PositionPublishesTotal.WithLabelValues("error").Inc()
		s.log.Warn("publish position", zap.String("user_id", userID), zap.Error(err))
		return
	}

	s.last = pos
	s.havePrev = true
	s.lastPublish = time.Now()
	metrics.PositionPublishesTotal.WithLabelValues("ok").Inc()
	s.log.Debug("position published",
		zap.String("user_id", userID),
		zap.Float64("lat", pos.Lat),
		zap.Float64("lng", pos.Lng),
	)
}

// shouldPublish applies the movement threshold and stale-refresh gate.
func (s *Service) shouldPublish(pos location.LatLng) bool {
	if !s.havePrev {
		return true
	}
	if geo.Moved(s.last.Lat, s.last.Lng, pos.Lat, pos.Lng, s.opts.MinMoveMeters) {
		return true
	}
	return s.opts.StaleRepublish > 0 && time.Since(s.lastPublish) >= s.opts.StaleRepublish
}

// publish upserts with exponential backoff, bounded by the tick context.
func (s *Service) publish(ctx context.Context, userID string, pos location.LatLng) error {
	op := func() error {
		if !s.consent.Current().CanPublish() {
			return backoff.Permanent(location.ErrPermissionDenied)
		}
		return s.writer.Upsert(ctx, userID, pos)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}
