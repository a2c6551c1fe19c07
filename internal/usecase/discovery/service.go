package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/feed"
	"github.com/Vishal01x/reflekt-proximity/internal/metrics"
)

// Options tunes watch behavior.
type Options struct {
	// CoalesceWindow debounces filter-update bursts; latest wins.
	CoalesceWindow time.Duration
	// RequeryInterval refreshes results periodically even without
	// filter changes. Zero disables periodic refresh.
	RequeryInterval time.Duration
}

// Engine runs live proximity queries. Each Watch owns a worker goroutine
// that re-queries on filter changes and on the periodic refresh tick.
type Engine struct {
	positions PositionQuerier
	profiles  ProfileResolver
	opts      Options
	log       *zap.Logger
}

// NewEngine creates a proximity query engine.
func NewEngine(positions PositionQuerier, profiles ProfileResolver, opts Options, log *zap.Logger) *Engine {
	if opts.CoalesceWindow <= 0 {
		opts.CoalesceWindow = 150 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{positions: positions, profiles: profiles, opts: opts, log: log}
}

// Watch validates the filter synchronously and starts a live query worker.
// The owner's own ID is always excluded from results.
func (e *Engine) Watch(ctx context.Context, ownerID string, f location.DiscoveryFilter) (*Watch, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		engine:  e,
		ownerID: ownerID,
		updates: make(chan location.DiscoveryFilter, 1),
		results: feed.New[[]location.DiscoveryResult](),
		errs:    feed.New[error](),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.run(wctx, f.Normalize())
	return w, nil
}

// Watch is one live proximity query. Results and Errors are
// latest-value-wins feeds; Update never blocks on store I/O.
type Watch struct {
	engine  *Engine
	ownerID string
	updates chan location.DiscoveryFilter
	results *feed.Feed[[]location.DiscoveryResult]
	errs    *feed.Feed[error]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Update replaces the filter. Invalid filters are rejected without
// touching the running query. Bursts coalesce; the latest value wins.
func (w *Watch) Update(f location.DiscoveryFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f = f.Normalize()
	for {
		select {
		case <-w.done:
			return location.ErrInvalidState
		case w.updates <- f:
			return nil
		default:
		}
		// slot full: drop the older pending filter
		select {
		case <-w.updates:
		default:
		}
	}
}

// Results subscribes to the latest result set.
func (w *Watch) Results() *feed.Subscription[[]location.DiscoveryResult] {
	return w.results.Subscribe()
}

// Errors subscribes to the latest query error. Results keep the
// last-known-good set while errors stream here.
func (w *Watch) Errors() *feed.Subscription[error] {
	return w.errs.Subscribe()
}

// Done is closed when the worker has fully stopped.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Close cancels the watch and waits for the worker to stop.
func (w *Watch) Close() {
	w.cancel()
	<-w.done
}

type queryOutcome struct {
	gen     uint64
	results []location.DiscoveryResult
	err     error
}

func (w *Watch) run(ctx context.Context, current location.DiscoveryFilter) {
	defer close(w.done)
	defer w.results.Close()
	defer w.errs.Close()

	metrics.ActiveWatches.WithLabelValues("area").Inc()
	defer metrics.ActiveWatches.WithLabelValues("area").Dec()

	var (
		gen         uint64
		pending     location.DiscoveryFilter
		coalescing  bool
		retrying    bool
		qcancel     context.CancelFunc = func() {}
		completions                    = make(chan queryOutcome, 1)
	)

	coalesce := time.NewTimer(time.Hour)
	stopTimer(coalesce)
	defer coalesce.Stop()

	retry := time.NewTimer(time.Hour)
	stopTimer(retry)
	defer retry.Stop()

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = 250 * time.Millisecond
	retryBackoff.MaxElapsedTime = 0

	var requeryC <-chan time.Time
	if w.engine.opts.RequeryInterval > 0 {
		requery := time.NewTicker(w.engine.opts.RequeryInterval)
		defer requery.Stop()
		requeryC = requery.C
	}

	issue := func() {
		qcancel()
		var qctx context.Context
		qctx, qcancel = context.WithCancel(ctx)
		go w.query(qctx, current, gen, completions)
	}

	issue()

	for {
		select {
		case <-ctx.Done():
			qcancel()
			return

		case nf := <-w.updates:
			if nf.Equal(current) && !coalescing {
				continue
			}
			pending = nf
			if coalescing {
				stopTimer(coalesce)
			}
			coalesce.Reset(w.engine.opts.CoalesceWindow)
			coalescing = true

		case <-coalesce.C:
			coalescing = false
			if pending.Equal(current) {
				continue
			}
			current = pending
			gen++
			retrying = false
			stopTimer(retry)
			retryBackoff.Reset()
			issue()

		case <-requeryC:
			if retrying {
				continue
			}
			gen++
			issue()

		case <-retry.C:
			retrying = false
			issue()

		case out := <-completions:
			if out.gen != gen {
				metrics.StaleResultsDroppedTotal.Inc()
				continue
			}
			if out.err != nil {
				metrics.ProximityQueriesTotal.WithLabelValues("error").Inc()
				w.errs.Publish(out.err)
				w.engine.log.Warn("proximity query failed",
					zap.String("owner_id", w.ownerID), zap.Error(out.err))
				if !retrying {
					retrying = true
					retry.Reset(retryBackoff.NextBackOff())
				}
				continue
			}
			retryBackoff.Reset()
			metrics.ProximityQueriesTotal.WithLabelValues("ok").Inc()
			w.results.Publish(out.results)
		}
	}
}

// query runs one radius query and profile join, tagged with its generation.
func (w *Watch) query(ctx context.Context, f location.DiscoveryFilter, gen uint64, out chan<- queryOutcome) {
	records, err := w.engine.positions.QueryRadius(ctx, f.Center, f.RadiusKm)
	if err != nil {
		send(ctx, out, queryOutcome{gen: gen, err: err})
		return
	}

	results := make([]location.DiscoveryResult, 0, len(records))
	for _, rec := range records {
		if rec.UserID == w.ownerID {
			continue
		}
		prof, err := w.engine.profiles.Resolve(ctx, rec.UserID)
		if err != nil {
			continue
		}
		if prof.Blocked {
			continue
		}
		if !f.MatchesRole(prof.Role) {
			continue
		}
		if prof.Rating < f.MinRating {
			continue
		}
		results = append(results, location.DiscoveryResult{
			UserID:    rec.UserID,
			Position:  rec.Position,
			UpdatedAt: rec.UpdatedAt,
			Profile:   prof,
		})
	}

	// stable identity regardless of store ordering
	sort.Slice(results, func(i, j int) bool { return results[i].UserID < results[j].UserID })

	send(ctx, out, queryOutcome{gen: gen, results: results})
}

func send(ctx context.Context, out chan<- queryOutcome, o queryOutcome) {
	select {
	case out <- o:
	case <-ctx.Done():
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
