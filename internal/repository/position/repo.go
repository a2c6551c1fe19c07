// Package position persists PositionRecords: a single geo set for radius
// queries, a meta hash per user for timestamps, and a pub/sub channel per
// user for live watch fan-out.
package position

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/db"
	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

const defaultKeyPrefix = "proximity:"

// store is the consumer interface for positions (ISP).
type store interface {
	GeoAdd(ctx context.Context, key string, lng, lat float64, member string) error
	GeoSearch(ctx context.Context, key string, lng, lat, radiusKm float64) ([]db.GeoMember, error)
	GeoPos(ctx context.Context, key, member string) (db.GeoMember, bool, error)
	GeoRemove(ctx context.Context, key, member string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string, fn func(payload string)) error
}

// Repo stores and watches user positions.
type Repo struct {
	store  store
	prefix string
	logger *zap.Logger
}

// New creates a position repository.
func New(s store) *Repo {
	return &Repo{store: s, prefix: defaultKeyPrefix, logger: zap.NewNop()}
}

// WithKeyPrefix overrides the key prefix.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	r.prefix = prefix
	return r
}

// WithLogger attaches a logger for background watch retries.
func (r *Repo) WithLogger(logger *zap.Logger) *Repo {
	r.logger = logger
	return r
}

func (r *Repo) geoKey() string               { return r.prefix + "geo" }
func (r *Repo) metaKey(userID string) string { return r.prefix + "pos:" + userID }
func (r *Repo) channel(userID string) string { return r.prefix + "loc:" + userID }

// Upsert writes/overwrites the user's current position and fans it out to
// watchers. One record per user; no history retained.
func (r *Repo) Upsert(ctx context.Context, userID string, p location.LatLng) error {
	now := time.Now().UTC()

	if err := r.store.GeoAdd(ctx, r.geoKey(), p.Lng, p.Lat, userID); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}

	meta := map[string]string{
		"lat":        strconv.FormatFloat(p.Lat, 'f', -1, 64),
		"lng":        strconv.FormatFloat(p.Lng, 'f', -1, 64),
		"updated_at": strconv.FormatInt(now.UnixMilli(), 10),
	}
	if err := r.store.HSet(ctx, r.metaKey(userID), meta); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}

	rec := location.PositionRecord{UserID: userID, Position: p, UpdatedAt: now}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	if err := r.store.Publish(ctx, r.channel(userID), string(payload)); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the user's current position. The bool result is false when no
// record exists yet.
func (r *Repo) Get(ctx context.Context, userID string) (location.PositionRecord, bool, error) {
	m, found, err := r.store.GeoPos(ctx, r.geoKey(), userID)
	if err != nil {
		return location.PositionRecord{}, false, fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	if !found {
		return location.PositionRecord{}, false, nil
	}

	rec := location.PositionRecord{
		UserID:   userID,
		Position: location.LatLng{Lat: m.Latitude, Lng: m.Longitude},
	}

	meta, err := r.store.HGetAll(ctx, r.metaKey(userID))
	if err == nil {
		rec.UpdatedAt = parseUpdatedAt(meta)
	}
	return rec, true, nil
}

// Delete removes the user's position record entirely.
func (r *Repo) Delete(ctx context.Context, userID string) error {
	if err := r.store.GeoRemove(ctx, r.geoKey(), userID); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	if err := r.store.Del(ctx, r.metaKey(userID)); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	return nil
}

// QueryRadius returns every known position within radiusKm of center.
func (r *Repo) QueryRadius(ctx context.Context, center location.LatLng, radiusKm float64) ([]location.PositionRecord, error) {
	members, err := r.store.GeoSearch(ctx, r.geoKey(), center.Lng, center.Lat, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.metaKey(m.Member)
	}
	metas, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}

	records := make([]location.PositionRecord, len(members))
	for i, m := range members {
		records[i] = location.PositionRecord{
			UserID:    m.Member,
			Position:  location.LatLng{Lat: m.Latitude, Lng: m.Longitude},
			UpdatedAt: parseUpdatedAt(metas[i]),
		}
	}
	return records, nil
}

// Watch delivers the user's live position until the returned stop function is
// called or ctx ends. Users with no record yet are silently absent until their
// first publish. The channel carries at most one pending record (latest wins)
// and closes on teardown.
func (r *Repo) Watch(ctx context.Context, userID string) (<-chan location.PositionRecord, func()) {
	wctx, cancel := context.WithCancel(ctx)
	out := make(chan location.PositionRecord, 1)

	go func() {
		defer close(out)

		// Snapshot first so watchers of already-known users get a value
		// before the first live update.
		if rec, found, err := r.Get(wctx, userID); err == nil && found {
			sendLatest(out, rec)
		}

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0 // retry until canceled
		for {
			err := r.store.Subscribe(wctx, r.channel(userID), func(payload string) {
				var rec location.PositionRecord
				if err := json.Unmarshal([]byte(payload), &rec); err != nil {
					r.logger.Warn("bad position payload",
						zap.String("user_id", userID), zap.Error(err))
					return
				}
				sendLatest(out, rec)
			})
			if wctx.Err() != nil {
				return
			}
			if err != nil {
				r.logger.Warn("position watch interrupted, retrying",
					zap.String("user_id", userID), zap.Error(err))
			}
			select {
			case <-wctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
		}
	}()

	return out, cancel
}

// sendLatest replaces any unread record so the consumer only ever sees the
// newest position.
func sendLatest(ch chan location.PositionRecord, rec location.PositionRecord) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- rec:
	default:
	}
}

func parseUpdatedAt(meta map[string]string) time.Time {
	raw, ok := meta["updated_at"]
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
