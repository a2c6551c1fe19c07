package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces. The
// underlying connection is shared across components and supports concurrent
// outstanding commands.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	GeoStore
	HashStore
	SetStore
	PubSub
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GeoMember is a single geo-set entry with its coordinates.
type GeoMember struct {
	Member    string
	Longitude float64
	Latitude  float64
}

// GeoStore provides geo-set operations: point upserts and radius queries.
type GeoStore interface {
	GeoAdd(ctx context.Context, key string, lng, lat float64, member string) error
	GeoSearch(ctx context.Context, key string, lng, lat, radiusKm float64) ([]GeoMember, error)
	GeoPos(ctx context.Context, key, member string) (GeoMember, bool, error)
	GeoRemove(ctx context.Context, key, member string) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SetStore provides string-set operations.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
}

// PubSub provides channel publish/subscribe for live update fan-out.
type PubSub interface {
	Publish(ctx context.Context, channel, payload string) error
	// Subscribe blocks delivering payloads to fn until ctx is canceled.
	Subscribe(ctx context.Context, channel string, fn func(payload string)) error
}
