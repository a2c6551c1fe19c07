package position

import (
	"context"
	"sync"

	"github.com/Vishal01x/reflekt-proximity/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	mu sync.Mutex

	geoAddFn    func(ctx context.Context, key string, lng, lat float64, member string) error
	geoSearchFn func(ctx context.Context, key string, lng, lat, radiusKm float64) ([]db.GeoMember, error)
	geoPosFn    func(ctx context.Context, key, member string) (db.GeoMember, bool, error)
	geoRemoveFn func(ctx context.Context, key, member string) error
	hsetFn      func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn   func(ctx context.Context, key string) (map[string]string, error)
	delFn       func(ctx context.Context, key string) error
	publishFn   func(ctx context.Context, channel, payload string) error
	subscribeFn func(ctx context.Context, channel string, fn func(payload string)) error

	upserts   []string // member per GeoAdd call
	published []string // payload per Publish call
}

func (m *mockStore) GeoAdd(ctx context.Context, key string, lng, lat float64, member string) error {
	m.mu.Lock()
	m.upserts = append(m.upserts, member)
	m.mu.Unlock()
	if m.geoAddFn != nil {
		return m.geoAddFn(ctx, key, lng, lat, member)
	}
	return nil
}

func (m *mockStore) GeoSearch(ctx context.Context, key string, lng, lat, radiusKm float64) ([]db.GeoMember, error) {
	if m.geoSearchFn != nil {
		return m.geoSearchFn(ctx, key, lng, lat, radiusKm)
	}
	return nil, nil
}

func (m *mockStore) GeoPos(ctx context.Context, key, member string) (db.GeoMember, bool, error) {
	if m.geoPosFn != nil {
		return m.geoPosFn(ctx, key, member)
	}
	return db.GeoMember{}, false, nil
}

func (m *mockStore) GeoRemove(ctx context.Context, key, member string) error {
	if m.geoRemoveFn != nil {
		return m.geoRemoveFn(ctx, key, member)
	}
	return nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		m2, err := m.HGetAll(context.Background(), key)
		if err != nil {
			return nil, err
		}
		out[i] = m2
	}
	return out, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Publish(ctx context.Context, channel, payload string) error {
	m.mu.Lock()
	m.published = append(m.published, payload)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, channel, payload)
	}
	return nil
}

func (m *mockStore) Subscribe(ctx context.Context, channel string, fn func(payload string)) error {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, channel, fn)
	}
	<-ctx.Done()
	return nil
}
