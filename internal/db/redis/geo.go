package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/Vishal01x/reflekt-proximity/internal/db"
)

// GeoAdd upserts a member's coordinates in a geo set.
func (s *Store) GeoAdd(ctx context.Context, key string, lng, lat float64, member string) error {
	cmd := s.b().Geoadd().Key(key).
		LongitudeLatitudeMember().
		LongitudeLatitudeMember(lng, lat, member).
		Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpGeoAdd, Err: err}
	}
	return nil
}

// GeoSearch returns all members within radiusKm of the given center.
func (s *Store) GeoSearch(ctx context.Context, key string, lng, lat, radiusKm float64) ([]db.GeoMember, error) {
	cmd := s.b().Geosearch().Key(key).
		Fromlonlat(lng, lat).
		Byradius(radiusKm).Km().
		Asc().
		Withcoord().
		Build()
	locs, err := s.do(ctx, cmd).AsGeosearch()
	if err != nil {
		return nil, &db.Error{Op: db.OpGeoSearch, Err: err}
	}

	members := make([]db.GeoMember, len(locs))
	for i, loc := range locs {
		members[i] = db.GeoMember{
			Member:    loc.Name,
			Longitude: loc.Longitude,
			Latitude:  loc.Latitude,
		}
	}
	return members, nil
}

// GeoPos returns a single member's coordinates. The bool result is false when
// the member is not in the geo set.
func (s *Store) GeoPos(ctx context.Context, key, member string) (db.GeoMember, bool, error) {
	cmd := s.b().Geopos().Key(key).Member(member).Build()
	entries, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return db.GeoMember{}, false, &db.Error{Op: db.OpGeoPos, Err: err}
	}
	if len(entries) == 0 {
		return db.GeoMember{}, false, nil
	}

	pair, err := entries[0].ToArray()
	if err != nil {
		// Nil entry: member not present.
		if rueidis.IsRedisNil(err) {
			return db.GeoMember{}, false, nil
		}
		return db.GeoMember{}, false, &db.Error{Op: db.OpGeoPos, Err: err}
	}
	if len(pair) < 2 {
		return db.GeoMember{}, false, nil
	}

	lng, err := pair[0].AsFloat64()
	if err != nil {
		return db.GeoMember{}, false, &db.Error{Op: db.OpGeoPos, Err: err}
	}
	lat, err := pair[1].AsFloat64()
	if err != nil {
		return db.GeoMember{}, false, &db.Error{Op: db.OpGeoPos, Err: err}
	}

	return db.GeoMember{Member: member, Longitude: lng, Latitude: lat}, true, nil
}

// GeoRemove deletes a member from a geo set. Removing an absent member is a
// no-op.
func (s *Store) GeoRemove(ctx context.Context, key, member string) error {
	cmd := s.b().Zrem().Key(key).Member(member).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}
