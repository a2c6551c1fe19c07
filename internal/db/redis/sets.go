package redis

import (
	"context"

	"github.com/Vishal01x/reflekt-proximity/internal/db"
)

// SAdd adds members to a set and returns how many were newly inserted.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	cmd := s.b().Sadd().Key(key).Member(members...).Build()
	added, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSAdd, Err: err}
	}
	return added, nil
}

// SMembers returns all members of a set.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	cmd := s.b().Smembers().Key(key).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return members, nil
}
