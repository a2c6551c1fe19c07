// Package profile resolves user profile summaries for discovery enrichment.
package profile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

const defaultKeyPrefix = "proximity:"

// store is the consumer interface for profiles (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo reads and writes profile summaries.
type Repo struct {
	store  store
	prefix string
}

// New creates a profile repository.
func New(s store) *Repo {
	return &Repo{store: s, prefix: defaultKeyPrefix}
}

// WithKeyPrefix overrides the key prefix.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	r.prefix = prefix
	return r
}

func (r *Repo) key(userID string) string { return r.prefix + "profile:" + userID }

// Resolve returns the profile summary for a user. Missing profiles yield
// location.ErrProfileNotFound.
func (r *Repo) Resolve(ctx context.Context, userID string) (location.ProfileSummary, error) {
	fields, err := r.store.HGetAll(ctx, r.key(userID))
	if err != nil {
		return location.ProfileSummary{}, fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return location.ProfileSummary{}, fmt.Errorf("%w: %s", location.ErrProfileNotFound, userID)
	}

	rating, _ := strconv.ParseFloat(fields["rating"], 64)
	return location.ProfileSummary{
		UserID:  userID,
		Name:    fields["name"],
		Role:    fields["role"],
		Rating:  rating,
		Blocked: fields["blocked"] == "1",
	}, nil
}

// Save writes a profile summary.
func (r *Repo) Save(ctx context.Context, p location.ProfileSummary) error {
	blocked := "0"
	if p.Blocked {
		blocked = "1"
	}
	fields := map[string]string{
		"name":    p.Name,
		"role":    p.Role,
		"rating":  strconv.FormatFloat(p.Rating, 'f', -1, 64),
		"blocked": blocked,
	}
	if err := r.store.HSet(ctx, r.key(p.UserID), fields); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes a profile.
func (r *Repo) Delete(ctx context.Context, userID string) error {
	if err := r.store.Del(ctx, r.key(userID)); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	return nil
}
