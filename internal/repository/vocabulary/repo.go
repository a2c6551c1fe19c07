// Package vocabulary persists the selectable role/tag string sets.
package vocabulary

import (
	"context"
	"fmt"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
)

const defaultKeyPrefix = "proximity:"

// store is the consumer interface for vocabulary sets (ISP).
type store interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo reads and extends vocabulary sets.
type Repo struct {
	store  store
	prefix string
}

// New creates a vocabulary repository.
func New(s store) *Repo {
	return &Repo{store: s, prefix: defaultKeyPrefix}
}

// WithKeyPrefix overrides the key prefix.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	r.prefix = prefix
	return r
}

func (r *Repo) key(category string) string { return r.prefix + "vocab:" + category }

// Fetch returns all known values of a category.
func (r *Repo) Fetch(ctx context.Context, category string) ([]string, error) {
	values, err := r.store.SMembers(ctx, r.key(category))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	return values, nil
}

// Add persists a new value; adding an existing value is a no-op.
func (r *Repo) Add(ctx context.Context, category, value string) error {
	if _, err := r.store.SAdd(ctx, r.key(category), value); err != nil {
		return fmt.Errorf("%w: %w", location.ErrStoreUnavailable, err)
	}
	return nil
}
