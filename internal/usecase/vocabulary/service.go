package vocabulary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Vishal01x/reflekt-proximity/internal/domain/location"
	"github.com/Vishal01x/reflekt-proximity/internal/metrics"
)

// Known vocabulary categories.
const (
	CategoryRole = "role"
	CategoryTag  = "tag"
)

// Cache is the process-wide filter vocabulary: per-category string sets,
// lazily loaded, append-only except for union-merge refreshes. It lives
// for the process lifetime and is never torn down.
type Cache struct {
	repo Repository
	log  *zap.Logger

	mu     sync.Mutex
	sets   map[string]map[string]struct{}
	loaded map[string]bool
}

// New creates an empty vocabulary cache.
func New(repo Repository, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		repo:   repo,
		log:    log,
		sets:   map[string]map[string]struct{}{CategoryRole: {}, CategoryTag: {}},
		loaded: make(map[string]bool),
	}
}

// Get returns the current known set, sorted. The first call per category
// triggers the initial load; a failed initial load is returned as an error.
func (c *Cache) Get(ctx context.Context, category string) ([]string, error) {
	if err := validateCategory(category); err != nil {
		return nil, err
	}

	c.mu.Lock()
	loaded := c.loaded[category]
	c.mu.Unlock()

	if !loaded {
		if err := c.Refresh(ctx, category); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sets[category]))
	for v := range c.sets[category] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// AddIfAbsent persists and inserts a new value. Returns false when the
// value is already known locally; a failed persist leaves the cache
// untouched.
func (c *Cache) AddIfAbsent(ctx context.Context, category, value string) (bool, error) {
	if err := validateCategory(category); err != nil {
		return false, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return false, fmt.Errorf("%w: empty vocabulary value", location.ErrInvalidFilter)
	}

	c.mu.Lock()
	_, known := c.sets[category][value]
	c.mu.Unlock()
	if known {
		return false, nil
	}

	if err := c.repo.Add(ctx, category, value); err != nil {
		return false, fmt.Errorf("persist vocabulary value: %w", err)
	}

	c.mu.Lock()
	c.sets[category][value] = struct{}{}
	c.mu.Unlock()
	return true, nil
}

// Refresh re-fetches a category and union-merges the result: values added
// locally while the fetch was in flight are kept. A failed fetch leaves
// the cache untouched and returns the error.
func (c *Cache) Refresh(ctx context.Context, category string) error {
	if err := validateCategory(category); err != nil {
		return err
	}

	values, err := c.repo.Fetch(ctx, category)
	if err != nil {
		metrics.VocabularyRefreshTotal.WithLabelValues(category, "error").Inc()
		return fmt.Errorf("fetch vocabulary %q: %w", category, err)
	}

	c.mu.Lock()
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			c.sets[category][v] = struct{}{}
		}
	}
	c.loaded[category] = true
	c.mu.Unlock()

	metrics.VocabularyRefreshTotal.WithLabelValues(category, "ok").Inc()
	c.log.Debug("vocabulary refreshed",
		zap.String("category", category), zap.Int("fetched", len(values)))
	return nil
}

func validateCategory(category string) error {
	switch category {
	case CategoryRole, CategoryTag:
		return nil
	default:
		return fmt.Errorf("%w: %q", location.ErrUnknownCategory, category)
	}
}
