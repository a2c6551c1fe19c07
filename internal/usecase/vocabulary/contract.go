package vocabulary

import "context"

// Repository persists vocabulary sets per category.
type Repository interface {
	Fetch(ctx context.Context, category string) ([]string, error)
	Add(ctx context.Context, category, value string) error
}
