package health

import "context"

// DBPinger checks position store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// VocabularyChecker checks that the filter vocabulary is reachable.
type VocabularyChecker interface {
	Get(ctx context.Context, category string) ([]string, error)
}
