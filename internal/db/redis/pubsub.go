package redis

import (
	"context"
	"errors"

	"github.com/redis/rueidis"

	"github.com/Vishal01x/reflekt-proximity/internal/db"
)

// Publish sends a payload to a channel.
func (s *Store) Publish(ctx context.Context, channel, payload string) error {
	cmd := s.b().Publish().Channel(channel).Message(payload).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPublish, Err: err}
	}
	return nil
}

// Subscribe delivers every payload published to the channel to fn, blocking
// until ctx is canceled. Cancellation is the normal exit and returns nil.
func (s *Store) Subscribe(ctx context.Context, channel string, fn func(payload string)) error {
	cmd := s.b().Subscribe().Channel(channel).Build()
	err := s.client.Receive(ctx, cmd, func(msg rueidis.PubSubMessage) {
		fn(msg.Message)
	})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return &db.Error{Op: db.OpSubscribe, Err: err}
}
