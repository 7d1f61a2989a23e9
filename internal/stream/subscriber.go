package stream

import (
	"context"

	"github.com/rs/zerolog/log"

	"conversation-service/internal/observability"
)

// Emission is one live-query result: a complete, ordered set of matching
// documents, never a delta. Generation increases by one per emission and is
// used downstream to discard stale in-flight resolutions.
type Emission[T any] struct {
	Generation uint64
	Docs       []T
}

// FetchFunc runs the underlying query and returns the full matching set.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Subscriber turns a query plus a change topic into a live sequence of full
// snapshots.
type Subscriber[T any] struct {
	notifier Notifier
	topic    string
	fetch    FetchFunc[T]
}

// NewSubscriber builds a Subscriber over the given topic and query.
func NewSubscriber[T any](notifier Notifier, topic string, fetch FetchFunc[T]) *Subscriber[T] {
	return &Subscriber[T]{notifier: notifier, topic: topic, fetch: fetch}
}

// Subscribe emits an initial snapshot, then one snapshot per invalidation,
// until the returned cancel func is called or ctx ends. A failed query emits
// nothing for that signal: the consumer keeps its last state and the stream
// appears stalled, which is the documented failure mode.
func (s *Subscriber[T]) Subscribe(ctx context.Context) (<-chan Emission[T], context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	signals, release := s.notifier.Subscribe(s.topic)
	out := make(chan Emission[T])

	go func() {
		defer close(out)
		defer release()

		var generation uint64
		emit := func() {
			docs, err := s.fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("topic", s.topic).Msg("snapshot query failed")
				}
				return
			}
			generation++
			observability.IncStreamEmission(s.topic)
			select {
			case out <- Emission[T]{Generation: generation, Docs: docs}:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				emit()
			}
		}
	}()

	return out, cancel
}
