package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEmission(t *testing.T, ch <-chan Emission[int]) Emission[int] {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		return Emission[int]{}
	}
}

func TestSubscriberEmitsInitialSnapshot(t *testing.T) {
	notifier := NewLocalNotifier()
	sub := NewSubscriber(notifier, TopicChats, func(ctx context.Context) ([]int, error) {
		return []int{1, 2, 3}, nil
	})

	out, cancel := sub.Subscribe(context.Background())
	defer cancel()

	e := recvEmission(t, out)
	assert.Equal(t, uint64(1), e.Generation)
	assert.Equal(t, []int{1, 2, 3}, e.Docs)
}

func TestSubscriberReemitsOnNotify(t *testing.T) {
	notifier := NewLocalNotifier()
	var calls atomic.Int64
	sub := NewSubscriber(notifier, TopicChats, func(ctx context.Context) ([]int, error) {
		return []int{int(calls.Add(1))}, nil
	})

	out, cancel := sub.Subscribe(context.Background())
	defer cancel()

	first := recvEmission(t, out)
	assert.Equal(t, []int{1}, first.Docs)

	notifier.Notify(context.Background(), TopicChats)
	second := recvEmission(t, out)
	assert.Equal(t, uint64(2), second.Generation, "generation grows per emission")
	assert.Equal(t, []int{2}, second.Docs)
}

func TestSubscriberIgnoresOtherTopics(t *testing.T) {
	notifier := NewLocalNotifier()
	sub := NewSubscriber(notifier, TopicChats, func(ctx context.Context) ([]int, error) {
		return nil, nil
	})

	out, cancel := sub.Subscribe(context.Background())
	defer cancel()
	recvEmission(t, out)

	notifier.Notify(context.Background(), TopicGroups)
	select {
	case e := <-out:
		t.Fatalf("unexpected emission %v for unrelated topic", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriberSkipsFailedQueries(t *testing.T) {
	notifier := NewLocalNotifier()
	var calls atomic.Int64
	sub := NewSubscriber(notifier, TopicChats, func(ctx context.Context) ([]int, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("query failed")
		}
		return []int{int(calls.Load())}, nil
	})

	out, cancel := sub.Subscribe(context.Background())
	defer cancel()

	first := recvEmission(t, out)
	assert.Equal(t, uint64(1), first.Generation)

	// Second fetch fails: nothing emitted, the stream stalls on last state.
	notifier.Notify(context.Background(), TopicChats)
	time.Sleep(50 * time.Millisecond)

	notifier.Notify(context.Background(), TopicChats)
	next := recvEmission(t, out)
	assert.Equal(t, uint64(2), next.Generation, "failed fetch must not consume a generation")
	assert.Equal(t, []int{3}, next.Docs)
}

func TestSubscriberCancelClosesStream(t *testing.T) {
	notifier := NewLocalNotifier()
	sub := NewSubscriber(notifier, TopicChats, func(ctx context.Context) ([]int, error) {
		return nil, nil
	})

	out, cancel := sub.Subscribe(context.Background())
	recvEmission(t, out)
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok, "channel should close after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestLocalNotifierCoalescesSignals(t *testing.T) {
	notifier := NewLocalNotifier()
	ch, release := notifier.Subscribe(TopicChats)
	defer release()

	for i := 0; i < 10; i++ {
		notifier.Notify(context.Background(), TopicChats)
	}

	<-ch
	select {
	case <-ch:
		t.Fatal("burst of notifies should coalesce into one pending signal")
	default:
	}
}
