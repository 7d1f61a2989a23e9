// Package stream provides live-query plumbing: write paths publish
// invalidations on a topic, subscribers re-run their query and emit a full
// snapshot per invalidation.
package stream

import (
	"context"
	"sync"
)

// Topics, one per backend collection that conversation lists observe.
const (
	TopicChats  = "chats"
	TopicGroups = "groups"
)

// Notifier signals that documents under a topic have changed. Signals carry
// no payload; subscribers always re-read the authoritative state.
type Notifier interface {
	Notify(ctx context.Context, topic string)
	Subscribe(topic string) (<-chan struct{}, func())
}

// LocalNotifier is an in-process Notifier. Signals to a slow subscriber
// coalesce instead of blocking the writer.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan struct{}
	next int
}

// NewLocalNotifier creates an empty LocalNotifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[int]chan struct{})}
}

// Notify signals every subscriber of the topic.
func (n *LocalNotifier) Notify(_ context.Context, topic string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers for a topic. The returned cancel func releases the
// registration; the channel is not closed so late reads simply block.
func (n *LocalNotifier) Subscribe(topic string) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[topic]; !ok {
		n.subs[topic] = make(map[int]chan struct{})
	}
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[topic][id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if subs, ok := n.subs[topic]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(n.subs, topic)
			}
		}
	}
	return ch, cancel
}
