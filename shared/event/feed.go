// Package event implements a minimal multi-producer, multi-consumer fan-out
// feed, the same Subscribe/Send/Unsubscribe shape every Prysm-era service
// uses to publish state-initialized, head, and reorg notifications without
// the publisher blocking on a slow subscriber's channel.
package event

import "sync"

// Feed broadcasts values of type T to any number of subscribed channels.
// The zero value is ready to use.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]struct{}
}

// Subscription represents one subscriber's registration on a Feed.
type Subscription[T any] struct {
	feed    *Feed[T]
	channel chan<- T
	err     chan error
	once    sync.Once
}

// Subscribe registers channel to receive every value sent to the feed
// after this call returns.
func (f *Feed[T]) Subscribe(channel chan<- T) *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[*Subscription[T]]struct{})
	}
	sub := &Subscription[T]{feed: f, channel: channel, err: make(chan error, 1)}
	f.subs[sub] = struct{}{}
	return sub
}

// Send delivers v to every current subscriber, non-blocking: a subscriber
// whose channel is full simply misses this value rather than stalling the
// publisher. Returns the number of subscribers the value was handed to.
func (f *Feed[T]) Send(v T) int {
	f.mu.Lock()
	subs := make([]*Subscription[T], 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		select {
		case s.channel <- v:
			delivered++
		default:
		}
	}
	return delivered
}

// Unsubscribe removes the subscription from its feed. Safe to call more
// than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.err)
	})
}

// Err returns a channel closed when the subscription ends, matching the
// go-ethereum event.Subscription contract callers select on alongside
// their data channel.
func (s *Subscription[T]) Err() <-chan error {
	return s.err
}
