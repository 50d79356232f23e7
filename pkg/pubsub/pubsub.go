// Package pubsub provides a basic Publish/Subscribe implementation.
//
// Subscribers only ever see the latest published value: a subscriber that hasn't consumed the previous value by
// the time a new one is published, receives the new value instead. Publish never blocks on a slow subscriber.
package pubsub

import (
	"log/slog"
	"sync"
)

// Publisher allows clients to subscribe and sends them the information provided by Publish.
type Publisher[T any] struct {
	clients map[chan T]struct{}
	logger  *slog.Logger
	lock    sync.Mutex
	closed  bool
}

// New returns a new Publisher
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		clients: make(map[chan T]struct{}),
		logger:  logger,
	}
}

// Subscribe registers the caller and returns a new channel on which it will publish updates.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T, 1)
	if p.closed {
		close(ch)
		return ch
	}
	p.clients[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.clients)))
	return ch
}

// Unsubscribe removes the registered client/channel.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.clients, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.clients)))
}

// Publish sends info to all registered clients, replacing any value a client hasn't received yet.
func (p *Publisher[T]) Publish(info T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	for ch := range p.clients {
		select {
		case ch <- info:
		default:
			select {
			case <-ch:
				p.logger.Debug("subscriber lagging. dropping previous update")
			default:
			}
			ch <- info
		}
	}
}

// Close closes the channels of all subscribers. Values published after Close are dropped.
func (p *Publisher[T]) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for ch := range p.clients {
		close(ch)
	}
	clear(p.clients)
	p.logger.Debug("publisher closed")
}

// Subscribers returns the current number of subscribers
func (p *Publisher[T]) Subscribers() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.clients)
}
