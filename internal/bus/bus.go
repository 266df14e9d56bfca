// Package bus is C5: fanout of typed events to subscribers over
// bounded, per-subscriber queues. It generalizes the teacher's
// clientSessions/clientSessionsLock fanout (internal/net/server.go) from
// a map of raw net.Conn writes to a map of in-memory queues that a
// transport goroutine drains independently, so a slow network write
// never blocks a publisher holding the core mutex (spec §5).
package bus

import (
	"context"
	"sync"

	"bourse/internal/common"
)

// Kind identifies the shape of an event's Data payload.
type Kind string

const (
	KindUserInfo        Kind = "user_info"
	KindOrderBook       Kind = "order_book"
	KindOrderBookUpdate Kind = "order_book_update"
	KindFill            Kind = "fill"
	KindBalanceUpdate   Kind = "balance_update"
	KindOrdersUpdate    Kind = "orders_update"
	KindMarketData      Kind = "market_data"
)

// DefaultCapacity is the per-subscriber queue depth used when callers
// don't pick one explicitly.
const DefaultCapacity = 64

// Event is one typed message. Account is empty for broadcast events
// (order_book*, market_data); it is set for the user-scoped kinds.
type Event struct {
	Kind    Kind
	Account common.AccountID
	Data    any
}

// Subscriber is one live listener. An account may have many live
// subscribers (e.g. multiple browser tabs), each with its own queue.
type Subscriber struct {
	id       uint64
	account  common.AccountID
	capacity int

	mu     sync.Mutex
	queue  []Event
	lag    bool
	closed bool
	notify chan struct{}
}

// ID returns the subscriber's bus-assigned identifier.
func (s *Subscriber) ID() uint64 { return s.id }

// Account returns the account this subscriber is scoped to.
func (s *Subscriber) Account() common.AccountID { return s.account }

// Next blocks until an event is available, ctx is cancelled, or the
// subscriber is closed. ok is false only in the latter two cases.
func (s *Subscriber) Next(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			e := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return e, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, false
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}

// Lag reports whether an event was dropped for this subscriber since
// the last call to Lag, and resets the flag. A transport can use this to
// decide whether to re-request a fresh snapshot; the httpapi WebSocket
// handler does not call it.
func (s *Subscriber) Lag() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lag := s.lag
	s.lag = false
	return lag
}

func (s *Subscriber) push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.capacity {
		// Overflow policy (spec §4.5): drop the oldest queued event of
		// the same kind if one exists, else drop the oldest queued
		// event outright.
		dropped := false
		for i, qe := range s.queue {
			if qe.Kind == e.Kind {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			s.queue = s.queue[1:]
		}
		s.lag = true
	}
	s.queue = append(s.queue, e)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Bus fans out events to every current subscriber. All methods are
// safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscriber
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new subscriber scoped to account and returns it.
// Pass an empty account for a subscriber only interested in broadcast
// events (no such caller exists in this spec, but nothing forbids it).
func (b *Bus) Subscribe(account common.AccountID, capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscriber{
		id:       b.nextID,
		account:  account,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber, e.g. after the transport observes a
// send failure or a closed connection (spec §4.5 "dead subscribers ...
// are removed").
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		sub.close()
		delete(b.subs, id)
	}
}

// PublishBroadcast delivers an event to every current subscriber,
// regardless of account.
func (b *Bus) PublishBroadcast(kind Kind, data any) {
	for _, sub := range b.snapshotSubs(nil) {
		sub.push(Event{Kind: kind, Data: data})
	}
}

// PublishTo delivers an event only to subscribers of account.
func (b *Bus) PublishTo(account common.AccountID, kind Kind, data any) {
	for _, sub := range b.snapshotSubs(&account) {
		sub.push(Event{Kind: kind, Account: account, Data: data})
	}
}

func (b *Bus) snapshotSubs(account *common.AccountID) []*Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if account == nil || sub.account == *account {
			out = append(out, sub)
		}
	}
	return out
}

// Count returns the number of currently registered subscribers. Used by
// tests and diagnostics.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
