package stream

import (
	"sync"
	"sync/atomic"
)

// Subscription detaches a listener from the signal it was registered on.
type Subscription interface {
	// Unsubscribe stops delivery. It is idempotent, and once it returns the
	// listener is never invoked again by a later Emit.
	Unsubscribe()
}

// Subscriptions groups several subscriptions so they can be released together.
type Subscriptions []Subscription

// Unsubscribe releases every subscription in the group, nil entries included.
func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// SubscriptionFunc adapts a function to Subscription. The function runs at most once.
func SubscriptionFunc(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (f *funcSubscription) Unsubscribe() {
	f.once.Do(f.fn)
}

type listener[T any] struct {
	fn     func(T)
	once   bool
	active atomic.Bool
	owner  *Signal[T]
}

func (l *listener[T]) Unsubscribe() {
	if l.active.CompareAndSwap(true, false) {
		l.owner.remove(l)
	}
}

// Signal is an ordered listener registry. The zero value is ready to use.
//
// Emit snapshots the listeners and invokes them without holding any lock, so a
// listener may subscribe, unsubscribe or emit again from inside its callback.
type Signal[T any] struct {
	mu        sync.Mutex
	listeners []*listener[T]
}

// Subscribe registers fn for every subsequent Emit.
func (s *Signal[T]) Subscribe(fn func(T)) Subscription {
	return s.add(fn, false)
}

// Once registers fn for the next Emit only.
func (s *Signal[T]) Once(fn func(T)) Subscription {
	return s.add(fn, true)
}

func (s *Signal[T]) add(fn func(T), once bool) Subscription {
	l := &listener[T]{fn: fn, once: once, owner: s}
	l.active.Store(true)

	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	return l
}

func (s *Signal[T]) remove(target *listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == target {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers v to the active listeners in subscription order.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]*listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		if l.once {
			if !l.active.CompareAndSwap(true, false) {
				continue
			}
			s.remove(l)
		} else if !l.active.Load() {
			continue
		}
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Clear drops every listener.
func (s *Signal[T]) Clear() {
	s.mu.Lock()
	dropped := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range dropped {
		l.active.Store(false)
	}
}

// Notify is a Signal without payload.
type Notify struct {
	sig Signal[struct{}]
}

// Subscribe registers fn for every subsequent Emit.
func (n *Notify) Subscribe(fn func()) Subscription {
	return n.sig.Subscribe(func(struct{}) { fn() })
}

// Once registers fn for the next Emit only.
func (n *Notify) Once(fn func()) Subscription {
	return n.sig.Once(func(struct{}) { fn() })
}

// Emit invokes the active listeners in subscription order.
func (n *Notify) Emit() {
	n.sig.Emit(struct{}{})
}

// Len returns the number of registered listeners.
func (n *Notify) Len() int {
	return n.sig.Len()
}

// Clear drops every listener.
func (n *Notify) Clear() {
	n.sig.Clear()
}
