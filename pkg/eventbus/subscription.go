package eventbus

import (
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
)

// subscriber pairs one listener instance with the invocation strategy bound
// for a particular HandlerDescriptor.
type subscriber struct {
	instance any
	value    reflect.Value
	invoker  invoker
}

// Subscription is the set of listener instances registered for one
// HandlerDescriptor (one declared handler shape: a listener type, a handler
// method, and its message-type signature). Multiple listener instances of
// one listener type share its Subscription: the manager keeps one
// Subscription per (ListenerType, HandlerID) pair and per-instance fan-out
// happens through the subscriber slice.
//
// Reads (Snapshot, used by every publish) are lock-free: they load an
// *atomic pointer* to an immutable slice. Writes (Add, Remove) build a new
// slice and swap the pointer under the manager's write lock, so safe
// publication never requires readers to take a lock at all.
type Subscription struct {
	// ID is a process-unique identifier assigned at creation, useful for
	// correlating log lines and metrics with a specific (listener type,
	// handler) binding across Subscribe/Unsubscribe churn.
	ID         string
	Descriptor *HandlerDescriptor
	listeners  atomic.Pointer[[]subscriber]
}

// NewSubscription creates an empty Subscription for descriptor.
func NewSubscription(descriptor *HandlerDescriptor) *Subscription {
	s := &Subscription{ID: uuid.NewString(), Descriptor: descriptor}
	empty := make([]subscriber, 0)
	s.listeners.Store(&empty)
	return s
}

// Add appends instance to the subscription's listener set. Must be called
// only while the owning manager holds its write lock.
func (s *Subscription) Add(instance any, inv invoker) {
	cur := *s.listeners.Load()
	next := make([]subscriber, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, subscriber{instance: instance, value: reflect.ValueOf(instance), invoker: inv})
	s.listeners.Store(&next)
}

// Remove drops the first subscriber bound to instance, leaving any further
// duplicate registrations of the same instance untouched (subscribing the
// same instance twice is not deduplicated, so unsubscribing it once must not
// remove both copies). Must be called only while the owning manager holds
// its write lock. Returns true if the subscription is now empty; an empty
// Subscription stays indexed. No effect if instance is not present.
func (s *Subscription) Remove(instance any) (empty bool) {
	cur := *s.listeners.Load()
	next := make([]subscriber, 0, len(cur))
	removed := false
	for _, sub := range cur {
		if !removed && sub.instance == instance {
			removed = true
			continue
		}
		next = append(next, sub)
	}
	s.listeners.Store(&next)
	return len(next) == 0
}

// Snapshot returns the current listener slice. The slice itself is never
// mutated in place after publication, so callers may range over it without
// holding any lock.
func (s *Subscription) Snapshot() []subscriber {
	return *s.listeners.Load()
}

// Len reports the current listener count.
func (s *Subscription) Len() int {
	return len(*s.listeners.Load())
}
