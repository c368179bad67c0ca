package eventbus

import "reflect"

// subscriptionKey identifies one Subscription uniquely by the handler it was
// built for.
type subscriptionKey struct {
	listenerType reflect.Type
	handlerID    string
}

// SubscriberIndex is the set of maps a SubscriptionManager consults to
// resolve a publish. It holds no lock of its own: every mutation happens
// while the owning manager holds its exclusive write lock, and every lookup
// happens while it holds (at least) its shared read lock. The Subscription
// values the maps point to are independently safe for lock-free reads via
// their own atomic listener snapshot.
type SubscriberIndex struct {
	// byKey lets Unsubscribe find every Subscription a listener type
	// contributed to without re-running describe().
	byKey map[subscriptionKey]*Subscription

	// perListenerType lists every subscriptionKey a given concrete listener
	// type has registered, so Unsubscribe(instance) can walk just its own
	// handlers instead of the whole index.
	perListenerType map[reflect.Type][]subscriptionKey

	// single indexes arity-1 (and var-arg) subscriptions by their one
	// declared message type.
	single map[reflect.Type][]*Subscription

	// multi indexes arity 2-3 subscriptions by the interned CompositeKey of
	// their declared message-type tuple.
	multi map[*CompositeKey][]*Subscription

	// nonListeners remembers concrete types whose describe() failed once
	// already or declared no enabled handlers, so repeated
	// Subscribe calls with the same type don't re-attempt reflection.
	nonListeners map[reflect.Type]bool

	// varArgPossible is true once at least one var-arg (slice-parameter)
	// handler has been registered. Publish only attempts var-arg resolution
	// when this is set, since the resolver's cross-product search is not
	// free and most buses never register a var-arg handler.
	varArgPossible bool
}

// NewSubscriberIndex creates an empty index.
func NewSubscriberIndex() *SubscriberIndex {
	return &SubscriberIndex{
		byKey:           make(map[subscriptionKey]*Subscription),
		perListenerType: make(map[reflect.Type][]subscriptionKey),
		single:          make(map[reflect.Type][]*Subscription),
		multi:           make(map[*CompositeKey][]*Subscription),
		nonListeners:    make(map[reflect.Type]bool),
	}
}

// Attach registers instance against descriptor, creating a new Subscription
// the first time (listenerType, HandlerID) is seen and indexing it by its
// message-type key, or appending instance to the existing one otherwise.
// key is nil for arity-1 descriptors (indexed by MessageTypes[0] directly)
// and non-nil for arity 2-3 descriptors (indexed by the interned composite).
func (idx *SubscriberIndex) Attach(descriptor *HandlerDescriptor, key *CompositeKey, instance any, inv invoker) {
	sk := subscriptionKey{listenerType: descriptor.ListenerType, handlerID: descriptor.HandlerID}

	sub, exists := idx.byKey[sk]
	if !exists {
		sub = NewSubscription(descriptor)
		idx.byKey[sk] = sub
		idx.perListenerType[descriptor.ListenerType] = append(idx.perListenerType[descriptor.ListenerType], sk)

		if descriptor.IsVararg {
			idx.varArgPossible = true
		}

		if len(descriptor.MessageTypes) == 1 && !descriptor.IsVararg {
			mt := descriptor.MessageTypes[0]
			idx.single[mt] = append(idx.single[mt], sub)
		} else if descriptor.IsVararg {
			mt := descriptor.MessageTypes[0]
			idx.single[mt] = append(idx.single[mt], sub)
		} else {
			idx.multi[key] = append(idx.multi[key], sub)
		}
	}

	sub.Add(instance, inv)
}

// Detach removes instance from every Subscription listenerType contributed.
// Subscriptions left empty stay indexed (an empty Subscription simply
// delivers to nobody); they are reclaimed only by a full Shutdown/Clear.
func (idx *SubscriberIndex) Detach(listenerType reflect.Type, instance any) {
	for _, sk := range idx.perListenerType[listenerType] {
		if sub, ok := idx.byKey[sk]; ok {
			sub.Remove(instance)
		}
	}
}

// MarkNonListener records that describe(t) failed or found no enabled
// handlers, so future Subscribe(t) calls skip reflection.
func (idx *SubscriberIndex) MarkNonListener(t reflect.Type) {
	idx.nonListeners[t] = true
}

// IsNonListener reports whether t was previously marked by MarkNonListener.
func (idx *SubscriberIndex) IsNonListener(t reflect.Type) bool {
	return idx.nonListeners[t]
}

// Single returns the Subscriptions declared for exactly message type t.
func (idx *SubscriberIndex) Single(t reflect.Type) []*Subscription {
	return idx.single[t]
}

// Multi returns the Subscriptions declared for exactly the tuple key.
func (idx *SubscriberIndex) Multi(key *CompositeKey) []*Subscription {
	return idx.multi[key]
}

// VarArgPossible reports whether any var-arg handler is registered.
func (idx *SubscriberIndex) VarArgPossible() bool {
	return idx.varArgPossible
}

// Reset clears every map. Called only from SubscriptionManager.Shutdown.
func (idx *SubscriberIndex) Reset() {
	idx.byKey = make(map[subscriptionKey]*Subscription)
	idx.perListenerType = make(map[reflect.Type][]subscriptionKey)
	idx.single = make(map[reflect.Type][]*Subscription)
	idx.multi = make(map[*CompositeKey][]*Subscription)
	idx.nonListeners = make(map[reflect.Type]bool)
	idx.varArgPossible = false
}
