package eventbus

import (
	"reflect"
	"sync"
)

// SubscriptionManager is the single-writer, many-reader core of the bus: it
// owns the ClassTree, TypeHierarchyCache, SubscriberIndex and both resolver
// caches, and is the only component that mutates any of them.
//
// Subscribe and Unsubscribe take the exclusive write lock and are mutually
// exclusive with each other and with every other write. Resolve (the
// publish-path lookup) takes the shared read lock: concurrent publishers
// never block each other, and a Subscription's own listener snapshot is
// lock-free on top of that, so the read lock is held only long enough to
// read the index maps, never while invoking a handler.
type SubscriptionManager struct {
	mu sync.RWMutex

	tree       *ClassTree
	types      *TypeHierarchyCache
	index      *SubscriberIndex
	superTypes *SuperTypeResolver
	varArgs    *VarArgResolver
	matcher    Matcher

	shuttingDown bool
}

// NewSubscriptionManager creates a manager using policy to decide which
// match tiers Resolve consults.
func NewSubscriptionManager(policy MatchPolicy) *SubscriptionManager {
	tree := NewClassTree()
	types := NewTypeHierarchyCache()
	index := NewSubscriberIndex()
	superTypes := NewSuperTypeResolver(index, types, tree)
	varArgs := NewVarArgResolver(index, types)

	m := &SubscriptionManager{
		tree:       tree,
		types:      types,
		index:      index,
		superTypes: superTypes,
		varArgs:    varArgs,
	}
	m.matcher = buildMatcher(policy, index, tree, superTypes, varArgs)
	return m
}

// MatchPolicy selects which tiers a SubscriptionManager's Matcher consults.
type MatchPolicy int

const (
	// ExactOnly matches only handlers declared for the exact published
	// type or tuple.
	ExactOnly MatchPolicy = iota
	// ExactWithSuperTypes additionally matches handlers declared for any
	// supertype of the published type(s).
	ExactWithSuperTypes
	// ExactWithSuperTypesAndVarArgs additionally matches var-arg ([]T)
	// handlers.
	ExactWithSuperTypesAndVarArgs
)

func buildMatcher(policy MatchPolicy, index *SubscriberIndex, tree *ClassTree, st *SuperTypeResolver, va *VarArgResolver) Matcher {
	switch policy {
	case ExactWithSuperTypes:
		return NewSuperTypeMatcher(index, tree, st)
	case ExactWithSuperTypesAndVarArgs:
		return NewFullMatcher(index, tree, st, va)
	default:
		return NewExactMatcher(index, tree)
	}
}

// RegisterInterface adds iface to the set of marker interfaces the type
// hierarchy cache considers when computing supertype closures. Must be
// called before any relevant Subscribe, since supertype results are
// memoized as soon as they're first computed.
func (m *SubscriptionManager) RegisterInterface(iface reflect.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types.RegisterInterface(iface)
}

// Subscribe registers every handler instance declares via HandlerSource.
// instance must implement HandlerSource, or Subscribe is a no-op (matching
// the source system's "not every object is an EventBus listener" rule). A
// ReflectionFailure from any one declared handler rejects the whole
// instance: Subscribe registers nothing for it and returns the error.
func (m *SubscriptionManager) Subscribe(instance any) error {
	source, ok := instance.(HandlerSource)
	if !ok {
		return nil
	}

	listenerType := reflect.TypeOf(instance)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shuttingDown {
		return &ShutdownInProgress{Operation: "Subscribe"}
	}

	if m.index.IsNonListener(listenerType) {
		return nil
	}

	descriptors, err := describe(source)
	if err != nil {
		m.index.MarkNonListener(listenerType)
		return err
	}
	if len(descriptors) == 0 {
		m.index.MarkNonListener(listenerType)
		return nil
	}

	for _, desc := range descriptors {
		var key *CompositeKey
		if len(desc.MessageTypes) >= 2 {
			key = m.tree.Get(desc.MessageTypes...)
		}
		for _, mt := range desc.MessageTypes {
			m.types.Supertypes(mt)
		}
		inv := selectInvoker(instance, desc)
		m.index.Attach(desc, key, instance, inv)
	}

	m.invalidateCaches()
	return nil
}

// Unsubscribe removes every handler instance previously registered. It is
// safe to call on an instance that was never subscribed, or was rejected by
// Subscribe with a ReflectionFailure: both are no-ops.
func (m *SubscriptionManager) Unsubscribe(instance any) {
	listenerType := reflect.TypeOf(instance)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shuttingDown {
		return
	}

	m.index.Detach(listenerType, instance)
	m.invalidateCaches()
}

// invalidateCaches drops both resolver caches. Called after every Subscribe
// and Unsubscribe, while the write lock is still held, so the next Resolve
// always sees an index/cache pair that agree with each other.
func (m *SubscriptionManager) invalidateCaches() {
	m.superTypes.Clear()
	m.varArgs.Clear()
}

// Resolve returns every Subscription that should receive a message tuple of
// the given runtime types, per the manager's configured MatchPolicy.
func (m *SubscriptionManager) Resolve(messageTypes []reflect.Type) []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shuttingDown {
		return nil
	}

	return m.matcher.Match(messageTypes)
}

// Shutdown marks the manager as no longer accepting Subscribe/Unsubscribe,
// and releases every index, tree, and cache entry.
func (m *SubscriptionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shuttingDown = true
	m.index.Reset()
	m.tree.Clear()
	m.superTypes.Clear()
	m.varArgs.Clear()
}
