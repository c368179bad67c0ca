package eventbus

import "reflect"

// PublishMode names how a publish schedules handler invocations: Publish
// runs them synchronously, PublishAsync through the Dispatcher. Bus passes
// it to LogPublish to label the log record.
type PublishMode int

const (
	// Sync invokes every matched handler on the publisher's own goroutine,
	// in tiered order, before Publish returns.
	Sync PublishMode = iota
	// Async submits each matched handler invocation to the Dispatcher's
	// worker pool and returns once all have been submitted (not completed).
	Async
)

func (m PublishMode) String() string {
	switch m {
	case Sync:
		return "sync"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// Matcher resolves the set of Subscriptions that should receive a published
// message tuple. The three policies differ only in which tiers they
// consult; all three always consult the exact-type tier.
type Matcher interface {
	Match(messageTypes []reflect.Type) []*Subscription
}

// matchTiers is the shared implementation behind all three policies; each
// policy just toggles which optional tiers run.
type matchTiers struct {
	index         *SubscriberIndex
	tree          *ClassTree
	superTypes    *SuperTypeResolver
	varArgs       *VarArgResolver
	useSuperTypes bool
	useVarArgs    bool
}

// NewExactMatcher matches only handlers declared for the exact published
// type (or exact tuple, for multi-arg publishes).
func NewExactMatcher(index *SubscriberIndex, tree *ClassTree) Matcher {
	return &matchTiers{index: index, tree: tree}
}

// NewSuperTypeMatcher additionally matches handlers declared for any
// supertype of the published type(s).
func NewSuperTypeMatcher(index *SubscriberIndex, tree *ClassTree, superTypes *SuperTypeResolver) Matcher {
	return &matchTiers{index: index, tree: tree, superTypes: superTypes, useSuperTypes: true}
}

// NewFullMatcher additionally matches var-arg ([]T) handlers against
// explicit slice publishes and against multi-message publishes that share a
// common ancestor type.
func NewFullMatcher(index *SubscriberIndex, tree *ClassTree, superTypes *SuperTypeResolver, varArgs *VarArgResolver) Matcher {
	return &matchTiers{index: index, tree: tree, superTypes: superTypes, varArgs: varArgs, useSuperTypes: true, useVarArgs: true}
}

func (m *matchTiers) Match(messageTypes []reflect.Type) []*Subscription {
	switch len(messageTypes) {
	case 1:
		return m.match1(messageTypes[0])
	case 2:
		return m.match2(messageTypes[0], messageTypes[1])
	case 3:
		return m.match3(messageTypes[0], messageTypes[1], messageTypes[2])
	default:
		return nil
	}
}

func (m *matchTiers) match1(t reflect.Type) []*Subscription {
	// Var-arg subscriptions share the single index with arity-1 ones (keyed
	// by element type); only the var-arg tier below may return them.
	var out []*Subscription
	for _, sub := range m.index.Single(t) {
		if !sub.Descriptor.IsVararg {
			out = append(out, sub)
		}
	}

	if m.useSuperTypes && m.superTypes != nil {
		for _, sub := range m.superTypes.Resolve1(t) {
			if !sub.Descriptor.IsVararg {
				out = append(out, sub)
			}
		}
	}

	if m.useVarArgs && m.varArgs != nil && m.index.VarArgPossible() {
		if t.Kind() == reflect.Slice {
			// An explicit slice publish matches a handler declared for that
			// element type directly.
			out = append(out, m.varArgs.ResolveSlice(t.Elem())...)
		} else {
			// A lone scalar publish of T also satisfies a []T handler, the
			// same way a 2-/3-arg publish does: it is packed into a
			// one-element slice at invocation time.
			out = append(out, m.varArgs.ResolveSlice(t)...)
		}
	}

	return out
}

func (m *matchTiers) match2(t1, t2 reflect.Type) []*Subscription {
	var out []*Subscription
	if key, ok := m.tree.Lookup(t1, t2); ok {
		out = append(out, m.index.Multi(key)...)
	}

	if m.useSuperTypes && m.superTypes != nil {
		out = append(out, m.superTypes.Resolve2(t1, t2)...)
	}

	if m.useVarArgs && m.varArgs != nil && m.index.VarArgPossible() {
		out = append(out, m.varArgs.ResolveTuple([]reflect.Type{t1, t2})...)
	}

	return out
}

func (m *matchTiers) match3(t1, t2, t3 reflect.Type) []*Subscription {
	var out []*Subscription
	if key, ok := m.tree.Lookup(t1, t2, t3); ok {
		out = append(out, m.index.Multi(key)...)
	}

	if m.useSuperTypes && m.superTypes != nil {
		out = append(out, m.superTypes.Resolve3(t1, t2, t3)...)
	}

	if m.useVarArgs && m.varArgs != nil && m.index.VarArgPossible() {
		out = append(out, m.varArgs.ResolveTuple([]reflect.Type{t1, t2, t3})...)
	}

	return out
}
