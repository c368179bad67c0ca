package eventbus

import (
	"reflect"

	"github.com/ori346/eventbus/internal/registry"
)

// SuperTypeResolver finds every Subscription reachable from a published
// runtime type tuple by walking supertypes, so a handler declared for an
// embedded base type (or a registered marker interface) still receives
// messages published as a more specific concrete type.
//
// Results are memoized per runtime type tuple. The cache is keyed by
// reflect.Type directly for arity 1, and by small fixed-size comparable
// arrays for arity 2 and 3 — not by ClassTree composite keys, since the
// cross product over supertypes routinely produces tuples nobody ever
// subscribed to, and inserting those into the ClassTree would pollute it
// with dead trie paths. Each resolver cache is invalidated (Clear) in
// lockstep with the SubscriberIndex on every Subscribe/Unsubscribe.
type SuperTypeResolver struct {
	index *SubscriberIndex
	types *TypeHierarchyCache
	tree  *ClassTree

	cache1 *registry.Registry[reflect.Type, []*Subscription]
	cache2 *registry.Registry[[2]reflect.Type, []*Subscription]
	cache3 *registry.Registry[[3]reflect.Type, []*Subscription]
}

// NewSuperTypeResolver creates a resolver over index, types, and tree. None
// of the three are owned by the resolver; callers must keep the resolver's
// own caches invalidated whenever index's contents change.
func NewSuperTypeResolver(index *SubscriberIndex, types *TypeHierarchyCache, tree *ClassTree) *SuperTypeResolver {
	return &SuperTypeResolver{
		index:  index,
		types:  types,
		tree:   tree,
		cache1: registry.New[reflect.Type, []*Subscription](),
		cache2: registry.New[[2]reflect.Type, []*Subscription](),
		cache3: registry.New[[3]reflect.Type, []*Subscription](),
	}
}

// Clear invalidates every memoized resolution. Called whenever the
// SubscriptionManager's write path mutates the index.
func (r *SuperTypeResolver) Clear() {
	r.cache1.Clear()
	r.cache2.Clear()
	r.cache3.Clear()
}

// candidatesFor returns t followed by its supertype closure: every type an
// exact-match lookup should also be attempted against.
func (r *SuperTypeResolver) candidatesFor(t reflect.Type) []reflect.Type {
	supers := r.types.Supertypes(t)
	out := make([]reflect.Type, 0, len(supers)+1)
	out = append(out, t)
	out = append(out, supers...)
	return out
}

// Resolve1 returns every Subscription (beyond the exact-type match already
// performed by the caller) reachable from t via its supertype closure, for
// descriptors that accept subtypes.
func (r *SuperTypeResolver) Resolve1(t reflect.Type) []*Subscription {
	return r.cache1.GetOrCreate(t, func() []*Subscription {
		var out []*Subscription
		seen := make(map[*Subscription]bool)
		for _, candidate := range r.types.Supertypes(t) {
			for _, sub := range r.index.Single(candidate) {
				if !sub.Descriptor.AcceptsSubtypes || seen[sub] {
					continue
				}
				seen[sub] = true
				out = append(out, sub)
			}
		}
		return out
	})
}

// Resolve2 is the arity-2 analogue of Resolve1: it searches the cross
// product of supertype candidates (including each type itself) for (t1, t2),
// excluding the (t1, t2) exact combination the caller already checked.
func (r *SuperTypeResolver) Resolve2(t1, t2 reflect.Type) []*Subscription {
	key := [2]reflect.Type{t1, t2}
	return r.cache2.GetOrCreate(key, func() []*Subscription {
		c1 := r.candidatesFor(t1)
		c2 := r.candidatesFor(t2)
		var out []*Subscription
		seen := make(map[*Subscription]bool)
		for _, a := range c1 {
			for _, b := range c2 {
				if a == t1 && b == t2 {
					continue
				}
				ck, ok := r.tree.Lookup(a, b)
				if !ok {
					continue
				}
				for _, sub := range r.index.Multi(ck) {
					if !sub.Descriptor.AcceptsSubtypes || seen[sub] {
						continue
					}
					seen[sub] = true
					out = append(out, sub)
				}
			}
		}
		return out
	})
}

// Resolve3 is the arity-3 analogue of Resolve2.
func (r *SuperTypeResolver) Resolve3(t1, t2, t3 reflect.Type) []*Subscription {
	key := [3]reflect.Type{t1, t2, t3}
	return r.cache3.GetOrCreate(key, func() []*Subscription {
		c1 := r.candidatesFor(t1)
		c2 := r.candidatesFor(t2)
		c3 := r.candidatesFor(t3)
		var out []*Subscription
		seen := make(map[*Subscription]bool)
		for _, a := range c1 {
			for _, b := range c2 {
				for _, c := range c3 {
					if a == t1 && b == t2 && c == t3 {
						continue
					}
					ck, ok := r.tree.Lookup(a, b, c)
					if !ok {
						continue
					}
					for _, sub := range r.index.Multi(ck) {
						if !sub.Descriptor.AcceptsSubtypes || seen[sub] {
							continue
						}
						seen[sub] = true
						out = append(out, sub)
					}
				}
			}
		}
		return out
	})
}
