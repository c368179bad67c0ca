package eventbus

import (
	"reflect"

	"github.com/ori346/eventbus/internal/registry"
)

// VarArgResolver finds var-arg handlers (those declared over a slice
// parameter, []T) that match an explicitly published slice, a lone scalar
// message (wrapped into a one-element slice at invocation time), or a
// multi-message Publish call whose individual messages share a common
// element type (or a common supertype of one).
//
// Two cases are cached separately:
//
//   - varArgSubs: keyed by runtime type, for an explicit Publish(ctx,
//     []T{...}) call (keyed by the slice's element type) or a lone
//     Publish(ctx, t) call (keyed by t's own type).
//   - varArgSuperSubs: keyed by the fixed-size type tuple of a 2- or 3-arg
//     Publish call, for the "these look like a slice of a common ancestor"
//     case: Publish(ctx, a, b) matches a handler declared over []Base if
//     both a and b's types are Base or a subtype of Base.
type VarArgResolver struct {
	index *SubscriberIndex
	types *TypeHierarchyCache

	varArgSubs      *registry.Registry[reflect.Type, []*Subscription]
	varArgSuperSubs *registry.Registry[[3]reflect.Type, []*Subscription]
}

// NewVarArgResolver creates a resolver over index and types.
func NewVarArgResolver(index *SubscriberIndex, types *TypeHierarchyCache) *VarArgResolver {
	return &VarArgResolver{
		index:           index,
		types:           types,
		varArgSubs:      registry.New[reflect.Type, []*Subscription](),
		varArgSuperSubs: registry.New[[3]reflect.Type, []*Subscription](),
	}
}

// Clear invalidates every memoized resolution.
func (r *VarArgResolver) Clear() {
	r.varArgSubs.Clear()
	r.varArgSuperSubs.Clear()
}

// ResolveSlice returns every var-arg Subscription whose declared element
// type is elemType or a strict supertype of it.
func (r *VarArgResolver) ResolveSlice(elemType reflect.Type) []*Subscription {
	return r.varArgSubs.GetOrCreate(elemType, func() []*Subscription {
		var out []*Subscription
		seen := make(map[*Subscription]bool)
		for _, candidate := range append([]reflect.Type{elemType}, r.types.Supertypes(elemType)...) {
			for _, sub := range r.index.Single(candidate) {
				if !sub.Descriptor.IsVararg || seen[sub] {
					continue
				}
				seen[sub] = true
				out = append(out, sub)
			}
		}
		return out
	})
}

// ResolveTuple returns every var-arg Subscription whose declared element
// type is a common supertype (or the common exact type) of every type in
// types. types must have length 2 or 3; a 1-length tuple should use
// ResolveSlice directly.
func (r *VarArgResolver) ResolveTuple(types []reflect.Type) []*Subscription {
	var key [3]reflect.Type
	copy(key[:], types)

	return r.varArgSuperSubs.GetOrCreate(key, func() []*Subscription {
		common := r.commonAncestors(types)
		var out []*Subscription
		seen := make(map[*Subscription]bool)
		for _, candidate := range common {
			for _, sub := range r.index.Single(candidate) {
				if !sub.Descriptor.IsVararg || seen[sub] {
					continue
				}
				seen[sub] = true
				out = append(out, sub)
			}
		}
		return out
	})
}

// commonAncestors returns every type that is types[0] (or a supertype of
// it) AND is also types[i] or a supertype of types[i], for every other i —
// i.e. the candidates a single []T var-arg handler could plausibly match
// against a mixed-type publish.
func (r *VarArgResolver) commonAncestors(types []reflect.Type) []reflect.Type {
	if len(types) == 0 {
		return nil
	}

	closure := func(t reflect.Type) map[reflect.Type]bool {
		set := map[reflect.Type]bool{t: true}
		for _, s := range r.types.Supertypes(t) {
			set[s] = true
		}
		return set
	}

	common := closure(types[0])
	for _, t := range types[1:] {
		next := closure(t)
		for k := range common {
			if !next[k] {
				delete(common, k)
			}
		}
	}

	out := make([]reflect.Type, 0, len(common))
	for t := range common {
		out = append(out, t)
	}
	return out
}
