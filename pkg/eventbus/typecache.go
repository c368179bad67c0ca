package eventbus

import (
	"reflect"
	"sync"

	"github.com/ori346/eventbus/internal/registry"
)

// TypeHierarchyCache memoises, per message type, its ordered strict supertype
// closure, and the slice-of-T type for each T.
//
// Go has no class inheritance, so "supertype" is reinterpreted for this
// domain: the closure of a struct type T is (a) the types of T's embedded
// (anonymous) fields, walked depth-first in declaration order, recursively,
// and (b) any registered marker interface T implements. Embedding stands in
// for the source language's superclass chain; the interface registry stands
// in for its interface list, since Go reflection cannot enumerate "all
// interfaces implemented by T" without a candidate set. For a slice type
// []E, the closure is supertypes(E) promoted to slice form, matching the
// source's "array supertype is array-of-element-supertype" rule.
//
// Entries are append-only once computed. A SubscriptionManager warms the
// closure of each declared message type during Subscribe, under its write
// lock; any other type's entry is computed on its first lookup, which may
// happen on the publish path under the read lock. The backing registries
// take their own read lock on every lookup.
type TypeHierarchyCache struct {
	ifaceMu    sync.RWMutex
	interfaces []reflect.Type

	supertypes *registry.Registry[reflect.Type, []reflect.Type]
	arrays     *registry.Registry[reflect.Type, reflect.Type]
	isArrayReg *registry.Registry[reflect.Type, bool]
}

// NewTypeHierarchyCache creates an empty cache.
func NewTypeHierarchyCache() *TypeHierarchyCache {
	return &TypeHierarchyCache{
		supertypes: registry.New[reflect.Type, []reflect.Type](),
		arrays:     registry.New[reflect.Type, reflect.Type](),
		isArrayReg: registry.New[reflect.Type, bool](),
	}
}

// RegisterInterface adds iface to the set of marker interfaces considered
// when computing a type's supertype closure. iface must itself be an
// interface type; RegisterInterface panics otherwise.
func (c *TypeHierarchyCache) RegisterInterface(iface reflect.Type) {
	if iface.Kind() != reflect.Interface {
		panic("eventbus: RegisterInterface requires an interface type, got " + iface.String())
	}
	c.ifaceMu.Lock()
	defer c.ifaceMu.Unlock()
	for _, existing := range c.interfaces {
		if existing == iface {
			return
		}
	}
	c.interfaces = append(c.interfaces, iface)
}

func (c *TypeHierarchyCache) registeredInterfaces() []reflect.Type {
	c.ifaceMu.RLock()
	defer c.ifaceMu.RUnlock()
	out := make([]reflect.Type, len(c.interfaces))
	copy(out, c.interfaces)
	return out
}

// IsArray reports whether t is a slice type (the Go rendition of "array
// type" in the source spec).
func (c *TypeHierarchyCache) IsArray(t reflect.Type) bool {
	return c.isArrayReg.GetOrCreate(t, func() bool {
		return t.Kind() == reflect.Slice
	})
}

// ArrayOf returns the slice-of-t type, e.g. ArrayOf(int) -> []int.
func (c *TypeHierarchyCache) ArrayOf(t reflect.Type) reflect.Type {
	return c.arrays.GetOrCreate(t, func() reflect.Type {
		return reflect.SliceOf(t)
	})
}

// Supertypes returns the ordered, deduplicated strict supertype closure of t,
// excluding t itself. The result is memoised; callers must not mutate it.
func (c *TypeHierarchyCache) Supertypes(t reflect.Type) []reflect.Type {
	return c.supertypes.GetOrCreate(t, func() []reflect.Type {
		if t.Kind() == reflect.Slice {
			elemSupers := c.Supertypes(t.Elem())
			promoted := make([]reflect.Type, len(elemSupers))
			for i, s := range elemSupers {
				promoted[i] = reflect.SliceOf(s)
			}
			return promoted
		}
		return computeSupertypes(t, c.registeredInterfaces())
	})
}

// computeSupertypes walks t's embedded-field chain depth-first (the
// "superclass chain"), then checks registered interfaces (the "interface
// BFS"), guarding against revisiting a type reached through more than one
// embedding path.
func computeSupertypes(t reflect.Type, interfaces []reflect.Type) []reflect.Type {
	visited := map[reflect.Type]bool{t: true}
	var chain []reflect.Type

	var walkEmbedded func(reflect.Type)
	walkEmbedded = func(cur reflect.Type) {
		for cur.Kind() == reflect.Ptr {
			cur = cur.Elem()
		}
		if cur.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < cur.NumField(); i++ {
			field := cur.Field(i)
			if !field.Anonymous {
				continue
			}
			ft := field.Type
			resolved := ft
			for resolved.Kind() == reflect.Ptr {
				resolved = resolved.Elem()
			}
			if visited[resolved] {
				continue
			}
			visited[resolved] = true
			chain = append(chain, resolved)
			walkEmbedded(resolved)
		}
	}
	walkEmbedded(t)

	for _, iface := range interfaces {
		if visited[iface] {
			continue
		}
		if t.Implements(iface) {
			visited[iface] = true
			chain = append(chain, iface)
		}
	}

	return chain
}
