package eventbus

import (
	"reflect"
	"testing"
)

func TestVarArgResolverResolveSliceFindsDeclaredElementType(t *testing.T) {
	index := NewSubscriberIndex()
	types := NewTypeHierarchyCache()
	resolver := NewVarArgResolver(index, types)

	desc := &HandlerDescriptor{
		ListenerType: reflect.TypeOf(struct{}{}),
		HandlerID:    "OnMany",
		MessageTypes: []reflect.Type{reflect.TypeOf(shape{})},
		IsVararg:     true,
	}
	index.Attach(desc, nil, "listener", reflectInvoker{})

	found := resolver.ResolveSlice(reflect.TypeOf(shape{}))
	if len(found) != 1 {
		t.Fatalf("ResolveSlice(shape) = %d, want 1", len(found))
	}
}

func TestVarArgResolverResolveTupleFindsCommonAncestor(t *testing.T) {
	index := NewSubscriberIndex()
	types := NewTypeHierarchyCache()
	resolver := NewVarArgResolver(index, types)

	desc := &HandlerDescriptor{
		ListenerType: reflect.TypeOf(struct{}{}),
		HandlerID:    "OnManyShapes",
		MessageTypes: []reflect.Type{reflect.TypeOf(shape{})},
		IsVararg:     true,
	}
	index.Attach(desc, nil, "listener", reflectInvoker{})

	found := resolver.ResolveTuple([]reflect.Type{reflect.TypeOf(circle{}), reflect.TypeOf(square{})})
	if len(found) != 1 {
		t.Fatalf("ResolveTuple(circle, square) = %d, want 1 (both share ancestor shape)", len(found))
	}
}

func TestVarArgResolverResolveTupleRequiresSharedAncestor(t *testing.T) {
	index := NewSubscriberIndex()
	types := NewTypeHierarchyCache()
	resolver := NewVarArgResolver(index, types)

	desc := &HandlerDescriptor{
		ListenerType: reflect.TypeOf(struct{}{}),
		HandlerID:    "OnManyInts",
		MessageTypes: []reflect.Type{reflect.TypeOf(0)},
		IsVararg:     true,
	}
	index.Attach(desc, nil, "listener", reflectInvoker{})

	found := resolver.ResolveTuple([]reflect.Type{reflect.TypeOf(circle{}), reflect.TypeOf(square{})})
	if len(found) != 0 {
		t.Fatalf("ResolveTuple(circle, square) against an int-declared handler = %d, want 0", len(found))
	}
}
