package eventbus

import (
	"reflect"
	"testing"
)

func TestClassTreeGetIsStableAndOrdered(t *testing.T) {
	tree := NewClassTree()

	intType := reflect.TypeOf(0)
	strType := reflect.TypeOf("")

	k1 := tree.Get(intType, strType)
	k2 := tree.Get(intType, strType)
	if k1 != k2 {
		t.Fatalf("Get(int, string) returned different keys on repeated calls")
	}

	k3 := tree.Get(strType, intType)
	if k1 == k3 {
		t.Fatalf("Get(int, string) and Get(string, int) must not share a key")
	}
}

func TestClassTreeGetPanicsOnEmpty(t *testing.T) {
	tree := NewClassTree()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Get() with no types to panic")
		}
	}()
	tree.Get()
}

func TestClassTreeLookupDoesNotCreate(t *testing.T) {
	tree := NewClassTree()
	intType := reflect.TypeOf(0)
	strType := reflect.TypeOf("")

	if _, ok := tree.Lookup(intType, strType); ok {
		t.Fatalf("Lookup found a key before any Get() call")
	}

	tree.Get(intType, strType)

	key, ok := tree.Lookup(intType, strType)
	if !ok || key == nil {
		t.Fatalf("Lookup failed to find a key interned by Get")
	}
}

func TestClassTreeClearResetsTree(t *testing.T) {
	tree := NewClassTree()
	intType := reflect.TypeOf(0)
	tree.Get(intType)

	tree.Clear()

	if _, ok := tree.Lookup(intType); ok {
		t.Fatalf("Lookup found a key after Clear")
	}
}
