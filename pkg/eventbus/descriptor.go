package eventbus

import (
	"fmt"
	"reflect"
)

// HandlerSpec is the Go stand-in for an annotation on a handler method: a
// struct literal naming the method and carrying the same configuration
// options the source language attaches to the annotation
// (acceptsSubtypes/enabled/synchronized/priority).
type HandlerSpec struct {
	Method          string
	acceptsSubtypes bool
	enabled         bool
	synchronized    bool
	priority        int
}

// HandlerSpecOption configures a HandlerSpec built by Handles.
type HandlerSpecOption func(*HandlerSpec)

// Handles declares a handler method by name. Defaults mirror the source
// annotation's defaults: acceptsSubtypes=true, enabled=true,
// synchronized=false, priority=0.
func Handles(method string, opts ...HandlerSpecOption) HandlerSpec {
	spec := HandlerSpec{Method: method, acceptsSubtypes: true, enabled: true}
	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

// ExactType disables super-type matching: the handler only fires for the
// exact declared type(s), never for subtypes.
func ExactType() HandlerSpecOption {
	return func(s *HandlerSpec) { s.acceptsSubtypes = false }
}

// Disabled removes this handler from consideration entirely; it produces no
// Subscription and is never indexed.
func Disabled() HandlerSpecOption {
	return func(s *HandlerSpec) { s.enabled = false }
}

// Synchronized marks the handler as requiring per-listener mutual exclusion
// across concurrent invocations. The flag is only carried on the
// descriptor: neither invocation strategy in this package takes a lock for
// it, and the core index does not interpret it.
func Synchronized() HandlerSpecOption {
	return func(s *HandlerSpec) { s.synchronized = true }
}

// WithPriority sets a reserved ordering hint. No index or matcher in this
// package reads it; it exists for a future priority-ordered dispatch mode.
func WithPriority(p int) HandlerSpecOption {
	return func(s *HandlerSpec) { s.priority = p }
}

// HandlerSource is implemented by listener types to declare their handler
// methods. Subscribing an instance of a type that does not implement
// HandlerSource is a no-op.
type HandlerSource interface {
	Handlers() []HandlerSpec
}

// HandlerDescriptor is an immutable record describing one handler: its
// declaring type, message-type signature, and flags. A HandlerDescriptor
// exists for exactly one (ListenerType, HandlerID) pair for the lifetime of
// the SubscriptionManager that created it.
type HandlerDescriptor struct {
	ListenerType    reflect.Type
	HandlerID       string
	MessageTypes    []reflect.Type
	AcceptsSubtypes bool
	Enabled         bool
	Synchronized    bool
	IsVararg        bool
	Priority        int

	method reflect.Method // resolved once by describe via MethodByName; reflectInvoker calls it with the listener as receiver
}

// describe reflects listenerType (given a live sample instance implementing
// HandlerSource) into its deterministic, ordered sequence of
// HandlerDescriptors. Order follows the HandlerSpec slice order the listener
// author wrote, which is stable across runs without relying on map iteration
// or struct field order.
//
// A HandlerSpec whose method cannot be resolved, or whose signature does not
// match a supported handler shape (T, (T1,T2), (T1,T2,T3), or ([]T)), is a
// ReflectionFailure for the whole listener type: describe returns the error
// and the caller must treat listenerType as a non-listener from then on.
func describe(sample HandlerSource) ([]*HandlerDescriptor, error) {
	listenerType := reflect.TypeOf(sample)
	specs := sample.Handlers()
	if len(specs) == 0 {
		return nil, nil
	}

	descriptors := make([]*HandlerDescriptor, 0, len(specs))
	for _, spec := range specs {
		if !spec.enabled {
			continue
		}

		method, ok := listenerType.MethodByName(spec.Method)
		if !ok {
			return nil, &ReflectionFailure{
				ListenerType: listenerType,
				Method:       spec.Method,
				Reason:       "method not found",
			}
		}

		// method.Func has the receiver as In(0); bound-call arity excludes it.
		numArgs := method.Func.Type().NumIn() - 1
		variadic := method.Func.Type().IsVariadic()

		var messageTypes []reflect.Type
		var isVararg bool

		switch {
		case numArgs == 1 && !variadic && method.Func.Type().In(1).Kind() == reflect.Slice:
			isVararg = true
			messageTypes = []reflect.Type{method.Func.Type().In(1).Elem()}
		case numArgs == 1 && variadic:
			isVararg = true
			messageTypes = []reflect.Type{method.Func.Type().In(1).Elem()}
		case numArgs >= 1 && numArgs <= 3 && !variadic:
			messageTypes = make([]reflect.Type, numArgs)
			for i := 0; i < numArgs; i++ {
				messageTypes[i] = method.Func.Type().In(i + 1)
			}
		default:
			return nil, &ReflectionFailure{
				ListenerType: listenerType,
				Method:       spec.Method,
				Reason:       fmt.Sprintf("unsupported handler signature (%d args, variadic=%v)", numArgs, variadic),
			}
		}

		descriptors = append(descriptors, &HandlerDescriptor{
			ListenerType:    listenerType,
			HandlerID:       spec.Method,
			MessageTypes:    messageTypes,
			AcceptsSubtypes: spec.acceptsSubtypes,
			Enabled:         spec.enabled,
			Synchronized:    spec.synchronized,
			IsVararg:        isVararg,
			Priority:        spec.priority,
			method:          method,
		})
	}

	return descriptors, nil
}
