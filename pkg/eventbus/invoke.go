package eventbus

import (
	"fmt"
	"reflect"
)

// invoker is the dispatch strategy bound to one HandlerDescriptor. Two
// implementations exist: reflectInvoker, which always goes through
// reflect.Value.Call, and directInvoker, used when the listener type opts
// into pre-bound closures via FastHandlers.
type invoker interface {
	invoke(listener reflect.Value, args []any) (err error)
}

// FastHandlers is an optional, additional interface a listener type may
// implement alongside HandlerSource. When present, the manager asks it for a
// pre-bound closure per HandlerID instead of resolving the method through
// reflect.Value.Call on every publish. This is the "direct invocation"
// strategy alluded to in the bus's polymorphic invocation design: callers
// that care about the reflection overhead on a hot path can opt out of it
// per listener type without changing the HandlerSource contract.
type FastHandlers interface {
	FastHandler(handlerID string) (func(args []any) error, bool)
}

// reflectInvoker calls the method by reflect.Value.Call on every invocation.
// It is the default strategy and requires no cooperation from the listener
// type beyond HandlerSource.
type reflectInvoker struct {
	method reflect.Method
}

func (r reflectInvoker) invoke(listener reflect.Value, args []any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	fnType := r.method.Func.Type()
	numParams := fnType.NumIn() - 1

	// Explicit single-slice-parameter handler: pack every arg into one
	// slice value rather than passing each positionally. A true Go
	// variadic parameter (...T) needs no such packing: reflect.Call spreads
	// individual values across it on its own.
	if numParams == 1 && !fnType.IsVariadic() && fnType.In(1).Kind() == reflect.Slice {
		paramType := fnType.In(1)

		// A publish that already carries the slice itself (Publish(ctx,
		// []T{...})) is passed through as-is. Only a publish of N individual
		// elements (Publish(ctx, t1, t2, t3)) needs packing into one slice
		// value before the call.
		if len(args) == 1 && args[0] != nil && reflect.TypeOf(args[0]) == paramType {
			return callAndExtractError(r.method, []reflect.Value{listener, reflect.ValueOf(args[0])})
		}

		elemType := paramType.Elem()
		slice := reflect.MakeSlice(paramType, len(args), len(args))
		for i, a := range args {
			if a == nil {
				slice.Index(i).Set(reflect.Zero(elemType))
				continue
			}
			slice.Index(i).Set(reflect.ValueOf(a))
		}
		callArgs := []reflect.Value{listener, slice}
		return callAndExtractError(r.method, callArgs)
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(fnType.In(i + 1))
			continue
		}
		in[i] = reflect.ValueOf(a)
	}

	callArgs := append([]reflect.Value{listener}, in...)
	return callAndExtractError(r.method, callArgs)
}

// callAndExtractError invokes method with callArgs and returns the first
// non-nil error among its return values, if any.
func callAndExtractError(method reflect.Method, callArgs []reflect.Value) error {
	out := method.Func.Call(callArgs)
	for _, o := range out {
		if e, ok := o.Interface().(error); ok && e != nil {
			return e
		}
	}
	return nil
}

// directInvoker calls a pre-bound closure obtained from FastHandlers,
// skipping reflect.Value.Call entirely on the invocation path.
type directInvoker struct {
	fn func(args []any) error
}

func (d directInvoker) invoke(_ reflect.Value, args []any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return d.fn(args)
}

// selectInvoker picks directInvoker when listener implements FastHandlers
// and offers a closure for this descriptor's HandlerID, falling back to
// reflectInvoker otherwise.
func selectInvoker(listener any, desc *HandlerDescriptor) invoker {
	if fh, ok := listener.(FastHandlers); ok {
		if fn, ok := fh.FastHandler(desc.HandlerID); ok {
			return directInvoker{fn: fn}
		}
	}
	return reflectInvoker{method: desc.method}
}
