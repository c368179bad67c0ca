package eventbus

import (
	"fmt"
	"reflect"
)

// HandlerInvocationFailure reports a panic or error raised by a handler
// method during dispatch. The failure is scoped to one (listener, handler,
// message) triple; it never aborts delivery to other handlers.
type HandlerInvocationFailure struct {
	ListenerType reflect.Type
	HandlerID    string
	Message      any
	Cause        error
}

func (e *HandlerInvocationFailure) Error() string {
	return fmt.Sprintf("eventbus: handler %s.%s failed on %T: %v", e.ListenerType, e.HandlerID, e.Message, e.Cause)
}

func (e *HandlerInvocationFailure) Unwrap() error { return e.Cause }

// NullMessageError is returned by Publish when called with no message
// arguments, or with a nil message value in a position that requires one.
type NullMessageError struct {
	Operation string
}

func (e *NullMessageError) Error() string {
	return fmt.Sprintf("eventbus: %s requires at least one non-nil message", e.Operation)
}

// ReflectionFailure reports that a listener type's HandlerSource declarations
// could not be resolved into handler descriptors: a named method is missing,
// or its signature does not match a supported handler shape. The whole
// listener type is rejected; Subscribe returns this error and registers
// nothing for it.
type ReflectionFailure struct {
	ListenerType reflect.Type
	Method       string
	Reason       string
}

func (e *ReflectionFailure) Error() string {
	return fmt.Sprintf("eventbus: cannot resolve %s.%s: %s", e.ListenerType, e.Method, e.Reason)
}

// ShutdownInProgress is returned by Subscribe once Bus.Close or
// SubscriptionManager.Shutdown has begun, and reported to the error handler
// for an async invocation submitted to a closed Dispatcher.
type ShutdownInProgress struct {
	Operation string
}

func (e *ShutdownInProgress) Error() string {
	return fmt.Sprintf("eventbus: %s rejected, bus is shutting down", e.Operation)
}

// FailureReport is what an ErrorHandler receives: enough context to log,
// count, or re-route a handler failure without re-deriving it from the
// underlying error's dynamic type.
type FailureReport struct {
	ListenerType reflect.Type
	HandlerID    string
	Message      any
	Err          error
}

// ErrorHandler is notified of every HandlerInvocationFailure the dispatcher
// observes. Implementations must not block the publish path for long; async
// dispatch already isolates them from publishers, but synchronous Publish
// calls ErrorHandler inline.
type ErrorHandler interface {
	Handle(report FailureReport)
}

// DeadMessage wraps a published message that matched no handler anywhere in
// the bus. A listener can subscribe to DeadMessage itself to observe these.
type DeadMessage struct {
	Messages []any
}
