package eventbus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Bus is the public façade: it multiplexes synchronous and asynchronous
// publish over one shared SubscriptionManager, Dispatcher, and ErrorHandler.
type Bus struct {
	manager  *SubscriptionManager
	dispatch *Dispatcher
	errs     ErrorHandler
	metrics  MetricsRecorder
	tracer   trace.Tracer
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewBus creates a Bus from cfg. A zero-value BusConfig is valid: a zero
// NumberOfThreads or BufferSize takes DefaultBusConfig's value, while a zero
// MatchPolicy is ExactOnly.
func NewBus(cfg BusConfig) *Bus {
	cfg = cfg.withDefaults()

	errs := cfg.OnError
	if errs == nil {
		errs = DefaultErrorHandler{}
		installDefaultErrorHandlerNotice()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("eventbus")
	}

	b := &Bus{
		manager: NewSubscriptionManager(cfg.MatchPolicy),
		errs:    errs,
		metrics: metrics,
		tracer:  tracer,
		logger:  cfg.Logger,
	}

	b.dispatch = NewDispatcher(cfg.NumberOfThreads, cfg.BufferSize, func(report FailureReport) {
		metrics.RecordHandlerFailure(report.ListenerType, report.HandlerID)
		errs.Handle(report)
	})

	return b
}

// RegisterInterface exposes SubscriptionManager.RegisterInterface so callers
// can opt marker interfaces into supertype resolution before subscribing.
func (b *Bus) RegisterInterface(iface reflect.Type) {
	b.manager.RegisterInterface(iface)
}

// Subscribe registers instance's declared handlers. See
// SubscriptionManager.Subscribe for the full contract.
func (b *Bus) Subscribe(instance any) error {
	err := b.manager.Subscribe(instance)
	if err == nil {
		t := reflect.TypeOf(instance)
		b.metrics.RecordSubscribe(t)
		if source, ok := instance.(HandlerSource); ok {
			LogSubscribe(b.logger, t, len(source.Handlers()))
		}
	}
	return err
}

// Unsubscribe removes instance's handlers. See
// SubscriptionManager.Unsubscribe for the full contract.
func (b *Bus) Unsubscribe(instance any) {
	b.manager.Unsubscribe(instance)
	t := reflect.TypeOf(instance)
	b.metrics.RecordUnsubscribe(t)
	LogUnsubscribe(b.logger, t)
}

// Publish delivers msgs synchronously: every matched handler runs on the
// caller's goroutine, in tiered order (exact, then super-type, then
// var-arg), before Publish returns. A handler's error or panic is reported
// to the Bus's ErrorHandler and does not stop delivery to the remaining
// handlers. If no handler anywhere in the Bus matches, a DeadMessage is
// published once (to any DeadMessage subscribers) instead.
//
// msgs must have length 1, 2, or 3, or be a single slice argument for a
// var-arg publish. Calling Publish with no arguments returns
// *NullMessageError.
func (b *Bus) Publish(ctx context.Context, msgs ...any) error {
	if len(msgs) == 0 {
		return &NullMessageError{Operation: "Publish"}
	}
	if err := checkNoNilMessages(msgs, "Publish"); err != nil {
		return err
	}

	ctx, span := b.tracer.Start(ctx, "eventbus.Publish")
	defer span.End()

	subs, types := b.resolve(msgs)
	b.metrics.RecordPublish(types)
	LogPublish(b.logger, Sync, types, len(subs))

	if len(subs) == 0 {
		b.publishDeadMessage(ctx, msgs)
		return nil
	}

	for _, sub := range subs {
		for _, sb := range sub.Snapshot() {
			b.invokeSync(sub, sb, msgs)
		}
	}
	return nil
}

// PublishAsync resolves matches synchronously (so the error return is
// meaningful) but submits every matched invocation to the Dispatcher's
// worker pool, returning once all have been submitted rather than
// completed.
func (b *Bus) PublishAsync(ctx context.Context, msgs ...any) error {
	if len(msgs) == 0 {
		return &NullMessageError{Operation: "PublishAsync"}
	}
	if err := checkNoNilMessages(msgs, "PublishAsync"); err != nil {
		// Resolution hasn't happened yet, so there is no handler or
		// listener type to attach to the report; this mirrors how a
		// post-Close Submit reports *ShutdownInProgress through the error
		// handler rather than failing the caller synchronously.
		b.errs.Handle(FailureReport{Err: err})
		return nil
	}

	_, span := b.tracer.Start(ctx, "eventbus.PublishAsync")
	defer span.End()

	subs, types := b.resolve(msgs)
	b.metrics.RecordPublish(types)
	LogPublish(b.logger, Async, types, len(subs))

	if len(subs) == 0 {
		b.publishDeadMessage(ctx, msgs)
		return nil
	}

	var message any = msgs[0]
	if len(msgs) > 1 {
		message = msgs
	}

	for _, sub := range subs {
		for _, sb := range sub.Snapshot() {
			b.dispatch.Submit(sub, sb, msgs, message)
		}
	}
	return nil
}

// checkNoNilMessages rejects a publish carrying any nil element. A published
// tuple must consist entirely of typed, non-nil messages: there's no runtime
// type to match a nil against, so it can never reach a handler.
func checkNoNilMessages(msgs []any, operation string) error {
	for _, msg := range msgs {
		if msg == nil {
			return &NullMessageError{Operation: operation}
		}
	}
	return nil
}

// resolve computes each message's runtime type and looks up matching
// Subscriptions. Callers must have already rejected nil elements via
// checkNoNilMessages.
func (b *Bus) resolve(msgs []any) ([]*Subscription, []reflect.Type) {
	types := make([]reflect.Type, len(msgs))
	for i, msg := range msgs {
		types[i] = reflect.TypeOf(msg)
	}
	return b.manager.Resolve(types), types
}

func (b *Bus) invokeSync(sub *Subscription, sb subscriber, msgs []any) {
	var message any = msgs[0]
	if len(msgs) > 1 {
		message = msgs
	}

	if err := sb.invoker.invoke(sb.value, msgs); err != nil {
		failure := &HandlerInvocationFailure{
			ListenerType: sub.Descriptor.ListenerType,
			HandlerID:    sub.Descriptor.HandlerID,
			Message:      message,
			Cause:        err,
		}
		b.metrics.RecordHandlerFailure(sub.Descriptor.ListenerType, sub.Descriptor.HandlerID)
		b.errs.Handle(FailureReport{
			ListenerType: sub.Descriptor.ListenerType,
			HandlerID:    sub.Descriptor.HandlerID,
			Message:      message,
			Err:          failure,
		})
	}
}

func (b *Bus) publishDeadMessage(ctx context.Context, msgs []any) {
	dead := DeadMessage{Messages: msgs}
	deadType := []reflect.Type{reflect.TypeOf(dead)}
	subs := b.manager.Resolve(deadType)
	for _, sub := range subs {
		for _, sb := range sub.Snapshot() {
			b.invokeSync(sub, sb, []any{dead})
		}
	}
	b.metrics.RecordDeadMessage()
	LogDeadMessage(b.logger, msgs)
}

// Close stops accepting new async work and waits for the worker pool to
// drain. After Close begins, Subscribe of a HandlerSource returns
// *ShutdownInProgress, Unsubscribe does nothing, and Publish/PublishAsync
// simply stop matching anything, since the manager's index is cleared.
// Idempotent.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.manager.Shutdown()
		b.dispatch.Close()
	})
}
