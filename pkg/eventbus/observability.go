package eventbus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LogSubscribe emits a debug-level record of a Subscribe call. Nil-safe:
// passing a nil logger skips the call entirely, the same way the rest of
// this package's Log* helpers treat a nil *slog.Logger as "don't log".
func LogSubscribe(logger *slog.Logger, listenerType reflect.Type, handlerCount int) {
	if logger == nil {
		return
	}
	logger.Debug("eventbus: subscribed", "listener_type", listenerType.String(), "handlers", handlerCount)
}

// LogUnsubscribe emits a debug-level record of an Unsubscribe call.
func LogUnsubscribe(logger *slog.Logger, listenerType reflect.Type) {
	if logger == nil {
		return
	}
	logger.Debug("eventbus: unsubscribed", "listener_type", listenerType.String())
}

// LogPublish emits a debug-level record of a Publish/PublishAsync call.
func LogPublish(logger *slog.Logger, mode PublishMode, messageTypes []reflect.Type, matched int) {
	if logger == nil {
		return
	}
	names := make([]string, len(messageTypes))
	for i, t := range messageTypes {
		if t == nil {
			names[i] = "<nil>"
			continue
		}
		names[i] = t.String()
	}
	logger.Debug("eventbus: published", "mode", mode.String(), "message_types", names, "matched", matched)
}

// LogHandlerFailure emits a warn-level record of a handler failure.
func LogHandlerFailure(logger *slog.Logger, report FailureReport) {
	if logger == nil {
		return
	}
	listenerType := "<nil>"
	if report.ListenerType != nil {
		listenerType = report.ListenerType.String()
	}
	logger.Warn("eventbus: handler failed",
		"listener_type", listenerType,
		"handler_id", report.HandlerID,
		"error", report.Err,
	)
}

// LogDeadMessage emits an info-level record of a message nobody matched.
func LogDeadMessage(logger *slog.Logger, messages []any) {
	if logger == nil {
		return
	}
	logger.Info("eventbus: dead message", "count", len(messages))
}

// DefaultErrorHandler logs every handler failure via slog.Default() and
// otherwise does nothing: it never retries, re-publishes, or panics.
type DefaultErrorHandler struct{}

func (DefaultErrorHandler) Handle(report FailureReport) {
	LogHandlerFailure(slog.Default(), report)
}

var _ ErrorHandler = DefaultErrorHandler{}

var defaultErrorHandlerNoticeOnce sync.Once

// installDefaultErrorHandlerNotice logs, at most once per process, that a
// Bus fell back to DefaultErrorHandler because its BusConfig supplied none.
func installDefaultErrorHandlerNotice() {
	defaultErrorHandlerNoticeOnce.Do(func() {
		slog.Default().Info("eventbus: no ErrorHandler configured, installing DefaultErrorHandler")
	})
}

// MetricsRecorder receives counters for bus activity. The OpenTelemetry
// implementation and the NoopMetrics default both satisfy it.
type MetricsRecorder interface {
	RecordSubscribe(listenerType reflect.Type)
	RecordUnsubscribe(listenerType reflect.Type)
	RecordPublish(messageTypes []reflect.Type)
	RecordHandlerFailure(listenerType reflect.Type, handlerID string)
	RecordDeadMessage()
}

// NoopMetrics discards everything. It is the default MetricsRecorder so a
// Bus never pays for instrumentation it didn't ask for.
type NoopMetrics struct{}

func (NoopMetrics) RecordSubscribe(reflect.Type)              {}
func (NoopMetrics) RecordUnsubscribe(reflect.Type)            {}
func (NoopMetrics) RecordPublish([]reflect.Type)              {}
func (NoopMetrics) RecordHandlerFailure(reflect.Type, string) {}
func (NoopMetrics) RecordDeadMessage()                        {}

var _ MetricsRecorder = NoopMetrics{}

// otelMetrics is a MetricsRecorder backed by an OpenTelemetry Meter.
type otelMetrics struct {
	subscribes       metric.Int64Counter
	unsubscribes     metric.Int64Counter
	publishes        metric.Int64Counter
	handlerFailures  metric.Int64Counter
	deadMessages     metric.Int64Counter
}

func typeAttr(t reflect.Type) attribute.KeyValue {
	if t == nil {
		return attribute.String("type", "<nil>")
	}
	return attribute.String("type", t.String())
}

// NewMetricsRecorder builds a MetricsRecorder from an OpenTelemetry Meter.
// If any instrument fails to construct, it falls back to NoopMetrics rather
// than returning an error: metrics are an observability nicety, not
// something that should keep a Bus from starting.
func NewMetricsRecorder(meter metric.Meter) MetricsRecorder {
	subs, err1 := meter.Int64Counter("eventbus.subscribes")
	unsubs, err2 := meter.Int64Counter("eventbus.unsubscribes")
	pubs, err3 := meter.Int64Counter("eventbus.publishes")
	fails, err4 := meter.Int64Counter("eventbus.handler_failures")
	dead, err5 := meter.Int64Counter("eventbus.dead_messages")

	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return NoopMetrics{}
	}

	return &otelMetrics{
		subscribes:      subs,
		unsubscribes:    unsubs,
		publishes:       pubs,
		handlerFailures: fails,
		deadMessages:    dead,
	}
}

func (m *otelMetrics) RecordSubscribe(listenerType reflect.Type) {
	m.subscribes.Add(context.Background(), 1, metric.WithAttributes(typeAttr(listenerType)))
}

func (m *otelMetrics) RecordUnsubscribe(listenerType reflect.Type) {
	m.unsubscribes.Add(context.Background(), 1, metric.WithAttributes(typeAttr(listenerType)))
}

func (m *otelMetrics) RecordPublish(messageTypes []reflect.Type) {
	m.publishes.Add(context.Background(), 1)
}

func (m *otelMetrics) RecordHandlerFailure(listenerType reflect.Type, handlerID string) {
	m.handlerFailures.Add(context.Background(), 1, metric.WithAttributes(typeAttr(listenerType)))
}

func (m *otelMetrics) RecordDeadMessage() {
	m.deadMessages.Add(context.Background(), 1)
}

var _ MetricsRecorder = (*otelMetrics)(nil)
