package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

type greeted struct{ Name string }

type greeter struct {
	mu  sync.Mutex
	got []string
}

func (g *greeter) Handlers() []HandlerSpec {
	return []HandlerSpec{Handles("OnGreeted")}
}

func (g *greeter) OnGreeted(e greeted) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, e.Name)
}

func TestBusPublishSyncDeliversToHandler(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	defer bus.Close()

	g := &greeter{}
	if err := bus.Subscribe(g); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), greeted{Name: "ada"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.got) != 1 || g.got[0] != "ada" {
		t.Fatalf("got %v, want [ada]", g.got)
	}
}

func TestBusPublishWithNoMessagesReturnsNullMessageError(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	defer bus.Close()

	err := bus.Publish(context.Background())
	if err == nil {
		t.Fatalf("expected *NullMessageError")
	}
	if _, ok := err.(*NullMessageError); !ok {
		t.Fatalf("expected *NullMessageError, got %T", err)
	}
}

type erroringListener struct{}

func (erroringListener) Handlers() []HandlerSpec {
	return []HandlerSpec{Handles("OnGreeted")}
}

func (erroringListener) OnGreeted(greeted) error {
	return errBoom
}

var errBoom = &HandlerInvocationFailure{}

type capturingErrorHandler struct {
	mu      sync.Mutex
	reports []FailureReport
}

func (h *capturingErrorHandler) Handle(r FailureReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, r)
}

func TestBusPublishSyncReportsHandlerFailureWithoutStoppingOtherHandlers(t *testing.T) {
	eh := &capturingErrorHandler{}
	cfg := DefaultBusConfig
	cfg.OnError = eh
	bus := NewBus(cfg)
	defer bus.Close()

	g := &greeter{}
	if err := bus.Subscribe(erroringListener{}); err != nil {
		t.Fatalf("Subscribe erroringListener: %v", err)
	}
	if err := bus.Subscribe(g); err != nil {
		t.Fatalf("Subscribe greeter: %v", err)
	}

	if err := bus.Publish(context.Background(), greeted{Name: "grace"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	g.mu.Lock()
	gotGreeting := len(g.got) == 1
	g.mu.Unlock()
	if !gotGreeting {
		t.Fatalf("erroring handler must not prevent delivery to other handlers")
	}

	eh.mu.Lock()
	defer eh.mu.Unlock()
	if len(eh.reports) != 1 {
		t.Fatalf("expected exactly one failure report, got %d", len(eh.reports))
	}
}

func TestBusPublishAsyncDeliversEventually(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	defer bus.Close()

	g := &greeter{}
	if err := bus.Subscribe(g); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.PublishAsync(context.Background(), greeted{Name: "linus"}); err != nil {
		t.Fatalf("PublishAsync: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		g.mu.Lock()
		n := len(g.got)
		g.mu.Unlock()
		if n == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("handler was not invoked within timeout")
		case <-time.After(time.Millisecond):
		}
	}
}

type deadMessageListener struct {
	mu  sync.Mutex
	got []DeadMessage
}

func (d *deadMessageListener) Handlers() []HandlerSpec {
	return []HandlerSpec{Handles("OnDead")}
}

func (d *deadMessageListener) OnDead(m DeadMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, m)
}

type unmatched struct{}

func TestBusPublishUnmatchedMessagePublishesDeadMessage(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	defer bus.Close()

	d := &deadMessageListener{}
	if err := bus.Subscribe(d); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), unmatched{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.got) != 1 {
		t.Fatalf("expected exactly one DeadMessage delivery, got %d", len(d.got))
	}
}

func TestBusCloseIsIdempotent(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	bus.Close()
	bus.Close()
}

func TestBusPublishRejectsNilElementEvenAmongRealMessages(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	defer bus.Close()

	err := bus.Publish(context.Background(), greeted{Name: "ada"}, nil)
	if err == nil {
		t.Fatalf("expected *NullMessageError")
	}
	if _, ok := err.(*NullMessageError); !ok {
		t.Fatalf("expected *NullMessageError, got %T", err)
	}
}

func TestBusPublishAsyncRejectsNilMessageViaErrorHandler(t *testing.T) {
	eh := &capturingErrorHandler{}
	cfg := DefaultBusConfig
	cfg.OnError = eh
	bus := NewBus(cfg)
	defer bus.Close()

	if err := bus.PublishAsync(context.Background(), nil); err != nil {
		t.Fatalf("PublishAsync with a nil message must not return an error synchronously, got %v", err)
	}

	eh.mu.Lock()
	defer eh.mu.Unlock()
	if len(eh.reports) != 1 {
		t.Fatalf("expected exactly one failure report, got %d", len(eh.reports))
	}
	if _, ok := eh.reports[0].Err.(*NullMessageError); !ok {
		t.Fatalf("expected *NullMessageError, got %T", eh.reports[0].Err)
	}
}

type auditEntry struct{ Note string }

type auditor struct {
	mu  sync.Mutex
	got [][]auditEntry
}

func (a *auditor) Handlers() []HandlerSpec {
	return []HandlerSpec{Handles("OnBatch")}
}

func (a *auditor) OnBatch(entries []auditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, entries)
}

func TestBusPublishScalarMessageMatchesVarArgHandler(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	defer bus.Close()

	a := &auditor{}
	if err := bus.Subscribe(a); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), auditEntry{Note: "placed"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.got) != 1 || len(a.got[0]) != 1 || a.got[0][0].Note != "placed" {
		t.Fatalf("a lone scalar Publish of an entry type must reach a []entry var-arg handler, got %v", a.got)
	}
}
