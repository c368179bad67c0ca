package eventbus

import (
	"sync"
	"testing"
)

func TestNormalizeThreadCountFloorsAtTwoAndRoundsUpToPowerOfTwo(t *testing.T) {
	cases := map[int]int{
		0:  2,
		1:  2,
		2:  2,
		3:  4,
		4:  4,
		5:  8,
		9:  16,
		16: 16,
	}
	for in, want := range cases {
		if got := normalizeThreadCount(in); got != want {
			t.Errorf("normalizeThreadCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(2, 4, nil)
	d.Close()
	d.Close()
}

func TestDispatcherSubmitAfterCloseReportsShutdownInsteadOfPanicking(t *testing.T) {
	var mu sync.Mutex
	var reports []FailureReport

	d := NewDispatcher(2, 4, func(r FailureReport) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, r)
	})
	d.Close()

	desc := &HandlerDescriptor{HandlerID: "OnX"}
	sub := NewSubscription(desc)

	d.Submit(sub, subscriber{}, nil, "payload")

	mu.Lock()
	defer mu.Unlock()
	if len(reports) != 1 {
		t.Fatalf("expected one failure report after Submit-after-Close, got %d", len(reports))
	}
	if _, ok := reports[0].Err.(*ShutdownInProgress); !ok {
		t.Fatalf("expected *ShutdownInProgress, got %T", reports[0].Err)
	}
}
