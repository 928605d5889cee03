package gateways

import (
	"context"
	"errors"
	"testing"
)

type recordingNotifier struct {
	err   error
	calls int
}

func (r *recordingNotifier) LowStock(ctx context.Context, sku string, available int) error {
	r.calls++
	return r.err
}

func TestNotifierFanout_DeliversToAllSinks(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	fanout := NewNotifierFanout(first, second)

	if err := fanout.LowStock(context.Background(), "WIDGET-1", 9); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both sinks called, got %d and %d", first.calls, second.calls)
	}
}

func TestNotifierFanout_FailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("kafka down")}
	healthy := &recordingNotifier{}
	fanout := NewNotifierFanout(failing, healthy)

	err := fanout.LowStock(context.Background(), "WIDGET-1", 9)
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if healthy.calls != 1 {
		t.Fatalf("expected healthy sink still called")
	}
}
