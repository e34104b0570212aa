package observe

import (
	"errors"
	"testing"
	"time"
)

func TestTimeSpanElapsed(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	span := NewTimeSpan(start)

	if !span.Open() {
		t.Fatal("expected freshly started span to be open")
	}
	if span.Elapsed() != 0 {
		t.Errorf("open span should contribute nothing, got %v", span.Elapsed())
	}

	if err := span.Complete(start.Add(1250 * time.Millisecond)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := span.Elapsed(); got != 1250*time.Millisecond {
		t.Errorf("Elapsed = %v, want 1.25s", got)
	}
	if got := span.ElapsedMillis(); got != 1250 {
		t.Errorf("ElapsedMillis = %d, want 1250", got)
	}
}

func TestTimeSpanInvalidState(t *testing.T) {
	var span TimeSpan
	if err := span.Complete(time.Now()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("stop before start: expected ErrInvalidState, got %v", err)
	}

	now := time.Now()
	span.Start(now)
	if err := span.Complete(now.Add(time.Second)); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if err := span.Complete(now.Add(2 * time.Second)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double stop: expected ErrInvalidState, got %v", err)
	}
	if span.Elapsed() != time.Second {
		t.Errorf("second stop must not change elapsed, got %v", span.Elapsed())
	}
}

func TestTimeSpanClampsEarlyStop(t *testing.T) {
	now := time.Now()
	span := NewTimeSpan(now)
	if err := span.Complete(now.Add(-time.Second)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if span.CompletedAt.Before(span.StartedAt) {
		t.Error("stop must never precede start")
	}
	if span.Elapsed() != 0 {
		t.Errorf("expected zero elapsed, got %v", span.Elapsed())
	}
}

func TestTimeSpanRestart(t *testing.T) {
	now := time.Now()
	span := NewTimeSpan(now)
	_ = span.Complete(now.Add(time.Second))

	span.Start(now.Add(5 * time.Second))
	if !span.Open() {
		t.Fatal("restarted span should be open")
	}
	_ = span.Complete(now.Add(7 * time.Second))
	if span.Elapsed() != 2*time.Second {
		t.Errorf("Elapsed = %v, want 2s", span.Elapsed())
	}
}
