package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testSpinner(ctx context.Context, msg string) (*Spinner, *syncBuffer) {
	var out syncBuffer
	s := newSpinnerWithContext(ctx, msg)
	s.w = &out
	return s, &out
}

func TestSpinnerBasic(t *testing.T) {
	s, out := testSpinner(context.Background(), "Loading images...")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !strings.Contains(out.String(), "Loading images...") {
		t.Errorf("spinner output %q missing message", out.String())
	}
}

func TestSpinnerUpdate(t *testing.T) {
	s, out := testSpinner(context.Background(), "first")
	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Update("second")
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if !strings.Contains(out.String(), "second") {
		t.Errorf("spinner output %q missing updated message", out.String())
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s, _ := testSpinner(ctx, "Testing with context...")
	s.Start()
	cancel()

	select {
	case <-s.stopped:
	case <-time.After(time.Second):
		t.Fatal("spinner kept running after its context was canceled")
	}
	s.Stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s, _ := testSpinner(context.Background(), "Testing idempotent stop...")
	s.Start()

	// Stop multiple times should not panic
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s, _ := testSpinner(context.Background(), "never started")
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() without Start() blocked")
	}
}

func TestNilSpinner(t *testing.T) {
	var s *Spinner
	s.Start()
	s.Update("ignored")
	s.Stop()
}

func TestSpinnerOnStopRunsOnce(t *testing.T) {
	s, _ := testSpinner(context.Background(), "once")
	calls := 0
	s.onStop = func() { calls++ }
	s.Start()
	s.Stop()
	s.Stop()
	if calls != 1 {
		t.Errorf("onStop ran %d times, want 1", calls)
	}
}
