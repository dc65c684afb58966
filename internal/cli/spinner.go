package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Spinner shows a braille progress indicator on stderr until stopped or
// until its context is canceled. A nil *Spinner ignores all calls, so
// callers need not check whether one was started.
type Spinner struct {
	w       io.Writer
	message string
	width   int // widest message drawn, for clearing
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	frames  []string
	once    sync.Once
	started atomic.Bool
	mu      sync.Mutex

	// onStop runs once, on the first Stop.
	onStop func()
}

// newSpinnerWithContext creates a spinner that will stop when the context is cancelled.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       os.Stderr,
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if s == nil || !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := s.frames[i%len(s.frames)]
				s.width = max(s.width, len(s.message))
				fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), styleDim.Render(s.message))
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop stops the spinner and clears the line. It is safe to call repeatedly.
func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		if s.onStop != nil {
			s.onStop()
		}
	})
	if s.started.Load() {
		<-s.stopped
	}
	s.clearLine()
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", max(s.width, len(s.message))+4))
}
