package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner animates a status line on w while a blocking call runs. When
// animate is false (no terminal) it draws nothing and only the final
// success or error line is printed.
type spinner struct {
	w       io.Writer
	message string
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	mu      sync.Mutex
}

// startSpinner starts a spinner that also stops when ctx is cancelled.
func startSpinner(ctx context.Context, w io.Writer, animate bool, message string) *spinner {
	sctx, cancel := context.WithCancel(ctx)
	s := &spinner{
		w:       w,
		message: message,
		parent:  ctx,
		ctx:     sctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	if !animate {
		close(s.stopped)
		return s
	}
	go s.run()
	return s
}

func (s *spinner) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(spinnerFrames[i%len(spinnerFrames)]), StyleDim.Render(s.message))
		s.mu.Unlock()
		select {
		case <-s.ctx.Done():
			s.clearLine()
			return
		case <-ticker.C:
		}
	}
}

func (s *spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// stop ends the animation. It is safe to call more than once.
func (s *spinner) stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.stopped
	})
}

// cancelled reports whether the caller's context ended, as opposed to
// the spinner being stopped normally.
func (s *spinner) cancelled() bool {
	return s.parent.Err() != nil
}

// succeed stops the spinner and prints a success line.
func (s *spinner) succeed(format string, args ...any) {
	s.stop()
	printSuccess(format, args...)
}

// fail stops the spinner, marks the step failed unless the run was
// interrupted, and returns err for the caller to report.
func (s *spinner) fail(err error) error {
	s.stop()
	if !s.cancelled() {
		printError("%s failed", s.message)
	}
	return err
}
