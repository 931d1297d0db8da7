package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const defaultSpinnerInterval = 120 * time.Millisecond

// startupSpinner is the plain-text display used when output is not an
// interactive terminal or --plain is set. Downloads with a known size get a
// byte progress bar.
type startupSpinner struct {
	writer        io.Writer
	delay         time.Duration
	frameInterval time.Duration
	frames        []rune

	events chan string
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	mu       sync.Mutex
	frameIdx int
	bar      *progressbar.ProgressBar
	barRead  int64
	stopped  bool
}

func newStartupSpinner(w io.Writer, delay time.Duration) *startupSpinner {
	return newCustomStartupSpinner(w, delay, defaultSpinnerInterval)
}

func newCustomStartupSpinner(w io.Writer, delay, frameInterval time.Duration) *startupSpinner {
	if w == nil {
		w = io.Discard
	}
	sp := &startupSpinner{
		writer:        w,
		delay:         delay,
		frameInterval: frameInterval,
		frames:        []rune{'|', '/', '-', '\\'},
		events:        make(chan string, 8),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go sp.loop()
	return sp
}

func (s *startupSpinner) Status(message string) {
	if s == nil {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.events <- message:
	default:
	}
}

// Error closes any open progress bar. The caller prints the failure once
// the cycle has finished.
func (s *startupSpinner) Error(string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.finishBarLocked()
	}
}

// Progress advances the download bar, creating it on first use.
func (s *startupSpinner) Progress(read, total int64) {
	if s == nil || total <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.bar == nil {
		_, _ = fmt.Fprint(s.writer, "\r\033[2K")
		s.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(s.writer),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		s.barRead = 0
	}
	if delta := read - s.barRead; delta > 0 {
		_ = s.bar.Add(int(delta))
		s.barRead = read
	}
}

func (s *startupSpinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.mu.Lock()
		s.finishBarLocked()
		s.stopped = true
		s.mu.Unlock()
	})
}

func (s *startupSpinner) loop() {
	defer close(s.doneCh)

	var delayCh <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		delayCh = timer.C
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	var current string
	hasStatus := false
	visible := s.delay == 0

	for {
		select {
		case <-s.stopCh:
			if visible {
				s.clearLine()
			}
			return
		case msg := <-s.events:
			current = msg
			hasStatus = true
			s.mu.Lock()
			s.finishBarLocked()
			s.mu.Unlock()
			if visible {
				s.render(current)
			}
		case <-ticker.C:
			if visible && hasStatus {
				s.render(current)
			}
		case <-delayCh:
			delayCh = nil
			if hasStatus {
				visible = true
				s.render(current)
			}
		}
	}
}

func (s *startupSpinner) render(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		return
	}
	frame := s.frames[s.frameIdx%len(s.frames)]
	s.frameIdx++
	_, _ = fmt.Fprintf(s.writer, "\r\033[2K%c %s", frame, strings.TrimSpace(message))
}

func (s *startupSpinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		return
	}
	_, _ = fmt.Fprint(s.writer, "\r\033[2K")
}

func (s *startupSpinner) finishBarLocked() {
	if s.bar == nil {
		return
	}
	_ = s.bar.Finish()
	_, _ = fmt.Fprintln(s.writer)
	s.bar = nil
	s.barRead = 0
}
