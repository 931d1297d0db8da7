package syncer

import (
	"sync"

	"go.uber.org/zap"
)

// User-facing status and error wording.
const (
	MsgChecking       = "Checking for updates..."
	MsgDownloading    = "Downloading latest content..."
	MsgInstalling     = "Extracting content..."
	MsgUpdateComplete = "Update complete!"
	MsgUpToDate       = "Content is up to date"

	MsgCachedOffline   = "Using cached content (offline mode)"
	MsgCachedDownload  = "Using cached content (download failed)"
	MsgCachedInstall   = "Using cached content (install failed)"
	MsgCachedNoBundle  = "Using cached content (release has no content bundle)"
	MsgNoContent       = "Unable to fetch updates and no local content available. Please check your internet connection."
	MsgBundleMissing   = "Release does not contain required content bundle."
	MsgContentMissing  = "No content available. Please ensure a release exists with content.json."
	msgDownloadFailedF = "Download failed: %v"
	msgInstallFailedF  = "Install failed: %v"
)

// Notifier receives one-way messages for the display host.
type Notifier interface {
	Status(message string)
	Error(message string)
}

// ProgressNotifier is implemented by notifiers that can show download progress.
// total is -1 when the size is not known.
type ProgressNotifier interface {
	Progress(read, total int64)
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Status(string) {}
func (NopNotifier) Error(string)  {}

type multiNotifier []Notifier

// Notifiers fans messages out to every non-nil notifier in order.
func Notifiers(ns ...Notifier) Notifier {
	out := make(multiNotifier, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multiNotifier) Status(message string) {
	for _, n := range m {
		n.Status(message)
	}
}

func (m multiNotifier) Error(message string) {
	for _, n := range m {
		n.Error(message)
	}
}

func (m multiNotifier) Progress(read, total int64) {
	for _, n := range m {
		if p, ok := n.(ProgressNotifier); ok {
			p.Progress(read, total)
		}
	}
}

// guardedNotifier keeps a panicking display from escaping a cycle. A
// recovered panic is logged and the message is dropped.
type guardedNotifier struct {
	next   Notifier
	logger *zap.SugaredLogger
}

func (g guardedNotifier) Status(message string) {
	defer g.recover("status", message)
	g.next.Status(message)
}

func (g guardedNotifier) Error(message string) {
	defer g.recover("error", message)
	g.next.Error(message)
}

func (g guardedNotifier) Progress(read, total int64) {
	p, ok := g.next.(ProgressNotifier)
	if !ok {
		return
	}
	defer g.recover("progress", "")
	p.Progress(read, total)
}

func (g guardedNotifier) recover(kind, message string) {
	if r := recover(); r != nil {
		g.logger.Errorw("notifier panicked", "kind", kind, "message", message, "panic", r)
	}
}

// EventKind tells a status message from an error message.
type EventKind string

const (
	EventStatus EventKind = "status"
	EventError  EventKind = "error"
)

// Event is one message captured by a RecordingNotifier.
type Event struct {
	Kind    EventKind
	Message string
}

// RecordingNotifier keeps every message it receives. Safe for concurrent use.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []Event
	last   int64
}

func (r *RecordingNotifier) Status(message string) { r.add(EventStatus, message) }
func (r *RecordingNotifier) Error(message string)  { r.add(EventError, message) }

// Progress stores the most recent byte count.
func (r *RecordingNotifier) Progress(read, _ int64) {
	r.mu.Lock()
	r.last = read
	r.mu.Unlock()
}

func (r *RecordingNotifier) add(kind EventKind, message string) {
	r.mu.Lock()
	r.events = append(r.events, Event{Kind: kind, Message: message})
	r.mu.Unlock()
}

// Events returns a copy of the captured messages.
func (r *RecordingNotifier) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the captured messages of one kind.
func (r *RecordingNotifier) Messages(kind EventKind) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e.Message)
		}
	}
	return out
}

// LastProgress returns the last byte count passed to Progress.
func (r *RecordingNotifier) LastProgress() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
