package host

import (
	"sync"
	"time"
)

// Snapshot is the latest state pushed by a sync cycle.
type Snapshot struct {
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Read      int64     `json:"downloaded_bytes,omitempty"`
	Total     int64     `json:"total_bytes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Feed keeps the most recent status and error messages. It implements
// syncer.Notifier and syncer.ProgressNotifier.
type Feed struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

// Status records a status message.
func (f *Feed) Status(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Status = message
	f.snap.UpdatedAt = f.now()
}

// Error records an error message.
func (f *Feed) Error(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Error = message
	f.snap.UpdatedAt = f.now()
}

// Progress records download progress.
func (f *Feed) Progress(read, total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Read = read
	f.snap.Total = total
	f.snap.UpdatedAt = f.now()
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}
