package syncer

import (
	"time"

	"github.com/google/uuid"

	"github.com/agent0ai/a0-launcher/internal/meta"
	"github.com/agent0ai/a0-launcher/internal/release"
)

// Session holds the state of one sync cycle.
type Session struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	// Release is nil until the feed answers.
	Release *release.Descriptor
	// Local is the record read at the start of the cycle.
	Local    meta.LocalMeta
	HasLocal bool

	trail []State
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		StartedAt: now,
	}
}

func (s *Session) enter(state State) {
	s.trail = append(s.trail, state)
}

// State returns the current state.
func (s *Session) State() State {
	if len(s.trail) == 0 {
		return StateChecking
	}
	return s.trail[len(s.trail)-1]
}

// Trail returns every state the cycle passed through, in order.
func (s *Session) Trail() []State {
	return append([]State(nil), s.trail...)
}

// Duration is zero until the cycle finishes.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Result is the outcome of Run.
type Result struct {
	State State
	// Err is the classified cause for DEGRADED and FAILED cycles.
	Err error
	// Version is the content version available after the cycle.
	Version string
	Session *Session
}

// CanLoad reports whether the host may load installed content.
func (r Result) CanLoad() bool {
	return r.State.CanLoad()
}
