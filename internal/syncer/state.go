package syncer

// State is a step of the sync state machine.
type State int

const (
	StateChecking State = iota
	StateUpToDate
	StateDownloading
	StateInstalling
	StateDone
	StateFailed
	StateDegraded
)

var stateNames = [...]string{
	StateChecking:    "CHECKING",
	StateUpToDate:    "UP_TO_DATE",
	StateDownloading: "DOWNLOADING",
	StateInstalling:  "INSTALLING",
	StateDone:        "DONE",
	StateFailed:      "FAILED",
	StateDegraded:    "DEGRADED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateDegraded
}

// CanLoad reports whether installed content may be shown after s.
func (s State) CanLoad() bool {
	return s == StateDone || s == StateDegraded
}
