package auth

// State is the session controller's lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateChecking        State = "checking"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
	StateCircuitOpen     State = "circuit_open"
)

// Snapshot is the derived view the UI layer consumes. It is computed from the
// cached identity query and never stored.
type Snapshot struct {
	State     State
	User      *Identity
	IsLoading bool
	Err       error
}

// IsAuthenticated reports whether an identity is present.
func (s Snapshot) IsAuthenticated() bool { return s.User != nil }

// IsAuthChecked reports whether a definitive answer (positive or negative) is known.
func (s Snapshot) IsAuthChecked() bool {
	return !s.IsLoading && (s.User != nil || s.Err != nil)
}
