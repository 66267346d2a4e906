package metrics

import (
	"time"

	obserrors "github.com/nreinfusion/onehub-session/internal/observability/errors"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// IdentityCheckMetric captures one identity check for metric emission.
type IdentityCheckMetric struct {
	Result   string
	Reason   string
	Duration time.Duration
	Err      error
}

// EmitIdentityCheck emits session.identity_check (count) and, for checks that
// reached the network, session.identity_check.duration.
func EmitIdentityCheck(sink Sink, in IdentityCheckMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("session.identity_check", 1, tags)
	if in.Duration > 0 {
		sink.Timing("session.identity_check.duration", in.Duration, CloneTags(tags))
	}
}

// EmitCircuitOpen records that a check was suppressed or that the breaker tripped.
func EmitCircuitOpen(sink Sink, reason string) {
	if sink == nil {
		return
	}
	sink.Count("session.circuit_open", 1, map[string]string{"reason": reason})
}

// EmitRedirect records a navigation to the login page.
func EmitRedirect(sink Sink, remembered bool) {
	if sink == nil {
		return
	}
	r := "false"
	if remembered {
		r = "true"
	}
	sink.Count("session.redirect", 1, map[string]string{"remembered": r})
}

// EmitLogout records a logout and the outcome of the server call.
func EmitLogout(sink Sink, trigger, serverResult string) {
	if sink == nil {
		return
	}
	sink.Count("session.logout", 1, map[string]string{"trigger": trigger, "server": serverResult})
}

// EmitIdleTimeout records an inactivity logout.
func EmitIdleTimeout(sink Sink, inactive time.Duration) {
	if sink == nil {
		return
	}
	sink.Count("session.idle_timeout", 1, nil)
	sink.Timing("session.idle_timeout.inactive", inactive, nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
