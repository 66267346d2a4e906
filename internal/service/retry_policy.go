package service

import (
	"time"

	apperrors "github.com/nreinfusion/onehub-session/internal/errors"
)

// NoLogin is passed as sinceLogin when no login time is recorded.
const NoLogin time.Duration = -1

// RetryPolicy decides whether a failed identity check is retried.
type RetryPolicy struct {
	// MaxRetries bounds retries after the first attempt.
	MaxRetries int
	// LoginGrace is the window after login during which rejections are retried.
	LoginGrace time.Duration
	// GraceStep is the linear backoff step inside the grace window.
	GraceStep time.Duration
	// Delay is the fixed delay outside the grace window.
	Delay time.Duration
}

// RetryDecision is the outcome of RetryPolicy.Decide.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// DefaultRetryPolicy returns the policy used by the session controller.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		LoginGrace: 2 * time.Second,
		GraceStep:  600 * time.Millisecond,
		Delay:      500 * time.Millisecond,
	}
}

// Decide returns whether to retry after retries earlier retries failed with an
// error of the given kind. sinceLogin is the time since the last recorded login,
// or NoLogin.
//
// Network errors are retried up to MaxRetries times. Unauthorized errors are
// retried the same way but only inside the login grace window. Every other kind
// is final.
func (p RetryPolicy) Decide(kind apperrors.ErrorCode, retries int, sinceLogin time.Duration) RetryDecision {
	inGrace := sinceLogin >= 0 && sinceLogin < p.LoginGrace

	switch kind {
	case apperrors.ErrCodeNetwork:
	case apperrors.ErrCodeUnauthorized:
		if !inGrace {
			return RetryDecision{}
		}
	default:
		return RetryDecision{}
	}
	if retries >= p.MaxRetries {
		return RetryDecision{}
	}

	if inGrace {
		return RetryDecision{Retry: true, Delay: time.Duration(retries+1) * p.GraceStep}
	}
	return RetryDecision{Retry: true, Delay: p.Delay}
}
