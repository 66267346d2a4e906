package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  Unauthorized(401),
			want: "UNAUTHORIZED",
		},
		{
			name: "error with cause",
			err:  Network(errors.New("connection refused")),
			want: "NETWORK_ERROR: connection refused",
		},
		{
			name: "generic http status",
			err:  HTTPStatus(502),
			want: "HTTP_502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Network(cause)

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestAppError_IsMatchesCodeSentinel(t *testing.T) {
	wrapped := fmt.Errorf("identity check: %w", Unauthorized(403))

	assert.ErrorIs(t, wrapped, &AppError{Code: ErrCodeUnauthorized})
	assert.NotErrorIs(t, wrapped, &AppError{Code: ErrCodeNetwork})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: ErrCodeInternal},
		{name: "unauthorized", err: Unauthorized(401), want: ErrCodeUnauthorized},
		{name: "wrapped not found", err: fmt.Errorf("fetch: %w", UserNotFound()), want: ErrCodeUserNotFound},
		{name: "circuit open", err: CircuitOpen("logout in progress"), want: ErrCodeCircuitOpen},
		{name: "validation", err: Validationf("bad %s", "input"), want: ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsUnauthorized(Unauthorized(302)))
	assert.True(t, IsUserNotFound(UserNotFound()))
	assert.True(t, IsNetwork(Network(nil)))
	assert.True(t, IsHTTP(HTTPStatus(500)))
	assert.True(t, IsCircuitOpen(CircuitOpen("circuit open")))
	assert.True(t, IsValidation(Validation("x")))
	assert.False(t, IsNetwork(Unauthorized(401)))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 302, StatusOf(Unauthorized(302)))
	assert.Equal(t, 404, StatusOf(fmt.Errorf("x: %w", UserNotFound())))
	assert.Equal(t, 0, StatusOf(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "noop"))

	cause := errors.New("disk full")
	err := Wrapf(cause, ErrCodeInternal, "write %s", "flags.json")
	assert.Equal(t, "write flags.json: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}
