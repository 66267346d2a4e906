package flagstore

import "strings"

// Flag keys shared by every controller on the same backend.
const (
	KeyJustLoggedOut       = "justLoggedOut"
	KeyLastActiveTime      = "lastActiveTime"
	KeyLastAuthRedirect    = "lastAuthRedirect"
	KeyRedirectAfterLogin  = "redirectAfterLogin"
	KeyLoginAt             = "rcp_loginAt"
	KeyAuthLoopDetected    = "authLoopDetected"
	KeyAuthLoopDetectedAt  = "authLoopDetectedAt"
	KeyLastAuthLoopReset   = "lastAuthLoopReset"
	KeyLastPrivateRedirect = "lastPrivateRedirect"
	KeyAuth401Events       = "auth401Events"
	KeySessionCookies      = "session_cookies"
)

// AuthLoopKeys are cleared after every successful identity check and login.
var AuthLoopKeys = []string{
	KeyAuthLoopDetected,
	KeyAuthLoopDetectedAt,
	KeyLastAuthLoopReset,
	KeyLastAuthRedirect,
	KeyLastPrivateRedirect,
	KeyJustLoggedOut,
}

var sessionScopedFragments = []string{
	"auth",
	"user",
	"session",
	"token",
	KeyLastActiveTime,
	"rcp_",
	KeyLastAuthRedirect,
	KeyAuthLoopDetected,
	KeyLastAuthLoopReset,
}

// IsSessionScoped reports whether key is wiped on logout.
// Matching is by substring and case-sensitive, so "redirectAfterLogin" survives
// while "lastAuthRedirect" and "userPrefs" do not.
func IsSessionScoped(key string) bool {
	for _, fragment := range sessionScopedFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
