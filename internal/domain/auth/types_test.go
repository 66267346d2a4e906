package auth

import (
	"errors"
	"testing"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleMarketing, RoleUser} {
		if !r.Valid() {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	if Role("guest").Valid() {
		t.Fatalf("did not expect guest to be valid")
	}
}

func TestIdentity_DisplayName(t *testing.T) {
	tests := []struct {
		id   Identity
		want string
	}{
		{Identity{Email: "a@example.com", PseudoName: "ace", FirstName: "Ada"}, "ace"},
		{Identity{Email: "a@example.com", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{Identity{Email: "a@example.com", FirstName: "Ada"}, "Ada"},
		{Identity{Email: "a@example.com"}, "a@example.com"},
	}
	for _, tt := range tests {
		if got := tt.id.DisplayName(); got != tt.want {
			t.Fatalf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestSnapshot_Derivations(t *testing.T) {
	loading := Snapshot{State: StateChecking, IsLoading: true}
	if loading.IsAuthChecked() || loading.IsAuthenticated() {
		t.Fatalf("loading snapshot must be unchecked and unauthenticated: %+v", loading)
	}

	idle := Snapshot{State: StateIdle}
	if idle.IsAuthChecked() {
		t.Fatalf("idle snapshot without data or error must not be checked")
	}

	authed := Snapshot{State: StateAuthenticated, User: &Identity{ID: "u1"}}
	if !authed.IsAuthChecked() || !authed.IsAuthenticated() {
		t.Fatalf("authenticated snapshot must be checked: %+v", authed)
	}

	rejected := Snapshot{State: StateUnauthenticated, Err: errors.New("UNAUTHORIZED")}
	if !rejected.IsAuthChecked() || rejected.IsAuthenticated() {
		t.Fatalf("rejected snapshot must be checked and unauthenticated: %+v", rejected)
	}
}
