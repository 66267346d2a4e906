// Package mocks provides mock implementations of the session ports for tests.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the
// interfaces in internal/ports. The mocks are generated using go:generate
// directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	nav := mocks.NewMockNavigator(ctrl)
//	nav.EXPECT().CurrentPath().Return("/settings").AnyTimes()
//	nav.EXPECT().Navigate("/login").Times(1)
package mocks

// Generate mock for Navigator interface from internal/ports package.
// This creates MockNavigator with methods: CurrentPath, Navigate
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=navigator_mock.go github.com/nreinfusion/onehub-session/internal/ports Navigator

// Generate mock for Notifier interface from internal/ports package.
// This creates MockNotifier with methods: Notify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/nreinfusion/onehub-session/internal/ports Notifier

// Generate mock for IdentityAPI interface from internal/ports package.
// This creates MockIdentityAPI with methods: FetchIdentity, Logout, ClearCookies
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_api_mock.go github.com/nreinfusion/onehub-session/internal/ports IdentityAPI
