// Package testing flips the process into test mode on import and provides
// environment fixtures for tests that load configuration.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const (
	// JWTSecret is a 32-byte signing secret usable in tests.
	JWTSecret = "test-jwt-secret-0123456789abcdef"
	// SetupToken is the setup token installed by Env.
	SetupToken = "test-setup-token"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
	})
}

func init() {
	ensureTestMode()
}

// Env installs the variables required by app.LoadConfig for the duration of t.
func Env(t stdtesting.TB) {
	t.Helper()
	ensureTestMode()
	t.Setenv("SESSION_SECRET", "test-session-secret")
	t.Setenv("CSRF_SECRET", "test-csrf-secret")
	t.Setenv("JWT_SECRET", JWTSecret)
	t.Setenv("SETUP_TOKEN", SetupToken)
}
