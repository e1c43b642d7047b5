package mokit

import (
	"log/slog"

	"github.com/toejough/mokit/internal/core"
)

// StateOf returns the State for the given test, creating one if needed.
// Multiple calls with the same TestReporter return the same State.
// If the TestReporter supports Cleanup (like *testing.T), the State is torn down
// automatically when the test completes.
func StateOf(t TestReporter) *State {
	return core.StateOf(t)
}

// Teardown uninstalls every double of the test and validates the queued assertions,
// returning the first failure. It is for test frameworks without Cleanup; with *testing.T
// teardown runs automatically.
func Teardown(t TestReporter) error {
	return core.StateOf(t).Teardown()
}

// WithLogger sends a state's debug events to logger.
func WithLogger(logger *slog.Logger) StateOption {
	return core.WithLogger(logger)
}
