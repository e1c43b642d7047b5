package core

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/toejough/mokit/internal/config"
)

// TestReporter is the minimal interface mokit needs from test frameworks.
type TestReporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// StateOf returns the State for the given test, creating one if needed.
// Multiple calls with the same TestReporter return the same State.
//
// If the TestReporter supports Cleanup (like *testing.T), the State is torn down when the
// test completes: doubles are uninstalled and assertions validated, and the first failure
// is reported through Errorf (or Fatalf). When the test has already failed, doubles are
// uninstalled and the assertions are dropped unevaluated.
func StateOf(t TestReporter) *State {
	registryMu.Lock()
	defer registryMu.Unlock()

	if state, ok := registry[t]; ok {
		return state
	}

	state := NewState(t)
	registry[t] = state

	if cr, ok := t.(cleanupRegistrar); ok {
		var once sync.Once

		cr.Cleanup(func() {
			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()

			once.Do(func() { finish(t, state) })
		})
	}

	return state
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for test coordination
	registry = make(map[TestReporter]*State)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}

type errorReporter interface {
	Errorf(format string, args ...any)
}

type failureReporter interface {
	Failed() bool
}

type logReporter interface {
	Logf(format string, args ...any)
}

// reporterWriter forwards log lines to the test's log.
type reporterWriter struct {
	t logReporter
}

func (w reporterWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", strings.TrimRight(string(p), "\n"))

	return len(p), nil
}

func defaultLogger(t TestReporter) *slog.Logger {
	cfg := config.Default()

	if logger, ok := t.(logReporter); ok {
		return cfg.Logger(reporterWriter{t: logger})
	}

	return cfg.Logger(nil)
}

// finish runs at the end of a test.
func finish(t TestReporter, state *State) {
	if failed, ok := t.(failureReporter); ok && failed.Failed() {
		state.Reset()
		state.ResetState()

		return
	}

	err := state.Teardown()
	if err == nil {
		return
	}

	t.Helper()

	if reporter, ok := t.(errorReporter); ok {
		reporter.Errorf("%v", err)

		return
	}

	t.Fatalf("%v", err)
}
