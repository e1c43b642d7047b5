package core

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/akedrou/textdiff"
)

// Assert configures one double and queues assertions about how it was used. Assertions are
// evaluated when the owning State validates, newest first. Obtain one from Mock.Mock or
// Mock.Spy; the zero value is not usable.
type Assert struct {
	holder *Mock
	double *Double

	mu     sync.Mutex
	checks []func() error
}

// AllAwaitsWith asserts every await had exactly the given arguments.
func (a *Assert) AllAwaitsWith(args ...any) *Assert {
	return a.awaitCheck("AllAwaitsWith", func() error { return a.allWith(awaitHistory, NewCall(args...)) })
}

// AllCallsWith asserts every call had exactly the given arguments.
func (a *Assert) AllCallsWith(args ...any) *Assert {
	return a.check(func() error { return a.allWith(callHistory, NewCall(args...)) })
}

// AnyAwaitWith asserts some await had exactly the given arguments.
func (a *Assert) AnyAwaitWith(args ...any) *Assert {
	return a.awaitCheck("AnyAwaitWith", func() error { return a.anyWith(awaitHistory, NewCall(args...)) })
}

// AnyCallWith asserts some call had exactly the given arguments.
func (a *Assert) AnyCallWith(args ...any) *Assert {
	return a.check(func() error { return a.anyWith(callHistory, NewCall(args...)) })
}

// AwaitCount asserts the double was awaited exactly count times.
func (a *Assert) AwaitCount(count int) *Assert {
	return a.awaitCheck("AwaitCount", func() error { return a.count(awaitHistory, count) })
}

// AwaitCountAtLeast asserts the double was awaited at least count times.
func (a *Assert) AwaitCountAtLeast(count int) *Assert {
	return a.awaitCheck("AwaitCountAtLeast", func() error { return a.bound(awaitHistory, "at least", count) })
}

// AwaitCountAtMost asserts the double was awaited at most count times.
func (a *Assert) AwaitCountAtMost(count int) *Assert {
	return a.awaitCheck("AwaitCountAtMost", func() error { return a.bound(awaitHistory, "at most", count) })
}

// Awaited asserts the double was awaited at least once.
func (a *Assert) Awaited() *Assert {
	return a.awaitCheck("Awaited", func() error { return a.happened(awaitHistory) })
}

// AwaitedOnce asserts the double was awaited exactly once.
func (a *Assert) AwaitedOnce() *Assert {
	return a.awaitCheck("AwaitedOnce", func() error { return a.count(awaitHistory, 1) })
}

// AwaitedOnceWith asserts the double was awaited exactly once, with the given arguments.
func (a *Assert) AwaitedOnceWith(args ...any) *Assert {
	return a.awaitCheck("AwaitedOnceWith", func() error { return a.onceWith(awaitHistory, NewCall(args...)) })
}

// AwaitedTimes asserts the double was awaited exactly count times.
func (a *Assert) AwaitedTimes(count int) *Assert {
	return a.awaitCheck("AwaitedTimes", func() error { return a.count(awaitHistory, count) })
}

// AwaitedTwice asserts the double was awaited exactly twice.
func (a *Assert) AwaitedTwice() *Assert {
	return a.awaitCheck("AwaitedTwice", func() error { return a.count(awaitHistory, 2) }) //nolint:mnd // twice
}

// AwaitedWith asserts the last await had exactly the given arguments.
func (a *Assert) AwaitedWith(args ...any) *Assert {
	return a.awaitCheck("AwaitedWith", func() error { return a.lastWith(awaitHistory, NewCall(args...)) })
}

// CallCount asserts the double was called exactly count times.
func (a *Assert) CallCount(count int) *Assert {
	return a.check(func() error { return a.count(callHistory, count) })
}

// CallCountAtLeast asserts the double was called at least count times.
func (a *Assert) CallCountAtLeast(count int) *Assert {
	return a.check(func() error { return a.bound(callHistory, "at least", count) })
}

// CallCountAtMost asserts the double was called at most count times.
func (a *Assert) CallCountAtMost(count int) *Assert {
	return a.check(func() error { return a.bound(callHistory, "at most", count) })
}

// Called asserts the double was called at least once.
func (a *Assert) Called() *Assert {
	return a.check(func() error { return a.happened(callHistory) })
}

// CalledOnce asserts the double was called exactly once.
func (a *Assert) CalledOnce() *Assert {
	return a.check(func() error { return a.count(callHistory, 1) })
}

// CalledOnceWith asserts the double was called exactly once, with the given arguments.
func (a *Assert) CalledOnceWith(args ...any) *Assert {
	return a.check(func() error { return a.onceWith(callHistory, NewCall(args...)) })
}

// CalledTimes asserts the double was called exactly count times.
func (a *Assert) CalledTimes(count int) *Assert {
	return a.check(func() error { return a.count(callHistory, count) })
}

// CalledTwice asserts the double was called exactly twice.
func (a *Assert) CalledTwice() *Assert {
	return a.check(func() error { return a.count(callHistory, 2) }) //nolint:mnd // twice
}

// CalledWith asserts the last call had exactly the given arguments.
func (a *Assert) CalledWith(args ...any) *Assert {
	return a.check(func() error { return a.lastWith(callHistory, NewCall(args...)) })
}

// HasAwaits asserts the given awaits appear consecutively in the await history.
func (a *Assert) HasAwaits(awaits ...Call) *Assert {
	return a.awaitCheck("HasAwaits", func() error { return a.hasSequence(awaitHistory, awaits) })
}

// HasAwaitsAnyOrder asserts each given await appears in the await history.
func (a *Assert) HasAwaitsAnyOrder(awaits ...Call) *Assert {
	return a.awaitCheck("HasAwaitsAnyOrder", func() error { return a.hasAll(awaitHistory, awaits) })
}

// HasCalls asserts the given calls appear consecutively in the call history.
func (a *Assert) HasCalls(calls ...Call) *Assert {
	return a.check(func() error { return a.hasSequence(callHistory, calls) })
}

// HasCallsAnyOrder asserts each given call appears in the call history.
func (a *Assert) HasCallsAnyOrder(calls ...Call) *Assert {
	return a.check(func() error { return a.hasAll(callHistory, calls) })
}

// MatchArgsAllAwaits asserts every await includes the given arguments.
func (a *Assert) MatchArgsAllAwaits(args ...any) *Assert {
	return a.awaitCheck("MatchArgsAllAwaits", func() error { return a.allInclude(awaitHistory, NewCall(args...)) })
}

// MatchArgsAllCalls asserts every call includes the given arguments: the positional arguments
// as a prefix and the keyword arguments as a subset.
func (a *Assert) MatchArgsAllCalls(args ...any) *Assert {
	return a.check(func() error { return a.allInclude(callHistory, NewCall(args...)) })
}

// MatchArgsAnyAwait asserts some await includes the given arguments.
func (a *Assert) MatchArgsAnyAwait(args ...any) *Assert {
	return a.awaitCheck("MatchArgsAnyAwait", func() error { return a.anyInclude(awaitHistory, NewCall(args...)) })
}

// MatchArgsAnyCall asserts some call includes the given arguments.
func (a *Assert) MatchArgsAnyCall(args ...any) *Assert {
	return a.check(func() error { return a.anyInclude(callHistory, NewCall(args...)) })
}

// MatchArgsLastAwait asserts the last await includes the given arguments.
func (a *Assert) MatchArgsLastAwait(args ...any) *Assert {
	return a.awaitCheck("MatchArgsLastAwait", func() error { return a.lastIncludes(awaitHistory, NewCall(args...)) })
}

// MatchArgsLastCall asserts the last call includes the given arguments.
func (a *Assert) MatchArgsLastCall(args ...any) *Assert {
	return a.check(func() error { return a.lastIncludes(callHistory, NewCall(args...)) })
}

// NotAwaited asserts the double was never awaited.
func (a *Assert) NotAwaited() *Assert {
	return a.awaitCheck("NotAwaited", func() error { return a.never(awaitHistory) })
}

// NotCalled asserts the double was never called.
func (a *Assert) NotCalled() *Assert {
	return a.check(func() error { return a.never(callHistory) })
}

// ReturnValue sets the values the double returns. For a value double it sets the value.
func (a *Assert) ReturnValue(values ...any) *Assert {
	a.mustInit()

	if err := a.double.ConfigureReturn(values...); err != nil {
		a.holder.fatal(err)
	}

	return a
}

// Self returns the Mock that owns this double, to continue with a sibling attribute.
func (a *Assert) Self() *Mock {
	a.mustInit()

	return a.holder
}

// SideEffect sets an error, function, or []any sequence to drive each call.
func (a *Assert) SideEffect(effect any) *Assert {
	a.mustInit()

	if err := a.double.ConfigureSideEffect(effect); err != nil {
		a.holder.fatal(err)
	}

	return a
}

// Underlying returns the double itself.
func (a *Assert) Underlying() *Double {
	a.mustInit()

	return a.double
}

func (a *Assert) allInclude(h history, expected Call) error {
	entries := h.entries(a.double)
	for _, entry := range entries {
		if !entry.Contains(expected) {
			return a.failf("All %s do not contain the given arguments:\nArguments: %s\n%s: %s.",
				h.plural, expected, h.Plural, formatCalls(entries))
		}
	}

	return nil
}

func (a *Assert) allWith(h history, expected Call) error {
	entries := h.entries(a.double)

	matched := len(entries) > 0
	for _, entry := range entries {
		if !entry.Matches(expected) {
			matched = false

			break
		}
	}

	if matched {
		return nil
	}

	return a.failf("All %s have not been made with the given arguments:\nArguments: %s\n%s: %s.",
		h.plural, expected, h.Plural, formatCalls(entries))
}

func (a *Assert) anyInclude(h history, expected Call) error {
	entries := h.entries(a.double)
	for _, entry := range entries {
		if entry.Contains(expected) {
			return nil
		}
	}

	return a.failf("No %s includes arguments:\nArguments: %s\n%s: %s.",
		h.noun, expected, h.Plural, formatCalls(entries))
}

func (a *Assert) anyWith(h history, expected Call) error {
	for _, entry := range h.entries(a.double) {
		if entry.Matches(expected) {
			return nil
		}
	}

	return a.failf("%s %s not found", expected.format(a.double.name), h.noun)
}

// awaitCheck queues check after confirming the double is awaitable.
func (a *Assert) awaitCheck(method string, check func() error) *Assert {
	a.mustInit()

	if !a.double.async {
		a.holder.fatal(fmt.Errorf(
			"%w: '%s' does not have '%s' method. You can use the ForceAsync option to force the double to be awaitable",
			ErrNotAsync, a.double.name, method))

		return a
	}

	return a.check(check)
}

func (a *Assert) bound(h history, relation string, limit int) error {
	entries := h.entries(a.double)

	ok := len(entries) >= limit
	if relation == "at most" {
		ok = len(entries) <= limit
	}

	if ok {
		return nil
	}

	return a.failf("Expected '%s' to have been %s %s %s. %s %s.%s",
		a.double.name, h.verb, relation, formatCount(limit), h.Verb, formatCount(len(entries)), h.suffix(entries))
}

func (a *Assert) check(check func() error) *Assert {
	a.mustInit()

	a.mu.Lock()
	a.checks = append(a.checks, check)
	a.mu.Unlock()

	return a
}

func (a *Assert) count(h history, expected int) error {
	entries := h.entries(a.double)
	if len(entries) == expected {
		return nil
	}

	return a.failf("Expected '%s' to have been %s %s. %s %s.%s",
		a.double.name, h.verb, formatCount(expected), h.Verb, formatCount(len(entries)), h.suffix(entries))
}

func (a *Assert) failf(format string, args ...any) *AssertionError {
	return &AssertionError{Name: a.double.name, Message: fmt.Sprintf(format, args...)}
}

func (a *Assert) happened(h history) error {
	if len(h.entries(a.double)) > 0 {
		return nil
	}

	return a.failf("Expected '%s' to have been %s.", a.double.name, h.verb)
}

func (a *Assert) hasAll(h history, expected []Call) error {
	entries := h.entries(a.double)
	remaining := append([]Call(nil), entries...)

	var missing []Call

	for _, want := range expected {
		found := -1

		for i, entry := range remaining {
			if entry.Matches(want) {
				found = i

				break
			}
		}

		if found < 0 {
			missing = append(missing, want)

			continue
		}

		remaining = append(remaining[:found], remaining[found+1:]...)
	}

	if len(missing) == 0 {
		return nil
	}

	return a.failf("%s not all found in any order.\nMissing: %s\n  Actual: %s",
		h.Plural, formatCalls(missing), formatCalls(entries))
}

func (a *Assert) hasSequence(h history, expected []Call) error {
	entries := h.entries(a.double)

	for start := 0; start+len(expected) <= len(entries); start++ {
		matched := true

		for i, want := range expected {
			if !entries[start+i].Matches(want) {
				matched = false

				break
			}
		}

		if matched {
			return nil
		}
	}

	failure := a.failf("%s not found.\nExpected: %s\n  Actual: %s", h.Plural, formatCalls(expected), formatCalls(entries))
	failure.Diff = textdiff.Unified("expected", "actual", callLines(expected), callLines(entries))

	return failure
}

func (a *Assert) lastIncludes(h history, expected Call) error {
	entries := h.entries(a.double)
	if len(entries) > 0 && entries[len(entries)-1].Contains(expected) {
		return nil
	}

	return a.failf("Last %s does not include arguments:\nArguments: %s\n%s: %s.",
		h.noun, expected, h.Plural, formatCalls(entries))
}

func (a *Assert) lastWith(h history, expected Call) error {
	entries := h.entries(a.double)
	if len(entries) == 0 {
		return a.failf("expected %s not found.\nExpected: %s\n  Actual: not %s",
			h.noun, expected.format(a.double.name), h.verb)
	}

	last := entries[len(entries)-1]
	if last.Matches(expected) {
		return nil
	}

	return a.failf("expected %s not found.\nExpected: %s\n  Actual: %s",
		h.noun, expected.format(a.double.name), last.format(a.double.name))
}

func (a *Assert) mustInit() {
	if a == nil || a.double == nil || a.holder == nil {
		panic(fmt.Errorf("%w: Assert must be obtained from Mock.Mock or Mock.Spy", ErrInitializationMisuse))
	}
}

func (a *Assert) never(h history) error {
	entries := h.entries(a.double)
	if len(entries) == 0 {
		return nil
	}

	return a.failf("Expected '%s' to not have been %s. %s %s times.%s",
		a.double.name, h.verb, h.Verb, strconv.Itoa(len(entries)), h.suffix(entries))
}

func (a *Assert) onceWith(h history, expected Call) error {
	entries := h.entries(a.double)
	if len(entries) != 1 {
		return a.failf("Expected '%s' to be %s once. %s %s times.%s",
			a.double.name, h.verb, h.Verb, strconv.Itoa(len(entries)), h.suffix(entries))
	}

	return a.lastWith(h, expected)
}

// validate evaluates the queued checks newest first and returns the first failure.
func (a *Assert) validate() error {
	a.mu.Lock()
	checks := a.checks
	a.checks = nil
	a.mu.Unlock()

	for i := len(checks) - 1; i >= 0; i-- {
		if err := checks[i](); err != nil {
			return err
		}
	}

	return nil
}

// history selects calls or awaits, with the words failure messages use for them.
type history struct {
	verb    string
	Verb    string
	noun    string
	plural  string
	Plural  string
	entries func(*Double) []Call
}

func (h history) suffix(entries []Call) string {
	if len(entries) == 0 {
		return ""
	}

	return fmt.Sprintf("\n%s: %s.", h.Plural, formatCalls(entries))
}

// unexported variables.
var (
	//nolint:gochecknoglobals // immutable message vocabulary
	awaitHistory = history{
		verb: "awaited", Verb: "Awaited", noun: "await", plural: "awaits", Plural: "Awaits",
		entries: (*Double).Awaits,
	}
	//nolint:gochecknoglobals // immutable message vocabulary
	callHistory = history{
		verb: "called", Verb: "Called", noun: "call", plural: "calls", Plural: "Calls",
		entries: (*Double).Calls,
	}
)

func callLines(calls []Call) string {
	var builder strings.Builder
	for _, call := range calls {
		builder.WriteString(call.String())
		builder.WriteString("\n")
	}

	return builder.String()
}
