package core

import (
	"errors"
	"strings"
)

// Sentinel errors. Every error returned by this package wraps one of these, so callers can
// classify failures with errors.Is.
var (
	// ErrAssertion marks a deferred assertion failure. *AssertionError matches it.
	ErrAssertion = errors.New("assertion failed")
	// ErrAttributeLookup is returned when a named attribute does not exist on a target.
	ErrAttributeLookup = errors.New("attribute lookup failed")
	// ErrConflictingInterception is returned when one attribute is both mocked and spied.
	ErrConflictingInterception = errors.New("conflicting interception")
	// ErrEmptyAttributeName is returned for an empty name or an empty segment of a dotted name.
	ErrEmptyAttributeName = errors.New("attribute name cannot be empty")
	// ErrInitializationMisuse is panicked when a Mock or Assert is used without a constructor.
	ErrInitializationMisuse = errors.New("initialization misuse")
	// ErrInvalidConfiguration is returned when a return value or side effect cannot fit the double.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotAsync is returned when an await assertion is requested on a synchronous double.
	ErrNotAsync = errors.New("double is not async")
	// ErrReservedAttribute is returned when a stub attribute would shadow a Mock method.
	ErrReservedAttribute = errors.New("reserved attribute")
	// ErrSideEffectExhausted is panicked when a sequence side effect has no values left.
	ErrSideEffectExhausted = errors.New("side effect exhausted")
	// ErrSpyingNotCallable is returned when a spy is requested on a non-callable attribute.
	ErrSpyingNotCallable = errors.New("spying not callable")
	// ErrSpyingUnsupportedTarget is returned when a spy is requested on a stub or patch target.
	ErrSpyingUnsupportedTarget = errors.New("spying unsupported target")
	// ErrUnknownImportPath is returned when an import path does not name a defined module symbol.
	ErrUnknownImportPath = errors.New("unknown import path")
	// ErrUnsupportedTarget is returned when a target cannot host attributes.
	ErrUnsupportedTarget = errors.New("unsupported target")
)

// AssertionError is a deferred assertion failure for one double.
type AssertionError struct {
	// Name is the qualified name of the double that failed.
	Name string
	// Message describes the expected condition and the recorded calls.
	Message string
	// Diff is an optional unified diff between the expected and actual calls.
	Diff string
}

func (e *AssertionError) Error() string {
	if e.Diff == "" {
		return e.Message
	}

	return strings.TrimRight(e.Message, "\n") + "\n" + e.Diff
}

// Is reports whether target is ErrAssertion.
func (e *AssertionError) Is(target error) bool {
	return target == ErrAssertion
}
