// Package mokit provides fluent test doubles for Go.
// It mocks, spies on, and stubs the attributes of struct values, package variables, and
// import paths, and checks the queued assertions when the test ends.
//
// This is the public API entry point. Implementation lives in internal/core.
package mokit

import (
	"github.com/toejough/mokit/internal/core"
)

// Assert configures one double and queues assertions about its use.
type Assert = core.Assert

// AssertionError is a deferred assertion failure.
type AssertionError = core.AssertionError

// AsyncFunc is the type of an awaitable stub attribute with no declared type.
type AsyncFunc = core.AsyncFunc

// Attrs is a dynamic attribute namespace. Declare one on a struct to let doubles create
// attributes the struct does not declare.
type Attrs = core.Attrs

// BindOption adjusts how an attribute is bound.
type BindOption = core.BindOption

// Call is one recorded or expected invocation.
type Call = core.Call

// Delegator is implemented by proxies that forward attribute access.
type Delegator = core.Delegator

// Double is the value installed in place of an attribute.
type Double = core.Double

// Func is the type of a callable stub attribute with no declared type.
type Func = core.Func

// HolderOption configures a Mock when it is first created.
type HolderOption = core.HolderOption

// Kwargs holds keyword arguments. Passed last to a double, it is recorded as keyword
// arguments.
type Kwargs = core.Kwargs

// Matcher defines the interface for flexible value matching.
type Matcher = core.Matcher

// Mock holds the doubles installed on one target.
type Mock = core.Mock

// Module is a named table of package-level variables.
type Module = core.Module

// Shape classifies the attribute a double replaces.
type Shape = core.Shape

// State is the per-test ledger of installed doubles.
type State = core.State

// StateOption configures a State.
type StateOption = core.StateOption

// TestReporter is the minimal interface mokit needs from test frameworks.
type TestReporter = core.TestReporter

// Vars maps variable names to pointers to the variables.
type Vars = core.Vars

// Attribute shapes.
const (
	ShapeCallable    = core.ShapeCallable
	ShapeMethod      = core.ShapeMethod
	ShapeClassMethod = core.ShapeClassMethod
	ShapeStatic      = core.ShapeStatic
	ShapeProperty    = core.ShapeProperty
	ShapeSpecial     = core.ShapeSpecial
	ShapeVariable    = core.ShapeVariable
)

// Errors re-exported from internal/core.
var (
	ErrAssertion               = core.ErrAssertion
	ErrAttributeLookup         = core.ErrAttributeLookup
	ErrConflictingInterception = core.ErrConflictingInterception
	ErrEmptyAttributeName      = core.ErrEmptyAttributeName
	ErrInitializationMisuse    = core.ErrInitializationMisuse
	ErrInvalidConfiguration    = core.ErrInvalidConfiguration
	ErrNotAsync                = core.ErrNotAsync
	ErrReservedAttribute       = core.ErrReservedAttribute
	ErrSideEffectExhausted     = core.ErrSideEffectExhausted
	ErrSpyingNotCallable       = core.ErrSpyingNotCallable
	ErrSpyingUnsupportedTarget = core.ErrSpyingUnsupportedTarget
	ErrUnknownImportPath       = core.ErrUnknownImportPath
	ErrUnsupportedTarget       = core.ErrUnsupportedTarget
)

// Create lets an attribute that does not exist yet be injected; teardown deletes it.
func Create() BindOption {
	return core.Create()
}

// DefineModule registers the variables of the package at path so they can be mocked
// through the returned Module or through "<path>.<Name>" import paths.
func DefineModule(path string, vars Vars) *Module {
	return core.DefineModule(path, vars)
}

// ForceAsync treats the attribute as awaitable.
func ForceAsync() BindOption {
	return core.ForceAsync()
}

// ForceProperty treats the attribute as a property.
func ForceProperty() BindOption {
	return core.ForceProperty()
}

// LookupModule returns the module defined for path.
func LookupModule(path string) (*Module, bool) {
	return core.LookupModule(path)
}

// MangleName rewrites a class-private attribute name: "__x" on "Vault" is "_Vault__x".
func MangleName(typeName, name string) string {
	return core.MangleName(typeName, name)
}

// MatchValue checks if actual matches expected.
func MatchValue(actual, expected any) (bool, string) {
	return core.MatchValue(actual, expected)
}

// Mocker returns the Mock for target in the current test, creating it on first use.
// A nil target creates a new stub. Other targets are a struct pointer, a *Module, or an
// import path string. Errors fail the test immediately.
func Mocker(t TestReporter, target any, opts ...HolderOption) *Mock {
	t.Helper()

	mock, err := core.StateOf(t).GetOrCreate(target, opts...)
	if err != nil {
		t.Fatalf("%v", err)

		return nil
	}

	return mock
}

// NewCall builds an expected Call. A trailing Kwargs argument becomes keyword arguments.
func NewCall(args ...any) Call {
	return core.NewCall(args...)
}

// NewState creates a State that is not tied to the test's cleanup.
func NewState(t TestReporter, opts ...StateOption) *State {
	return core.NewState(t, opts...)
}

// PatchClass makes an import-path target replace the symbol itself.
func PatchClass() HolderOption {
	return core.PatchClass()
}

// Stub returns a new stub: a Mock with no backing target.
func Stub(t TestReporter, opts ...HolderOption) *Mock {
	t.Helper()

	return Mocker(t, nil, opts...)
}

// WithSpec restricts a stub to the attributes of template.
func WithSpec(template any) HolderOption {
	return core.WithSpec(template)
}

// WithValues mocks each named attribute to return the given value.
func WithValues(values map[string]any) HolderOption {
	return core.WithValues(values)
}
