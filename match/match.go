// Package match provides matchers for use with mokit's argument assertions.
// This package is designed to be dot-imported alongside gomega matchers:
//
//	import (
//	    . "github.com/onsi/gomega"
//	    . "github.com/toejough/mokit/match"
//	)
//
//	mokit.Mocker(t, teapot).Mock("AddTea").CalledWith(AnyString, BeNumerically(">", 0))
package match

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// errTypeMismatch is a sentinel error for type assertion failures.
var errTypeMismatch = errors.New("type mismatch")

// Matcher defines the interface for flexible value matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// Matchers for any value of a common type.
//
//nolint:gochecknoglobals // Intentional exported constant-like values
var (
	AnyBool    = AnyOf[bool]()
	AnyBytes   = AnyOf[[]byte]()
	AnyComplex = AnyOf[complex128]()
	AnyFloat   = AnyOf[float64]()
	AnyInt     = AnyOf[int]()
	AnyMap     = AnyKind(reflect.Map)
	AnySlice   = AnyKind(reflect.Slice)
	AnyString  = AnyOf[string]()
)

// BeAny is a matcher that matches any value.
// Useful when you don't care about a particular argument.
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var BeAny Matcher = anyMatcher{}

// AnyKind returns a matcher that matches any value of the given reflect kind.
func AnyKind(kind reflect.Kind) Matcher {
	return kindMatcher{kind: kind}
}

// AnyOf returns a matcher that matches any value of type T.
//
// Example:
//
//	mocker.Mock("Save").CalledWith(AnyOf[*User](), AnyOf[time.Time]())
func AnyOf[T any]() Matcher {
	return typeMatcher{typ: reflect.TypeFor[T]()}
}

// Satisfy returns a matcher that uses a predicate function to check for a match.
// The predicate should return nil if the value matches, or an error describing
// the mismatch if it does not.
//
// Example:
//
//	mocker.Mock("Add").CalledWith(Satisfy(func(x int) error {
//	    if x < 0 { return fmt.Errorf("expected positive, got %d", x) }
//	    return nil
//	}))
func Satisfy[T any](predicate func(T) error) Matcher {
	return &satisfyMatcher[T]{predicate: predicate}
}

// anyMatcher is the implementation of the BeAny matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since BeAny always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

func (anyMatcher) String() string {
	return "<ANY>"
}

type kindMatcher struct {
	kind reflect.Kind
}

func (m kindMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected any %s, got %T", m.kind, actual)
}

func (m kindMatcher) Match(actual any) (bool, error) {
	return actual != nil && reflect.TypeOf(actual).Kind() == m.kind, nil
}

func (m kindMatcher) String() string {
	return "<ANY_" + strings.ToUpper(m.kind.String()) + ">"
}

type satisfyMatcher[T any] struct {
	predicate func(T) error
	lastErr   error
}

func (m *satisfyMatcher[T]) FailureMessage(actual any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, m.lastErr)
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}

func (m *satisfyMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)

	if !ok {
		return false, fmt.Errorf("%w: expected %T, got %T", errTypeMismatch, *new(T), actual)
	}

	m.lastErr = m.predicate(val)

	return m.lastErr == nil, nil
}

// typeMatcher matches values whose dynamic type is exactly typ, or implements it when typ
// is an interface.
type typeMatcher struct {
	typ reflect.Type
}

func (m typeMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected any %s, got %T", m.typ, actual)
}

func (m typeMatcher) Match(actual any) (bool, error) {
	if actual == nil {
		return false, nil
	}

	actualType := reflect.TypeOf(actual)
	if m.typ.Kind() == reflect.Interface {
		return actualType.Implements(m.typ), nil
	}

	return actualType == m.typ, nil
}

func (m typeMatcher) String() string {
	return "<ANY_" + strings.ToUpper(m.typ.String()) + ">"
}
