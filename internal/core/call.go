package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Call is one recorded (or expected) invocation of a double.
type Call struct {
	Args   []any
	Kwargs Kwargs
}

// NewCall builds a Call from positional arguments. A trailing Kwargs argument becomes the
// call's keyword arguments.
func NewCall(args ...any) Call {
	positional, kwargs := splitKwargs(args)

	return Call{Args: positional, Kwargs: kwargs}
}

// String formats the call the way failure messages show it: call(1, "a", key=2).
func (c Call) String() string {
	return c.format("call")
}

// Contains reports whether c includes expected: expected's positional arguments are a
// prefix of c's, and expected's keyword arguments are a subset of c's.
func (c Call) Contains(expected Call) bool {
	if len(expected.Args) > len(c.Args) {
		return false
	}

	for i, want := range expected.Args {
		if ok, _ := MatchValue(c.Args[i], want); !ok {
			return false
		}
	}

	for key, want := range expected.Kwargs {
		got, ok := c.Kwargs[key]
		if !ok {
			return false
		}

		if ok, _ := MatchValue(got, want); !ok {
			return false
		}
	}

	return true
}

// Matches reports whether c has exactly the arguments of expected. Expected values may be
// Matchers.
func (c Call) Matches(expected Call) bool {
	if len(c.Args) != len(expected.Args) || len(c.Kwargs) != len(expected.Kwargs) {
		return false
	}

	return c.Contains(expected)
}

func (c Call) format(name string) string {
	parts := make([]string, 0, len(c.Args)+len(c.Kwargs))

	for _, arg := range c.Args {
		parts = append(parts, formatValue(arg))
	}

	for _, key := range c.Kwargs.keys() {
		parts = append(parts, key+"="+formatValue(c.Kwargs[key]))
	}

	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Kwargs holds keyword arguments. Passed as the last argument of a double, it is recorded
// as the call's keyword arguments rather than as a positional argument.
type Kwargs map[string]any

func (k Kwargs) keys() []string {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func formatCalls(calls []Call) string {
	parts := make([]string, len(calls))
	for i, call := range calls {
		parts[i] = call.String()
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// formatCount spells small call counts the way the failure messages read: once, twice, N times.
func formatCount(count int) string {
	switch count {
	case 1:
		return "once"
	case 2:
		return "twice"
	default:
		return strconv.Itoa(count) + " times"
	}
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(typed)
	case fmt.Stringer:
		return typed.String()
	case error:
		return typed.Error()
	default:
		return fmt.Sprintf("%v", value)
	}
}

func splitKwargs(args []any) ([]any, Kwargs) {
	if len(args) == 0 {
		return args, nil
	}

	if kwargs, ok := args[len(args)-1].(Kwargs); ok {
		return args[:len(args)-1], kwargs
	}

	return args, nil
}
