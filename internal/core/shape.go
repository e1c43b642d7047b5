package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Shape classifies the attribute a double replaces. It decides how the original is captured,
// which double is installed, and whether recorded calls drop a leading receiver.
type Shape int

// Attribute shapes.
const (
	// ShapeCallable is a plain function value.
	ShapeCallable Shape = iota
	// ShapeMethod is a function field whose first argument is the receiver.
	ShapeMethod
	// ShapeClassMethod is a function field whose first argument is the shared class value.
	ShapeClassMethod
	// ShapeStatic is a function field that takes no receiver.
	ShapeStatic
	// ShapeProperty is a getter, evaluated on attribute access.
	ShapeProperty
	// ShapeSpecial is a function attribute named like __x__.
	ShapeSpecial
	// ShapeVariable is a non-callable value.
	ShapeVariable
)

// TagKey is the struct tag key used to declare a field's shape.
const TagKey = "mokit"

func (s Shape) String() string {
	switch s {
	case ShapeCallable:
		return "callable"
	case ShapeMethod:
		return "method"
	case ShapeClassMethod:
		return "classmethod"
	case ShapeStatic:
		return "staticmethod"
	case ShapeProperty:
		return "property"
	case ShapeSpecial:
		return "special"
	case ShapeVariable:
		return "variable"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

func (s Shape) callable() bool {
	return s != ShapeVariable
}

func (s Shape) stripsReceiver() bool {
	return s == ShapeMethod || s == ShapeClassMethod
}

// BindOption adjusts how an attribute is bound.
type BindOption func(*bindOptions)

// Create lets the binder inject an attribute that does not exist yet. Teardown deletes it.
func Create() BindOption {
	return func(o *bindOptions) { o.create = true }
}

// ForceAsync treats the attribute as awaitable even when its shape cannot be detected.
func ForceAsync() BindOption {
	return func(o *bindOptions) { o.forceAsync = true }
}

// ForceProperty treats the attribute as a property even when its shape cannot be detected.
func ForceProperty() BindOption {
	return func(o *bindOptions) { o.forceProperty = true }
}

type bindOptions struct {
	create        bool
	forceProperty bool
	forceAsync    bool
}

func applyBindOptions(opts []BindOption) bindOptions {
	var options bindOptions
	for _, opt := range opts {
		opt(&options)
	}

	return options
}

// classify derives the shape of a value of type typ stored under name, honoring a struct tag.
func classify(name string, typ reflect.Type, tag string) (Shape, bool, error) {
	if typ.Kind() != reflect.Func {
		if tag != "" && tag != "-" {
			return 0, false, fmt.Errorf("%w: %s is tagged %q but is a %s, not a func",
				ErrInvalidConfiguration, name, tag, typ)
		}

		return ShapeVariable, false, nil
	}

	async := isAsyncType(typ)

	switch tag {
	case "method", "classmethod":
		if typ.NumIn() == 0 {
			return 0, false, fmt.Errorf("%w: %s is tagged %q but takes no receiver argument",
				ErrInvalidConfiguration, name, tag)
		}

		if tag == "method" {
			return ShapeMethod, async, nil
		}

		return ShapeClassMethod, async, nil
	case "static":
		return ShapeStatic, async, nil
	case "property":
		if typ.NumIn() != 0 || typ.NumOut() == 0 {
			return 0, false, fmt.Errorf("%w: property %s must be a getter with no arguments, got %s",
				ErrInvalidConfiguration, name, typ)
		}

		return ShapeProperty, async, nil
	case "", "-":
		if isDunder(name) {
			return ShapeSpecial, async, nil
		}

		return ShapeCallable, async, nil
	default:
		return 0, false, fmt.Errorf("%w: unknown %s tag %q on %s", ErrInvalidConfiguration, TagKey, tag, name)
	}
}

// isAsyncType reports whether typ is a func whose only result is a receivable channel.
func isAsyncType(typ reflect.Type) bool {
	if typ.Kind() != reflect.Func || typ.NumOut() != 1 {
		return false
	}

	out := typ.Out(0)

	return out.Kind() == reflect.Chan && out.ChanDir()&reflect.RecvDir != 0
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
