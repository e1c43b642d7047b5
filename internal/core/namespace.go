package core

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// AsyncFunc is the shape of an awaitable stub attribute with no declared type.
type AsyncFunc func(args ...any) <-chan any

// Attrs is a dynamic attribute namespace. Declare a field of this type on a struct to let
// doubles be created for attributes the struct does not declare.
//
// The zero value is ready to use.
type Attrs struct {
	mu     sync.RWMutex
	values map[string]any
}

// Delete removes name from the namespace.
func (a *Attrs) Delete(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.values, name)
}

// Get returns the attribute stored under name. Properties are evaluated.
func (a *Attrs) Get(name string) (any, bool) {
	value, ok := a.raw(name)
	if !ok {
		return nil, false
	}

	if prop, isProp := value.(property); isProp {
		return prop.get(), true
	}

	return value, true
}

// Has reports whether name is present.
func (a *Attrs) Has(name string) bool {
	_, ok := a.raw(name)

	return ok
}

// Names returns the sorted attribute names.
func (a *Attrs) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.values))
	for name := range a.values {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Set stores value under name.
func (a *Attrs) Set(name string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.values == nil {
		a.values = make(map[string]any)
	}

	a.values[name] = value
}

func (a *Attrs) raw(name string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	value, ok := a.values[name]

	return value, ok
}

// Delegator is implemented by proxies that forward attribute access to another object.
// Binders resolve one level of delegation when a name is not found on the proxy itself.
type Delegator interface {
	Delegate() any
}

// Func is the shape of a callable stub attribute with no declared type.
type Func func(args ...any) any

// property wraps a getter stored in a namespace so that access evaluates it.
type property struct {
	fn reflect.Value
}

func (p property) get() any {
	out := p.fn.Call(nil)
	if len(out) == 0 {
		return nil
	}

	return out[0].Interface()
}

// callValue invokes fn with args, converting each argument to the parameter type, and
// collapses the results: none becomes nil, one is returned as is, more become a []any.
func callValue(name string, fn reflect.Value, args []any) (any, error) {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("%w: '%s' object is not callable", ErrAttributeLookup, name)
	}

	in, err := convertArgs(fn.Type(), args)
	if err != nil {
		return nil, err
	}

	out := fn.Call(in)

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		results := make([]any, len(out))
		for i, value := range out {
			results[i] = value.Interface()
		}

		return results, nil
	}
}

func convertArgs(fnType reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := fnType.NumIn()
	if fnType.IsVariadic() {
		fixed--
	}

	if len(args) < fixed || (!fnType.IsVariadic() && len(args) != fixed) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidConfiguration, fnType, fixed, len(args))
	}

	in := make([]reflect.Value, len(args))

	for i, arg := range args {
		var paramType reflect.Type
		if i < fixed {
			paramType = fnType.In(i)
		} else {
			paramType = fnType.In(fixed).Elem()
		}

		value, err := fitValue(arg, paramType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}

		in[i] = value
	}

	return in, nil
}

// fitValue converts value to a reflect.Value of exactly typ.
func fitValue(value any, typ reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch typ.Kind() { //nolint:exhaustive // only nillable kinds accept nil
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(typ), nil
		default:
			return reflect.Value{}, fmt.Errorf("%w: cannot use nil as %s", ErrInvalidConfiguration, typ)
		}
	}

	rv := reflect.ValueOf(value)

	if rv.Type().AssignableTo(typ) {
		out := reflect.New(typ).Elem()
		out.Set(rv)

		return out, nil
	}

	if isNumeric(rv.Kind()) && isNumeric(typ.Kind()) && rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ), nil
	}

	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrInvalidConfiguration, value, typ)
}

func isNumeric(kind reflect.Kind) bool {
	switch kind { //nolint:exhaustive // everything else is non-numeric
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
