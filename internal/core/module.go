package core

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Module is a named table of package-level variables. It lets doubles replace functions and
// values that Go code reaches through package variables, and it is what import paths resolve
// against.
type Module struct {
	path  string
	cells map[string]reflect.Value
	attrs Attrs
}

// DefineModule registers the variables of the package at path and returns the module.
// Every value in vars must be a non-nil pointer to the variable. Defining a path again
// replaces the previous table.
func DefineModule(path string, vars Vars) *Module {
	if path == "" {
		panic(fmt.Errorf("%w: module path cannot be empty", ErrInitializationMisuse))
	}

	module := &Module{path: path, cells: make(map[string]reflect.Value, len(vars))}

	for name, ptr := range vars {
		rv := reflect.ValueOf(ptr)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			panic(fmt.Errorf("%w: module %s variable %s must be a non-nil pointer, got %T",
				ErrInitializationMisuse, path, name, ptr))
		}

		module.cells[name] = rv
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	modules[path] = module

	return module
}

// LookupModule returns the module defined for path.
func LookupModule(path string) (*Module, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	module, ok := modules[path]

	return module, ok
}

// Get returns the current value of a module variable or created attribute.
func (m *Module) Get(name string) (any, bool) {
	if cell, ok := m.cells[name]; ok {
		return cell.Elem().Interface(), true
	}

	return m.attrs.Get(name)
}

// Names returns the sorted variable names of the module.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.cells))
	for name := range m.cells {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Path returns the import path the module was defined for.
func (m *Module) Path() string {
	return m.path
}

// Vars maps variable names to pointers to the variables.
type Vars map[string]any

// unexported variables.
var (
	//nolint:gochecknoglobals // process-wide module table, like the import graph it mirrors
	modules = make(map[string]*Module)
	//nolint:gochecknoglobals // guards modules
	modulesMu sync.RWMutex
)

// resolveImportPath splits "<module path>.<Symbol>[.<Field>...]" against the defined modules,
// preferring the longest module path. The returned fields name the struct fields to walk
// from the symbol.
func resolveImportPath(importPath string) (*Module, string, []string, error) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var (
		best *Module
		rest string
	)

	for path, module := range modules {
		tail, ok := strings.CutPrefix(importPath, path+".")
		if !ok || tail == "" {
			continue
		}

		if best == nil || len(path) > len(best.path) {
			best, rest = module, tail
		}
	}

	if best == nil {
		return nil, "", nil, fmt.Errorf("%w: %q does not name a symbol of a defined module",
			ErrUnknownImportPath, importPath)
	}

	segments := strings.Split(rest, ".")
	if slices.Contains(segments, "") {
		return nil, "", nil, fmt.Errorf("%w: %q has an empty segment", ErrUnknownImportPath, importPath)
	}

	symbol := segments[0]
	if _, ok := best.cells[symbol]; !ok {
		return nil, "", nil, fmt.Errorf("%w: module %s has no attribute '%s'", ErrUnknownImportPath, best.path, symbol)
	}

	return best, symbol, segments[1:], nil
}

// walkFields follows fields from cell through structs and non-nil struct pointers and returns
// the settable field they name.
func walkFields(cell reflect.Value, fields []string, importPath string) (reflect.Value, error) {
	for _, name := range fields {
		if cell.Kind() == reflect.Pointer && cell.Type().Elem().Kind() == reflect.Struct {
			if cell.IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: %s: cannot reach '%s' through a nil %s",
					ErrUnknownImportPath, importPath, name, cell.Type())
			}

			cell = cell.Elem()
		}

		if cell.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%w: %s: %s has no fields, cannot reach '%s'",
				ErrUnknownImportPath, importPath, cell.Type(), name)
		}

		owner := &objectBinding{ptr: cell.Addr(), elem: cell, name: cell.Type().Name()}

		field, _, err := owner.fieldValue(name)
		if err != nil {
			return reflect.Value{}, err
		}

		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("%w: %s: type object '%s' has no attribute '%s'",
				ErrUnknownImportPath, importPath, owner.name, name)
		}

		cell = field
	}

	return cell, nil
}
