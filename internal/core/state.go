package core

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// HolderOption configures a Mock when it is first created for a target.
type HolderOption func(*holderOptions)

// PatchClass makes an import-path target replace the symbol itself rather than the
// instances its constructor returns.
func PatchClass() HolderOption {
	return func(o *holderOptions) { o.patchClass = true }
}

// WithSpec restricts a stub to the attributes of template: a struct (or struct pointer)
// whose fields and methods also supply each attribute's type, or a []string of names.
func WithSpec(template any) HolderOption {
	return func(o *holderOptions) { o.spec, o.hasSpec = template, true }
}

// WithValues mocks each named attribute to return the given value. On a stub the
// attributes become properties.
func WithValues(values map[string]any) HolderOption {
	return func(o *holderOptions) { o.values = values }
}

// State is the per-test ledger of installed doubles. Reset undoes every installation,
// Validate evaluates the queued assertions, and Teardown does both in that order.
type State struct {
	t      TestReporter
	logger *slog.Logger

	mu      sync.Mutex
	holders []*Mock
	index   map[any]*Mock
	life    *lifecycle
}

// NewState creates an empty State reporting to t.
func NewState(t TestReporter, opts ...StateOption) *State {
	state := &State{
		t:      t,
		logger: defaultLogger(t),
		index:  make(map[any]*Mock),
		life:   newLifecycle(),
	}

	for _, opt := range opts {
		opt(state)
	}

	return state
}

// GetOrCreate returns the Mock for target, creating it on first use. A nil target is a stub
// and always gets a new Mock. Other targets are a struct pointer, a *Module, an import path
// string, or a *Mock, which is returned as is.
func (s *State) GetOrCreate(target any, opts ...HolderOption) (*Mock, error) {
	var options holderOptions
	for _, opt := range opts {
		opt(&options)
	}

	holder, created, err := s.lookupOrCreate(target, options)
	if err != nil {
		return nil, err
	}

	if created && len(options.values) > 0 {
		if err := holder.applyValues(options.values); err != nil {
			return nil, err
		}
	}

	return holder, nil
}

// Len returns how many Mocks the state currently tracks.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.holders)
}

// Reset undoes every installation, newest first, and releases pending async deliveries.
// Doubles installed afterwards deliver normally. It is idempotent.
func (s *State) Reset() {
	s.mu.Lock()
	holders := slices.Clone(s.holders)
	life := s.life
	s.life = newLifecycle()
	s.mu.Unlock()

	for i := len(holders) - 1; i >= 0; i-- {
		holders[i].reset()
	}

	life.stop()
	s.logger.Debug("reset doubles", "holders", len(holders))
}

// ResetState drops all bookkeeping without validating.
func (s *State) ResetState() {
	s.mu.Lock()
	life := s.life
	s.holders = nil
	s.index = make(map[any]*Mock)
	s.life = newLifecycle()
	s.mu.Unlock()

	life.stop()
}

// currentLife returns the lifecycle that doubles installed from now on deliver under.
func (s *State) currentLife() *lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.life
}

// Teardown resets and then validates. Doubles are uninstalled before any assertion runs.
func (s *State) Teardown() error {
	s.Reset()

	return s.Validate()
}

// Validate removes every Mock from the state and evaluates their assertions: Mocks in the
// order they were created, each Mock's assertions newest first. It returns the first failure.
func (s *State) Validate() error {
	s.mu.Lock()
	holders := s.holders
	s.holders = nil
	s.index = make(map[any]*Mock)
	s.mu.Unlock()

	for _, holder := range holders {
		if err := holder.validate(); err != nil {
			s.logger.Debug("assertion failed", "error", err)

			return err
		}
	}

	return nil
}

func (s *State) lookupOrCreate(target any, options holderOptions) (*Mock, bool, error) {
	if target == nil {
		if err := s.checkSpec(options); err != nil {
			return nil, false, err
		}

		return s.newStub(options.spec), true, nil
	}

	if holder, ok := target.(*Mock); ok {
		holder.mustInit()

		return holder, false, nil
	}

	key, err := identity(target)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	holder, ok := s.index[key]
	s.mu.Unlock()

	if ok {
		return holder, false, nil
	}

	holder, err = s.newHolder(target, options)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.index[key]; ok {
		return existing, false, nil
	}

	s.index[key] = holder
	s.holders = append(s.holders, holder)

	return holder, true, nil
}

func (s *State) checkSpec(options holderOptions) error {
	if !options.hasSpec {
		return nil
	}

	_, err := newStubSpec(options.spec)

	return err
}

func (s *State) newHolder(target any, options holderOptions) (*Mock, error) {
	switch typed := target.(type) {
	case string:
		return s.newPatch(typed, options.patchClass)
	case *Module:
		return newMock(s, &moduleBinding{module: typed}, typed.path), nil
	default:
		b, err := newObjectBinding(target)
		if err != nil {
			return nil, err
		}

		return newMock(s, b, b.name), nil
	}
}

// newPatch replaces the symbol, or the symbol's field, named by importPath and returns a Mock
// bound to the stand-in. By default the target must be a constructor func returning a struct
// pointer; it is replaced by a recording double returning one shared instance. With
// patchClass the target is a struct or struct pointer and is replaced by a zero value.
func (s *State) newPatch(importPath string, patchClass bool) (*Mock, error) {
	module, symbol, fields, err := resolveImportPath(importPath)
	if err != nil {
		return nil, err
	}

	cell, err := walkFields(module.cells[symbol].Elem(), fields, importPath)
	if err != nil {
		return nil, err
	}

	original := reflect.New(cell.Type()).Elem()
	original.Set(cell)

	var (
		standIn any
		install func()
	)

	switch {
	case patchClass && cell.Kind() == reflect.Struct:
		cell.Set(reflect.Zero(cell.Type()))
		standIn = cell.Addr().Interface()
	case patchClass && cell.Kind() == reflect.Pointer && cell.Type().Elem().Kind() == reflect.Struct:
		replacement := reflect.New(cell.Type().Elem())
		install = func() { cell.Set(replacement) }
		standIn = replacement.Interface()
	case !patchClass && isConstructor(cell.Type()):
		instance := reflect.New(cell.Type().Out(0).Elem())
		constructor := &Double{
			name:  importPath,
			shape: ShapeCallable,
			typ:   cell.Type(),
			life:  s.currentLife(),
		}
		constructor.value = reflect.MakeFunc(constructor.typ, constructor.handle)

		if err := constructor.ConfigureReturn(instance.Interface()); err != nil {
			return nil, err
		}

		install = func() { cell.Set(constructor.value) }
		standIn = instance.Interface()
	default:
		return nil, fmt.Errorf("%w: cannot patch %s of type %s", ErrUnsupportedTarget, importPath, cell.Type())
	}

	b, err := newObjectBinding(standIn)
	if err != nil {
		return nil, err
	}

	if install != nil {
		install()
	}

	holder := newMock(s, &patchBinding{objectBinding: b, path: importPath}, b.name)
	holder.undo = append(holder.undo, func() { cell.Set(original) })

	s.logger.Debug("patched import path", "path", importPath, "class", patchClass)

	return holder, nil
}

// newStub returns an untracked-identity stub Mock. Stubs are registered but never reused.
func (s *State) newStub(template any) *Mock {
	stub := &stubBinding{attrs: &Attrs{}}

	if template != nil {
		if spec, err := newStubSpec(template); err == nil {
			stub.spec = spec
		}
	}

	holder := newMock(s, stub, "Stub")

	s.mu.Lock()
	s.index[stubKey(uuid.New())] = holder
	s.holders = append(s.holders, holder)
	s.mu.Unlock()

	return holder
}

// StateOption configures a State.
type StateOption func(*State)

// WithLogger sends the state's debug events to logger.
func WithLogger(logger *slog.Logger) StateOption {
	return func(s *State) { s.logger = logger }
}

type holderOptions struct {
	spec       any
	hasSpec    bool
	patchClass bool
	values     map[string]any
}

// objectKey identifies a struct pointer target by type and address.
type objectKey struct {
	typ  reflect.Type
	addr uintptr
}

type stubKey uuid.UUID

func (m *Mock) applyValues(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	slices.Sort(names)

	_, isStub := m.binding.(*stubBinding)

	for _, name := range names {
		var opts []BindOption
		if isStub {
			opts = append(opts, ForceProperty())
		}

		assert, err := m.TryMock(name, opts...)
		if err != nil {
			return err
		}

		if err := assert.double.ConfigureReturn(values[name]); err != nil {
			return err
		}
	}

	return nil
}

func identity(target any) (any, error) {
	switch typed := target.(type) {
	case string:
		return typed, nil
	case *Module:
		return typed, nil
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a non-nil pointer to a struct", ErrUnsupportedTarget, target)
	}

	return objectKey{typ: rv.Type(), addr: rv.Pointer()}, nil
}

func isConstructor(typ reflect.Type) bool {
	return typ.Kind() == reflect.Func && typ.NumOut() >= 1 &&
		typ.Out(0).Kind() == reflect.Pointer && typ.Out(0).Elem().Kind() == reflect.Struct
}
