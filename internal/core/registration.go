package core

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Mock holds every double installed on one target during a test, along with the actions that
// undo them and the assertions queued against them. Obtain one from State.GetOrCreate; the
// zero value is not usable.
type Mock struct {
	state   *State
	binding binding
	label   string

	mu      sync.Mutex
	undo    []func()
	asserts []*Assert
	byName  map[string]*Assert
	kinds   map[string]interception
	chains  map[string]*Mock
}

// Await calls the named attribute and receives the value it delivers.
func (m *Mock) Await(name string, args ...any) any {
	m.mustInit()

	result, err := m.TryCall(name, args...)
	if err != nil {
		m.fatal(err)

		return nil
	}

	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Chan {
		m.fatal(fmt.Errorf("%w: '%s' did not return an awaitable value", ErrNotAsync, name))

		return nil
	}

	if rv.IsNil() {
		return nil
	}

	value, ok := rv.Recv()
	if !ok {
		return nil
	}

	return value.Interface()
}

// Call invokes the named attribute with args and returns its results: nil for none, the
// value for one, a []any for more.
func (m *Mock) Call(name string, args ...any) any {
	m.mustInit()

	result, err := m.TryCall(name, args...)
	if err != nil {
		m.fatal(err)
	}

	return result
}

// Get returns the current value of the named attribute. Properties are evaluated.
func (m *Mock) Get(name string) any {
	m.mustInit()

	value, err := m.TryGet(name)
	if err != nil {
		m.fatal(err)
	}

	return value
}

// HasAttr reports whether the target currently has the named attribute.
func (m *Mock) HasAttr(name string) bool {
	m.mustInit()

	s, err := m.binding.lookup(name, false)

	return err == nil && s.exists
}

// Mock replaces the named attribute with a mock double and returns its Assert. A dotted name
// mocks each segment in turn, each returning a fresh stub for the next.
func (m *Mock) Mock(name string, opts ...BindOption) *Assert {
	m.mustInit()

	assert, err := m.TryMock(name, opts...)
	if err != nil {
		m.fatal(err)
	}

	return assert
}

// Spy wraps the named attribute with a spy double and returns its Assert.
func (m *Mock) Spy(name string) *Assert {
	m.mustInit()

	assert, err := m.TrySpy(name)
	if err != nil {
		m.fatal(err)
	}

	return assert
}

// TryCall is Call, returning failures instead of reporting them.
func (m *Mock) TryCall(name string, args ...any) (any, error) {
	m.mustInit()

	s, err := m.binding.lookup(name, false)
	if err != nil {
		return nil, err
	}

	if !s.exists {
		return nil, fmt.Errorf("%w: type object '%s' has no attribute '%s'", ErrAttributeLookup, m.label, name)
	}

	fn := s.get()
	if fn.IsValid() && fn.Kind() == reflect.Interface {
		fn = fn.Elem()
	}

	return callValue(m.label+"."+name, fn, args)
}

// TryGet is Get, returning failures instead of reporting them.
func (m *Mock) TryGet(name string) (any, error) {
	m.mustInit()

	s, err := m.binding.lookup(name, false)
	if err != nil {
		return nil, err
	}

	if !s.exists {
		return nil, fmt.Errorf("%w: type object '%s' has no attribute '%s'", ErrAttributeLookup, m.label, name)
	}

	value := s.get()
	if !value.IsValid() {
		return nil, nil
	}

	if prop, ok := value.Interface().(property); ok {
		return prop.get(), nil
	}

	if !s.namespace && s.tag == "property" && value.Kind() == reflect.Func && !value.IsNil() {
		return callValue(m.label+"."+name, value, nil)
	}

	return value.Interface(), nil
}

// TryMock is Mock, returning failures instead of reporting them.
func (m *Mock) TryMock(name string, opts ...BindOption) (*Assert, error) {
	m.mustInit()

	return m.bind(name, interceptMock, applyBindOptions(opts))
}

// TrySpy is Spy, returning failures instead of reporting them.
func (m *Mock) TrySpy(name string) (*Assert, error) {
	m.mustInit()

	return m.bind(name, interceptSpy, bindOptions{})
}

func (m *Mock) bind(name string, kind interception, opts bindOptions) (*Assert, error) {
	segments := strings.Split(name, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: Attribute name cannot be empty. Got %q", ErrEmptyAttributeName, name)
		}
	}

	if kind == interceptSpy && len(segments) > 1 {
		return nil, fmt.Errorf("%w: cannot spy on chained name %q", ErrInvalidConfiguration, name)
	}

	head := segments[0]
	headOpts := opts

	if len(segments) > 1 {
		// Only the last segment gets the caller's options; intermediate links are plain calls.
		headOpts = bindOptions{create: opts.create}
	}

	assert, err := m.bindHead(head, kind, headOpts)
	if err != nil {
		return nil, err
	}

	if len(segments) == 1 {
		return assert, nil
	}

	child, err := m.chain(head, assert)
	if err != nil {
		return nil, err
	}

	return child.bind(strings.Join(segments[1:], "."), kind, opts)
}

func (m *Mock) bindHead(name string, kind interception, opts bindOptions) (*Assert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.kinds[name]; ok && prior != kind {
		return nil, fmt.Errorf("%w: cannot %s '%s.%s': it is already a %s",
			ErrConflictingInterception, kind, m.label, name, prior)
	}

	if assert, ok := m.byName[name]; ok {
		return assert, nil
	}

	if kind == interceptSpy {
		if err := m.binding.spyable(); err != nil {
			return nil, err
		}
	}

	double, undo, err := m.install(name, kind, opts)
	if err != nil {
		return nil, err
	}

	assert := &Assert{holder: m, double: double}
	m.byName[name] = assert
	m.kinds[name] = kind
	m.asserts = append(m.asserts, assert)
	m.undo = append(m.undo, undo)

	m.state.logger.Debug("installed double",
		"name", double.name, "kind", kind.String(), "shape", double.shape.String(), "async", double.async)

	return assert, nil
}

// chain makes the double bound to name return a fresh stub and returns that stub's holder.
func (m *Mock) chain(name string, assert *Assert) (*Mock, error) {
	m.mu.Lock()
	child, ok := m.chains[name]
	m.mu.Unlock()

	if ok {
		return child, nil
	}

	double := assert.double

	resultType := double.typ
	if double.shape != ShapeVariable {
		outs := double.resultTypes()
		if len(outs) == 0 {
			return nil, fmt.Errorf("%w: cannot chain through %s: it returns nothing", ErrInvalidConfiguration, double.name)
		}

		resultType = outs[0]
	}

	var result any

	switch {
	case resultType.Kind() == reflect.Pointer && resultType.Elem().Kind() == reflect.Struct:
		instance := reflect.New(resultType.Elem()).Interface()

		holder, err := m.state.GetOrCreate(instance)
		if err != nil {
			return nil, err
		}

		child, result = holder, instance
	case resultType.Kind() == reflect.Interface && resultType.NumMethod() == 0:
		child = m.state.newStub(nil)
		result = child
	default:
		return nil, fmt.Errorf("%w: cannot chain through %s: its result %s is neither a struct pointer nor any",
			ErrInvalidConfiguration, double.name, resultType)
	}

	if err := double.ConfigureReturn(result); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.chains[name] = child
	m.mu.Unlock()

	return child, nil
}

func (m *Mock) fatal(err error) {
	m.state.t.Helper()
	m.state.t.Fatalf("%v", err)
}

// install classifies the attribute, builds the double, installs it, and returns the action
// that puts the attribute back.
func (m *Mock) install(name string, kind interception, opts bindOptions) (*Double, func(), error) {
	s, err := m.binding.lookup(name, opts.create)
	if err != nil {
		return nil, nil, err
	}

	shape, async, typ, err := s.shape(opts)
	if err != nil {
		return nil, nil, err
	}

	double := &Double{
		name:  m.label + "." + name,
		shape: shape,
		async: async,
		kind:  kind,
		typ:   typ,
		life:  m.state.currentLife(),
	}

	original := reflect.Value{}
	if s.exists {
		original = s.get()
	}

	if kind == interceptSpy {
		target := original
		if target.IsValid() && target.Kind() == reflect.Interface {
			target = target.Elem()
		}

		if target.IsValid() && target.Type() == reflect.TypeFor[property]() {
			target = target.Interface().(property).fn //nolint:forcetypeassert // type checked above
		}

		if !shape.callable() || !target.IsValid() || target.Kind() != reflect.Func || target.IsNil() {
			return nil, nil, fmt.Errorf("%w: cannot spy on '%s': it is not callable", ErrSpyingNotCallable, double.name)
		}

		double.original = target
		double.typ = target.Type()
		double.async = isAsyncType(double.typ)
	}

	switch {
	case shape == ShapeVariable:
		double.write = s.set
		s.set(reflect.Zero(typ))
	case s.namespace && shape == ShapeProperty:
		double.value = reflect.MakeFunc(double.typ, double.handle)
		s.set(reflect.ValueOf(property{fn: double.value}))
	default:
		double.value = reflect.MakeFunc(double.typ, double.handle)
		s.set(double.value)
	}

	undo := func() {
		if s.exists {
			s.set(original)

			return
		}

		s.del()
	}

	return double, undo, nil
}

func (m *Mock) mustInit() {
	if m == nil || m.state == nil {
		panic(fmt.Errorf("%w: Mock must be created with Mocker or State.GetOrCreate", ErrInitializationMisuse))
	}
}

// reset uninstalls every double. Queued assertions stay for validate; a later Mock or Spy
// of the same name installs afresh.
func (m *Mock) reset() {
	m.mu.Lock()
	undo := m.undo
	m.undo = nil
	m.byName = make(map[string]*Assert)
	m.kinds = make(map[string]interception)
	m.chains = make(map[string]*Mock)
	m.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func (m *Mock) validate() error {
	m.mu.Lock()
	asserts := m.asserts
	m.asserts = nil
	m.byName = make(map[string]*Assert)
	m.kinds = make(map[string]interception)
	m.chains = make(map[string]*Mock)
	m.mu.Unlock()

	for i := len(asserts) - 1; i >= 0; i-- {
		if err := asserts[i].validate(); err != nil {
			return err
		}
	}

	return nil
}

// unexported variables.
var (
	// reservedNames are the Mock methods a stub attribute must not shadow.
	//
	//nolint:gochecknoglobals // derived once from the method set
	reservedNames = func() map[string]bool {
		names := make(map[string]bool)

		mockType := reflect.TypeFor[*Mock]()
		for i := range mockType.NumMethod() {
			names[mockType.Method(i).Name] = true
		}

		return names
	}()
)

func newMock(state *State, b binding, label string) *Mock {
	return &Mock{
		state:   state,
		binding: b,
		label:   label,
		byName:  make(map[string]*Assert),
		kinds:   make(map[string]interception),
		chains:  make(map[string]*Mock),
	}
}
