package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Double is the value installed in place of an attribute. A mock double answers from its
// configuration and never calls the original; a spy double records and then calls the
// original, returning its results unchanged. Value doubles stand in for non-callable
// attributes and record nothing.
type Double struct {
	name     string
	shape    Shape
	async    bool
	kind     interception
	typ      reflect.Type
	original reflect.Value
	life     *lifecycle
	value    reflect.Value
	write    func(reflect.Value)

	mu        sync.Mutex
	calls     []Call
	awaits    []Call
	returns   []any
	effect    any
	hasEffect bool
	seqPos    int
}

// AwaitCount returns how many times a value produced by the double has been received.
func (d *Double) AwaitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.awaits)
}

// Awaits returns a copy of the await history.
func (d *Double) Awaits() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Call(nil), d.awaits...)
}

// CallCount returns how many times the double has been called.
func (d *Double) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.calls)
}

// Calls returns a copy of the call history.
func (d *Double) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Call(nil), d.calls...)
}

// ConfigureReturn sets the values later calls return. Missing trailing results are zero
// values. For a value double the single value is written into the attribute immediately.
func (d *Double) ConfigureReturn(values ...any) error {
	if d.shape == ShapeVariable {
		return d.configureVariable(values)
	}

	outs := d.resultTypes()
	if _, err := fitReturns(values, outs); err != nil {
		return fmt.Errorf("%s: %w", d.name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.returns = append([]any(nil), values...)
	d.effect, d.hasEffect, d.seqPos = nil, false, 0

	return nil
}

// ConfigureSideEffect sets what happens on each call: an error is returned through a
// trailing error result (or panicked when the function has none), a function is invoked with
// the call's arguments and its results returned, and a []any is consumed one item per call.
// A nil effect clears the side effect.
func (d *Double) ConfigureSideEffect(effect any) error {
	if d.shape == ShapeVariable {
		return fmt.Errorf("%w: %s is not callable and cannot have a side effect", ErrInvalidConfiguration, d.name)
	}

	switch typed := effect.(type) {
	case nil, error, []any:
	default:
		if reflect.TypeOf(typed).Kind() != reflect.Func {
			return fmt.Errorf("%w: side effect for %s must be an error, a func or a []any, got %T",
				ErrInvalidConfiguration, d.name, effect)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.effect, d.hasEffect, d.seqPos = effect, effect != nil, 0
	if effect != nil {
		d.returns = nil
	}

	return nil
}

// Interface returns the installed value: the generated function, or the variable's value.
func (d *Double) Interface() any {
	if d.shape == ShapeVariable {
		d.mu.Lock()
		defer d.mu.Unlock()

		if len(d.returns) == 0 {
			return reflect.Zero(d.typ).Interface()
		}

		return d.returns[0]
	}

	return d.value.Interface()
}

// IsAsync reports whether the double produces awaitable values.
func (d *Double) IsAsync() bool {
	return d.async
}

// IsSpy reports whether the double passes calls through to the original.
func (d *Double) IsSpy() bool {
	return d.kind == interceptSpy
}

// Name returns the qualified name used in failure messages.
func (d *Double) Name() string {
	return d.name
}

// Shape returns the attribute shape the double was built for.
func (d *Double) Shape() Shape {
	return d.shape
}

func (d *Double) configureVariable(values []any) error {
	if len(values) != 1 {
		return fmt.Errorf("%w: %s is a variable and takes exactly one value, got %d",
			ErrInvalidConfiguration, d.name, len(values))
	}

	fitted, err := fitValue(values[0], d.typ)
	if err != nil {
		return fmt.Errorf("%s: %w", d.name, err)
	}

	d.mu.Lock()
	d.returns = []any{fitted.Interface()}
	d.mu.Unlock()

	d.write(fitted)

	return nil
}

// handle is the body of every generated function.
func (d *Double) handle(in []reflect.Value) []reflect.Value {
	args := flattenArgs(d.typ, in)
	if d.shape.stripsReceiver() && len(args) > 0 {
		args = args[1:]
	}

	call := NewCall(args...)

	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()

	if d.kind == interceptSpy {
		out := callRaw(d.original, in, d.typ.IsVariadic())
		if d.async {
			return []reflect.Value{d.relay(d.typ.Out(0), out[0], call)}
		}

		return out
	}

	if d.async {
		chanType := d.typ.Out(0)
		values := d.outcome(in, args, []reflect.Type{chanType.Elem()})

		return []reflect.Value{d.deliver(chanType, values[0], call)}
	}

	return d.outcome(in, args, outTypes(d.typ))
}

func (d *Double) outcome(in []reflect.Value, args []any, outs []reflect.Type) []reflect.Value {
	d.mu.Lock()
	effect, hasEffect, returns := d.effect, d.hasEffect, d.returns

	var (
		item    any
		hasItem bool
	)

	if seq, ok := effect.([]any); hasEffect && ok {
		if d.seqPos >= len(seq) {
			d.mu.Unlock()
			panic(fmt.Errorf("%w: %s was called more than the %d times its side effect provides",
				ErrSideEffectExhausted, d.name, len(seq)))
		}

		item, hasItem = seq[d.seqPos], true
		d.seqPos++
	}
	d.mu.Unlock()

	switch {
	case hasItem:
		if err, ok := item.(error); ok {
			return d.fail(err, outs)
		}

		if tuple, ok := item.([]any); ok {
			return d.mustFit(tuple, outs)
		}

		return d.mustFit([]any{item}, outs)
	case hasEffect:
		if err, ok := effect.(error); ok {
			return d.fail(err, outs)
		}

		return d.mustFit(d.invokeEffect(effect, in, args), outs)
	default:
		return d.mustFit(returns, outs)
	}
}

// invokeEffect calls a side effect function. One with the exact type of the double gets the
// raw arguments, receiver included. Any other function gets the recorded arguments.
func (d *Double) invokeEffect(effect any, in []reflect.Value, args []any) []any {
	fn := reflect.ValueOf(effect)

	var out []reflect.Value

	if fn.Type() == d.typ {
		out = callRaw(fn, in, d.typ.IsVariadic())
	} else {
		converted, err := convertArgs(fn.Type(), args)
		if err != nil {
			panic(fmt.Errorf("side effect for %s: %w", d.name, err))
		}

		out = fn.Call(converted)
	}

	if d.async && len(out) == 1 && fn.Type() == d.typ {
		// The effect returned a channel of its own; relay its first value.
		if out[0].IsNil() {
			return nil
		}

		value, ok := out[0].Recv()
		if !ok {
			return nil
		}

		return []any{value.Interface()}
	}

	results := make([]any, len(out))
	for i, value := range out {
		results[i] = value.Interface()
	}

	return results
}

func (d *Double) fail(err error, outs []reflect.Type) []reflect.Value {
	if len(outs) == 0 || outs[len(outs)-1] != errorType {
		panic(err)
	}

	values := zeroValues(outs)
	values[len(values)-1] = reflect.ValueOf(&err).Elem()

	return values
}

func (d *Double) mustFit(values []any, outs []reflect.Type) []reflect.Value {
	fitted, err := fitReturns(values, outs)
	if err != nil {
		panic(fmt.Errorf("%s: %w", d.name, err))
	}

	return fitted
}

// deliver returns a channel that yields value once. The send waits for a receiver or for
// the owning state's reset, whichever comes first; a completed send is recorded as an await.
func (d *Double) deliver(chanType reflect.Type, value reflect.Value, call Call) reflect.Value {
	ch := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, chanType.Elem()), 0)

	d.life.spawn(func(done <-chan struct{}) {
		defer ch.Close()

		chosen, _, _ := reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectSend, Chan: ch, Send: value},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(done)},
		})
		if chosen == 0 {
			d.recordAwait(call)
		}
	})

	return assignTo(ch, chanType)
}

// relay forwards the first value of source through a new channel, recording the await when
// the caller receives it.
func (d *Double) relay(chanType reflect.Type, source reflect.Value, call Call) reflect.Value {
	if source.IsNil() {
		return source
	}

	ch := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, chanType.Elem()), 0)

	d.life.spawn(func(done <-chan struct{}) {
		defer ch.Close()

		doneCase := reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(done)}

		chosen, value, ok := reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: source},
			doneCase,
		})
		if chosen != 0 || !ok {
			return
		}

		chosen, _, _ = reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectSend, Chan: ch, Send: value},
			doneCase,
		})
		if chosen == 0 {
			d.recordAwait(call)
		}
	})

	return assignTo(ch, chanType)
}

func (d *Double) recordAwait(call Call) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.awaits = append(d.awaits, call)
}

func (d *Double) resultTypes() []reflect.Type {
	if d.async {
		return []reflect.Type{d.typ.Out(0).Elem()}
	}

	return outTypes(d.typ)
}

// interception is how a double treats the original attribute.
type interception int

const (
	interceptMock interception = iota
	interceptSpy
)

func (k interception) String() string {
	if k == interceptSpy {
		return "spy"
	}

	return "mock"
}

// lifecycle bounds the goroutines that deliver awaitable values. stop releases every
// pending delivery and waits for them to finish.
type lifecycle struct {
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func newLifecycle() *lifecycle {
	return &lifecycle{done: make(chan struct{})}
}

func (l *lifecycle) spawn(fn func(done <-chan struct{})) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		go fn(l.done)

		return
	}

	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		fn(l.done)
	}()
}

func (l *lifecycle) stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		close(l.done)
	}
	l.mu.Unlock()

	l.wg.Wait()
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflect type constant
	errorType = reflect.TypeFor[error]()
)

func assignTo(value reflect.Value, typ reflect.Type) reflect.Value {
	out := reflect.New(typ).Elem()
	out.Set(value)

	return out
}

func callRaw(fn reflect.Value, in []reflect.Value, variadic bool) []reflect.Value {
	if variadic {
		return fn.CallSlice(in)
	}

	return fn.Call(in)
}

func fitReturns(values []any, outs []reflect.Type) ([]reflect.Value, error) {
	if len(values) > len(outs) {
		return nil, fmt.Errorf("%w: %d return values configured for a function with %d results",
			ErrInvalidConfiguration, len(values), len(outs))
	}

	fitted := zeroValues(outs)

	for i, value := range values {
		converted, err := fitValue(value, outs[i])
		if err != nil {
			return nil, fmt.Errorf("return value %d: %w", i, err)
		}

		fitted[i] = converted
	}

	return fitted, nil
}

func flattenArgs(fnType reflect.Type, in []reflect.Value) []any {
	args := make([]any, 0, len(in))

	for i, value := range in {
		if fnType.IsVariadic() && i == len(in)-1 {
			for j := range value.Len() {
				args = append(args, value.Index(j).Interface())
			}

			continue
		}

		args = append(args, value.Interface())
	}

	return args
}

func outTypes(fnType reflect.Type) []reflect.Type {
	outs := make([]reflect.Type, fnType.NumOut())
	for i := range outs {
		outs[i] = fnType.Out(i)
	}

	return outs
}

func zeroValues(types []reflect.Type) []reflect.Value {
	values := make([]reflect.Value, len(types))
	for i, typ := range types {
		values[i] = reflect.Zero(typ)
	}

	return values
}
