package core_test

import (
	"fmt"
	"strings"
	"sync"

	"github.com/toejough/mokit/internal/core"
)

// fakeT captures reports instead of failing the enclosing test.
type fakeT struct {
	mu       sync.Mutex
	fatals   []string
	errors   []string
	logs     []string
	failed   bool
	cleanups []func()
}

func (f *fakeT) Cleanup(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleanups = append(f.cleanups, fn)
}

func (f *fakeT) Errorf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failed = true
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func (f *fakeT) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failed
}

// Fatalf records the failure and panics, standing in for the goroutine exit of *testing.T.
func (f *fakeT) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	f.mu.Lock()
	f.failed = true
	f.fatals = append(f.fatals, msg)
	f.mu.Unlock()

	panic("fakeT failed: " + msg)
}

func (f *fakeT) Helper() {}

func (f *fakeT) Logf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logs = append(f.logs, fmt.Sprintf(format, args...))
}

// runCleanups runs the registered cleanups in reverse, like the testing package.
func (f *fakeT) runCleanups() {
	f.mu.Lock()
	cleanups := f.cleanups
	f.cleanups = nil
	f.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Teapot dispatches its methods through a per-test class table, so tests can replace
// methods for every instance without touching other tests.
type Teapot struct {
	class *teapotClass
}

func (t *Teapot) AddTea(tea string) string {
	return t.class.AddTea(t, tea, true)
}

func (t *Teapot) AddBaggedTea(tea string) string {
	return t.class.AddTea(t, tea, false)
}

type teapotClass struct {
	AddTea func(t *Teapot, tea string, loose bool) string `mokit:"method"`
}

func newTeapotClass() *teapotClass {
	return &teapotClass{
		AddTea: func(_ *Teapot, tea string, loose bool) string {
			if loose {
				return "loose " + tea
			}

			return "bagged " + tea
		},
	}
}

// First, Second, and Third form a call chain: First().GetSecond().GetThird().Method().
type First struct {
	class *firstClass
}

func (f *First) GetSecond() *Second {
	return f.class.GetSecond(f)
}

type Second struct {
	GetThird func() *Third
}

type Third struct {
	Method func() string
}

type firstClass struct {
	GetSecond func(f *First) *Second `mokit:"method"`
}

func newFirstClass() *firstClass {
	return &firstClass{
		GetSecond: func(*First) *Second {
			return &Second{GetThird: func() *Third {
				return &Third{Method: func() string { return "value" }}
			}}
		},
	}
}

// calculator holds callables, a variable, and an async method.
type calculator struct {
	Add     func(a, b int) int
	Div     func(a, b int) (int, error)
	Join    func(sep string, parts ...string) string
	Version string
	Fetch   func(key string) <-chan string
	Total   func() int `mokit:"property"`

	attrs core.Attrs
}

func newCalculator() *calculator {
	return &calculator{
		Add: func(a, b int) int { return a + b },
		Div: func(a, b int) (int, error) {
			if b == 0 {
				return 0, errDivideByZero
			}

			return a / b, nil
		},
		Join:    func(sep string, parts ...string) string { return strings.Join(parts, sep) },
		Version: "1.0",
		Fetch: func(key string) <-chan string {
			ch := make(chan string, 1)
			ch <- "value of " + key
			close(ch)

			return ch
		},
		Total: func() int { return 42 },
	}
}

// plain has no Attrs field, so it cannot grow attributes.
type plain struct {
	Name string
}

// proxy forwards attribute access to the calculator it wraps.
type proxy struct {
	inner *calculator
}

func (p *proxy) Delegate() any {
	return p.inner
}

// vault stores a class-private attribute under its mangled name.
type vault struct {
	_vault__secret func() string //nolint:revive,stylecheck // mangled name
}

// service is used as a stub spec.
type service struct {
	Timeout int
}

func (s *service) Fetch(id string) (string, error) {
	return "real " + id, nil
}

// unexported variables.
var (
	errDivideByZero = fmt.Errorf("divide by zero")
)
