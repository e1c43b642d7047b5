package core_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/toejough/mokit/internal/core"
	"pgregory.net/rapid"
)

// TestMock_TeapotScenario verifies a mocked method answers from its configuration,
// passes its assertion, and is restored for every instance afterwards.
func TestMock_TeapotScenario(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := newTeapotClass()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	holder.Mock("AddTea").ReturnValue("mocked").CalledOnce()

	g.Expect((&Teapot{class: class}).AddTea("green")).To(Equal("mocked"))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect((&Teapot{class: class}).AddTea("black")).To(Equal("loose black"))
}

// TestMock_NeverCalledFails verifies a queued count assertion fails at teardown.
func TestMock_NeverCalledFails(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := newTeapotClass()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	holder.Mock("AddTea").CalledOnce()

	err = state.Teardown()
	g.Expect(err).To(MatchError(core.ErrAssertion))
	g.Expect(err.Error()).To(ContainSubstring("to have been called once"))
	g.Expect(err.Error()).To(ContainSubstring("Called 0 times"))
	g.Expect((&Teapot{class: class}).AddTea("black")).To(Equal("loose black"),
		"doubles are uninstalled before assertions fail")
}

// TestMock_ChainedName verifies a dotted name mocks every link of a call chain.
func TestMock_ChainedName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := newFirstClass()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	holder.Mock("GetSecond.GetThird.Method").ReturnValue("mock_chain")

	first := &First{class: class}
	g.Expect(first.GetSecond().GetThird().Method()).To(Equal("mock_chain"))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(first.GetSecond().GetThird().Method()).To(Equal("value"))
}

// TestMock_ChainedNameReusesLinks verifies mocking two chains through the same head shares
// the intermediate stub.
func TestMock_ChainedNameReusesLinks(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := newFirstClass()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	first := holder.Mock("GetSecond.GetThird.Method").ReturnValue("one")
	second := holder.Mock("GetSecond.GetThird.Method").ReturnValue("two")

	g.Expect(first).To(BeIdenticalTo(second))
	g.Expect((&First{class: class}).GetSecond().GetThird().Method()).To(Equal("two"))
	g.Expect(state.Teardown()).To(Succeed())
}

// TestMock_ChainedNameThroughStub verifies chains on a stub return nested stubs.
func TestMock_ChainedNameThroughStub(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	stub, err := state.GetOrCreate(nil)
	g.Expect(err).NotTo(HaveOccurred())

	stub.Mock("Session.Query").ReturnValue("rows")

	session, ok := stub.Call("Session").(*core.Mock)
	g.Expect(ok).To(BeTrue(), "the first link returns a stub")
	g.Expect(session.Call("Query", "select")).To(Equal("rows"))
	g.Expect(state.Teardown()).To(Succeed())
}

// TestMock_SameNameReturnsSameAssert verifies re-mocking a name reuses the double and the
// last configuration wins.
func TestMock_SameNameReturnsSameAssert(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := newTeapotClass()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	first := holder.Mock("AddTea").ReturnValue("first")
	second := holder.Mock("AddTea").ReturnValue("second")

	g.Expect(first).To(BeIdenticalTo(second))
	g.Expect((&Teapot{class: class}).AddTea("green")).To(Equal("second"))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect((&Teapot{class: class}).AddTea("green")).To(Equal("loose green"))
}

// TestMock_ReceiverIsStripped verifies method calls are recorded without the receiver.
func TestMock_ReceiverIsStripped(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := newTeapotClass()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	assert := holder.Mock("AddTea").CalledOnceWith("oolong", false)

	(&Teapot{class: class}).AddBaggedTea("oolong")

	g.Expect(assert.Underlying().Calls()).To(Equal([]core.Call{{Args: []any{"oolong", false}}}))
	g.Expect(state.Teardown()).To(Succeed())
}

// TestMock_Variable verifies non-callable fields get value semantics and are restored.
func TestMock_Variable(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	assert := holder.Mock("Version")
	g.Expect(calc.Version).To(BeEmpty(), "a value double starts at the zero value")

	assert.ReturnValue("2.0")
	g.Expect(calc.Version).To(Equal("2.0"))
	g.Expect(holder.Get("Version")).To(Equal("2.0"))

	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(calc.Version).To(Equal("1.0"))
}

// TestMock_Property verifies getter fields are evaluated through Get.
func TestMock_Property(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	assert := holder.Mock("Total").ReturnValue(7).CalledOnce()
	g.Expect(assert.Underlying().Shape()).To(Equal(core.ShapeProperty))
	g.Expect(holder.Get("Total")).To(Equal(7))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(calc.Total()).To(Equal(42))
}

// TestMock_RestorationRoundTrip verifies any mocked field reads back as the original after
// teardown, whatever was configured.
func TestMock_RestorationRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		calc := newCalculator()
		state := core.NewState(t)

		holder, err := state.GetOrCreate(calc)
		if err != nil {
			rt.Fatalf("GetOrCreate: %v", err)
		}

		name := rapid.SampledFrom([]string{"Add", "Div", "Join", "Version"}).Draw(rt, "name")
		assert := holder.Mock(name)

		switch name {
		case "Add":
			assert.ReturnValue(rapid.Int().Draw(rt, "value"))
		case "Div":
			assert.ReturnValue(rapid.Int().Draw(rt, "value"), nil)
		case "Join":
			assert.ReturnValue(rapid.String().Draw(rt, "value"))
		case "Version":
			assert.ReturnValue(rapid.String().Draw(rt, "value"))
		}

		if err := state.Teardown(); err != nil {
			rt.Fatalf("Teardown: %v", err)
		}

		if got := calc.Add(2, 3); got != 5 {
			rt.Fatalf("Add restored wrongly: %d", got)
		}

		if got, err := calc.Div(6, 3); got != 2 || err != nil {
			rt.Fatalf("Div restored wrongly: %d, %v", got, err)
		}

		if got := calc.Join("-", "a", "b"); got != "a-b" {
			rt.Fatalf("Join restored wrongly: %q", got)
		}

		if calc.Version != "1.0" {
			rt.Fatalf("Version restored wrongly: %q", calc.Version)
		}
	})
}

// TestMock_CallCountAccuracy verifies CalledTimes(N) passes after N calls and
// CalledTimes(N+1) fails reporting N.
func TestMock_CallCountAccuracy(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		calls := rapid.IntRange(0, 20).Draw(rt, "calls")

		calc := newCalculator()
		state := core.NewState(t)

		holder, err := state.GetOrCreate(calc)
		if err != nil {
			rt.Fatalf("GetOrCreate: %v", err)
		}

		holder.Mock("Add").CalledTimes(calls)

		for range calls {
			calc.Add(1, 1)
		}

		if err := state.Teardown(); err != nil {
			rt.Fatalf("exact count failed: %v", err)
		}

		holder, err = state.GetOrCreate(calc)
		if err != nil {
			rt.Fatalf("GetOrCreate: %v", err)
		}

		holder.Mock("Add").CalledTimes(calls + 1)

		for range calls {
			calc.Add(1, 1)
		}

		err = state.Teardown()
		if !errors.Is(err, core.ErrAssertion) {
			rt.Fatalf("expected an assertion failure, got %v", err)
		}

		var failure *core.AssertionError
		if !errors.As(err, &failure) || failure.Name != "calculator.Add" {
			rt.Fatalf("unexpected failure %#v", err)
		}
	})
}

// TestSpy_PassThrough verifies a spy records arguments and returns the original's results.
func TestSpy_PassThrough(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(-1000, 1000).Draw(rt, "a")
		b := rapid.IntRange(-1000, 1000).Draw(rt, "b")

		calc := newCalculator()
		state := core.NewState(t)

		holder, err := state.GetOrCreate(calc)
		if err != nil {
			rt.Fatalf("GetOrCreate: %v", err)
		}

		holder.Spy("Add").CalledOnceWith(a, b)

		if got := calc.Add(a, b); got != a+b {
			rt.Fatalf("spy changed the result: %d", got)
		}

		if err := state.Teardown(); err != nil {
			rt.Fatalf("Teardown: %v", err)
		}
	})
}

// TestSpy_VariadicAndMethod verifies spies flatten variadic arguments and strip receivers.
func TestSpy_VariadicAndMethod(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	class := newTeapotClass()
	state := core.NewState(t)

	calcHolder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	classHolder, err := state.GetOrCreate(class)
	g.Expect(err).NotTo(HaveOccurred())

	calcHolder.Spy("Join").CalledWith(",", "a", "b", "c")
	classHolder.Spy("AddTea").CalledWith("jasmine", true)

	g.Expect(calc.Join(",", "a", "b", "c")).To(Equal("a,b,c"))
	g.Expect((&Teapot{class: class}).AddTea("jasmine")).To(Equal("loose jasmine"))
	g.Expect(state.Teardown()).To(Succeed())
}

// TestSpy_NotCallable verifies spying on a variable fails immediately.
func TestSpy_NotCallable(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	holder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	_, err = holder.TrySpy("Version")
	g.Expect(err).To(MatchError(core.ErrSpyingNotCallable))
}

// TestSpy_UnsupportedTargets verifies stubs cannot be spied on.
func TestSpy_UnsupportedTargets(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	stub, err := state.GetOrCreate(nil)
	g.Expect(err).NotTo(HaveOccurred())

	_, err = stub.TrySpy("Anything")
	g.Expect(err).To(MatchError(core.ErrSpyingUnsupportedTarget))
}

// TestMock_ConflictDetection verifies mock and spy cannot share an attribute.
func TestMock_ConflictDetection(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	holder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	_, err = holder.TryMock("Add")
	g.Expect(err).NotTo(HaveOccurred())

	_, err = holder.TrySpy("Add")
	g.Expect(err).To(MatchError(core.ErrConflictingInterception))

	_, err = holder.TrySpy("Div")
	g.Expect(err).NotTo(HaveOccurred())

	_, err = holder.TryMock("Div")
	g.Expect(err).To(MatchError(core.ErrConflictingInterception))

	_, err = holder.TrySpy("Div")
	g.Expect(err).NotTo(HaveOccurred(), "spying twice reuses the spy")

	g.Expect(state.Teardown()).To(Succeed())

	holder, err = state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	_, err = holder.TrySpy("Add")
	g.Expect(err).NotTo(HaveOccurred(), "teardown clears the interception kinds")
}

// TestMock_CreateCleanup verifies created attributes disappear at teardown.
func TestMock_CreateCleanup(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(holder.HasAttr("Reset")).To(BeFalse())

	holder.Mock("Reset", core.Create()).ReturnValue(true).CalledOnce()

	g.Expect(holder.HasAttr("Reset")).To(BeTrue())
	g.Expect(holder.Call("Reset")).To(Equal(true))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(holder.HasAttr("Reset")).To(BeFalse())
}

// TestMock_CreatePropertyCleanup verifies a created property is removed, not restored.
func TestMock_CreatePropertyCleanup(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	holder.Mock("Label", core.Create(), core.ForceProperty()).ReturnValue("pi")

	g.Expect(holder.Get("Label")).To(Equal("pi"))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(holder.HasAttr("Label")).To(BeFalse())
}

// TestMock_MissingAttribute verifies lookups fail without Create, and Create needs an
// Attrs field.
func TestMock_MissingAttribute(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	calcHolder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	_, err = calcHolder.TryMock("Multiply")
	g.Expect(err).To(MatchError(core.ErrAttributeLookup))
	g.Expect(err.Error()).To(ContainSubstring("type object 'calculator' has no attribute 'Multiply'"))

	plainHolder, err := state.GetOrCreate(&plain{})
	g.Expect(err).NotTo(HaveOccurred())

	_, err = plainHolder.TryMock("Greet", core.Create())
	g.Expect(err).To(MatchError(core.ErrAttributeLookup))
	g.Expect(err.Error()).To(ContainSubstring("no Attrs field"))
}

// TestMock_EmptyName verifies empty names and empty segments are rejected.
func TestMock_EmptyName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	holder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	for _, name := range []string{"", "Add.", ".Add", "Add..Div"} {
		_, err = holder.TryMock(name)
		g.Expect(err).To(MatchError(core.ErrEmptyAttributeName), name)
		g.Expect(err.Error()).To(ContainSubstring("Attribute name cannot be empty."))
	}
}

// TestMock_ThroughDelegate verifies one level of delegation is resolved.
func TestMock_ThroughDelegate(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(&proxy{inner: calc})
	g.Expect(err).NotTo(HaveOccurred())

	holder.Mock("Add").ReturnValue(100)

	g.Expect(calc.Add(1, 2)).To(Equal(100))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(calc.Add(1, 2)).To(Equal(3))
}

// TestMock_MangledName verifies class-private names resolve to their mangled field.
func TestMock_MangledName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	target := &vault{_vault__secret: func() string { return "real" }}
	state := core.NewState(t)

	holder, err := state.GetOrCreate(target)
	g.Expect(err).NotTo(HaveOccurred())

	assert := holder.Mock("__secret").ReturnValue("mocked")

	g.Expect(assert.Underlying().Name()).To(Equal("vault.__secret"))
	g.Expect(target._vault__secret()).To(Equal("mocked"))
	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(target._vault__secret()).To(Equal("real"))
}

// TestMock_SideEffects verifies errors, functions, and sequences drive calls.
func TestMock_SideEffects(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	failure := errors.New("boom")

	holder.Mock("Div").SideEffect(failure)

	_, err = calc.Div(1, 1)
	g.Expect(err).To(MatchError(failure))

	holder.Mock("Div").SideEffect(func(a, b int) (int, error) { return a * b, nil })
	g.Expect(calc.Div(3, 4)).To(Equal(12))

	holder.Mock("Div").SideEffect([]any{1, []any{2, nil}, failure})

	got, err := calc.Div(0, 1)
	g.Expect(got, err).To(Equal(1))

	got, err = calc.Div(0, 1)
	g.Expect(got, err).To(Equal(2))

	_, err = calc.Div(0, 1)
	g.Expect(err).To(MatchError(failure))

	g.Expect(func() { _, _ = calc.Div(0, 1) }).To(PanicWith(MatchError(core.ErrSideEffectExhausted)))

	holder.Mock("Add").SideEffect(failure)
	g.Expect(func() { calc.Add(1, 1) }).To(PanicWith(MatchError(failure)),
		"an error side effect panics when the function has no error result")

	g.Expect(state.Teardown()).To(Succeed())
}

// TestMock_ReturnValueTypeChecked verifies return values are checked when configured.
func TestMock_ReturnValueTypeChecked(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	holder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	assert, err := holder.TryMock("Add")
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(assert.Underlying().ConfigureReturn("not an int")).To(MatchError(core.ErrInvalidConfiguration))
	g.Expect(assert.Underlying().ConfigureReturn(1, 2)).To(MatchError(core.ErrInvalidConfiguration))
	g.Expect(assert.Underlying().ConfigureReturn(int64(3))).To(Succeed(), "numeric values convert")
}

// TestMock_Async verifies awaitable doubles record awaits when their value is received.
func TestMock_Async(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	assert := holder.Mock("Fetch").ReturnValue("mocked").AwaitedOnceWith("k").CalledTwice()

	g.Expect(assert.Underlying().IsAsync()).To(BeTrue())
	g.Expect(<-calc.Fetch("k")).To(Equal("mocked"))

	_ = calc.Fetch("never received")

	g.Expect(state.Teardown()).To(Succeed())
	g.Expect(<-calc.Fetch("k")).To(Equal("value of k"))
}

// TestSpy_Async verifies spies relay the original's value and record the await.
func TestSpy_Async(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	calc := newCalculator()
	state := core.NewState(t)

	holder, err := state.GetOrCreate(calc)
	g.Expect(err).NotTo(HaveOccurred())

	holder.Spy("Fetch").AwaitedOnceWith("k")

	g.Expect(<-calc.Fetch("k")).To(Equal("value of k"))
	g.Expect(state.Teardown()).To(Succeed())
}

// TestMock_AwaitOnSyncDouble verifies await assertions on sync doubles fail immediately.
func TestMock_AwaitOnSyncDouble(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fake := &fakeT{}
	state := core.NewState(fake)

	holder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	assert := holder.Mock("Add")

	g.Expect(func() { assert.AwaitedOnce() }).To(Panic())
	g.Expect(fake.fatals).To(HaveLen(1))
	g.Expect(fake.fatals[0]).To(ContainSubstring("does not have 'AwaitedOnce' method"))
	g.Expect(fake.fatals[0]).To(ContainSubstring("ForceAsync"))
}

// TestMock_ForceOptions verifies force options are checked against typed fields.
func TestMock_ForceOptions(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	state := core.NewState(t)

	holder, err := state.GetOrCreate(newCalculator())
	g.Expect(err).NotTo(HaveOccurred())

	_, err = holder.TryMock("Add", core.ForceAsync())
	g.Expect(err).To(MatchError(core.ErrInvalidConfiguration))

	_, err = holder.TryMock("Add", core.ForceProperty())
	g.Expect(err).To(MatchError(core.ErrInvalidConfiguration))
}

// TestMock_ZeroValueMisuse verifies zero-value holders and asserts panic.
func TestMock_ZeroValueMisuse(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(func() { (&core.Mock{}).Mock("Add") }).To(PanicWith(MatchError(core.ErrInitializationMisuse)))
	g.Expect(func() { (&core.Assert{}).CalledOnce() }).To(PanicWith(MatchError(core.ErrInitializationMisuse)))
}
