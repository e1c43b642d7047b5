package core_test

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/toejough/mokit/internal/core"
	"pgregory.net/rapid"
)

func TestNewCall_SplitsTrailingKwargs(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	call := core.NewCall(1, "a", core.Kwargs{"key": 2})

	g.Expect(call.Args).To(Equal([]any{1, "a"}))
	g.Expect(call.Kwargs).To(Equal(core.Kwargs{"key": 2}))
	g.Expect(call.String()).To(Equal(`call(1, "a", key=2)`))

	g.Expect(core.NewCall().String()).To(Equal("call()"))
	g.Expect(core.NewCall(nil, core.Kwargs{"b": 1, "a": "x"}).String()).To(Equal(`call(nil, a="x", b=1)`))
}

func TestCall_ContainsAndMatches(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	recorded := core.NewCall(1, 2, core.Kwargs{"mode": "fast", "retry": true})

	g.Expect(recorded.Contains(core.NewCall(1))).To(BeTrue())
	g.Expect(recorded.Contains(core.NewCall(core.Kwargs{"retry": true}))).To(BeTrue())
	g.Expect(recorded.Contains(core.NewCall(2))).To(BeFalse())
	g.Expect(recorded.Contains(core.NewCall(1, 2, 3))).To(BeFalse())
	g.Expect(recorded.Contains(core.NewCall(core.Kwargs{"other": 1}))).To(BeFalse())

	g.Expect(recorded.Matches(core.NewCall(1, 2, core.Kwargs{"mode": "fast", "retry": true}))).To(BeTrue())
	g.Expect(recorded.Matches(core.NewCall(1, BeNumerically(">", 1), core.Kwargs{
		"mode":  HavePrefix("fa"),
		"retry": BeTrue(),
	}))).To(BeTrue())
	g.Expect(recorded.Matches(core.NewCall(1, 2))).To(BeFalse())
}

// TestCall_PrefixContainment verifies any prefix of a call's arguments is contained in it.
func TestCall_PrefixContainment(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		args := rapid.SliceOf(rapid.Int()).Draw(rt, "args")
		cut := rapid.IntRange(0, len(args)).Draw(rt, "cut")

		full := make([]any, len(args))
		for i, arg := range args {
			full[i] = arg
		}

		recorded := core.NewCall(full...)

		if !recorded.Contains(core.NewCall(full[:cut]...)) {
			rt.Fatalf("call %s does not contain its prefix of %d", recorded, cut)
		}

		if !recorded.Matches(core.NewCall(full...)) {
			rt.Fatalf("call %s does not match itself", recorded)
		}
	})
}

func TestMatchValue_TypedNil(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var ptr *calculator

	ok, _ := core.MatchValue(ptr, nil)
	g.Expect(ok).To(BeTrue())

	ok, msg := core.MatchValue(1, 2)
	g.Expect(ok).To(BeFalse())
	g.Expect(msg).To(Equal("expected 2, got 1"))
}

func TestMangleName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(core.MangleName("Vault", "__secret")).To(Equal("_Vault__secret"))
	g.Expect(core.MangleName("_Vault", "__secret")).To(Equal("_Vault__secret"))
	g.Expect(core.MangleName("Vault", "__init__")).To(Equal("__init__"))
	g.Expect(core.MangleName("Vault", "_single")).To(Equal("_single"))
	g.Expect(core.MangleName("Vault", "__a.b")).To(Equal("__a.b"))
	g.Expect(core.MangleName("___", "__secret")).To(Equal("__secret"))
}

// TestMangleName_Idempotent verifies names that do not start with a double underscore pass
// through, and mangled names are never mangled again.
func TestMangleName_Idempotent(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		typeName := rapid.StringMatching(`_*[A-Z][a-zA-Z0-9]{0,8}`).Draw(rt, "type")
		name := rapid.StringMatching(`__[a-z][a-z0-9_]{0,8}`).Draw(rt, "name")

		mangled := core.MangleName(typeName, name)
		if strings.HasSuffix(name, "__") {
			if mangled != name {
				rt.Fatalf("dunder %q was mangled to %q", name, mangled)
			}

			return
		}

		if !strings.HasPrefix(mangled, "_"+strings.TrimLeft(typeName, "_")) || !strings.HasSuffix(mangled, name) {
			rt.Fatalf("unexpected mangling of %q on %q: %q", name, typeName, mangled)
		}

		if again := core.MangleName(typeName, mangled); again != mangled {
			rt.Fatalf("mangled name %q changed again to %q", mangled, again)
		}
	})
}

func TestShape_String(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(core.ShapeMethod.String()).To(Equal("method"))
	g.Expect(core.ShapeStatic.String()).To(Equal("staticmethod"))
	g.Expect(core.ShapeVariable.String()).To(Equal("variable"))
	g.Expect(core.Shape(99).String()).To(Equal("Shape(99)"))
}

func TestAttrs_Namespace(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var attrs core.Attrs

	g.Expect(attrs.Has("x")).To(BeFalse())

	attrs.Set("b", 2)
	attrs.Set("a", 1)

	value, ok := attrs.Get("a")
	g.Expect(ok).To(BeTrue())
	g.Expect(value).To(Equal(1))
	g.Expect(attrs.Names()).To(Equal([]string{"a", "b"}))

	attrs.Delete("a")
	g.Expect(attrs.Has("a")).To(BeFalse())
}
