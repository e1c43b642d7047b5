package core

import (
	"fmt"
	"reflect"
	"slices"
	"unsafe"
)

// binding resolves attribute names against one kind of target.
type binding interface {
	// typeName names the target in qualified double names and lookup errors.
	typeName() string
	// lookup resolves name to a slot. A missing name yields a slot with exists unset only
	// when create is true and the target can grow attributes.
	lookup(name string, create bool) (*slot, error)
	// spyable reports why spies are not supported, if they are not.
	spyable() error
}

// slot is one settable attribute location.
type slot struct {
	name      string
	typ       reflect.Type
	tag       string
	exists    bool
	namespace bool
	get       func() reflect.Value
	set       func(reflect.Value)
	del       func()
}

// shape classifies the slot, applying the force options.
func (s *slot) shape(opts bindOptions) (Shape, bool, reflect.Type, error) {
	typ := s.typ

	if s.namespace && typ == nil {
		switch {
		case opts.forceProperty:
			return ShapeProperty, false, propertyType, nil
		case opts.forceAsync:
			return ShapeCallable, true, asyncFuncType, nil
		default:
			return ShapeCallable, false, funcType, nil
		}
	}

	if s.namespace && opts.forceProperty && typ.Kind() != reflect.Func {
		// A typed stub attribute read as a property yields values of its declared type.
		return ShapeProperty, false, reflect.FuncOf(nil, []reflect.Type{typ}, false), nil
	}

	shape, async, err := classify(s.name, typ, s.tag)
	if err != nil {
		return 0, false, nil, err
	}

	if s.isProperty() {
		shape = ShapeProperty
	}

	if opts.forceProperty && shape != ShapeProperty {
		if typ.Kind() != reflect.Func || typ.NumIn() != 0 || typ.NumOut() == 0 {
			return 0, false, nil, fmt.Errorf("%w: %s cannot be a property: %s is not a getter",
				ErrInvalidConfiguration, s.name, typ)
		}

		shape = ShapeProperty
	}

	if opts.forceAsync && !async {
		return 0, false, nil, fmt.Errorf("%w: %s cannot be async: %s does not return a channel",
			ErrInvalidConfiguration, s.name, typ)
	}

	return shape, async, typ, nil
}

func (s *slot) isProperty() bool {
	if !s.namespace || !s.exists {
		return false
	}

	current := s.get()

	return current.IsValid() && current.Type() == reflect.TypeFor[property]()
}

// objectBinding binds the fields of a struct pointer.
type objectBinding struct {
	ptr  reflect.Value
	elem reflect.Value
	name string
}

func newObjectBinding(target any) (*objectBinding, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a non-nil pointer to a struct", ErrUnsupportedTarget, target)
	}

	return &objectBinding{ptr: rv, elem: rv.Elem(), name: rv.Elem().Type().Name()}, nil
}

func (b *objectBinding) lookup(name string, create bool) (*slot, error) {
	if s, err := b.field(name); s != nil || err != nil {
		return s, err
	}

	attrs := b.attrs()
	if attrs != nil && attrs.Has(name) {
		return namespaceSlot(name, attrs), nil
	}

	if delegator, ok := b.ptr.Interface().(Delegator); ok {
		if inner, err := newObjectBinding(delegator.Delegate()); err == nil {
			if s, err := inner.field(name); s != nil || err != nil {
				return s, err
			}

			if innerAttrs := inner.attrs(); innerAttrs != nil && innerAttrs.Has(name) {
				return namespaceSlot(name, innerAttrs), nil
			}
		}
	}

	if !create {
		return nil, fmt.Errorf("%w: type object '%s' has no attribute '%s'", ErrAttributeLookup, b.name, name)
	}

	if attrs == nil {
		return nil, fmt.Errorf("%w: cannot create attribute '%s' on '%s': it has no Attrs field",
			ErrAttributeLookup, name, b.name)
	}

	return namespaceSlot(name, attrs), nil
}

func (b *objectBinding) spyable() error {
	return nil
}

func (b *objectBinding) typeName() string {
	return b.name
}

// attrs returns the struct's dynamic namespace, if it declares one.
func (b *objectBinding) attrs() *Attrs {
	structType := b.elem.Type()

	for i := range structType.NumField() {
		fieldType := structType.Field(i).Type

		switch fieldType {
		case attrsType:
			return settable(b.elem.Field(i)).Addr().Interface().(*Attrs) //nolint:forcetypeassert // type checked above
		case reflect.PointerTo(attrsType):
			field := settable(b.elem.Field(i))
			if field.IsNil() {
				field.Set(reflect.ValueOf(&Attrs{}))
			}

			return field.Interface().(*Attrs) //nolint:forcetypeassert // type checked above
		}
	}

	return nil
}

// field resolves name, then its class-private form, against the struct's fields. Fields
// declared on the struct itself win over fields promoted from embedded structs.
func (b *objectBinding) field(name string) (*slot, error) {
	value, structField, err := b.fieldValue(name)
	if err != nil || !value.IsValid() {
		return nil, err
	}

	return fieldSlot(structField.Name, structField.Tag.Get(TagKey), value), nil
}

// fieldValue returns the settable field that field resolves name to, or an invalid value when
// the struct has no such field.
func (b *objectBinding) fieldValue(name string) (reflect.Value, reflect.StructField, error) {
	for _, candidate := range slices.Compact([]string{name, MangleName(b.name, name)}) {
		structField, ok := b.elem.Type().FieldByName(candidate)
		if !ok || structField.Type == attrsType || structField.Type == reflect.PointerTo(attrsType) {
			continue
		}

		value, err := b.elem.FieldByIndexErr(structField.Index)
		if err != nil {
			return reflect.Value{}, structField, fmt.Errorf("%w: cannot reach '%s' on '%s': %w",
				ErrAttributeLookup, name, b.name, err)
		}

		return settable(value), structField, nil
	}

	return reflect.Value{}, reflect.StructField{}, nil
}

// moduleBinding binds the variables of a Module.
type moduleBinding struct {
	module *Module
}

func (b *moduleBinding) lookup(name string, create bool) (*slot, error) {
	if cell, ok := b.module.cells[name]; ok {
		return fieldSlot(name, "", cell.Elem()), nil
	}

	if b.module.attrs.Has(name) || create {
		return namespaceSlot(name, &b.module.attrs), nil
	}

	return nil, fmt.Errorf("%w: module '%s' has no attribute '%s'", ErrAttributeLookup, b.module.path, name)
}

func (b *moduleBinding) spyable() error {
	return nil
}

func (b *moduleBinding) typeName() string {
	return b.module.path
}

// patchBinding binds attributes of the stand-in installed for an import path.
type patchBinding struct {
	*objectBinding

	path string
}

func (b *patchBinding) spyable() error {
	return fmt.Errorf("%w: cannot spy on patched %s: the original was replaced", ErrSpyingUnsupportedTarget, b.path)
}

// stubBinding binds attributes of a stub's own namespace.
type stubBinding struct {
	attrs *Attrs
	spec  *stubSpec
}

func (b *stubBinding) lookup(name string, create bool) (*slot, error) {
	if reservedNames[name] {
		return nil, fmt.Errorf("%w: Cannot replace Mock internal attribute %s", ErrReservedAttribute, name)
	}

	s := namespaceSlot(name, b.attrs)

	if b.spec == nil {
		return s, nil
	}

	entry, ok := b.spec.entries[name]
	if !ok {
		if create {
			return s, nil
		}

		return nil, fmt.Errorf("%w: Mock object has no attribute '%s'", ErrAttributeLookup, name)
	}

	if entry.typ != nil && !s.isProperty() {
		s.typ, s.tag = entry.typ, entry.tag
	}

	return s, nil
}

func (b *stubBinding) spyable() error {
	return fmt.Errorf("%w: a stub has no original to spy on", ErrSpyingUnsupportedTarget)
}

func (b *stubBinding) typeName() string {
	return "Stub"
}

// stubSpec restricts a stub to the attributes of a template.
type stubSpec struct {
	entries map[string]specEntry
}

type specEntry struct {
	typ reflect.Type
	tag string
}

// newStubSpec builds a spec from a []string of names, or from a struct (or struct pointer)
// whose fields and methods give each attribute its type.
func newStubSpec(template any) (*stubSpec, error) {
	spec := &stubSpec{entries: make(map[string]specEntry)}

	if names, ok := template.([]string); ok {
		for _, name := range names {
			spec.entries[name] = specEntry{}
		}

		return spec, nil
	}

	rv := reflect.ValueOf(template)
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil spec", ErrInvalidConfiguration)
	}

	structType := rv.Type()
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: spec must be a struct or a []string, got %T", ErrInvalidConfiguration, template)
	}

	for i := range structType.NumField() {
		field := structType.Field(i)
		spec.entries[field.Name] = specEntry{typ: field.Type, tag: field.Tag.Get(TagKey)}
	}

	methods := reflect.New(structType)
	for i := range methods.NumMethod() {
		spec.entries[methods.Type().Method(i).Name] = specEntry{typ: methods.Method(i).Type()}
	}

	return spec, nil
}

// unexported variables.
var (
	//nolint:gochecknoglobals // reflect type constants
	asyncFuncType = reflect.TypeFor[AsyncFunc]()
	//nolint:gochecknoglobals // reflect type constants
	attrsType = reflect.TypeFor[Attrs]()
	//nolint:gochecknoglobals // reflect type constants
	funcType = reflect.TypeFor[Func]()
	//nolint:gochecknoglobals // reflect type constants
	propertyType = reflect.TypeFor[func() any]()
)

func fieldSlot(name, tag string, field reflect.Value) *slot {
	return &slot{
		name:   name,
		typ:    field.Type(),
		tag:    tag,
		exists: true,
		get: func() reflect.Value {
			snapshot := reflect.New(field.Type()).Elem()
			snapshot.Set(field)

			return snapshot
		},
		set: func(value reflect.Value) { field.Set(value) },
	}
}

func namespaceSlot(name string, attrs *Attrs) *slot {
	s := &slot{
		name:      name,
		namespace: true,
		get: func() reflect.Value {
			value, _ := attrs.raw(name)

			return reflect.ValueOf(value)
		},
		set: func(value reflect.Value) {
			if !value.IsValid() {
				attrs.Set(name, nil)

				return
			}

			attrs.Set(name, value.Interface())
		},
		del: func() { attrs.Delete(name) },
	}

	raw, exists := attrs.raw(name)
	s.exists = exists

	switch typed := raw.(type) {
	case nil:
	case property:
		s.typ = typed.fn.Type()
	default:
		s.typ = reflect.TypeOf(raw)
	}

	return s
}

// settable returns an assignable view of an addressable value, including unexported fields.
func settable(value reflect.Value) reflect.Value {
	if value.CanSet() {
		return value
	}

	return reflect.NewAt(value.Type(), unsafe.Pointer(value.UnsafeAddr())).Elem() //nolint:gosec // field is addressable
}
