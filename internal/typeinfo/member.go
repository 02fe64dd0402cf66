// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"math"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

// Mutator sets the value of one attribute on a bean.
type Mutator interface {
	// Set assigns value to the attribute of the struct bean points to. bean
	// must be a non-nil pointer to the bean type the Mutator was bound on. An
	// invalid value sets the zero value.
	Set(bean reflect.Value, value reflect.Value) error

	// String returns a natural language description of the Mutator for use
	// in error messages.
	String() string
}

// BindMutator locates the capability to set attr on values of the struct type
// bean. A method named "Set" followed by the capitalised attribute name,
// declared on *bean and taking exactly the attribute type, is preferred. Its
// only allowed result is an error. The method may be promoted from an embedded
// struct; nil embedded pointers on the way are allocated when it is called.
// Otherwise the attribute must be an exported field that can be reached
// without passing through an unexported embedded pointer.
func BindMutator(bean reflect.Type, attr Attribute) (Mutator, error) {
	name := "Set" + upperFirst(attr.Name())
	if m, ok := reflect.PointerTo(bean).MethodByName(name); ok && isSetter(m.Type, attr.Type()) {
		return &setterMethod{
			name:      name,
			beanType:  bean,
			index:     m.Index,
			path:      methodPath(bean, name),
			fieldType: attr.Type(),
		}, nil
	}
	if attr.Field.IsExported() && reachable(bean, attr.Index) {
		return &structField{name: attr.Name(), beanType: bean, index: attr.Index, fieldType: attr.Type()}, nil
	}
	return nil, errors.Errorf("no method %s(%s) and no settable field %q on struct %q", name, attr.Type(), attr.Name(), bean.Name())
}

// isSetter reports whether mt, the type of a method expression with its
// receiver as first argument, takes one argument of type arg and returns
// nothing or an error.
func isSetter(mt reflect.Type, arg reflect.Type) bool {
	if mt.NumIn() != 2 || mt.In(1) != arg {
		return false
	}
	switch mt.NumOut() {
	case 0:
		return true
	case 1:
		return mt.Out(0) == errorInterface
	}
	return false
}

// reachable reports whether every embedded struct on the path to a field can
// be traversed when setting it. Unexported embedded pointers cannot be
// allocated, so they are refused.
func reachable(bean reflect.Type, index []int) bool {
	t := bean
	for _, i := range index[:len(index)-1] {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			if !f.IsExported() {
				return false
			}
			t = f.Type.Elem()
			continue
		}
		t = f.Type
	}
	return true
}

// methodPath returns the indexes of the embedded fields through which the
// method name of *bean is promoted, outermost first.
func methodPath(bean reflect.Type, name string) []int {
	var path []int
	seen := map[reflect.Type]bool{bean: true}
	t := bean
	for {
		next := -1
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if !f.Anonymous || et.Kind() != reflect.Struct {
				continue
			}
			if _, ok := reflect.PointerTo(et).MethodByName(name); ok {
				next = i
				break
			}
		}
		if next < 0 {
			return path
		}
		t = t.Field(next).Type
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if seen[t] {
			return path
		}
		seen[t] = true
		path = append(path, next)
	}
}

// walkEmbedded follows path from the struct v through embedded fields,
// allocating nil embedded pointers.
func walkEmbedded(v reflect.Value, path []int) (reflect.Value, error) {
	for _, i := range path {
		v = v.Field(i)
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, errors.Errorf("embedded %s is nil", v.Type())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
	}
	return v, nil
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// setterMethod sets an attribute through a setter method.
type setterMethod struct {
	name     string
	beanType reflect.Type
	index    int
	// path leads to the embedded struct declaring the method.
	path      []int
	fieldType reflect.Type
}

func (m *setterMethod) Set(bean reflect.Value, value reflect.Value) error {
	if err := checkBean(bean, m.beanType); err != nil {
		return err
	}
	arg, err := coerce(value, m.fieldType)
	if err != nil {
		return errors.Wrapf(err, "cannot call %s", m)
	}
	if _, err := walkEmbedded(bean.Elem(), m.path); err != nil {
		return errors.Wrapf(err, "cannot call %s", m)
	}
	out := bean.Method(m.index).Call([]reflect.Value{arg})
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func (m *setterMethod) String() string {
	return "method \"" + m.name + "\" of struct \"" + m.beanType.Name() + "\""
}

// structField sets an attribute by assigning to the field directly.
type structField struct {
	name      string
	beanType  reflect.Type
	index     []int
	fieldType reflect.Type
}

func (f *structField) Set(bean reflect.Value, value reflect.Value) error {
	if err := checkBean(bean, f.beanType); err != nil {
		return err
	}
	v, err := walkEmbedded(bean.Elem(), f.index[:len(f.index)-1])
	if err != nil {
		return errors.Wrapf(err, "cannot set %s", f)
	}
	v = v.Field(f.index[len(f.index)-1])
	if !v.CanSet() {
		return errors.Errorf("internal error: cannot set %s", f)
	}
	arg, err := coerce(value, f.fieldType)
	if err != nil {
		return errors.Wrapf(err, "cannot set %s", f)
	}
	v.Set(arg)
	return nil
}

func (f *structField) String() string {
	return "field \"" + f.name + "\" of struct \"" + f.beanType.Name() + "\""
}

// checkBean checks that bean is a non-nil pointer to a value of type want.
func checkBean(bean reflect.Value, want reflect.Type) error {
	if bean.Kind() != reflect.Pointer || bean.IsNil() {
		return errors.Errorf("need non-nil pointer to struct %q, got %s", want.Name(), bean.Kind())
	}
	if bean.Type().Elem() != want {
		return errors.Errorf("need pointer to struct %q, got pointer to %q", want.Name(), bean.Type().Elem().Name())
	}
	return nil
}

// coerce returns value as a value of type t. Values assignable to t are used
// as they are. Numbers are converted between numeric kinds when they fit in
// t, and into booleans.
// Strings and byte slices are converted into string kinds. Database drivers
// rarely return the exact declared type.
func coerce(value reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !value.IsValid() {
		return reflect.Zero(t), nil
	}
	vt := value.Type()
	if vt.AssignableTo(t) {
		return value, nil
	}
	switch {
	case isNumber(vt.Kind()) && isNumber(t.Kind()):
		return convertNumber(value, t)
	case t.Kind() == reflect.Bool && isNumber(vt.Kind()):
		// SQLite has no boolean type.
		b := value.Convert(reflect.TypeOf(float64(0))).Float() != 0
		return reflect.ValueOf(b).Convert(t), nil
	case t.Kind() == reflect.String && (vt.Kind() == reflect.String || vt == reflect.TypeOf([]byte(nil))):
		return value.Convert(t), nil
	case t.Kind() == reflect.Pointer && vt.AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(value)
		return p, nil
	}
	return reflect.Value{}, errors.Errorf("cannot use value of type %s as %s", vt, t)
}

// convertNumber converts the number value to the numeric type t. Values out
// of the range of t, and fractional values for integer types, are refused.
func convertNumber(value reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	outOfRange := func() (reflect.Value, error) {
		return reflect.Value{}, errors.Errorf("cannot use value %v of type %s as %s: out of range", value, value.Type(), t)
	}
	k := value.Kind()
	switch {
	case isInt(t.Kind()):
		var n int64
		switch {
		case isInt(k):
			n = value.Int()
		case isUint(k):
			if value.Uint() > math.MaxInt64 {
				return outOfRange()
			}
			n = int64(value.Uint())
		default:
			f := value.Float()
			if f != math.Trunc(f) {
				return reflect.Value{}, errors.Errorf("cannot use value %v of type %s as %s: not an integer", value, value.Type(), t)
			}
			if f < math.MinInt64 || f >= math.MaxInt64 {
				return outOfRange()
			}
			n = int64(f)
		}
		if out.OverflowInt(n) {
			return outOfRange()
		}
		out.SetInt(n)
	case isUint(t.Kind()):
		var n uint64
		switch {
		case isInt(k):
			if value.Int() < 0 {
				return outOfRange()
			}
			n = uint64(value.Int())
		case isUint(k):
			n = value.Uint()
		default:
			f := value.Float()
			if f != math.Trunc(f) {
				return reflect.Value{}, errors.Errorf("cannot use value %v of type %s as %s: not an integer", value, value.Type(), t)
			}
			if f < 0 || f >= math.MaxUint64 {
				return outOfRange()
			}
			n = uint64(f)
		}
		if out.OverflowUint(n) {
			return outOfRange()
		}
		out.SetUint(n)
	default:
		f := value.Convert(reflect.TypeOf(float64(0))).Float()
		if out.OverflowFloat(f) {
			return outOfRange()
		}
		out.SetFloat(f)
	}
	return out, nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
