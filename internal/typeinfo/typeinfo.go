// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"

	"github.com/pkg/errors"
)

// embedded is a struct reached from the bean type through anonymous fields.
type embedded struct {
	typ   reflect.Type
	index []int
}

// Discover returns the attributes of the struct type t in declaration order.
// Fields of t come first. When ascend is true, the fields of the structs
// embedded in t follow, then those embedded in them, one level at a time.
// When ascend is false embedded structs are ignored.
//
// Blank fields and fields of an empty struct type are markers, not data, and
// are never returned. Fields with the same name at different levels are all
// returned.
func Discover(t reflect.Type, ascend bool) ([]Attribute, error) {
	if t == nil {
		return nil, errors.New("cannot discover attributes of nil type")
	}
	st := structType(t)
	if st == nil {
		return nil, errors.Errorf("can only discover attributes of struct types, got %s", t.Kind())
	}

	var attrs []Attribute
	seen := map[reflect.Type]bool{st: true}
	level := []embedded{{typ: st}}
	for depth := 0; len(level) > 0; depth++ {
		var next []embedded
		for _, e := range level {
			for i := 0; i < e.typ.NumField(); i++ {
				field := e.typ.Field(i)
				if isMarker(field) {
					continue
				}
				index := make([]int, len(e.index)+1)
				copy(index, e.index)
				index[len(e.index)] = i

				if field.Anonymous {
					if et := structType(field.Type); et != nil {
						// Embedding the same struct twice, or a struct
						// embedding itself through a pointer, is walked once.
						if !seen[et] {
							seen[et] = true
							next = append(next, embedded{typ: et, index: index})
						}
						continue
					}
				}
				attrs = append(attrs, Attribute{
					Field:     field,
					Index:     index,
					Declaring: e.typ,
					Depth:     depth,
				})
			}
		}
		if !ascend {
			break
		}
		level = next
	}
	return attrs, nil
}

// structType returns t, or the type t points to, if it is a struct.
func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// isMarker reports whether the field carries no data.
func isMarker(field reflect.StructField) bool {
	if field.Name == "_" {
		return true
	}
	return field.Type.Kind() == reflect.Struct && field.Type.NumField() == 0
}
