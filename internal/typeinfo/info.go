// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
)

// Attribute is a struct field discovered on a bean type.
type Attribute struct {
	// Field is the field as declared. Field.Index is relative to Declaring.
	Field reflect.StructField

	// Index is the path to the field from the bean type, as used by
	// reflect.Value.FieldByIndex.
	Index []int

	// Declaring is the struct type that declares the field. It is the bean
	// type itself for own fields and an embedded struct type otherwise.
	Declaring reflect.Type

	// Depth is 0 for fields of the bean type, 1 for fields of structs
	// embedded in it, and so on.
	Depth int
}

// Name returns the declared name of the field.
func (a Attribute) Name() string {
	return a.Field.Name
}

// Type returns the declared type of the field.
func (a Attribute) Type() reflect.Type {
	return a.Field.Type
}

// String returns a natural language description of the attribute for use in
// error messages.
func (a Attribute) String() string {
	return "field \"" + a.Field.Name + "\" of struct \"" + a.Declaring.Name() + "\""
}
