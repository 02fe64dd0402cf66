// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"reflect"

	"github.com/pkg/errors"
)

// Kinds of resolution failure. Use errors.Is to test a returned error against
// them.
var (
	// ErrUnresolvableType is returned when the mapping has no table mapping
	// for a type.
	ErrUnresolvableType = errors.New("unresolvable type")

	// ErrEmptyMapping is returned when none of the attributes of a type are
	// mapped to SQL.
	ErrEmptyMapping = errors.New("empty mapping")

	// ErrMissingMutator is returned when a mapped attribute cannot be set.
	ErrMissingMutator = errors.New("missing mutator")

	// ErrMalformedSnippet is returned when a SQL snippet has a badly formed
	// embedded parameter.
	ErrMalformedSnippet = errors.New("malformed snippet")
)

// ResolveError describes why a type could not be resolved.
type ResolveError struct {
	// Kind is one of the Err* kinds declared in this package.
	Kind error

	// Type is the bean type being resolved.
	Type reflect.Type

	// Field is the name of the offending attribute, if any.
	Field string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ResolveError) Error() string {
	msg := e.Kind.Error() + ": "
	if e.Type != nil {
		msg += "type \"" + e.Type.String() + "\""
	} else {
		msg += "nil type"
	}
	if e.Field != "" {
		msg += " field \"" + e.Field + "\""
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of e.
func (e *ResolveError) Is(target error) bool {
	return target == e.Kind
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func resolveError(kind error, t reflect.Type, field string, cause error) error {
	return &ResolveError{Kind: kind, Type: t, Field: field, Err: cause}
}

// resolveErrorf is resolveError with a formatted cause.
func resolveErrorf(kind error, t reflect.Type, field string, format string, args ...any) error {
	return resolveError(kind, t, field, errors.Errorf(format, args...))
}
