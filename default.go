// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"reflect"
	"sync"
)

var (
	defaultResolver *Resolver
	once            sync.Once
)

// Default returns the process wide Resolver used by Resolve, ResolveType and
// MustResolve. It maps beans with TagMapping.
func Default() *Resolver {
	once.Do(func() {
		defaultResolver = NewResolver()
	})
	return defaultResolver
}

// Resolve returns the metadata of the type of bean from the default Resolver.
func Resolve(bean any) (*BeanMeta, error) {
	return Default().Resolve(bean)
}

// ResolveType returns the metadata of t from the default Resolver.
func ResolveType(t reflect.Type) (*BeanMeta, error) {
	return Default().ResolveType(t)
}

// MustResolve is the same as Resolve except that it panics on error.
func MustResolve(bean any) *BeanMeta {
	return Default().MustResolve(bean)
}
