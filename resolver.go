// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/canonical/beanmeta/internal/typeinfo"
)

// aliasPrefix starts every generated column alias. Some databases reject
// aliases starting with an underscore.
const aliasPrefix = "c_"

// Resolver resolves bean types into BeanMeta values and caches them for the
// lifetime of the Resolver. It is safe for concurrent use.
//
// Cached metadata is read without locking. Types missing from the cache are
// resolved one at a time under a single mutex shared by all types.
type Resolver struct {
	mapping DBMapping
	parser  SnippetParser
	logger  *zap.Logger

	// cache maps a reflect.Type to its *BeanMeta. Entries are stored once
	// fully built and are never replaced or removed.
	cache sync.Map

	// mutex must be held while resolving a type that is not in the cache.
	mutex sync.Mutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMapping sets the mapping used to resolve beans. The default is
// TagMapping{}.
func WithMapping(m DBMapping) Option {
	return func(r *Resolver) {
		if m != nil {
			r.mapping = m
		}
	}
}

// WithSnippetParser sets the parser used for SQL snippets. The default is
// DefaultSnippetParser.
func WithSnippetParser(p SnippetParser) Option {
	return func(r *Resolver) {
		if p != nil {
			r.parser = p
		}
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver returns a Resolver with an empty cache.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		mapping: TagMapping{},
		parser:  DefaultSnippetParser,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the metadata of the type of bean, which may be a struct or
// a pointer to one.
func (r *Resolver) Resolve(bean any) (*BeanMeta, error) {
	if bean == nil {
		return nil, resolveErrorf(ErrUnresolvableType, nil, "", "cannot resolve nil value")
	}
	return r.ResolveType(reflect.TypeOf(bean))
}

// MustResolve is the same as Resolve except that it panics on error.
func (r *Resolver) MustResolve(bean any) *BeanMeta {
	m, err := r.Resolve(bean)
	if err != nil {
		panic(err)
	}
	return m
}

// ResolveType returns the metadata of t, resolving it on first use. A pointer
// type resolves to the metadata of the type it points to. The same *BeanMeta
// is returned for every call with the same type. Failures are not cached.
func (r *Resolver) ResolveType(t reflect.Type) (*BeanMeta, error) {
	if t == nil {
		return nil, resolveErrorf(ErrUnresolvableType, nil, "", "cannot resolve nil type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if m, ok := r.cache.Load(t); ok {
		return m.(*BeanMeta), nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Check if the type has been resolved by someone else since we last
	// checked.
	if m, ok := r.cache.Load(t); ok {
		return m.(*BeanMeta), nil
	}

	r.logger.Debug("resolving bean metadata", zap.Stringer("type", t))
	meta, err := r.resolve(t)
	if err != nil {
		r.logger.Warn("cannot resolve bean metadata", zap.Stringer("type", t), zap.Error(err))
		return nil, err
	}
	r.cache.Store(t, meta)
	r.logger.Debug("resolved bean metadata",
		zap.Stringer("type", t),
		zap.String("dataSource", meta.dataSource),
		zap.Int("fields", len(meta.fields)),
	)
	return meta, nil
}

// resolve builds the metadata of the struct type t.
func (r *Resolver) resolve(t reflect.Type) (*BeanMeta, error) {
	if t.Kind() != reflect.Struct {
		return nil, resolveErrorf(ErrUnresolvableType, t, "", "need struct, got %s", t.Kind())
	}
	table, ok, err := r.mapping.Table(t)
	if err != nil {
		return nil, resolveError(ErrUnresolvableType, t, "", err)
	}
	if !ok || table == nil {
		return nil, resolveErrorf(ErrUnresolvableType, t, "", "no table mapping from %T", r.mapping)
	}

	meta := &BeanMeta{
		typ:        t,
		dataSource: table.DataSource,
		distinct:   table.Distinct,
		byName:     map[string]*FieldMeta{},
		byAlias:    map[string]*FieldMeta{},
	}
	clauses := []struct {
		name string
		raw  string
		dst  *Snippet
	}{
		{"tables", table.Tables, &meta.tables},
		{"join condition", table.JoinCond, &meta.joinCond},
		{"group by", table.GroupBy, &meta.groupBy},
	}
	for _, clause := range clauses {
		s, err := r.parser.ParseSnippet(strings.TrimSpace(clause.raw))
		if err != nil {
			return nil, resolveError(ErrMalformedSnippet, t, "", errors.Wrapf(err, "in %s", clause.name))
		}
		*clause.dst = s
	}

	attrs, err := typeinfo.Discover(t, r.mapping.InheritType(t).ascends())
	if err != nil {
		return nil, resolveError(ErrUnresolvableType, t, "", err)
	}
	for index, attr := range attrs {
		column, ok, err := r.mapping.Column(attr.Field, attr.Declaring)
		if err != nil {
			return nil, resolveError(ErrUnresolvableType, t, attr.Name(), err)
		}
		if !ok || column == nil {
			continue
		}
		field, err := r.resolveField(meta, attr, column, index)
		if err != nil {
			return nil, err
		}
		meta.addField(field)
	}
	if len(meta.fields) == 0 {
		return nil, resolveErrorf(ErrEmptyMapping, t, "", "none of %d fields is mapped to SQL", len(attrs))
	}
	return meta, nil
}

// resolveField builds the metadata of a mapped attribute found at position
// index among the attributes of the bean.
func (r *Resolver) resolveField(meta *BeanMeta, attr typeinfo.Attribute, column *ColumnMapping, index int) (*FieldMeta, error) {
	mutator, err := typeinfo.BindMutator(meta.typ, attr)
	if err != nil {
		return nil, resolveError(ErrMissingMutator, meta.typ, attr.Name(), err)
	}
	raw := strings.TrimSpace(column.SQL)
	if raw == "" {
		return nil, resolveErrorf(ErrMalformedSnippet, meta.typ, attr.Name(), "empty SQL expression")
	}
	s, err := r.parser.ParseSnippet(raw)
	if err != nil {
		return nil, resolveError(ErrMalformedSnippet, meta.typ, attr.Name(), err)
	}
	if isSubquery(s.SQL) {
		s.SQL = "(" + s.SQL + ")"
	}
	return &FieldMeta{
		bean:        meta,
		name:        attr.Name(),
		typ:         attr.Type(),
		mutator:     mutator,
		snippet:     s,
		alias:       aliasPrefix + strconv.Itoa(index),
		conditional: column.Conditional,
		onlyOn:      column.OnlyOn,
	}, nil
}

// isSubquery reports whether sql starts with the SELECT keyword, in any case,
// followed by white space.
func isSubquery(sql string) bool {
	const keyword = "select"
	if len(sql) <= len(keyword) || !strings.EqualFold(sql[:len(keyword)], keyword) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(sql[len(keyword):])
	return unicode.IsSpace(r)
}
