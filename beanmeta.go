// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/canonical/beanmeta/internal/typeinfo"
)

// Param is an embedded parameter of a Snippet.
type Param struct {
	// Index is the position of the parameter in the snippet, counted from
	// the left.
	Index int
	// Name is the parameter name.
	Name string
	// Token is the placeholder as written, e.g. ":name" or ":sort:".
	Token string
	// Spliced parameters keep their Token in the SQL. The query engine
	// replaces it with a literal instead of binding an argument.
	Spliced bool
	// Default is the literal of the ":name|default:" form.
	Default string
}

// Snippet is a fragment of SQL whose embedded parameters have been extracted.
// Bound parameters appear in SQL as "?" markers, in the order of Params.
type Snippet struct {
	SQL    string
	Params []Param
}

// HasParams reports whether the snippet has embedded parameters.
func (s Snippet) HasParams() bool {
	return len(s.Params) > 0
}

// IsEmpty reports whether the snippet has no SQL.
func (s Snippet) IsEmpty() bool {
	return s.SQL == ""
}

func (s Snippet) String() string {
	if len(s.Params) == 0 {
		return s.SQL
	}
	return fmt.Sprintf("%s %v", s.SQL, s.Params)
}

// BeanMeta is the resolved SQL metadata of a bean type. It is immutable and is
// shared by every caller resolving the same type.
type BeanMeta struct {
	typ        reflect.Type
	dataSource string
	tables     Snippet
	joinCond   Snippet
	groupBy    Snippet
	distinct   bool
	fields     []*FieldMeta
	byName     map[string]*FieldMeta
	byAlias    map[string]*FieldMeta
}

// Type returns the bean type.
func (m *BeanMeta) Type() reflect.Type {
	return m.typ
}

// DataSource returns the name of the data source the bean is queried from.
// The empty string is the default data source.
func (m *BeanMeta) DataSource() string {
	return m.dataSource
}

// Tables returns the FROM clause, without the FROM keyword.
func (m *BeanMeta) Tables() Snippet {
	return m.tables
}

// JoinCond returns the condition joining the tables, if any.
func (m *BeanMeta) JoinCond() Snippet {
	return m.joinCond
}

// GroupBy returns the GROUP BY clause, without the keywords, if any.
func (m *BeanMeta) GroupBy() Snippet {
	return m.groupBy
}

// Distinct reports whether rows should be selected with DISTINCT.
func (m *BeanMeta) Distinct() bool {
	return m.distinct
}

// Fields returns the mapped fields in discovery order.
func (m *BeanMeta) Fields() []*FieldMeta {
	fields := make([]*FieldMeta, len(m.fields))
	copy(fields, m.fields)
	return fields
}

// FieldCount returns the number of mapped fields.
func (m *BeanMeta) FieldCount() int {
	return len(m.fields)
}

// Field returns the field with the given attribute name. When an embedded
// struct declares a field with the same name as the bean, the bean's own
// field is returned.
func (m *BeanMeta) Field(name string) (*FieldMeta, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// FieldByAlias returns the field selected under alias.
func (m *BeanMeta) FieldByAlias(alias string) (*FieldMeta, bool) {
	f, ok := m.byAlias[alias]
	return f, ok
}

func (m *BeanMeta) String() string {
	return "BeanMeta[" + m.typ.String() + "]"
}

// addField appends f. It is only called while the BeanMeta is being built.
func (m *BeanMeta) addField(f *FieldMeta) {
	m.fields = append(m.fields, f)
	if _, ok := m.byName[f.name]; !ok {
		m.byName[f.name] = f
	}
	m.byAlias[f.alias] = f
}

// FieldMeta is the resolved SQL metadata of one bean attribute.
type FieldMeta struct {
	bean        *BeanMeta
	name        string
	typ         reflect.Type
	mutator     typeinfo.Mutator
	snippet     Snippet
	alias       string
	conditional bool
	onlyOn      OpSet
}

// Bean returns the metadata of the bean declaring the field.
func (f *FieldMeta) Bean() *BeanMeta {
	return f.bean
}

// Name returns the attribute name.
func (f *FieldMeta) Name() string {
	return f.name
}

// Type returns the declared type of the attribute.
func (f *FieldMeta) Type() reflect.Type {
	return f.typ
}

// Snippet returns the SQL expression of the field's value.
func (f *FieldMeta) Snippet() Snippet {
	return f.snippet
}

// Alias returns the column alias the field is selected under.
func (f *FieldMeta) Alias() string {
	return f.alias
}

// Conditional reports whether the field is subject to runtime filtering, so
// the query engine may leave it out of a query depending on the filters.
func (f *FieldMeta) Conditional() bool {
	return f.conditional
}

// OnlyOn returns the operations the field is restricted to. An empty set
// means every operation.
func (f *FieldMeta) OnlyOn() OpSet {
	return f.onlyOn
}

// AppliesTo reports whether the field takes part in operation o.
func (f *FieldMeta) AppliesTo(o Op) bool {
	return f.onlyOn.Allows(o)
}

// Set assigns value to the field of bean, which must be a non-nil pointer to
// the bean type. A nil value sets the zero value.
func (f *FieldMeta) Set(bean any, value any) error {
	var v reflect.Value
	if value != nil {
		v = reflect.ValueOf(value)
	}
	if err := f.mutator.Set(reflect.ValueOf(bean), v); err != nil {
		return errors.Wrapf(err, "cannot set %q of %s", f.name, f.bean.typ)
	}
	return nil
}

func (f *FieldMeta) String() string {
	return "FieldMeta[" + f.name + " AS " + f.alias + "]"
}
