// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// InheritType controls how far up the embedding chain a bean inherits its
// mapping. A struct embedded in a bean is its ancestor.
type InheritType uint8

const (
	// InheritNone maps the bean's own fields only.
	InheritNone InheritType = iota
	// InheritField also maps the fields of ancestors.
	InheritField
	// InheritAll also maps the fields of ancestors, and uses the table
	// mapping of the nearest ancestor when the bean has none.
	InheritAll
)

var inheritNames = [...]string{
	InheritNone:  "none",
	InheritField: "field",
	InheritAll:   "all",
}

func (i InheritType) String() string {
	if int(i) < len(inheritNames) {
		return inheritNames[i]
	}
	return "InheritType(?)"
}

// ascends reports whether attribute discovery walks into ancestors.
func (i InheritType) ascends() bool {
	return i == InheritField || i == InheritAll
}

// ParseInheritType returns the InheritType named s, ignoring case. The empty
// string is InheritNone.
func ParseInheritType(s string) (InheritType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return InheritNone, nil
	}
	for i, name := range inheritNames {
		if strings.EqualFold(s, name) {
			return InheritType(i), nil
		}
	}
	return 0, errors.Errorf("unknown inherit type %q", s)
}

// TableMapping is the table level mapping of a bean type.
type TableMapping struct {
	// DataSource names the data source to query. Empty is the default.
	DataSource string
	// Tables is the FROM clause without the keyword, e.g.
	// "orders o join users u on o.user_id = u.id". It may embed parameters.
	Tables string
	// JoinCond is an extra condition joining the tables, e.g. for tables
	// listed with commas.
	JoinCond string
	// GroupBy is the GROUP BY clause without the keywords.
	GroupBy string
	// Distinct selects rows with DISTINCT.
	Distinct bool
}

// ColumnMapping is the mapping of one attribute.
type ColumnMapping struct {
	// SQL is the expression of the attribute's value: a column name or any
	// SQL fragment, including a scalar subquery. It may embed parameters.
	SQL string
	// Conditional marks the field as subject to runtime filtering.
	Conditional bool
	// OnlyOn restricts the operations the field takes part in.
	OnlyOn OpSet
}

// DBMapping decides how bean types map to SQL. Resolver uses it for every
// type it resolves.
type DBMapping interface {
	// Table returns the table mapping of t. It returns false when t is not a
	// bean. An error reports a malformed declaration.
	Table(t reflect.Type) (*TableMapping, bool, error)

	// Column returns the mapping of field, which is declared by the struct
	// type declaring. It returns false when the field is not part of the
	// mapping. An error reports a malformed declaration.
	Column(field reflect.StructField, declaring reflect.Type) (*ColumnMapping, bool, error)

	// InheritType returns how t inherits the mapping of its ancestors.
	InheritType(t reflect.Type) InheritType
}

// FuncMapping is a DBMapping built from functions. Each nil function falls
// back to Fallback, or to TagMapping when Fallback is nil.
type FuncMapping struct {
	TableFunc   func(t reflect.Type) (*TableMapping, bool, error)
	ColumnFunc  func(field reflect.StructField, declaring reflect.Type) (*ColumnMapping, bool, error)
	InheritFunc func(t reflect.Type) InheritType
	Fallback    DBMapping
}

var _ DBMapping = (*FuncMapping)(nil)

func (m *FuncMapping) fallback() DBMapping {
	if m.Fallback != nil {
		return m.Fallback
	}
	return TagMapping{}
}

func (m *FuncMapping) Table(t reflect.Type) (*TableMapping, bool, error) {
	if m.TableFunc != nil {
		return m.TableFunc(t)
	}
	return m.fallback().Table(t)
}

func (m *FuncMapping) Column(field reflect.StructField, declaring reflect.Type) (*ColumnMapping, bool, error) {
	if m.ColumnFunc != nil {
		return m.ColumnFunc(field, declaring)
	}
	return m.fallback().Column(field, declaring)
}

func (m *FuncMapping) InheritType(t reflect.Type) InheritType {
	if m.InheritFunc != nil {
		return m.InheritFunc(t)
	}
	return m.fallback().InheritType(t)
}
