// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Table marks a struct as a bean for TagMapping. Embed it and declare the
// table mapping in its tag:
//
//	type Order struct {
//		beanmeta.Table `tables:"orders o join users u on o.user_id = u.id" dataSource:"sales"`
//
//		ID    int64  `db:"o.id"`
//		Buyer string `db:"u.name"`
//	}
//
// The tag keys are tables, join, groupBy, dataSource, distinct and inherit.
// Table carries no data and is never an attribute of the bean.
type Table struct{}

var tableType = reflect.TypeOf(Table{})

// Struct tag keys read by TagMapping.
const (
	tagTables     = "tables"
	tagJoin       = "join"
	tagGroupBy    = "groupBy"
	tagDataSource = "dataSource"
	tagDistinct   = "distinct"
	tagInherit    = "inherit"

	tagColumn = "db"
	tagCond   = "cond"
	tagOnly   = "only"
)

// TagMapping is the DBMapping declared with struct tags. A bean embeds Table.
// A mapped field has a "db" tag holding its SQL expression; fields without
// one, or tagged `db:"-"`, are not mapped. A field tagged `cond:"false"` is
// not conditional, and `only:"list,count"` restricts the operations it takes
// part in.
type TagMapping struct {
	// Inherit is used for beans whose Table tag has no inherit key, and for
	// structs without a Table marker.
	Inherit InheritType
}

var _ DBMapping = TagMapping{}

// Table returns the mapping declared on the Table marker of t. With
// InheritAll, a type without a marker takes the marker of its nearest
// ancestor.
func (m TagMapping) Table(t reflect.Type) (*TableMapping, bool, error) {
	st := structOf(t)
	if st == nil {
		return nil, false, nil
	}
	tag, ok := markerTag(st)
	if !ok && m.InheritType(st) == InheritAll {
		tag, ok = ancestorMarkerTag(st)
	}
	if !ok {
		return nil, false, nil
	}
	tm, err := parseTableTag(tag)
	if err != nil {
		return nil, false, err
	}
	return tm, true, nil
}

func (m TagMapping) Column(field reflect.StructField, declaring reflect.Type) (*ColumnMapping, bool, error) {
	sql, ok := field.Tag.Lookup(tagColumn)
	if !ok || sql == "-" {
		return nil, false, nil
	}
	if strings.TrimSpace(sql) == "" {
		return nil, false, errors.Errorf("empty %s tag", tagColumn)
	}
	return parseColumnTags(field.Tag, sql)
}

func (m TagMapping) InheritType(t reflect.Type) InheritType {
	if st := structOf(t); st != nil {
		if tag, ok := markerTag(st); ok {
			if v, ok := tag.Lookup(tagInherit); ok {
				if it, err := ParseInheritType(v); err == nil {
					return it
				}
			}
		}
	}
	return m.Inherit
}

func structOf(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// markerTag returns the tag of the Table marker embedded directly in st.
func markerTag(st reflect.Type) (reflect.StructTag, bool) {
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.Anonymous && f.Type == tableType {
			return f.Tag, true
		}
	}
	return "", false
}

// ancestorMarkerTag returns the marker tag of the nearest struct embedded in
// st, searching one embedding level at a time.
func ancestorMarkerTag(st reflect.Type) (reflect.StructTag, bool) {
	at, ok := nearestAncestor(st, func(t reflect.Type) bool {
		_, ok := markerTag(t)
		return ok
	})
	if !ok {
		return "", false
	}
	return markerTag(at)
}

// nearestAncestor returns the first struct embedded in st, directly or
// through other embedded structs, for which match is true. Shallower
// structs are tried first, in field order.
func nearestAncestor(st reflect.Type, match func(reflect.Type) bool) (reflect.Type, bool) {
	seen := map[reflect.Type]bool{st: true}
	level := []reflect.Type{st}
	for len(level) > 0 {
		var next []reflect.Type
		for _, t := range level {
			for i := 0; i < t.NumField(); i++ {
				f := t.Field(i)
				et := structOf(f.Type)
				if !f.Anonymous || et == nil || et == tableType || seen[et] {
					continue
				}
				if match(et) {
					return et, true
				}
				seen[et] = true
				next = append(next, et)
			}
		}
		level = next
	}
	return nil, false
}

func parseTableTag(tag reflect.StructTag) (*TableMapping, error) {
	tm := &TableMapping{
		Tables:     strings.TrimSpace(tag.Get(tagTables)),
		JoinCond:   strings.TrimSpace(tag.Get(tagJoin)),
		GroupBy:    strings.TrimSpace(tag.Get(tagGroupBy)),
		DataSource: strings.TrimSpace(tag.Get(tagDataSource)),
	}
	if tm.Tables == "" {
		return nil, errors.Errorf("missing %q in Table tag", tagTables)
	}
	if v, ok := tag.Lookup(tagDistinct); ok {
		distinct, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Errorf("invalid %q in Table tag: %q", tagDistinct, v)
		}
		tm.Distinct = distinct
	}
	if v, ok := tag.Lookup(tagInherit); ok {
		if _, err := ParseInheritType(v); err != nil {
			return nil, errors.Wrap(err, "invalid Table tag")
		}
	}
	return tm, nil
}

// parseColumnTags builds the mapping of a field whose SQL is sql from the
// cond and only keys of tag. Fields are conditional unless cond is false.
func parseColumnTags(tag reflect.StructTag, sql string) (*ColumnMapping, bool, error) {
	cm := &ColumnMapping{SQL: strings.TrimSpace(sql), Conditional: true}
	if v, ok := tag.Lookup(tagCond); ok {
		cond, err := strconv.ParseBool(v)
		if err != nil {
			return nil, false, errors.Errorf("invalid %s tag %q", tagCond, v)
		}
		cm.Conditional = cond
	}
	if v, ok := tag.Lookup(tagOnly); ok {
		ops, err := ParseOpSet(v)
		if err != nil {
			return nil, false, errors.Wrapf(err, "invalid %s tag", tagOnly)
		}
		cm.OnlyOn = ops
	}
	return cm, true, nil
}

// ConventionMapping maps beans by naming convention. Struct tags are honoured
// as by TagMapping; a struct without a Table marker is mapped to the table
// TablePrefix + snake_case(type name), and an exported field without a "db"
// tag to the column snake_case(field name).
type ConventionMapping struct {
	// TablePrefix is prepended to derived table names.
	TablePrefix string
	// UpperCase derives upper case table and column names.
	UpperCase bool
	// DataSource is used for beans that do not name one.
	DataSource string
	// Inherit is used for beans that do not declare an inherit type.
	Inherit InheritType
	// Ignore lists field names that are never mapped by convention.
	Ignore []string
}

var _ DBMapping = (*ConventionMapping)(nil)

func (m *ConventionMapping) tags() TagMapping {
	return TagMapping{Inherit: m.Inherit}
}

func (m *ConventionMapping) Table(t reflect.Type) (*TableMapping, bool, error) {
	tm, ok, err := m.tags().Table(t)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		st := structOf(t)
		if st == nil || st.Name() == "" {
			return nil, false, nil
		}
		tm = &TableMapping{Tables: m.TablePrefix + m.name(st.Name())}
	}
	if tm.DataSource == "" {
		tm.DataSource = m.DataSource
	}
	return tm, true, nil
}

func (m *ConventionMapping) Column(field reflect.StructField, declaring reflect.Type) (*ColumnMapping, bool, error) {
	if _, ok := field.Tag.Lookup(tagColumn); ok {
		return m.tags().Column(field, declaring)
	}
	if !field.IsExported() {
		return nil, false, nil
	}
	for _, name := range m.Ignore {
		if name == field.Name {
			return nil, false, nil
		}
	}
	return parseColumnTags(field.Tag, m.name(field.Name))
}

func (m *ConventionMapping) InheritType(t reflect.Type) InheritType {
	return m.tags().InheritType(t)
}

func (m *ConventionMapping) name(goName string) string {
	s := snakeCase(goName)
	if m.UpperCase {
		return strings.ToUpper(s)
	}
	return s
}

// snakeCase converts a Go identifier to snake case, keeping initialisms
// together: "UserID" is "user_id" and "HTTPServer" is "http_server".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
