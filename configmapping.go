// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"bytes"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MappingDocument is the on-disk form of a ConfigMapping:
//
//	defaults:
//	  dataSource: main
//	  inherit: field
//	beans:
//	  - type: Order
//	    tables: orders o join users u on o.user_id = u.id
//	    fields:
//	      - name: ID
//	        sql: o.id
//	      - name: Buyer
//	        sql: u.name
//	        only: list
//	  - type: Audit
//	    fields:
//	      - name: CreatedBy
//	        sql: o.created_by
//
// A bean is matched by its type's package path and name
// ("example.com/shop.Order"), its qualified name ("shop.Order") or its name
// ("Order"), in that order. An entry without tables maps the fields of a
// struct that is only ever embedded. With inherit "all" such an entry, or a
// type with no entry at all, uses the tables of the nearest embedded struct
// whose entry has them.
type MappingDocument struct {
	Defaults BeanDefaults `yaml:"defaults" mapstructure:"defaults"`
	Beans    []BeanConfig `yaml:"beans" mapstructure:"beans"`
}

// BeanDefaults apply to every bean that does not set them.
type BeanDefaults struct {
	DataSource string `yaml:"dataSource" mapstructure:"dataSource"`
	Inherit    string `yaml:"inherit" mapstructure:"inherit"`
}

// BeanConfig maps one struct type.
type BeanConfig struct {
	Type       string        `yaml:"type" mapstructure:"type"`
	Tables     string        `yaml:"tables" mapstructure:"tables"`
	Join       string        `yaml:"join" mapstructure:"join"`
	GroupBy    string        `yaml:"groupBy" mapstructure:"groupBy"`
	DataSource string        `yaml:"dataSource" mapstructure:"dataSource"`
	Distinct   bool          `yaml:"distinct" mapstructure:"distinct"`
	Inherit    string        `yaml:"inherit" mapstructure:"inherit"`
	Fields     []FieldConfig `yaml:"fields" mapstructure:"fields"`
}

// FieldConfig maps one field of a struct type.
type FieldConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	SQL  string `yaml:"sql" mapstructure:"sql"`
	// Cond defaults to true.
	Cond *bool  `yaml:"cond" mapstructure:"cond"`
	Only string `yaml:"only" mapstructure:"only"`
}

// ConfigMapping is a DBMapping read from a MappingDocument. Fields not listed
// in the document are not mapped.
type ConfigMapping struct {
	doc     MappingDocument
	inherit InheritType
	beans   map[string]*configBean
}

type configBean struct {
	table   *TableMapping
	inherit InheritType
	columns map[string]*ColumnMapping
}

var _ DBMapping = (*ConfigMapping)(nil)

// ParseConfigMapping parses a YAML mapping document. Unknown keys are errors.
func ParseConfigMapping(data []byte) (*ConfigMapping, error) {
	var doc MappingDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "cannot parse mapping document")
	}
	return NewConfigMapping(doc)
}

// LoadConfigMapping reads a mapping document from path. Any format known to
// viper may be used; the format is taken from the file extension.
func LoadConfigMapping(path string) (*ConfigMapping, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "cannot read mapping file %q", path)
	}
	var doc MappingDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, errors.Wrapf(err, "cannot decode mapping file %q", path)
	}
	m, err := NewConfigMapping(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid mapping file %q", path)
	}
	return m, nil
}

// NewConfigMapping validates doc and returns its mapping.
func NewConfigMapping(doc MappingDocument) (*ConfigMapping, error) {
	defaultInherit, err := ParseInheritType(doc.Defaults.Inherit)
	if err != nil {
		return nil, errors.Wrap(err, "in defaults")
	}
	m := &ConfigMapping{doc: doc, inherit: defaultInherit, beans: map[string]*configBean{}}
	for i, bc := range doc.Beans {
		typeName := strings.TrimSpace(bc.Type)
		if typeName == "" {
			return nil, errors.Errorf("bean %d: missing type", i)
		}
		if _, ok := m.beans[typeName]; ok {
			return nil, errors.Errorf("bean %q: declared more than once", typeName)
		}
		bean := &configBean{inherit: defaultInherit, columns: map[string]*ColumnMapping{}}
		if bc.Inherit != "" {
			if bean.inherit, err = ParseInheritType(bc.Inherit); err != nil {
				return nil, errors.Wrapf(err, "bean %q", typeName)
			}
		}
		if tables := strings.TrimSpace(bc.Tables); tables != "" {
			bean.table = &TableMapping{
				DataSource: bc.DataSource,
				Tables:     tables,
				JoinCond:   strings.TrimSpace(bc.Join),
				GroupBy:    strings.TrimSpace(bc.GroupBy),
				Distinct:   bc.Distinct,
			}
			if bean.table.DataSource == "" {
				bean.table.DataSource = doc.Defaults.DataSource
			}
		}
		for _, fc := range bc.Fields {
			if fc.Name == "" {
				return nil, errors.Errorf("bean %q: field without name", typeName)
			}
			if _, ok := bean.columns[fc.Name]; ok {
				return nil, errors.Errorf("bean %q: field %q declared more than once", typeName, fc.Name)
			}
			if strings.TrimSpace(fc.SQL) == "" {
				return nil, errors.Errorf("bean %q: field %q has no sql", typeName, fc.Name)
			}
			cm := &ColumnMapping{SQL: strings.TrimSpace(fc.SQL), Conditional: true}
			if fc.Cond != nil {
				cm.Conditional = *fc.Cond
			}
			if cm.OnlyOn, err = ParseOpSet(fc.Only); err != nil {
				return nil, errors.Wrapf(err, "bean %q: field %q", typeName, fc.Name)
			}
			bean.columns[fc.Name] = cm
		}
		m.beans[typeName] = bean
	}
	return m, nil
}

// Document returns the document the mapping was built from.
func (m *ConfigMapping) Document() MappingDocument {
	return m.doc
}

// lookup returns the entry matching t.
func (m *ConfigMapping) lookup(t reflect.Type) (*configBean, bool) {
	st := structOf(t)
	if st == nil || st.Name() == "" {
		return nil, false
	}
	for _, name := range []string{st.PkgPath() + "." + st.Name(), st.String(), st.Name()} {
		if bean, ok := m.beans[name]; ok {
			return bean, true
		}
	}
	return nil, false
}

// table returns the table of the entry matching t, if it has one.
func (m *ConfigMapping) table(t reflect.Type) (*TableMapping, bool) {
	bean, ok := m.lookup(t)
	if !ok || bean.table == nil {
		return nil, false
	}
	return bean.table, true
}

func (m *ConfigMapping) Table(t reflect.Type) (*TableMapping, bool, error) {
	st := structOf(t)
	if st == nil {
		return nil, false, nil
	}
	tm, ok := m.table(st)
	if !ok && m.InheritType(st) == InheritAll {
		var at reflect.Type
		if at, ok = nearestAncestor(st, func(t reflect.Type) bool {
			_, ok := m.table(t)
			return ok
		}); ok {
			tm, _ = m.table(at)
		}
	}
	if !ok {
		return nil, false, nil
	}
	table := *tm
	return &table, true, nil
}

func (m *ConfigMapping) Column(field reflect.StructField, declaring reflect.Type) (*ColumnMapping, bool, error) {
	bean, ok := m.lookup(declaring)
	if !ok {
		return nil, false, nil
	}
	cm, ok := bean.columns[field.Name]
	if !ok {
		return nil, false, nil
	}
	column := *cm
	return &column, true, nil
}

func (m *ConfigMapping) InheritType(t reflect.Type) InheritType {
	if bean, ok := m.lookup(t); ok {
		return bean.inherit
	}
	return m.inherit
}
