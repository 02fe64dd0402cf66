// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta_test

import (
	"reflect"

	"github.com/pkg/errors"
	. "gopkg.in/check.v1"

	"github.com/canonical/beanmeta"
)

type MappingSuite struct{}

var _ = Suite(&MappingSuite{})

type Sales struct {
	beanmeta.Table `tables:"orders o, users u" join:"o.user_id = u.id" groupBy:"u.name" distinct:"true"`

	Buyer string  `db:"u.name"`
	Total float64 `db:"sum(o.amount)" cond:"false" only:"list,sum"`
}

type NoTables struct {
	beanmeta.Table `dataSource:"x"`

	ID int64 `db:"id"`
}

type BadDistinct struct {
	beanmeta.Table `tables:"t" distinct:"maybe"`

	ID int64 `db:"id"`
}

type BadInherit struct {
	beanmeta.Table `tables:"t" inherit:"some"`

	ID int64 `db:"id"`
}

type EmptyColumn struct {
	beanmeta.Table `tables:"t"`

	ID int64 `db:""`
}

type UserAccount struct {
	ID        int64
	UserName  string
	HTTPProxy string
	Secret    string
	internal  int
	Nick      string `db:"nick_name" only:"list"`
	Skip      string `db:"-"`
}

func (s *MappingSuite) TestTagMappingTable(c *C) {
	m := beanmeta.TagMapping{}

	tm, ok, err := m.Table(reflect.TypeOf(Order{}))
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	c.Check(tm, DeepEquals, &beanmeta.TableMapping{
		DataSource: "sales",
		Tables:     "orders o join users u on o.user_id = u.id",
	})

	tm, ok, err = m.Table(reflect.TypeOf(&Sales{}))
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	c.Check(tm, DeepEquals, &beanmeta.TableMapping{
		Tables:   "orders o, users u",
		JoinCond: "o.user_id = u.id",
		GroupBy:  "u.name",
		Distinct: true,
	})

	for _, t := range []reflect.Type{reflect.TypeOf(Unmapped{}), reflect.TypeOf(Shipment{}), reflect.TypeOf(0), nil} {
		tm, ok, err = m.Table(t)
		c.Check(err, IsNil)
		c.Check(ok, Equals, false)
		c.Check(tm, IsNil)
	}
}

func (s *MappingSuite) TestTagMappingTableErrors(c *C) {
	tests := []struct {
		bean any
		err  string
	}{
		{NoTables{}, `missing "tables" in Table tag`},
		{BadDistinct{}, `invalid "distinct" in Table tag: "maybe"`},
		{BadInherit{}, `invalid Table tag: unknown inherit type "some"`},
	}
	for _, t := range tests {
		_, _, err := beanmeta.TagMapping{}.Table(reflect.TypeOf(t.bean))
		c.Check(err, ErrorMatches, t.err)
	}
}

func (s *MappingSuite) TestTagMappingInheritType(c *C) {
	m := beanmeta.TagMapping{}
	c.Check(m.InheritType(reflect.TypeOf(Order{})), Equals, beanmeta.InheritField)
	c.Check(m.InheritType(reflect.TypeOf(Customer{})), Equals, beanmeta.InheritNone)

	m = beanmeta.TagMapping{Inherit: beanmeta.InheritAll}
	c.Check(m.InheritType(reflect.TypeOf(Order{})), Equals, beanmeta.InheritField)
	c.Check(m.InheritType(reflect.TypeOf(Customer{})), Equals, beanmeta.InheritAll)
	c.Check(m.InheritType(reflect.TypeOf(Shipment{})), Equals, beanmeta.InheritAll)
}

func (s *MappingSuite) TestTagMappingColumn(c *C) {
	m := beanmeta.TagMapping{}
	column := func(t reflect.Type, name string) (*beanmeta.ColumnMapping, bool, error) {
		f, ok := t.FieldByName(name)
		c.Assert(ok, Equals, true)
		return m.Column(f, t)
	}
	sales := reflect.TypeOf(Sales{})

	cm, ok, err := column(sales, "Buyer")
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	c.Check(cm, DeepEquals, &beanmeta.ColumnMapping{SQL: "u.name", Conditional: true})

	cm, ok, err = column(sales, "Total")
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	c.Check(cm, DeepEquals, &beanmeta.ColumnMapping{
		SQL:    "sum(o.amount)",
		OnlyOn: beanmeta.Ops(beanmeta.OpList, beanmeta.OpSum),
	})

	_, ok, err = column(reflect.TypeOf(Order{}), "Remark")
	c.Check(err, IsNil)
	c.Check(ok, Equals, false)

	_, ok, err = column(reflect.TypeOf(UserAccount{}), "Skip")
	c.Check(err, IsNil)
	c.Check(ok, Equals, false)

	_, _, err = column(reflect.TypeOf(EmptyColumn{}), "ID")
	c.Check(err, ErrorMatches, `empty db tag`)
}

func (s *MappingSuite) TestResolveDistinctGroupBy(c *C) {
	meta, err := beanmeta.NewResolver().Resolve(Sales{})
	c.Assert(err, IsNil)
	c.Check(meta.Distinct(), Equals, true)
	c.Check(meta.JoinCond().SQL, Equals, "o.user_id = u.id")
	c.Check(meta.GroupBy().SQL, Equals, "u.name")
	total, _ := meta.Field("Total")
	c.Check(total.Conditional(), Equals, false)
	c.Check(total.AppliesTo(beanmeta.OpCount), Equals, false)
}

func (s *MappingSuite) TestConventionMapping(c *C) {
	m := &beanmeta.ConventionMapping{
		TablePrefix: "t_",
		DataSource:  "main",
		Ignore:      []string{"Secret"},
	}
	meta, err := beanmeta.NewResolver(beanmeta.WithMapping(m)).Resolve(UserAccount{})
	c.Assert(err, IsNil)
	c.Check(meta.Tables().SQL, Equals, "t_user_account")
	c.Check(meta.DataSource(), Equals, "main")

	var columns []string
	for _, f := range meta.Fields() {
		columns = append(columns, f.Name()+"="+f.Snippet().SQL)
	}
	c.Check(columns, DeepEquals, []string{
		"ID=id",
		"UserName=user_name",
		"HTTPProxy=http_proxy",
		"Nick=nick_name",
	})
	nick, _ := meta.Field("Nick")
	c.Check(nick.OnlyOn(), Equals, beanmeta.Ops(beanmeta.OpList))
}

func (s *MappingSuite) TestConventionMappingUpperCase(c *C) {
	m := &beanmeta.ConventionMapping{UpperCase: true}
	meta, err := beanmeta.NewResolver(beanmeta.WithMapping(m)).Resolve(&UserAccount{})
	c.Assert(err, IsNil)
	c.Check(meta.Tables().SQL, Equals, "USER_ACCOUNT")
	userName, _ := meta.Field("UserName")
	c.Check(userName.Snippet().SQL, Equals, "USER_NAME")
}

func (s *MappingSuite) TestConventionMappingKeepsTags(c *C) {
	m := &beanmeta.ConventionMapping{DataSource: "main"}
	meta, err := beanmeta.NewResolver(beanmeta.WithMapping(m)).Resolve(Order{})
	c.Assert(err, IsNil)

	// The declared data source wins over the default.
	c.Check(meta.DataSource(), Equals, "sales")
	c.Check(meta.Tables().SQL, Equals, "orders o join users u on o.user_id = u.id")
	c.Check(fieldNames(meta), DeepEquals, []string{"ID", "Buyer", "Total", "Status", "Remark", "CreatedBy", "Note"})
	remark, _ := meta.Field("Remark")
	c.Check(remark.Snippet().SQL, Equals, "remark")
}

func (s *MappingSuite) TestFuncMapping(c *C) {
	m := &beanmeta.FuncMapping{
		TableFunc: func(t reflect.Type) (*beanmeta.TableMapping, bool, error) {
			return &beanmeta.TableMapping{Tables: "accounts a", DataSource: "archive"}, true, nil
		},
		ColumnFunc: func(field reflect.StructField, declaring reflect.Type) (*beanmeta.ColumnMapping, bool, error) {
			if field.Name != "ID" && field.Name != "UserName" {
				return nil, false, nil
			}
			return &beanmeta.ColumnMapping{SQL: "a." + field.Name, Conditional: true}, true, nil
		},
	}
	meta, err := beanmeta.NewResolver(beanmeta.WithMapping(m)).Resolve(UserAccount{})
	c.Assert(err, IsNil)
	c.Check(meta.Tables().SQL, Equals, "accounts a")
	c.Check(meta.DataSource(), Equals, "archive")
	c.Check(fieldNames(meta), DeepEquals, []string{"ID", "UserName"})
	c.Check(fieldAliases(meta), DeepEquals, []string{"c_0", "c_1"})
}

func (s *MappingSuite) TestFuncMappingFallback(c *C) {
	m := &beanmeta.FuncMapping{}
	c.Check(m.InheritType(reflect.TypeOf(Order{})), Equals, beanmeta.InheritField)
	_, ok, err := m.Table(reflect.TypeOf(Unmapped{}))
	c.Check(err, IsNil)
	c.Check(ok, Equals, false)

	m = &beanmeta.FuncMapping{
		InheritFunc: func(reflect.Type) beanmeta.InheritType { return beanmeta.InheritNone },
		Fallback:    &beanmeta.ConventionMapping{},
	}
	meta, err := beanmeta.NewResolver(beanmeta.WithMapping(m)).Resolve(Order{})
	c.Assert(err, IsNil)
	c.Check(fieldNames(meta), DeepEquals, []string{"ID", "Buyer", "Total", "Status", "Remark"})
}

func (s *MappingSuite) TestParseInheritType(c *C) {
	tests := []struct {
		input string
		want  beanmeta.InheritType
	}{
		{"", beanmeta.InheritNone},
		{"none", beanmeta.InheritNone},
		{"FIELD", beanmeta.InheritField},
		{" all ", beanmeta.InheritAll},
	}
	for _, t := range tests {
		it, err := beanmeta.ParseInheritType(t.input)
		c.Check(err, IsNil)
		c.Check(it, Equals, t.want)
	}
	_, err := beanmeta.ParseInheritType("parent")
	c.Check(err, ErrorMatches, `unknown inherit type "parent"`)

	c.Check(beanmeta.InheritField.String(), Equals, "field")
	c.Check(beanmeta.InheritType(9).String(), Equals, "InheritType(?)")
}

func (s *MappingSuite) TestOpSet(c *C) {
	set, err := beanmeta.ParseOpSet("list, COUNT")
	c.Assert(err, IsNil)
	c.Check(set, Equals, beanmeta.Ops(beanmeta.OpList, beanmeta.OpCount))
	c.Check(set.String(), Equals, "list,count")
	c.Check(set.Slice(), DeepEquals, []beanmeta.Op{beanmeta.OpList, beanmeta.OpCount})
	c.Check(set.Has(beanmeta.OpCount), Equals, true)
	c.Check(set.Allows(beanmeta.OpSort), Equals, false)

	empty, err := beanmeta.ParseOpSet(" ")
	c.Assert(err, IsNil)
	c.Check(empty, Equals, beanmeta.OpSet(0))
	c.Check(empty.Has(beanmeta.OpSort), Equals, false)
	c.Check(empty.Allows(beanmeta.OpSort), Equals, true)

	_, err = beanmeta.ParseOpSet("list,fetch")
	c.Check(err, ErrorMatches, `unknown operation "fetch"`)

	op, err := beanmeta.ParseOp("Filter")
	c.Assert(err, IsNil)
	c.Check(op, Equals, beanmeta.OpFilter)
	c.Check(beanmeta.Op(9).String(), Equals, "Op(9)")
}

func (s *MappingSuite) TestParseSnippet(c *C) {
	snippet, err := beanmeta.ParseSnippet("order by :sort|o.id: limit :limit")
	c.Assert(err, IsNil)
	c.Check(snippet, DeepEquals, beanmeta.Snippet{
		SQL: "order by :sort|o.id: limit ?",
		Params: []beanmeta.Param{
			{Index: 0, Name: "sort", Token: ":sort|o.id:", Spliced: true, Default: "o.id"},
			{Index: 1, Name: "limit", Token: ":limit"},
		},
	})
	c.Check(snippet.HasParams(), Equals, true)

	snippet, err = beanmeta.ParseSnippet("o.amount::numeric")
	c.Assert(err, IsNil)
	c.Check(snippet, DeepEquals, beanmeta.Snippet{SQL: "o.amount::numeric"})
	c.Check(snippet.HasParams(), Equals, false)

	_, err = beanmeta.ParseSnippet("x = 'open")
	c.Check(err, ErrorMatches, `cannot parse snippet "x = 'open": column 5: missing closing quote in string literal`)
	c.Check(errors.Is(err, beanmeta.ErrMalformedSnippet), Equals, true)
}
