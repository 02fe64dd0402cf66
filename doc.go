/*
Package beanmeta resolves Go structs into the SQL metadata a query builder needs to select them.

A bean is a struct mapped to a set of tables. Its mapping names the data source, the tables of the FROM clause, an optional join condition and GROUP BY clause, and whether rows are selected with DISTINCT.
Each mapped field holds the SQL expression that yields its value, which may be a plain column, any expression, or a scalar subquery.

# Basics

With the default TagMapping, a bean embeds the zero-size Table marker and declares its mapping in struct tags:

	type Order struct {
		beanmeta.Table `tables:"orders o join users u on o.user_id = u.id" dataSource:"sales"`

		ID     int64   `db:"o.id" cond:"false"`
		Buyer  string  `db:"u.name" only:"list,count"`
		Total  float64 `db:"select sum(i.amount) from items i where i.order_id = o.id"`
		Status string  `db:"case when o.status = :paid then 'paid' else 'open' end"`
	}

Resolve returns the metadata of the type of a value:

	meta, err := beanmeta.Resolve(Order{})

The metadata of a type is built once, on first use, and then shared by every caller.
The same *BeanMeta is returned for Order{} and &Order{}.
Fields are selected under generated aliases (c_0, c_1, ...) and decoded with FieldMeta.Set, which uses a Set<Name> method of the bean when one exists and assigns the field otherwise.

Subqueries are wrapped in parentheses, so Total above is selected as

	(select sum(i.amount) from items i where i.order_id = o.id) AS c_2

# Embedded parameters

SQL fragments may embed named parameters.
A parameter written ":name" is replaced with a "?" marker and must be bound as a query argument.
A parameter written ":name:" or ":name|default:" stays in the SQL and is replaced with a literal by the query builder.
Colons inside string literals and comments, "::" casts and colons followed by digits are left alone.

	meta.Fields()[3].Snippet()
	// {SQL: "case when o.status = ? then 'paid' else 'open' end", Params: [{Index: 0, Name: "paid", Token: ":paid"}]}

# Inheritance

Structs embedded in a bean are its ancestors.
By default only the fields declared by the bean itself are mapped.
With inherit:"field" the fields of ancestors are mapped too, after the bean's own fields, one embedding level at a time.
With inherit:"all" a bean without its own Table marker also takes the table mapping of its nearest ancestor.

# Mappings

A Resolver maps beans with a DBMapping:

  - TagMapping reads struct tags.
  - ConventionMapping derives table and column names from type and field names.
  - ConfigMapping reads the mapping from a YAML, JSON or TOML document.
  - FuncMapping is built from functions.

Use NewResolver to resolve beans with another mapping or to log resolutions:

	r := beanmeta.NewResolver(
		beanmeta.WithMapping(&beanmeta.ConventionMapping{TablePrefix: "t_"}),
		beanmeta.WithLogger(logger),
	)

# Errors

Resolution fails with a *ResolveError whose kind is one of ErrUnresolvableType, ErrEmptyMapping, ErrMissingMutator or ErrMalformedSnippet.
Failures are not cached, so a later call tries again.
*/
package beanmeta
