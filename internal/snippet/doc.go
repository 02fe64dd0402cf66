// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package snippet scans raw SQL fragments for embedded parameters. The SQL itself
is never parsed: string literals, comments and "::" casts are skipped, and
everything else is passed through verbatim.

Placeholders take one of these forms:

	:name           bound as a query argument, replaced by "?"
	:name:          spliced into the SQL text by the query engine
	:name|default:  spliced, with a literal default
*/
package snippet
