// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"github.com/canonical/beanmeta/internal/snippet"
)

// SnippetParser extracts the embedded parameters of a raw SQL fragment.
type SnippetParser interface {
	ParseSnippet(raw string) (Snippet, error)
}

// SnippetParserFunc adapts a function to a SnippetParser.
type SnippetParserFunc func(raw string) (Snippet, error)

func (f SnippetParserFunc) ParseSnippet(raw string) (Snippet, error) {
	return f(raw)
}

// DefaultSnippetParser recognises ":name" placeholders, which become "?"
// markers, and ":name:" or ":name|default:" placeholders, which are left in
// the SQL to be spliced. Placeholders inside string literals and comments are
// ignored, as are "::" casts.
var DefaultSnippetParser SnippetParser = SnippetParserFunc(ParseSnippet)

// ParseSnippet parses raw with the default placeholder syntax. Errors wrap
// ErrMalformedSnippet.
func ParseSnippet(raw string) (Snippet, error) {
	sql, params, err := snippet.NewParser().Parse(raw)
	if err != nil {
		return Snippet{}, &snippetError{err: err}
	}
	s := Snippet{SQL: sql}
	if len(params) > 0 {
		s.Params = make([]Param, len(params))
		for i, p := range params {
			s.Params[i] = Param{
				Index:   p.Index,
				Name:    p.Name,
				Token:   p.Token,
				Spliced: p.Spliced,
				Default: p.Default,
			}
		}
	}
	return s, nil
}

// snippetError is a parse failure of the default parser. It is an
// ErrMalformedSnippet.
type snippetError struct {
	err error
}

func (e *snippetError) Error() string {
	return e.err.Error()
}

func (e *snippetError) Is(target error) bool {
	return target == ErrMalformedSnippet
}

func (e *snippetError) Unwrap() error {
	return e.err
}
