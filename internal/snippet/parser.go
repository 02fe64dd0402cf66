// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package snippet

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Param is an embedded parameter found in a snippet.
type Param struct {
	// Index is the position of the parameter among all parameters of the
	// snippet, counted from the left.
	Index int

	// Name is the parameter name without the surrounding colons.
	Name string

	// Token is the raw text of the placeholder, e.g. ":name" or ":order|asc:".
	Token string

	// Spliced is true for the ":name:" form. The token is kept in the output
	// SQL and is later replaced by a literal instead of being bound as a
	// query argument.
	Spliced bool

	// Default is the literal given in the ":name|default:" form.
	Default string
}

// Marker is the positional marker substituted for ":name" placeholders.
const Marker = "?"

func NewParser() *Parser {
	return &Parser{}
}

// Parser extracts embedded parameters from raw SQL fragments. A Parser is not
// safe for concurrent use.
type Parser struct {
	input string
	pos   int
	// nextPos is the start of the next char.
	nextPos int
	// char is the rune starting at pos, or 0 at the end of input.
	char rune
	// chunkStart is the start of the text not yet copied to out.
	chunkStart int
	out        strings.Builder
	params     []Param
	lineNum    int
	lineStart  int
}

// Parse returns the SQL for input with ":name" placeholders replaced by
// positional markers, and the parameters in the order they appear. Text with
// no placeholders is returned unchanged with nil params.
func (p *Parser) Parse(input string) (sql string, params []Param, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot parse snippet %q: %w", input, err)
		}
	}()

	p.init(input)

	for p.pos < len(p.input) {
		if ok, err := p.skipStringLiteral(); err != nil {
			return "", nil, err
		} else if ok {
			continue
		}
		if ok, err := p.skipComment(); err != nil {
			return "", nil, err
		} else if ok {
			continue
		}
		if p.skipCast() {
			continue
		}
		if ok, err := p.parseParam(); err != nil {
			return "", nil, err
		} else if ok {
			continue
		}
		p.advanceChar()
	}

	if len(p.params) == 0 {
		return input, nil, nil
	}
	p.out.WriteString(p.input[p.chunkStart:])
	return p.out.String(), p.params, nil
}

// init resets the parser state for a new input.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.chunkStart = 0
	p.out.Reset()
	p.params = nil
	p.lineNum = 1
	p.lineStart = 0
	p.advanceChar()
}

func (p *Parser) colNum() int {
	return p.pos - p.lineStart + 1
}

// advanceChar moves to the next rune, keeping track of line breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// errorAt prefixes err with its position. The line is only reported for
// multi-line input.
func errorAt(err error, line int, column int, input string) error {
	if strings.ContainsRune(input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", line, column, err)
	}
	return fmt.Errorf("column %d: %w", column, err)
}

type checkpoint struct {
	parser    *Parser
	pos       int
	nextPos   int
	char      rune
	lineNum   int
	lineStart int
}

func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:    p,
		pos:       p.pos,
		nextPos:   p.nextPos,
		char:      p.char,
		lineNum:   p.lineNum,
		lineStart: p.lineStart,
	}
}

func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// peekChar reports whether the current char is c.
func (p *Parser) peekChar(c rune) bool {
	return p.pos < len(p.input) && p.char == c
}

// peekNext reports whether the char after the current one is c.
func (p *Parser) peekNext(c rune) bool {
	if p.nextPos >= len(p.input) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(p.input[p.nextPos:])
	return r == c
}

// skipChar consumes the current char if it is c.
func (p *Parser) skipChar(c rune) bool {
	if p.peekChar(c) {
		p.advanceChar()
		return true
	}
	return false
}

// skipCharFind advances past the next occurrence of c. If there is none the
// parser is left where it was.
func (p *Parser) skipCharFind(c rune) bool {
	cp := p.save()
	for p.pos < len(p.input) {
		if p.char == c {
			p.advanceChar()
			return true
		}
		p.advanceChar()
	}
	cp.restore()
	return false
}

// skipComment jumps over "--" line comments and "/* */" block comments. A
// block comment must be closed.
func (p *Parser) skipComment() (bool, error) {
	cp := p.save()
	c := p.char
	if !(p.skipChar('-') || p.skipChar('/')) {
		return false, nil
	}
	if !((c == '-' && p.skipChar('-')) || (c == '/' && p.skipChar('*'))) {
		cp.restore()
		return false, nil
	}
	for p.pos < len(p.input) {
		if c == '-' && p.char == '\n' {
			// The newline belongs to the following text.
			return true, nil
		}
		if c == '/' && p.skipChar('*') {
			if p.skipChar('/') {
				return true, nil
			}
			continue
		}
		p.advanceChar()
	}
	if c == '/' {
		return false, errorAt(fmt.Errorf("missing closing \"*/\" in block comment"), cp.lineNum, cp.pos-cp.lineStart+1, p.input)
	}
	return true, nil
}

// skipStringLiteral jumps over single or double quoted text. A doubled quote
// inside the literal is an escaped quote.
func (p *Parser) skipStringLiteral() (bool, error) {
	cp := p.save()

	c := p.char
	if !(p.skipChar('"') || p.skipChar('\'')) {
		return false, nil
	}
	maybeCloser := true
	for p.skipCharFind(c) {
		if maybeCloser && !p.peekChar(c) {
			return true, nil
		}
		maybeCloser = !maybeCloser
	}

	cp.restore()
	return false, errorAt(fmt.Errorf("missing closing quote in string literal"), cp.lineNum, cp.pos-cp.lineStart+1, p.input)
}

// skipCast jumps over a "::" type cast.
func (p *Parser) skipCast() bool {
	if p.peekChar(':') && p.peekNext(':') {
		p.advanceChar()
		p.advanceChar()
		return true
	}
	return false
}

func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

func isInitialNameChar(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isBlank(c rune) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// parseName parses a parameter name. Names start with a letter or an
// underscore.
func (p *Parser) parseName() (string, bool) {
	mark := p.pos
	if p.pos < len(p.input) && isInitialNameChar(p.char) {
		p.advanceChar()
		for p.pos < len(p.input) && isNameChar(p.char) {
			p.advanceChar()
		}
	}
	if p.pos > mark {
		return p.input[mark:p.pos], true
	}
	return "", false
}

// parseParam parses a placeholder of the form ":name", ":name:" or
// ":name|default:". A colon that does not start a name, such as in "a[1:2]",
// is not a placeholder.
func (p *Parser) parseParam() (bool, error) {
	cp := p.save()
	start := p.pos
	if !p.skipChar(':') {
		return false, nil
	}
	if p.pos >= len(p.input) || isBlank(p.char) {
		return false, errorAt(fmt.Errorf("missing parameter name after ':'"), cp.lineNum, cp.pos-cp.lineStart+1, p.input)
	}
	name, ok := p.parseName()
	if !ok {
		cp.restore()
		return false, nil
	}

	param := Param{Index: len(p.params), Name: name}
	switch {
	case p.skipChar('|'):
		mark := p.pos
		if !p.skipCharFind(':') {
			return false, errorAt(fmt.Errorf("missing closing ':' after default of parameter %q", name), cp.lineNum, cp.pos-cp.lineStart+1, p.input)
		}
		param.Default = p.input[mark : p.pos-1]
		param.Spliced = true
	case p.peekChar(':') && !p.peekNext(':'):
		p.advanceChar()
		param.Spliced = true
	}
	param.Token = p.input[start:p.pos]

	p.out.WriteString(p.input[p.chunkStart:start])
	if param.Spliced {
		p.out.WriteString(param.Token)
	} else {
		p.out.WriteString(Marker)
	}
	p.chunkStart = p.pos
	p.params = append(p.params, param)
	return true, nil
}
