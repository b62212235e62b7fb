package jack

import (
	"fmt"
	"regexp"
	"unicode"
)

// ----------------------------------------------------------------------------
// Tokenizer

// A Token is a tagged pair of (Kind, Text), the atomic unit the Tokenizer
// produces and the CompilationEngine consumes.
type Token struct {
	Kind Kind
	Text string // lexeme; for StringConst the surrounding quotes are stripped
}

// Token kinds use the Kind string type declared in symboltable.go.
const (
	KeywordTok    Kind = "keyword"
	SymbolTok     Kind = "symbol"
	IntConstTok   Kind = "integerConstant"
	StringConstTok Kind = "stringConstant"
	IdentifierTok Kind = "identifier"
)

var keywords = map[string]bool{
	"class": true, "constructor": true, "function": true, "method": true,
	"field": true, "static": true, "var": true, "int": true, "char": true,
	"boolean": true, "void": true, "true": true, "false": true, "null": true,
	"this": true, "let": true, "do": true, "if": true, "else": true,
	"while": true, "return": true,
}

// Priority order matters: an integer must be tried before an identifier (a
// leading digit would otherwise never be reached), a string literal before a
// symbol (its opening quote isn't one), and a keyword is just an identifier
// that happens to land in the reserved set - it is never given its own regex.
var (
	reInt    = regexp.MustCompile(`^[0-9]+`)
	reString = regexp.MustCompile(`^"[^"\n]*"`)
	reSymbol = regexp.MustCompile(`^[{}()\[\].,;+\-*/&|<>=~]`)
	reIdent  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`//[^\n]*`)
)

// stripComments removes both comment forms from a Jack source text before
// tokenizing. Block comments collapse to a single space; line comments are
// dropped up to (but not including) the trailing newline, so line counts are
// preserved loosely rather than exactly.
func stripComments(src string) string {
	src = reBlockComment.ReplaceAllString(src, " ")
	src = reLineComment.ReplaceAllString(src, "")
	return src
}

// Tokenizer turns a Jack source text into a lazy, single-pass, non-restartable
// sequence of Tokens. It exposes a one-slot pushback buffer so a caller (the
// CompilationEngine) can look one token ahead and put it back, which is all
// the lookahead the Jack grammar ever needs (e.g. disambiguating
// 'subroutineName(' from 'className.subroutineName(').
type Tokenizer struct {
	src     string
	pos     int
	current Token
	pending *Token
	done    bool
}

// NewTokenizer prepares 'source' (already read into memory) for tokenizing.
func NewTokenizer(source []byte) *Tokenizer {
	return &Tokenizer{src: stripComments(string(source))}
}

// HasMoreTokens reports whether another token is available, without
// consuming it. Malformed trailing input (an unterminated string, a stray
// character matching none of the lexical classes) is treated as end of
// stream: the caller just observes HasMoreTokens() == false.
func (t *Tokenizer) HasMoreTokens() bool {
	if t.pending != nil {
		return true
	}
	if t.done {
		return false
	}
	idx := t.pos
	for idx < len(t.src) && unicode.IsSpace(rune(t.src[idx])) {
		idx++
	}
	if idx >= len(t.src) {
		return false
	}
	_, n := lex(t.src[idx:])
	return n > 0
}

// Advance consumes and positions the Tokenizer on the next token, readable
// via Current(). It returns an error when no further token can be read:
// at the end of the input, or at input matching none of the lexical classes.
func (t *Tokenizer) Advance() error {
	if t.pending != nil {
		t.current = *t.pending
		t.pending = nil
		return nil
	}

	for t.pos < len(t.src) && unicode.IsSpace(rune(t.src[t.pos])) {
		t.pos++
	}
	if t.pos >= len(t.src) {
		t.done = true
		return fmt.Errorf("jack: advance called with no more tokens")
	}

	tok, n := lex(t.src[t.pos:])
	if n == 0 {
		t.done = true
		return fmt.Errorf("jack: unrecognized input at offset %d: %q", t.pos, excerpt(t.src[t.pos:]))
	}

	t.pos += n
	t.current = tok
	return nil
}

// Current returns the token Advance most recently positioned on.
func (t *Tokenizer) Current() Token { return t.current }

// PushBack returns 'tok' to the one-slot buffer so the next Advance() call
// yields it again instead of consuming fresh input. Only one token may be
// buffered at a time - the Jack grammar never needs more.
func (t *Tokenizer) PushBack(tok Token) { t.pending = &tok }

func excerpt(s string) string {
	const max = 16
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// lex matches the longest-priority token at the start of 'rest', returning
// the zero Token and n == 0 if nothing matches.
func lex(rest string) (Token, int) {
	if m := reInt.FindString(rest); m != "" {
		return Token{Kind: IntConstTok, Text: m}, len(m)
	}
	if m := reString.FindString(rest); m != "" {
		return Token{Kind: StringConstTok, Text: m[1 : len(m)-1]}, len(m)
	}
	if m := reSymbol.FindString(rest); m != "" {
		return Token{Kind: SymbolTok, Text: m}, len(m)
	}
	if m := reIdent.FindString(rest); m != "" {
		if keywords[m] {
			return Token{Kind: KeywordTok, Text: m}, len(m)
		}
		return Token{Kind: IdentifierTok, Text: m}, len(m)
	}
	return Token{}, 0
}
