package lexer

import "testing"

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	toks, err := New(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", src, err)
	}
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	return types
}

func assertTypes(t *testing.T, got []TokenType, want ...TokenType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v tokens, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenizeSimpleAssignment(t *testing.T) {
	got := tokenTypes(t, "x = 1\n")
	assertTypes(t, got, TokenIdentifier, TokenAssign, TokenInteger, TokenNewline, TokenEOF)
}

func TestTokenizeKeywordsNotMistakenForIdentifiers(t *testing.T) {
	got := tokenTypes(t, "if x:\n    pass\n")
	assertTypes(t, got,
		TokenIf, TokenIdentifier, TokenColon, TokenNewline,
		TokenIndent, TokenPass, TokenNewline,
		TokenDedent, TokenEOF)
}

func TestTokenizeTwoCharOperators(t *testing.T) {
	got := tokenTypes(t, "a == b != c <= d >= e\n")
	assertTypes(t, got,
		TokenIdentifier, TokenEq, TokenIdentifier, TokenNotEq, TokenIdentifier,
		TokenLessEq, TokenIdentifier, TokenGreaterEq, TokenIdentifier,
		TokenNewline, TokenEOF)
}

func TestTokenizeFloatVsInteger(t *testing.T) {
	toks, err := New("1 1.5 2.\n").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if toks[0].Type != TokenInteger || toks[0].Literal != "1" {
		t.Errorf("token 0 = %+v, want INTEGER 1", toks[0])
	}
	if toks[1].Type != TokenFloat || toks[1].Literal != "1.5" {
		t.Errorf("token 1 = %+v, want FLOAT 1.5", toks[1])
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := New(`"a\nb"` + "\n").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	if toks[0].Type != TokenString || toks[0].Literal != "a\nb" {
		t.Errorf("token 0 = %+v, want STRING %q", toks[0], "a\nb")
	}
}

func TestTokenizeNestedIndentation(t *testing.T) {
	src := "if a:\n    if b:\n        pass\n    pass\n"
	got := tokenTypes(t, src)
	assertTypes(t, got,
		TokenIf, TokenIdentifier, TokenColon, TokenNewline,
		TokenIndent,
		TokenIf, TokenIdentifier, TokenColon, TokenNewline,
		TokenIndent, TokenPass, TokenNewline,
		TokenDedent, TokenPass, TokenNewline,
		TokenDedent, TokenEOF)
}

func TestTokenizeIgnoresNewlinesInsideParens(t *testing.T) {
	src := "f(1,\n2)\n"
	got := tokenTypes(t, src)
	assertTypes(t, got,
		TokenIdentifier, TokenLParen, TokenInteger, TokenComma,
		TokenInteger, TokenRParen, TokenNewline, TokenEOF)
}

func TestTokenizeCommentOnlyLineIsSkipped(t *testing.T) {
	got := tokenTypes(t, "x = 1\n# a comment\ny = 2\n")
	assertTypes(t, got,
		TokenIdentifier, TokenAssign, TokenInteger, TokenNewline,
		TokenIdentifier, TokenAssign, TokenInteger, TokenNewline, TokenEOF)
}

func TestTokenizeIllegalCharacterReturnsError(t *testing.T) {
	_, err := New("x = @\n").Tokenize()
	if err == nil {
		t.Errorf("expected an error for an illegal character")
	}
}

func TestTokenTypeStringKnownNames(t *testing.T) {
	if TokenIf.String() != "if" {
		t.Errorf("TokenIf.String() = %q, want %q", TokenIf.String(), "if")
	}
	if TokenInteger.String() != "INTEGER" {
		t.Errorf("TokenInteger.String() = %q, want %q", TokenInteger.String(), "INTEGER")
	}
}
