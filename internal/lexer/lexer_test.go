// Verifies that a small Gos snippet is tokenized in source order with the
// expected kinds and positions, mirroring the teacher's table-driven lexer
// test against a hand-captured token list.
package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexerBasic(t *testing.T) {
	src := "let x: int = (1 + 2) * 3"
	exp := []Kind{
		KwLet, IDENT, Colon, KwInt, Assign, LParen, INT, Plus, INT, RParen, Star, INT, EOF,
	}
	l := New(src)
	for i, want := range exp {
		tok, err := l.Next()
		if !assert.NoError(t, err, "token %d", i) {
			t.FailNow()
		}
		assert.Equalf(t, want, tok.Kind, "token %d", i)
	}
}

func TestLexerUnaryContext(t *testing.T) {
	// "-1" at the start of input is unary; "a - 1" is binary.
	l := New("-1")
	tok, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, Minus, tok.Kind)
	assert.True(t, tok.UnaryContext)

	l2 := New("a - 1")
	_, err = l2.Next() // IDENT "a"
	assert.NoError(t, err)
	tok2, err := l2.Next() // "-"
	assert.NoError(t, err)
	assert.Equal(t, Minus, tok2.Kind)
	assert.False(t, tok2.UnaryContext)
}

func TestLexerArrayType(t *testing.T) {
	l := New("arr<3> arr<_>")
	tok, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, KwArr, tok.Kind)
	if assert.NotNil(t, tok.ArrLen) {
		assert.Equal(t, 3, *tok.ArrLen)
	}

	tok2, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, KwArr, tok2.Kind)
	assert.Nil(t, tok2.ArrLen)
}

func TestLexerStringEscapes(t *testing.T) {
	l := New(`"hi\n" 'lo\t'`)
	tok, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, STRING, tok.Kind)
	assert.Equal(t, "hi\n", tok.StrVal)

	tok2, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, STRING, tok2.Kind)
	assert.Equal(t, "lo\t", tok2.StrVal)
}

func TestLexerFloat(t *testing.T) {
	l := New("3.14 5")
	tok, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, FLOAT, tok.Kind)
	assert.Equal(t, 3.14, tok.FloatVal)

	tok2, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, INT, tok2.Kind)
	assert.Equal(t, int64(5), tok2.IntVal)
}

func TestLexerLineComment(t *testing.T) {
	l := New("1 # comment to eol\n2")
	tok, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, INT, tok.Kind)
	assert.Equal(t, int64(1), tok.IntVal)

	tok2, err := l.Next()
	assert.NoError(t, err)
	assert.Equal(t, INT, tok2.Kind)
	assert.Equal(t, int64(2), tok2.IntVal)
	assert.Equal(t, 2, tok2.Row)
}

func TestLexerUnexpectedChar(t *testing.T) {
	l := New("@")
	_, err := l.Next()
	assert.Error(t, err)
}
