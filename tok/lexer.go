package tok

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_STRING = iota
	TOKEN_NUMBER
	TOKEN_QUOTED
	TOKEN_SPECIAL
)

type Kind int

const (
	KindString Kind = iota
	KindNumber
)

func (k Kind) String() string {
	if k == KindNumber {
		return "number"
	}
	return "string"
}

type Token struct {
	Kind   Kind
	Text   string
	Number float64
	Line   int
	Column int
}

func (t *Token) Is(text string) bool {
	return t.Kind == KindString && t.Text == text
}

// Truncates toward zero
func (t *Token) Int() int {
	return int(t.Number)
}

func (t *Token) Float() float32 {
	return float32(t.Number)
}

func (t *Token) String() string {
	if t.Kind == KindNumber {
		return t.Text
	}
	return strconv.Quote(t.Text)
}

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	// comments go first so "//" never lexes as a word of the same length
	lexer.Add([]byte(`//[^\n]*`), skip)
	lexer.Add([]byte(`/\*([^*]|\r|\n|(\*+([^*/]|\r|\n)))*\*+/`), skip)
	lexer.Add([]byte(`( |\t|\r|\n)+`), skip)
	lexer.Add([]byte(`\-?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`"[^"]*"`), getToken(TOKEN_QUOTED))
	lexer.Add([]byte(`'[^']*'`), getToken(TOKEN_QUOTED))
	lexer.Add([]byte(`[\(\)\{\}\[\],]`), getToken(TOKEN_SPECIAL))
	lexer.Add([]byte(`[^ \t\r\n"'\(\)\{\}\[\],]+`), getToken(TOKEN_STRING))
	if err := lexer.Compile(); err != nil {
		panic(err)
	}
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// Tokenize splits Doom 3 style text into string and number tokens.
// Quotes are stripped from quoted strings, comments and whitespace are dropped.
func Tokenize(text []byte) ([]Token, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	result := make([]Token, 0, len(text)/4)
	for Itok, err, eos := scanner.Next(); !eos; Itok, err, eos = scanner.Next() {
		if err != nil {
			if ui, ok := err.(*machines.UnconsumedInput); ok {
				return nil, &FormatError{
					Line:     ui.StartLine,
					Column:   ui.StartColumn,
					Expected: "token",
					Got:      "unrecognized input",
				}
			}
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		lt := Itok.(*lexmachine.Token)

		t := Token{
			Kind:   KindString,
			Text:   lt.Value.(string),
			Line:   lt.StartLine,
			Column: lt.StartColumn,
		}

		switch lt.Type {
		case TOKEN_NUMBER:
			v, err := strconv.ParseFloat(t.Text, 64)
			if err != nil {
				return nil, &FormatError{Line: t.Line, Column: t.Column, Expected: "number", Got: t.Text}
			}
			t.Kind = KindNumber
			t.Number = v
		case TOKEN_QUOTED:
			t.Text = t.Text[1 : len(t.Text)-1]
		}

		result = append(result, t)
	}

	return result, nil
}
