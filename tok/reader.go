package tok

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// FormatError is returned when the input does not follow the expected
// keyword sequence. Parsing never yields partial results after it.
type FormatError struct {
	Line     int
	Column   int
	Expected string
	Got      string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error at %d:%d: expected %s, got %s", e.Line, e.Column, e.Expected, e.Got)
}

func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

const eofText = "end of input"

// Reader is a pull cursor over a token list with typed accessors
type Reader struct {
	tokens []Token
	pos    int
}

func NewReader(text []byte) (*Reader, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return &Reader{tokens: tokens}, nil
}

func (r *Reader) EOF() bool {
	return r.pos >= len(r.tokens)
}

// Peek returns nil at the end of input
func (r *Reader) Peek() *Token {
	if r.EOF() {
		return nil
	}
	return &r.tokens[r.pos]
}

func (r *Reader) errorf(expected string) *FormatError {
	if r.EOF() {
		fe := &FormatError{Expected: expected, Got: eofText}
		if len(r.tokens) != 0 {
			last := r.tokens[len(r.tokens)-1]
			fe.Line, fe.Column = last.Line, last.Column
		}
		return fe
	}
	t := &r.tokens[r.pos]
	return &FormatError{Line: t.Line, Column: t.Column, Expected: expected, Got: t.String()}
}

func (r *Reader) Next() (*Token, error) {
	if r.EOF() {
		return nil, r.errorf("token")
	}
	t := &r.tokens[r.pos]
	r.pos++
	return t, nil
}

// Keyword consumes one string token that must equal kw
func (r *Reader) Keyword(kw string) error {
	if t := r.Peek(); t == nil || !t.Is(kw) {
		return r.errorf(fmt.Sprintf("%q", kw))
	}
	r.pos++
	return nil
}

// Word consumes one string token of any content
func (r *Reader) Word() (string, error) {
	if t := r.Peek(); t == nil || t.Kind != KindString {
		return "", r.errorf("string")
	}
	r.pos++
	return r.tokens[r.pos-1].Text, nil
}

func (r *Reader) number() (*Token, error) {
	if t := r.Peek(); t == nil || t.Kind != KindNumber {
		return nil, r.errorf("number")
	}
	r.pos++
	return &r.tokens[r.pos-1], nil
}

func (r *Reader) Int() (int, error) {
	t, err := r.number()
	if err != nil {
		return 0, err
	}
	return t.Int(), nil
}

func (r *Reader) Float() (float32, error) {
	t, err := r.number()
	if err != nil {
		return 0, err
	}
	return t.Float(), nil
}

// Floats reads n numbers into out
func (r *Reader) Floats(out []float32) error {
	for i := range out {
		v, err := r.Float()
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}

func (r *Reader) tuple(out []float32) error {
	if err := r.Keyword("("); err != nil {
		return err
	}
	if err := r.Floats(out); err != nil {
		return err
	}
	return r.Keyword(")")
}

// Vec2 reads "( x y )"
func (r *Reader) Vec2() (mgl32.Vec2, error) {
	var v mgl32.Vec2
	err := r.tuple(v[:])
	return v, err
}

// Vec3 reads "( x y z )"
func (r *Reader) Vec3() (mgl32.Vec3, error) {
	var v mgl32.Vec3
	err := r.tuple(v[:])
	return v, err
}

// KeyInt reads "<kw> <int>", the common "numXxx N" header form
func (r *Reader) KeyInt(kw string) (int, error) {
	if err := r.Keyword(kw); err != nil {
		return 0, err
	}
	return r.Int()
}
