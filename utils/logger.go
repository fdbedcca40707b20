package utils

import (
	"fmt"
	"io"
)

// Logger is a nil-safe trace writer; a nil *Logger drops everything
type Logger struct {
	io.Writer
}

func NewLogger(w io.Writer) *Logger {
	if w == nil {
		return nil
	}
	return &Logger{Writer: w}
}

func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil {
		fmt.Fprintf(l, format+"\n", a...)
	}
}
