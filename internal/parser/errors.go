package parser

import "fmt"

// SyntaxError is raised for any malformed input the parser cannot recover
// a tree from, mirroring the teacher's own SyntaxError shape
// (parser/error.go) and its terse, line/column-first error text.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func newSyntaxError(line, column int, message string) SyntaxError {
	return SyntaxError{Line: line, Column: column, Message: message}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("💥 syntax error: line:%d, column:%d - %s", e.Line, e.Column, e.Message)
}
