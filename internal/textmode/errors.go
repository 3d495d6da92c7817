// internal/textmode/errors.go
package textmode

import (
	"fmt"
	"regexp"
	"strconv"
)

// ParseError describes why a text block could not be turned back into scenes.
// Line and Column are 1-based; zero means the position is unknown.
type ParseError struct {
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	default:
		return e.Reason
	}
}

// position converts a byte offset into a 1-based line and column.
func position(text string, offset int64) (int, int) {
	if offset < 0 {
		return 0, 0
	}
	if offset > int64(len(text)) {
		offset = int64(len(text))
	}
	line, col := 1, 1
	for _, r := range text[:offset] {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

func errorAt(text string, offset int64, format string, args ...interface{}) *ParseError {
	line, col := position(text, offset)
	return &ParseError{Line: line, Column: col, Reason: fmt.Sprintf(format, args...)}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// yamlError pulls the line number out of a yaml.v3 error message.
func yamlError(err error) *ParseError {
	msg := err.Error()
	pe := &ParseError{Reason: msg}
	if m := yamlLine.FindStringSubmatch(msg); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}
