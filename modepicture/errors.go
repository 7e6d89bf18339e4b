package modepicture

import "fmt"

// ValidationError describes a malformed input dataset.  It is returned
// before any fitting happens; a ModePicture is never partially built.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "modepicture: invalid dataset: " + e.Reason
}

// ParseError describes a mode picture file that does not match the
// expected header or table format.  Line is 1-based and zero when the
// error is not tied to a specific line.
type ParseError struct {
	Line   int
	Reason string
}

func (e ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("modepicture: parse error on line %d: %s", e.Line, e.Reason)
	}
	return "modepicture: parse error: " + e.Reason
}
