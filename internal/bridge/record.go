package bridge

import (
	"strings"
	"unicode"
)

// FieldSeparator splits one input line into fields.
const FieldSeparator = "\t"

// Record is one parsed line of sensor input. Fields stay untyped; numeric
// interpretation belongs to the consumers.
type Record []string

// ParseLine trims trailing whitespace (including a CR left by CRLF devices)
// and splits what remains on tabs. ok is false for blank lines.
func ParseLine(line string) (rec Record, ok bool) {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	if line == "" {
		return nil, false
	}
	return Record(strings.Split(line, FieldSeparator)), true
}

// Field returns the i-th field and whether it was present.
func (r Record) Field(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}
