// Package jsonutil encodes the structured columns of the calibration
// store (vectors, matrices, joint maps) and pretty-prints them for the
// CLI.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Column marshals v into the text stored in a JSON column.
func Column(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding column: %w", err)
	}
	return string(b), nil
}

// NullableColumn is Column for optional values: nil slices and maps are
// stored as SQL NULL.
func NullableColumn(v interface{}) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []float64:
		if t == nil {
			return nil, nil
		}
	}
	s, err := Column(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Decode unmarshals a JSON column into v. An empty column leaves v as is.
func Decode(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decoding column: %w", err)
	}
	return nil
}

// DecodeNullable is Decode for columns that may be NULL.
func DecodeNullable(s *string, v interface{}) error {
	if s == nil {
		return nil
	}
	return Decode(*s, v)
}

// Pretty formats v as indented JSON for display.
func Pretty(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// PrettyJSON re-indents a JSON string. Returns the original string if
// it's not valid JSON.
func PrettyJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

// TruncateString truncates a string to maxLen runes, adding "..." if
// truncation occurred.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
