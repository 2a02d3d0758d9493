package calendar

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when an id-addressed operation targets a record that does not exist.
var ErrNotFound = errors.New("calendar record not found")

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level rejections for one input.
type ValidationError struct {
	Fields []FieldError
}

// Add records a rejected field.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns v as an error when it holds at least one field, nil otherwise.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

// Error joins the field messages as `"field" message` pairs.
func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, `"`+f.Field+`" `+f.Message)
	}
	return strings.Join(parts, ", ")
}
