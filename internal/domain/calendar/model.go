package calendar

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Max length constants.
const (
	MaxTitleLength = 200
	MaxNameLength  = 200
	MaxColorLength = 64
)

// Record is one calendar entry: a titled time window owned by a named person,
// with optional display metadata.
// PRE: Title and Name are non-empty. Start and End are set.
// INVARIANT: ID never changes once assigned by the store.
// End may precede Start; no ordering is enforced between them.
type Record struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Color      *string   `json:"color,omitempty"`
	IsEditable *bool     `json:"isEditable,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Normalize trims text fields and moves timestamps to UTC.
// PRE: none
// POST: Title, Name and Color carry no surrounding whitespace; Start and End are UTC
func (r *Record) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Name = strings.TrimSpace(r.Name)
	if r.Color != nil {
		c := strings.TrimSpace(*r.Color)
		r.Color = &c
	}
	r.Start = r.Start.UTC()
	r.End = r.End.UTC()
}

// Validate checks the record's invariants and reports every failing field.
// PRE: none
// POST: returns nil if valid, *ValidationError listing the violations otherwise
func (r *Record) Validate() error {
	var v ValidationError
	switch {
	case strings.TrimSpace(r.Title) == "":
		v.Add("title", "is required")
	case utf8.RuneCountInString(r.Title) > MaxTitleLength:
		v.Add("title", "cannot exceed 200 characters")
	}
	switch {
	case strings.TrimSpace(r.Name) == "":
		v.Add("name", "is required")
	case utf8.RuneCountInString(r.Name) > MaxNameLength:
		v.Add("name", "cannot exceed 200 characters")
	}
	if r.Start.IsZero() {
		v.Add("start", "is required")
	}
	if r.End.IsZero() {
		v.Add("end", "is required")
	}
	if r.Color != nil && utf8.RuneCountInString(*r.Color) > MaxColorLength {
		v.Add("color", "cannot exceed 64 characters")
	}
	return v.OrNil()
}

// Patch is a partial update. Nil fields are left untouched by Apply.
type Patch struct {
	Title      *string
	Name       *string
	Start      *time.Time
	End        *time.Time
	Color      *string
	IsEditable *bool
}

// IsEmpty reports whether the patch sets no field at all.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Name == nil && p.Start == nil && p.End == nil &&
		p.Color == nil && p.IsEditable == nil
}

// Apply returns a copy of r with every field present in p overwritten.
// PRE: none
// POST: fields absent from p keep their value from r; ID and timestamps are never touched
func (p Patch) Apply(r Record) Record {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Start != nil {
		r.Start = *p.Start
	}
	if p.End != nil {
		r.End = *p.End
	}
	if p.Color != nil {
		c := *p.Color
		r.Color = &c
	}
	if p.IsEditable != nil {
		e := *p.IsEditable
		r.IsEditable = &e
	}
	return r
}
