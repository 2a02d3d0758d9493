package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	calendarStore "calendarrecords/internal/adapters/storage/calendar"
	"calendarrecords/internal/application/listutil"
	"calendarrecords/internal/application/orchestrators"
	"calendarrecords/internal/application/projections"
	domain "calendarrecords/internal/domain/calendar"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// listQueryKeys are the only query parameters GET /v1/calendar accepts.
var listQueryKeys = []string{"title", "name", "start", "end", "sortBy", "limit", "page"}

// recordBody is the wire shape of create and patch bodies. Times arrive as strings
// so every accepted layout goes through domain.ParseTime.
type recordBody struct {
	Title      *string `json:"title"`
	Name       *string `json:"name"`
	Start      *string `json:"start"`
	End        *string `json:"end"`
	Color      *string `json:"color"`
	IsEditable *bool   `json:"isEditable"`
}

// strictDecode decodes JSON from the request body, rejecting unknown fields and trailing data.
// Decoding failures come back as *domain.ValidationError.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fieldError("body", "must contain a single JSON object")
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return fieldError("body", "is required")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return fieldError(field, "must be "+jsonTypeName(typeErr.Type.Kind().String()))
	case errors.As(err, &maxErr):
		return fieldError("body", "is too large")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		name := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return fieldError(name, "is not allowed")
	default:
		return fieldError("body", "must be valid JSON")
	}
}

func jsonTypeName(kind string) string {
	switch kind {
	case "ptr", "string":
		return "a string"
	case "bool":
		return "a boolean"
	case "struct", "map":
		return "an object"
	default:
		return "a " + kind
	}
}

func fieldError(field, message string) error {
	v := &domain.ValidationError{}
	v.Add(field, message)
	return v
}

// parseTimeField parses an optional time value, recording a failure on v.
func parseTimeField(v *domain.ValidationError, field string, raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	t, err := domain.ParseTime(*raw)
	if err != nil {
		v.Add(field, "must be a valid date")
		return nil
	}
	return &t
}

// decodeCreate reads a create body.
// PRE: none
// POST: title, name, start and end are present and times parse; content rules are left to the orchestrator
func decodeCreate(w http.ResponseWriter, r *http.Request) (orchestrators.CreateCalendarRecordInput, error) {
	var body recordBody
	if err := strictDecode(w, r, &body); err != nil {
		return orchestrators.CreateCalendarRecordInput{}, err
	}

	var v domain.ValidationError
	if body.Title == nil {
		v.Add("title", "is required")
	}
	if body.Name == nil {
		v.Add("name", "is required")
	}
	start := parseTimeField(&v, "start", body.Start)
	if body.Start == nil {
		v.Add("start", "is required")
	}
	end := parseTimeField(&v, "end", body.End)
	if body.End == nil {
		v.Add("end", "is required")
	}
	if err := v.OrNil(); err != nil {
		return orchestrators.CreateCalendarRecordInput{}, err
	}

	return orchestrators.CreateCalendarRecordInput{
		Title:      *body.Title,
		Name:       *body.Name,
		Start:      *start,
		End:        *end,
		Color:      body.Color,
		IsEditable: body.IsEditable,
	}, nil
}

// decodePatch reads a patch body.
// PRE: none
// POST: at least one field is present and any times parse
func decodePatch(w http.ResponseWriter, r *http.Request) (domain.Patch, error) {
	var body recordBody
	if err := strictDecode(w, r, &body); err != nil {
		return domain.Patch{}, err
	}

	var v domain.ValidationError
	p := domain.Patch{
		Title:      body.Title,
		Name:       body.Name,
		Start:      parseTimeField(&v, "start", body.Start),
		End:        parseTimeField(&v, "end", body.End),
		Color:      body.Color,
		IsEditable: body.IsEditable,
	}
	if err := v.OrNil(); err != nil {
		return domain.Patch{}, err
	}
	if p.IsEmpty() {
		return domain.Patch{}, fieldError("body", "must contain at least one of title, name, start, end, color, isEditable")
	}
	return p, nil
}

// parseID validates the {id} path value.
// POST: returns the canonical lower-case UUID
func parseID(r *http.Request) (string, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", fieldError("id", "must be a valid UUID")
	}
	return id.String(), nil
}

// parseListQuery validates list query parameters.
// PRE: none
// POST: every failing parameter is reported; unknown keys are rejected
func parseListQuery(q url.Values) (projections.GetCalendarRecordsQuery, error) {
	var v domain.ValidationError
	for _, key := range listutil.UnknownKeys(q, listQueryKeys) {
		v.Add(key, "is not allowed")
	}

	var query projections.GetCalendarRecordsQuery
	query.Filter = calendarStore.Filter{Title: q.Get("title"), Name: q.Get("name")}
	if raw := q.Get("start"); raw != "" {
		if t := parseTimeField(&v, "start", &raw); t != nil {
			query.Filter.Start = mo.Some(*t)
		}
	}
	if raw := q.Get("end"); raw != "" {
		if t := parseTimeField(&v, "end", &raw); t != nil {
			query.Filter.End = mo.Some(*t)
		}
	}

	sortBy, err := listutil.ParseSortBy(q.Get("sortBy"), calendarStore.SortableFields)
	if err != nil {
		v.Add("sortBy", err.Error())
	}
	limit, err := listutil.ParseBoundedInt(q, "limit", listutil.DefaultLimit, listutil.MaxLimit)
	if err != nil {
		v.Add("limit", err.Error())
	}
	page, err := listutil.ParsePositiveInt(q, "page", listutil.DefaultPage)
	if err != nil {
		v.Add("page", err.Error())
	}
	if err := v.OrNil(); err != nil {
		return projections.GetCalendarRecordsQuery{}, err
	}

	query.Options = listutil.PageOptions{SortBy: sortBy, Limit: limit, Page: page}
	return query, nil
}
