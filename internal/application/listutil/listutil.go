package listutil

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultLimit is the default number of results per page.
const DefaultLimit = 10

// MaxLimit is the largest page size a caller may request.
const MaxLimit = 1000

// DefaultPage is the 1-indexed page returned when none is requested.
const DefaultPage = 1

// Direction constants for SortKey.
const (
	Asc  = "asc"
	Desc = "desc"
)

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Dir   string // Asc or Desc
}

// PageOptions carries the paging and sorting part of a list request.
type PageOptions struct {
	SortBy []SortKey // empty means insertion order
	Limit  int       // results per page; <= 0 means DefaultLimit
	Page   int       // 1-indexed; <= 0 means DefaultPage
}

// Normalized returns o with defaults applied to non-positive Limit and Page.
// PRE: none
// POST: Limit >= 1 and Page >= 1
func (o PageOptions) Normalized() PageOptions {
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	return o
}

// Offset returns the number of matches skipped before this page.
// PRE: o is normalized
// POST: returns (Page-1) * Limit, saturating at math.MaxInt instead of overflowing
func (o PageOptions) Offset() int {
	if o.Page-1 > math.MaxInt/o.Limit {
		return math.MaxInt
	}
	return (o.Page - 1) * o.Limit
}

// Page is one slice of a filtered, sorted result set plus the counts needed to request further pages.
type Page[T any] struct {
	Results      []T `json:"results"`
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"totalPages"`
	TotalResults int `json:"totalResults"`
}

// NewPage assembles a page from the rows of one slice and the total match count.
// PRE: opts is normalized, totalResults >= 0
// POST: TotalPages == ceil(totalResults/Limit) (0 when totalResults == 0); Results is never nil
// Page is not clamped: a page past TotalPages carries empty Results and correct counts.
func NewPage[T any](results []T, opts PageOptions, totalResults int) Page[T] {
	if results == nil {
		results = []T{}
	}
	return Page[T]{
		Results:      results,
		Page:         opts.Page,
		Limit:        opts.Limit,
		TotalPages:   TotalPages(totalResults, opts.Limit),
		TotalResults: totalResults,
	}
}

// TotalPages returns ceil(total/limit), or 0 when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total-1)/limit + 1
}

// ParseSortBy parses "field:dir[,field:dir...]". A missing direction means ascending.
// PRE: allowed lists the sortable field names
// POST: returns the keys in order, or an error naming the first bad key
func ParseSortBy(s string, allowed []string) ([]SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var keys []SortKey
	for _, part := range strings.Split(s, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.TrimSpace(field)
		dir = strings.ToLower(strings.TrimSpace(dir))
		if !isAllowedColumn(field, allowed) {
			return nil, fmt.Errorf("cannot sort by %q", field)
		}
		switch dir {
		case "":
			dir = Asc
		case Asc, Desc:
		default:
			return nil, fmt.Errorf("sort direction for %q must be asc or desc", field)
		}
		keys = append(keys, SortKey{Field: field, Dir: dir})
	}
	return keys, nil
}

// ParseBoundedInt is ParsePositiveInt with an inclusive upper bound.
// PRE: max >= 1
// POST: an error when the value is present and greater than max
func ParseBoundedInt(q url.Values, key string, fallback, max int) (int, error) {
	n, err := ParsePositiveInt(q, key, fallback)
	if err != nil {
		return 0, err
	}
	if n > max {
		return 0, fmt.Errorf("must be at most %d", max)
	}
	return n, nil
}

// ParsePositiveInt reads an optional positive integer query value.
// PRE: none
// POST: returns fallback when the key is absent; an error when present but not an integer >= 1
func ParsePositiveInt(q url.Values, key string, fallback int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

// UnknownKeys returns the query keys not listed in known, sorted.
func UnknownKeys(q url.Values, known []string) []string {
	var unknown []string
	for key := range q {
		if !isAllowedColumn(key, known) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func isAllowedColumn(col string, allowed []string) bool {
	for _, a := range allowed {
		if col == a {
			return true
		}
	}
	return false
}
