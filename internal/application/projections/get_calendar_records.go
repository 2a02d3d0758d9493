package projections

import (
	"context"

	"github.com/samber/mo"

	"calendarrecords/internal/adapters/storage/calendar"
	"calendarrecords/internal/application/listutil"
	domain "calendarrecords/internal/domain/calendar"
)

// CalendarRecordStore interface for calendar record queries.
type CalendarRecordStore interface {
	FindByID(ctx context.Context, id string) (mo.Option[domain.Record], error)
	QueryPage(ctx context.Context, filter calendar.Filter, opts listutil.PageOptions) (listutil.Page[domain.Record], error)
}

// GetCalendarRecordsQuery carries query parameters.
type GetCalendarRecordsQuery struct {
	Filter  calendar.Filter
	Options listutil.PageOptions
}

// GetCalendarRecordsDeps holds dependencies for calendar record queries.
type GetCalendarRecordsDeps struct {
	Store CalendarRecordStore
}

// QueryCalendarRecords returns one page of records matching the filter.
// PRE: Options.SortBy names only calendar.SortableFields
// POST: Returns the store's page unchanged; an empty match is a page with no results, not an error
func QueryCalendarRecords(ctx context.Context, query GetCalendarRecordsQuery, deps GetCalendarRecordsDeps) (listutil.Page[domain.Record], error) {
	return deps.Store.QueryPage(ctx, query.Filter, query.Options)
}

// QueryCalendarRecordByID looks up one record.
// PRE: none
// POST: Returns None when the id is unknown
func QueryCalendarRecordByID(ctx context.Context, id string, deps GetCalendarRecordsDeps) (mo.Option[domain.Record], error) {
	return deps.Store.FindByID(ctx, id)
}
