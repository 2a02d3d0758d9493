package calendar

import (
	"context"
	"time"

	"github.com/samber/mo"

	"calendarrecords/internal/application/listutil"
	domain "calendarrecords/internal/domain/calendar"
)

// Store persists calendar records.
type Store interface {
	Insert(ctx context.Context, r domain.Record) (domain.Record, error)
	FindByID(ctx context.Context, id string) (mo.Option[domain.Record], error)
	Save(ctx context.Context, r domain.Record) (domain.Record, error)
	RemoveByID(ctx context.Context, id string) error
	QueryPage(ctx context.Context, filter Filter, opts listutil.PageOptions) (listutil.Page[domain.Record], error)
}

// Filter is an exact-match conjunction. Empty strings and absent times do not constrain the result.
type Filter struct {
	Title string
	Name  string
	Start mo.Option[time.Time]
	End   mo.Option[time.Time]
}

// SortableFields are the record fields QueryPage can order by.
var SortableFields = []string{"id", "title", "name", "start", "end", "color", "isEditable", "createdAt", "updatedAt"}
