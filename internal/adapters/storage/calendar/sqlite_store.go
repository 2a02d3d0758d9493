package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"calendarrecords/internal/adapters/storage"
	"calendarrecords/internal/application/listutil"
	domain "calendarrecords/internal/domain/calendar"
)

// timeLayout is fixed-width so lexical order of stored values equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, title, name, start_at, end_at, color, is_editable, created_at, updated_at FROM calendar_record`

// sortColumns maps API field names to columns. Only these may reach ORDER BY.
var sortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"name":       "name",
	"start":      "start_at",
	"end":        "end_at",
	"color":      "color",
	"isEditable": "is_editable",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    storage.SQLDB
	now   func() time.Time
	newID func() string
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
// PRE: db is a valid, open database connection with migrations applied
// POST: store is ready for use; ids are random UUIDs
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now, newID: uuid.NewString}
}

// Insert stores a new record, assigning its ID and both timestamps.
// PRE: r has been validated
// POST: returns r as persisted, with ID, CreatedAt and UpdatedAt set
func (s *SQLiteStore) Insert(ctx context.Context, r domain.Record) (domain.Record, error) {
	now := s.now().UTC()
	r.ID = s.newID()
	r.CreatedAt = now
	r.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_record (id, title, name, start_at, end_at, color, is_editable, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Name, formatTime(r.Start), formatTime(r.End),
		nullString(r.Color), nullBool(r.IsEditable), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return domain.Record{}, fmt.Errorf("insert calendar record: %w", err)
	}
	return r, nil
}

// FindByID retrieves a record by ID.
// PRE: none
// POST: returns None when no record has this id; errors only on storage failure
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (mo.Option[domain.Record], error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[domain.Record](), nil
	}
	if err != nil {
		return mo.None[domain.Record](), fmt.Errorf("find calendar record: %w", err)
	}
	return mo.Some(r), nil
}

// Save overwrites the mutable fields of an existing record and refreshes UpdatedAt.
// PRE: r.ID was assigned by Insert; r has been validated
// POST: returns r as persisted; domain.ErrNotFound if the row no longer exists
func (s *SQLiteStore) Save(ctx context.Context, r domain.Record) (domain.Record, error) {
	r.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE calendar_record
		 SET title = ?, name = ?, start_at = ?, end_at = ?, color = ?, is_editable = ?, updated_at = ?
		 WHERE id = ?`,
		r.Title, r.Name, formatTime(r.Start), formatTime(r.End),
		nullString(r.Color), nullBool(r.IsEditable), formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return domain.Record{}, fmt.Errorf("save calendar record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Record{}, fmt.Errorf("save calendar record: %w", err)
	}
	if n == 0 {
		return domain.Record{}, domain.ErrNotFound
	}
	return r, nil
}

// RemoveByID hard-deletes a record. Removing a missing id is not an error.
func (s *SQLiteStore) RemoveByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM calendar_record WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove calendar record: %w", err)
	}
	return nil
}

// QueryPage returns one page of the records matching filter.
// PRE: every opts.SortBy field is in SortableFields
// POST: TotalResults counts all matches; Results holds at most Limit records ordered by
// opts.SortBy then insertion order; a page past the end has no results
func (s *SQLiteStore) QueryPage(ctx context.Context, filter Filter, opts listutil.PageOptions) (listutil.Page[domain.Record], error) {
	opts = opts.Normalized()
	order, err := orderClause(opts.SortBy)
	if err != nil {
		return listutil.Page[domain.Record]{}, err
	}
	where, args := filterClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calendar_record"+where, args...).Scan(&total); err != nil {
		return listutil.Page[domain.Record]{}, fmt.Errorf("count calendar records: %w", err)
	}
	if total == 0 || opts.Offset() >= total {
		return listutil.NewPage[domain.Record](nil, opts, total), nil
	}

	args = append(args, opts.Limit, opts.Offset())
	rows, err := s.db.QueryContext(ctx, selectColumns+where+order+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return listutil.Page[domain.Record]{}, fmt.Errorf("query calendar records: %w", err)
	}
	defer rows.Close()

	// Sized by the rows that can exist, never by the caller's limit alone.
	results := make([]domain.Record, 0, min(opts.Limit, total-opts.Offset()))
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return listutil.Page[domain.Record]{}, fmt.Errorf("scan calendar record: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return listutil.Page[domain.Record]{}, fmt.Errorf("query calendar records: %w", err)
	}
	return listutil.NewPage(results, opts, total), nil
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Title != "" {
		conds = append(conds, "title = ?")
		args = append(args, f.Title)
	}
	if f.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, f.Name)
	}
	if start, ok := f.Start.Get(); ok {
		conds = append(conds, "start_at = ?")
		args = append(args, formatTime(start))
	}
	if end, ok := f.End.Get(); ok {
		conds = append(conds, "end_at = ?")
		args = append(args, formatTime(end))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// orderClause builds ORDER BY from whitelisted columns, always ending on rowid
// so pages are stable when sort keys tie.
func orderClause(keys []listutil.SortKey) (string, error) {
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		col, ok := sortColumns[k.Field]
		if !ok {
			return "", fmt.Errorf("cannot sort by %q", k.Field)
		}
		dir := "ASC"
		if k.Dir == listutil.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "rowid ASC")
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var r domain.Record
	var start, end, created, updated string
	var color sql.NullString
	var editable sql.NullBool
	if err := row.Scan(&r.ID, &r.Title, &r.Name, &start, &end, &color, &editable, &created, &updated); err != nil {
		return domain.Record{}, err
	}
	var err error
	if r.Start, err = parseTime(start); err != nil {
		return domain.Record{}, err
	}
	if r.End, err = parseTime(end); err != nil {
		return domain.Record{}, err
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return domain.Record{}, err
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Record{}, err
	}
	if color.Valid {
		r.Color = &color.String
	}
	if editable.Valid {
		r.IsEditable = &editable.Bool
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}
