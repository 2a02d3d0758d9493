package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/mo"

	domain "calendarrecords/internal/domain/calendar"
)

// CalendarRecordStoreForOrchestrator defines the store interface needed by calendar record orchestrators.
type CalendarRecordStoreForOrchestrator interface {
	Insert(ctx context.Context, r domain.Record) (domain.Record, error)
	FindByID(ctx context.Context, id string) (mo.Option[domain.Record], error)
	Save(ctx context.Context, r domain.Record) (domain.Record, error)
	RemoveByID(ctx context.Context, id string) error
}

// --- Create Calendar Record ---

// CreateCalendarRecordInput carries input for the create calendar record orchestrator.
type CreateCalendarRecordInput struct {
	Title      string
	Name       string
	Start      time.Time
	End        time.Time
	Color      *string
	IsEditable *bool
	Actor      string // name of the authenticated caller, for the event log
}

// CreateCalendarRecordDeps holds dependencies for CreateCalendarRecord.
type CreateCalendarRecordDeps struct {
	Store CalendarRecordStoreForOrchestrator
}

// ExecuteCreateCalendarRecord validates and stores a new calendar record.
// PRE: none; input is validated here
// POST: record persisted with a fresh ID and timestamps; *domain.ValidationError when input is invalid
func ExecuteCreateCalendarRecord(ctx context.Context, input CreateCalendarRecordInput, deps CreateCalendarRecordDeps) (domain.Record, error) {
	r := domain.Record{
		Title:      input.Title,
		Name:       input.Name,
		Start:      input.Start,
		End:        input.End,
		Color:      input.Color,
		IsEditable: input.IsEditable,
	}
	r.Normalize()
	if err := r.Validate(); err != nil {
		return domain.Record{}, err
	}

	created, err := deps.Store.Insert(ctx, r)
	if err != nil {
		return domain.Record{}, err
	}

	slog.Info("calendar_record_event", "event", "created", "record_id", created.ID, "title", created.Title, "actor", input.Actor)
	return created, nil
}

// --- Update Calendar Record ---

// UpdateCalendarRecordInput carries input for the update calendar record orchestrator.
type UpdateCalendarRecordInput struct {
	ID    string
	Patch domain.Patch
	Actor string
}

// UpdateCalendarRecordDeps holds dependencies for UpdateCalendarRecord.
type UpdateCalendarRecordDeps struct {
	Store CalendarRecordStoreForOrchestrator
}

// ExecuteUpdateCalendarRecord applies a partial update to an existing record.
// Fields absent from the patch keep their stored values.
// PRE: none
// POST: merged record re-validated and saved; domain.ErrNotFound when the id does not exist
func ExecuteUpdateCalendarRecord(ctx context.Context, input UpdateCalendarRecordInput, deps UpdateCalendarRecordDeps) (domain.Record, error) {
	found, err := deps.Store.FindByID(ctx, input.ID)
	if err != nil {
		return domain.Record{}, err
	}
	existing, ok := found.Get()
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}

	merged := input.Patch.Apply(existing)
	merged.Normalize()
	if err := merged.Validate(); err != nil {
		return domain.Record{}, err
	}

	saved, err := deps.Store.Save(ctx, merged)
	if err != nil {
		return domain.Record{}, err
	}

	slog.Info("calendar_record_event", "event", "updated", "record_id", saved.ID, "actor", input.Actor)
	return saved, nil
}

// --- Delete Calendar Record ---

// DeleteCalendarRecordInput carries input for the delete calendar record orchestrator.
type DeleteCalendarRecordInput struct {
	ID    string
	Actor string
}

// DeleteCalendarRecordDeps holds dependencies for DeleteCalendarRecord.
type DeleteCalendarRecordDeps struct {
	Store CalendarRecordStoreForOrchestrator
}

// ExecuteDeleteCalendarRecord hard-deletes a record.
// PRE: none
// POST: record no longer retrievable; returns its last stored state; domain.ErrNotFound when absent
func ExecuteDeleteCalendarRecord(ctx context.Context, input DeleteCalendarRecordInput, deps DeleteCalendarRecordDeps) (domain.Record, error) {
	found, err := deps.Store.FindByID(ctx, input.ID)
	if err != nil {
		return domain.Record{}, err
	}
	existing, ok := found.Get()
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}

	if err := deps.Store.RemoveByID(ctx, existing.ID); err != nil {
		return domain.Record{}, err
	}

	slog.Info("calendar_record_event", "event", "deleted", "record_id", existing.ID, "actor", input.Actor)
	return existing, nil
}
