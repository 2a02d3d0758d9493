// Package ics renders calendar records as iCalendar (RFC 5545) documents.
package ics

import (
	"errors"
	"io"

	"github.com/emersion/go-ical"

	domain "calendarrecords/internal/domain/calendar"
)

// ProductID identifies this service in the PRODID property.
const ProductID = "-//calendarrecords//Calendar Records//EN"

// ContentType is the media type for encoded documents.
const ContentType = ical.MIMEType + "; charset=utf-8"

// ErrEmpty is returned when there are no records to encode.
// A VCALENDAR must carry at least one component.
var ErrEmpty = errors.New("no calendar records to encode")

// NewEvent converts one record to a VEVENT.
// Records may end before they start; RFC 5545 forbids DTEND before DTSTART, so such
// events carry no DTEND and calendar clients read them as ending at DTSTART.
// PRE: r has been stored (ID and UpdatedAt set)
// POST: the event carries UID, DTSTAMP, DTSTART and SUMMARY, plus DTEND unless End is before Start;
// DESCRIPTION holds the owner name
func NewEvent(r domain.Record) *ical.Component {
	ev := ical.NewComponent(ical.CompEvent)
	ev.Props.SetText(ical.PropUID, r.ID)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, r.UpdatedAt.UTC())
	ev.Props.SetDateTime(ical.PropLastModified, r.UpdatedAt.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, r.Start.UTC())
	if !r.End.Before(r.Start) {
		ev.Props.SetDateTime(ical.PropDateTimeEnd, r.End.UTC())
	}
	ev.Props.SetText(ical.PropSummary, r.Title)
	ev.Props.SetText(ical.PropDescription, r.Name)
	if r.Color != nil && *r.Color != "" {
		ev.Props.SetText(ical.PropColor, *r.Color)
	}
	return ev
}

// NewCalendar wraps records in a VCALENDAR, one VEVENT each, in the given order.
func NewCalendar(records []domain.Record) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	for _, r := range records {
		cal.Children = append(cal.Children, NewEvent(r))
	}
	return cal
}

// Encode writes records to w as a single iCalendar document.
// PRE: none
// POST: ErrEmpty when records is empty, nothing written
func Encode(w io.Writer, records []domain.Record) error {
	if len(records) == 0 {
		return ErrEmpty
	}
	return ical.NewEncoder(w).Encode(NewCalendar(records))
}
