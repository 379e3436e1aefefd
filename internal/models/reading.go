// Package models defines the domain types for Typikon.
package models

import "time"

// DateLayout is the calendar-date wire format used by the API and all-day events.
const DateLayout = "2006-01-02"

// LocalReading is one row of the curated readings dataset, keyed by MMDDYY.
type LocalReading struct {
	Date                string  `json:"Date"`
	Year                string  `json:"Year"`
	Title               string  `json:"Title"`
	Tone                *string `json:"Tone"`
	MatinsGospel        *string `json:"Matins Gospel"`
	Epistle             *string `json:"Epistle"`
	Gospel              *string `json:"Gospel"`
	Fasting             *string `json:"Fasting"`
	Notes               *string `json:"Notes"`
	CanadaHoliday       *string `json:"Canada Holiday"`
	USAHoliday          *string `json:"USA Holiday"`
	HolyDayOfObligation bool    `json:"Holy Day of Obligation"`
	RawText             string  `json:"Raw Text,omitempty"`
}

// EventTime mirrors the calendar convention: Date is set for all-day events
// (end date exclusive), DateTime for timed ones.
type EventTime struct {
	Date     string     `json:"date,omitempty"`
	DateTime *time.Time `json:"dateTime,omitempty"`
}

// AllDay reports whether t is a date-only marker.
func (t EventTime) AllDay() bool {
	return t.Date != "" && t.DateTime == nil
}

// RemoteEvent is a single entry from the remote calendar feed.
type RemoteEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// ParsedDescription holds the fields recovered from a free-text description.
// A nil field means the corresponding pattern did not match.
type ParsedDescription struct {
	Tone         *string `json:"tone,omitempty"`
	MatinsGospel *string `json:"matinsGospel,omitempty"`
	Epistle      *string `json:"epistle,omitempty"`
	Gospel       *string `json:"gospel,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// Empty reports whether no field was extracted.
func (p ParsedDescription) Empty() bool {
	return p.Tone == nil && p.MatinsGospel == nil && p.Epistle == nil && p.Gospel == nil && p.Notes == nil
}

// Origin identifies where a UnifiedReading came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// LocalMeta carries the dataset-only metadata of a synthesized reading.
type LocalMeta struct {
	Fasting             *string `json:"fasting,omitempty"`
	CanadaHoliday       *string `json:"canadaHoliday,omitempty"`
	USAHoliday          *string `json:"usaHoliday,omitempty"`
	HolyDayOfObligation bool    `json:"holyDayOfObligation"`
}

// UnifiedReading is what the presentation layer consumes: either a record
// synthesized from a LocalReading or a remote event passed through as-is.
type UnifiedReading struct {
	RemoteEvent
	Origin Origin     `json:"origin"`
	Local  *LocalMeta `json:"local,omitempty"`
}
