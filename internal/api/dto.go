package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/readingservice"
	"github.com/starford/typikon/internal/scripture"
	"github.com/starford/typikon/internal/sequencer"
)

const maxDescriptionLen = 64 << 10

// ParseRequest is the request body for POST /parse.
type ParseRequest struct {
	Description string `json:"description" example:"Divine Liturgy: Epistle: Heb. 11:9-10; Gospel: Luke 2:20-21. Tone 4." validate:"required"`
}

// Validate validates the request.
func (r *ParseRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Description, validation.Required, validation.RuneLength(1, maxDescriptionLen)),
	)
}

// CompareRequest is the request body for POST /compare.
type CompareRequest struct {
	A string `json:"a" example:"St. Nicholas" validate:"required"`
	B string `json:"b" example:"Saint Nicholas the Wonderworker" validate:"required"`
}

// Validate validates the request.
func (r *CompareRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.A, validation.Required, validation.RuneLength(1, 1024)),
		validation.Field(&r.B, validation.Required, validation.RuneLength(1, 1024)),
	)
}

// LoadRequest is the request body for POST /load. An empty date selects the
// upcoming Sunday. Refresh drops the cached calendar events for the date
// before loading.
type LoadRequest struct {
	Date    string `json:"date" example:"2025-12-07"`
	Refresh bool   `json:"refresh,omitempty" example:"false"`
}

// Validate validates the request.
func (r *LoadRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Date, validation.Date(models.DateLayout)),
	)
}

// ReadingsResponse wraps the reconciled readings for one date.
type ReadingsResponse struct {
	Date     string                  `json:"date" example:"2025-12-07" validate:"required"`
	HolyDay  bool                    `json:"holy_day"`
	Readings []models.UnifiedReading `json:"readings" validate:"required"`
}

// ParsedReadingsResponse wraps readings with their extracted fields.
type ParsedReadingsResponse struct {
	Date     string                         `json:"date" example:"2025-12-07" validate:"required"`
	HolyDay  bool                           `json:"holy_day"`
	Readings []readingservice.ParsedReading `json:"readings" validate:"required"`
}

// HolyDaysResponse lists the holy days of obligation in a year.
type HolyDaysResponse struct {
	Year  int      `json:"year" example:"2025" validate:"required"`
	Dates []string `json:"dates" validate:"required"`
}

// ScriptureResponse holds the passage chunks for a reference.
type ScriptureResponse struct {
	Reference string            `json:"reference" example:"Heb. 11:9-10; 17-23" validate:"required"`
	Chunks    []scripture.Chunk `json:"chunks" validate:"required"`
}

// LoadResponse is returned when a load cycle has been issued.
type LoadResponse struct {
	Date       string `json:"date" example:"2025-12-07" validate:"required"`
	Generation uint64 `json:"generation" example:"3" validate:"required"`
}

// Comparison is the title comparison result (aliased from the domain layer).
type Comparison = readingservice.Comparison

// SundayNav is the Sunday navigation result (aliased from the domain layer).
type SundayNav = readingservice.SundayNav

// LoadState is the sequencer state (aliased from the domain layer).
type LoadState = sequencer.State
