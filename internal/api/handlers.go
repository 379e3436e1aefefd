package api

import (
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/typikon/internal/models"
	"github.com/starford/typikon/internal/readingservice"
	"github.com/starford/typikon/internal/sequencer"
)

// Handler holds API route handlers.
type Handler struct {
	svc *readingservice.Service
	seq *sequencer.Sequencer
}

// NewHandler creates a new Handler.
func NewHandler(svc *readingservice.Service, seq *sequencer.Sequencer) *Handler {
	return &Handler{svc: svc, seq: seq}
}

// GetReadings handles GET /api/readings.
//
//	@Summary		Reconciled readings for a date
//	@Tags			readings
//	@Produce		json
//	@Param			date	query		string	false	"Date (YYYY-MM-DD), defaults to the upcoming Sunday"
//	@Success		200		{object}	ReadingsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/readings [get]
func (h *Handler) GetReadings(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err, "parse date")
		return
	}
	readings, err := h.svc.Readings(r.Context(), day)
	if err != nil {
		writeError(w, err, "get readings")
		return
	}
	writeJSON(w, http.StatusOK, ReadingsResponse{
		Date:     day.Format(models.DateLayout),
		HolyDay:  h.svc.IsHolyDay(day),
		Readings: readings,
	})
}

// GetParsedReadings handles GET /api/readings/parsed.
//
//	@Summary		Reconciled readings with extracted description fields
//	@Tags			readings
//	@Produce		json
//	@Param			date	query		string	false	"Date (YYYY-MM-DD)"
//	@Success		200		{object}	ParsedReadingsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/readings/parsed [get]
func (h *Handler) GetParsedReadings(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err, "parse date")
		return
	}
	readings, err := h.svc.ParsedReadings(r.Context(), day)
	if err != nil {
		writeError(w, err, "get parsed readings")
		return
	}
	writeJSON(w, http.StatusOK, ParsedReadingsResponse{
		Date:     day.Format(models.DateLayout),
		HolyDay:  h.svc.IsHolyDay(day),
		Readings: readings,
	})
}

// GetLocalReading handles GET /api/readings/local.
//
//	@Summary		Dataset entry for a date
//	@Tags			readings
//	@Produce		json
//	@Param			date	query		string	false	"Date (YYYY-MM-DD)"
//	@Success		200		{object}	models.LocalReading
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/readings/local [get]
func (h *Handler) GetLocalReading(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err, "parse date")
		return
	}
	reading, err := h.svc.Local(day)
	if err != nil {
		writeError(w, err, "get local reading")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// Parse handles POST /api/parse.
//
//	@Summary		Extract liturgical fields from a description
//	@Tags			tools
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParseRequest	true	"Description"
//	@Success		200		{object}	models.ParsedDescription
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/parse [post]
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !bindJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Parse(req.Description))
}

// Compare handles POST /api/compare.
//
//	@Summary		Normalize and score two titles
//	@Tags			tools
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CompareRequest	true	"Titles"
//	@Success		200		{object}	Comparison
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/compare [post]
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !bindJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Compare(req.A, req.B))
}

// HolyDays handles GET /api/holy-days.
//
//	@Summary		Holy days of obligation in a year
//	@Tags			readings
//	@Produce		json
//	@Param			year	query		int	false	"Year, defaults to the current year"
//	@Success		200		{object}	HolyDaysResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/holy-days [get]
func (h *Handler) HolyDays(w http.ResponseWriter, r *http.Request) {
	year := h.svc.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			err = validation.Validate(n, validation.Min(1), validation.Max(9999))
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid year"))
			return
		}
		year = n
	}
	writeJSON(w, http.StatusOK, HolyDaysResponse{Year: year, Dates: h.svc.HolyDays(year)})
}

// Scripture handles GET /api/scripture.
//
//	@Summary		Passage text for a reading reference
//	@Tags			readings
//	@Produce		json
//	@Param			ref	query		string	true	"Reference, e.g. Heb. 11:9-10; 17-23"
//	@Success		200	{object}	ScriptureResponse
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scripture [get]
func (h *Handler) Scripture(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("ref is required"))
		return
	}
	chunks, err := h.svc.Scripture(r.Context(), ref)
	if err != nil {
		writeError(w, err, "get scripture")
		return
	}
	writeJSON(w, http.StatusOK, ScriptureResponse{Reference: ref, Chunks: chunks})
}

// Load handles POST /api/load.
//
//	@Summary		Start a background load for a date; the newest load wins
//	@Tags			load
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoadRequest	false	"Date"
//	@Success		202		{object}	LoadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/load [post]
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if r.ContentLength != 0 && !bindJSON(w, r, &req) {
		return
	}
	day, err := h.svc.ParseDate(req.Date)
	if err != nil {
		writeError(w, err, "parse date")
		return
	}
	if req.Refresh {
		if err := h.svc.Invalidate(day); err != nil {
			writeError(w, err, "invalidate cache")
			return
		}
	}
	gen := h.seq.Start(day)
	writeJSON(w, http.StatusAccepted, LoadResponse{Date: day.Format(models.DateLayout), Generation: gen})
}

// State handles GET /api/state.
//
//	@Summary		Visible state of the most recent load
//	@Tags			load
//	@Produce		json
//	@Success		200	{object}	LoadState
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.seq.State())
}

// Sunday handles GET /api/sunday.
//
//	@Summary		Upcoming Sunday with previous and next Sundays
//	@Tags			readings
//	@Produce		json
//	@Param			from	query		string	false	"Reference date (YYYY-MM-DD), defaults to today"
//	@Success		200		{object}	SundayNav
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sunday [get]
func (h *Handler) Sunday(w http.ResponseWriter, r *http.Request) {
	from := h.svc.Now()
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := h.svc.ParseDate(v)
		if err != nil {
			writeError(w, err, "parse date")
			return
		}
		from = d
	}
	writeJSON(w, http.StatusOK, h.svc.Sundays(from))
}
