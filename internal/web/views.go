package web

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"visitcal/internal/calendar"
	appLog "visitcal/internal/log"
	"visitcal/internal/mask"
	"visitcal/internal/metric"
	"visitcal/internal/model"
)

// occurrenceDTO is a JSON-friendly view of one visit instance.
type occurrenceDTO struct {
	InstanceKey string           `json:"instance_key"`
	EventID     string           `json:"event_id"`
	Title       string           `json:"title"`
	Memo        string           `json:"memo,omitempty"`
	Date        model.Date       `json:"date"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Duration    model.Duration   `json:"duration"`
	Recurrence  model.Recurrence `json:"recurrence"`
}

type dayDTO struct {
	Date        model.Date      `json:"date"`
	InMonth     bool            `json:"in_month"`
	IsHoliday   bool            `json:"is_holiday"`
	Holiday     string          `json:"holiday,omitempty"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type monthResponse struct {
	Month    string     `json:"month"`
	Today    model.Date `json:"today"`
	TimeZone string     `json:"timezone"`
	Days     []dayDTO   `json:"days"`
}

type dayResponse struct {
	dayDTO
	TimeZone string `json:"timezone"`
}

// title returns what a calendar view shows for ev.
func (s *Server) title(ev model.Event) string {
	if s.cfg.MaskNames {
		return mask.Name(ev.Title)
	}
	return ev.Title
}

func (s *Server) toOccurrenceDTO(o model.Occurrence) occurrenceDTO {
	dto := occurrenceDTO{
		InstanceKey: o.InstanceKey(),
		EventID:     o.Event.ID,
		Title:       s.title(o.Event),
		Date:        o.Date,
		Start:       o.Start,
		End:         o.End,
		Duration:    o.Event.Duration,
		Recurrence:  o.Event.Recurrence,
	}
	if !s.cfg.MaskNames {
		dto.Memo = o.Event.Memo
	}
	return dto
}

func (s *Server) toOccurrenceDTOs(occs []model.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occs))
	for _, o := range occs {
		out = append(out, s.toOccurrenceDTO(o))
	}
	return out
}

// handleMonth returns the 6x7 grid for a month.
//
// GET /api/month?month=YYYY-MM (default: the current month)
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	ref := today.FirstOfMonth()
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := model.ParseMonth(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ref = m
	}

	start := time.Now()
	events, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "load month", err)
		return
	}
	days := calendar.Month(ref, events, s.holidays.Snapshot(), s.loc)
	observeQuery("month", start)

	resp := monthResponse{
		Month:    ref.String()[:7],
		Today:    today,
		TimeZone: s.loc.String(),
		Days:     make([]dayDTO, 0, len(days)),
	}
	for _, d := range days {
		resp.Days = append(resp.Days, dayDTO{
			Date:        d.Date,
			InMonth:     d.InMonth,
			IsHoliday:   d.IsHoliday,
			Holiday:     d.Holiday,
			Occurrences: s.toOccurrenceDTOs(d.Occurrences),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDay returns the schedule of a single date.
//
// GET /api/day?date=YYYY-MM-DD (default: today)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	d := s.today()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := model.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		d = parsed
	}

	start := time.Now()
	events, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "load day", err)
		return
	}
	holidays := s.holidays.Snapshot()
	occs := calendar.OccurrencesOn(events, d, holidays, s.loc)
	observeQuery("day", start)

	name, isHoliday := holidays.Name(d)
	writeJSON(w, http.StatusOK, dayResponse{
		dayDTO: dayDTO{
			Date:        d,
			InMonth:     true,
			IsHoliday:   isHoliday,
			Holiday:     name,
			Occurrences: s.toOccurrenceDTOs(occs),
		},
		TimeZone: s.loc.String(),
	})
}

func observeQuery(view string, start time.Time) {
	metric.OccurrenceQueries.WithLabelValues(view).Inc()
	metric.OccurrenceQuerySeconds.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

type holidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type holidaysResponse struct {
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
	Holidays  []holidayDTO `json:"holidays"`
}

// handleHolidays lists the current snapshot, optionally for one year.
//
// GET /api/holidays?year=2024
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	writeJSON(w, http.StatusOK, s.holidaysResponse(year))
}

func (s *Server) holidaysResponse(year string) holidaysResponse {
	snap := s.holidays.Snapshot()
	list := make([]holidayDTO, 0, len(snap))
	for d, name := range snap {
		if year != "" && !strings.HasPrefix(d, year+"-") {
			continue
		}
		list = append(list, holidayDTO{Date: d, Name: name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })

	resp := holidaysResponse{Holidays: list}
	if at := s.holidays.UpdatedAt(); !at.IsZero() {
		resp.UpdatedAt = &at
	}
	return resp
}

// handleRefreshHolidays refetches the holiday feed now. On failure the
// previous snapshot stays active.
func (s *Server) handleRefreshHolidays(w http.ResponseWriter, r *http.Request) {
	if err := s.holidays.Refresh(r.Context()); err != nil {
		appLog.Error("api: holiday refresh failed", err)
		writeError(w, http.StatusBadGateway, "holiday refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.holidaysResponse(""))
}
