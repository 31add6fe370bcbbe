package web

import (
	"io"
	"net/http"
	"strconv"

	"visitcal/internal/ics"
	appLog "visitcal/internal/log"
	"visitcal/internal/model"
)

// handleExport serves every visit as an iCalendar feed. Holidays within
// export_horizon_days of today (either side) are written as exclusions.
//
// GET /calendar.ics
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "export calendar", err)
		return
	}
	if s.cfg.MaskNames {
		masked := make([]model.Event, len(events))
		for i, ev := range events {
			ev.Title = s.title(ev)
			ev.Memo = ""
			masked[i] = ev
		}
		events = masked
	}

	today := s.today()
	horizon := s.cfg.ExportHorizonDays
	body := ics.Export(events, s.holidays.Snapshot(), ics.ExportOptions{
		Location:     s.loc,
		HolidaysFrom: today.AddDays(-horizon),
		HolidaysTo:   today.AddDays(horizon),
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="visitcal.ics"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type importResponse struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// handleImport reads an iCalendar body and saves each mappable VEVENT. A UID
// that already exists replaces that visit.
//
// POST /api/import (Content-Type: text/calendar)
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	res, err := ics.Parse(body, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid calendar: "+err.Error())
		return
	}

	resp := importResponse{Skipped: res.Skipped}
	for _, ev := range res.Events {
		if err := s.store.Save(r.Context(), ev); err != nil {
			appLog.Error("api: import save failed", err, "id", ev.ID)
			resp.Skipped++
			resp.Errors = append(resp.Errors, ev.ID+": "+err.Error())
			continue
		}
		resp.Imported++
	}

	appLog.Info("calendar imported", "imported", resp.Imported, "skipped", resp.Skipped)
	writeJSON(w, http.StatusOK, resp)
}
