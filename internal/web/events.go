package web

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	appLog "visitcal/internal/log"
	"visitcal/internal/model"
	"visitcal/internal/store"
)

// eventRequest is the body of POST /api/events and PUT /api/events/{id}.
// Absent fields keep the current value on update; in particular a recurring
// visit keeps its stored anchor date unless a new one is sent. An empty
// end_date clears it.
type eventRequest struct {
	Title      *string           `json:"title"`
	AnchorDate *model.Date       `json:"anchor_date"`
	StartTime  *model.TimeOfDay  `json:"start_time"`
	Duration   *model.Duration   `json:"duration"`
	Recurrence *model.Recurrence `json:"recurrence"`
	Memo       *string           `json:"memo"`
	EndDate    *string           `json:"end_date"`
}

func (req eventRequest) apply(ev *model.Event) error {
	if req.Title != nil {
		ev.Title = *req.Title
	}
	if req.AnchorDate != nil {
		ev.AnchorDate = *req.AnchorDate
	}
	if req.StartTime != nil {
		ev.StartTime = *req.StartTime
	}
	if req.Duration != nil {
		ev.Duration = *req.Duration
	}
	if req.Recurrence != nil {
		ev.Recurrence = *req.Recurrence
	}
	if req.Memo != nil {
		ev.Memo = *req.Memo
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			ev.EndDate = nil
		} else {
			d, err := model.ParseDate(*req.EndDate)
			if err != nil {
				return err
			}
			ev.EndDate = &d
		}
	}
	return nil
}

type eventsResponse struct {
	Events []model.Event `json:"events"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := model.Event{
		ID:         uuid.NewString(),
		Duration:   model.DefaultDuration,
		Recurrence: model.RecurrenceNone,
	}
	if err := req.apply(&ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.Save(r.Context(), ev); err != nil {
		s.writeStoreError(w, "create event", err)
		return
	}

	appLog.Info("visit created", "id", ev.ID, "recurrence", string(ev.Recurrence), "anchor", ev.AnchorDate.String())
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var applyErr error
	ev, err := s.store.Update(r.Context(), r.PathValue("id"), func(ev *model.Event) error {
		applyErr = req.apply(ev)
		return applyErr
	})
	if applyErr != nil {
		writeError(w, http.StatusBadRequest, applyErr.Error())
		return
	}
	if err != nil {
		s.writeStoreError(w, "update event", err)
		return
	}

	appLog.Info("visit updated", "id", ev.ID)
	writeJSON(w, http.StatusOK, ev)
}

// handleDeleteEvent removes the whole visit, every occurrence included.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete event", err)
		return
	}
	appLog.Info("visit deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

type cancelResponse struct {
	EventDeleted bool `json:"event_deleted"`
}

// handleCancelOccurrence removes a single date from a visit. For a one-off
// visit, cancelling its anchor date deletes the visit and any other date is
// ignored.
func (s *Server) handleCancelOccurrence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := model.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := s.store.CancelOccurrence(r.Context(), id, d)
	if err != nil {
		s.writeStoreError(w, "cancel occurrence", err)
		return
	}

	appLog.Info("visit occurrence cancelled", "id", id, "date", d.String(), "event_deleted", deleted)
	writeJSON(w, http.StatusOK, cancelResponse{EventDeleted: deleted})
}

func (s *Server) handleRestoreOccurrence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := model.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.RestoreOccurrence(r.Context(), id, d); err != nil {
		s.writeStoreError(w, "restore occurrence", err)
		return
	}
	appLog.Info("visit occurrence restored", "id", id, "date", d.String())
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store failures onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api: "+op+" failed", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
