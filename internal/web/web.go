package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"visitcal/internal/config"
	appLog "visitcal/internal/log"
	"visitcal/internal/metric"
	"visitcal/internal/model"
)

// maxBodyBytes bounds JSON and iCalendar request bodies.
const maxBodyBytes = 1 << 20

// Store is the persistence the API edits visits through.
type Store interface {
	List(ctx context.Context) ([]model.Event, error)
	Get(ctx context.Context, id string) (model.Event, error)
	Save(ctx context.Context, ev model.Event) error
	Update(ctx context.Context, id string, fn func(*model.Event) error) (model.Event, error)
	Delete(ctx context.Context, id string) error
	CancelOccurrence(ctx context.Context, id string, d model.Date) (bool, error)
	RestoreOccurrence(ctx context.Context, id string, d model.Date) error
}

// Holidays supplies the current holiday snapshot.
type Holidays interface {
	Snapshot() model.Holidays
	UpdatedAt() time.Time
	Refresh(ctx context.Context) error
}

// Server provides the HTTP API for the visit calendar.
type Server struct {
	cfg      *config.Config
	loc      *time.Location
	store    Store
	holidays Holidays
	tokens   *tokenIssuer
	mux      *http.ServeMux

	now func() time.Time
}

// NewServer constructs a new Server. loc is the zone every visit is scheduled
// in; nil means time.Local.
func NewServer(cfg *config.Config, loc *time.Location, st Store, hp Holidays) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if loc == nil {
		loc = time.Local
	}
	tokens, err := newTokenIssuer(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		loc:      loc,
		store:    st,
		holidays: hp,
		tokens:   tokens,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.pinEnabled() {
		appLog.Info("PIN gate enabled", "listen", "http://"+s.cfg.Listen)
		h = s.authMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metric.Handler())

	s.mux.HandleFunc("POST /api/unlock", s.handleUnlock)

	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/day", s.handleDay)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}/occurrences/{date}", s.handleCancelOccurrence)
	s.mux.HandleFunc("PUT /api/events/{id}/occurrences/{date}", s.handleRestoreOccurrence)

	s.mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	s.mux.HandleFunc("POST /api/holidays/refresh", s.handleRefreshHolidays)

	s.mux.HandleFunc("GET /calendar.ics", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
