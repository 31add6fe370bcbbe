package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	appLog "visitcal/internal/log"
	"visitcal/internal/metric"
	"visitcal/internal/model"
)

var ErrNotFound = errors.New("visit not found")

// visitRow is the persisted form of model.Event.
type visitRow struct {
	bun.BaseModel `bun:"table:visits,alias:v"`

	ID         string `bun:"id,pk"`
	Title      string `bun:"title,notnull"`
	AnchorDate string `bun:"anchor_date,notnull"`
	StartTime  string `bun:"start_time,notnull"`
	Duration   int    `bun:"duration,notnull"`
	Recurrence string `bun:"recurrence,notnull"`
	Memo       string `bun:"memo"`
	EndDate    string `bun:"end_date"` // empty when the series is open-ended

	CreatedAt int64 `bun:"created_at,notnull"`
	UpdatedAt int64 `bun:"updated_at"`

	Cancelled []*cancelledRow `bun:"rel:has-many,join:id=visit_id"`
}

// cancelledRow is one date removed from a recurring series.
type cancelledRow struct {
	bun.BaseModel `bun:"table:cancelled_occurrences"`

	VisitID string `bun:"visit_id,pk"`
	Date    string `bun:"date,pk"`
}

// Store persists visit definitions in SQLite.
type Store struct {
	db *bun.DB
}

// Open opens (creating if needed) the SQLite database at path and makes sure
// the schema exists. ":memory:" gives a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("store.Open: %w", err)
		}
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// pointing at one database.
	sqldb.SetMaxOpenConns(1)

	s := New(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := s.CreateSchema(ctx); err != nil {
		sqldb.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing bun database. The caller is responsible for the schema.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSchema(ctx context.Context) error {
	if err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, m := range []interface{}{
			(*visitRow)(nil),
			(*cancelledRow)(nil),
		} {
			if _, err := tx.NewCreateTable().
				Model(m).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("store.CreateSchema: %w", err)
	}
	return nil
}

// List returns every visit in creation order. That order is the tie-break
// the occurrence engine uses for visits sharing a start time.
func (s *Store) List(ctx context.Context) ([]model.Event, error) {
	rows := make([]visitRow, 0)
	if err := s.db.NewSelect().
		Model(&rows).
		Relation("Cancelled", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("date ASC")
		}).
		Order("v.created_at ASC", "v.id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("store.List: %w", err)
	}

	events := make([]model.Event, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].toEvent()
		if err != nil {
			// Skip rows that no longer decode instead of failing the whole view.
			appLog.Error("store.List: skipping undecodable visit", err, "id", rows[i].ID)
			continue
		}
		events = append(events, ev)
	}
	metric.VisitsStored.Set(float64(len(events)))
	return events, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.Event, error) {
	return get(ctx, s.db, id)
}

func get(ctx context.Context, db bun.IDB, id string) (model.Event, error) {
	row := new(visitRow)
	if err := db.NewSelect().
		Model(row).
		Relation("Cancelled", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("date ASC")
		}).
		Where("v.id = ?", id).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, fmt.Errorf("store.Get: %w", err)
	}
	return row.toEvent()
}

// Save validates ev and inserts or replaces it. ev.CancelledDates replaces
// the stored cancellation set.
func (s *Store) Save(ctx context.Context, ev model.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("store.Save: %w", err)
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return save(ctx, tx, ev)
	})
}

// Update applies fn to the stored visit and writes the result back in the
// same transaction, so cancellations made concurrently are not overwritten.
// An error from fn aborts the update.
func (s *Store) Update(ctx context.Context, id string, fn func(*model.Event) error) (model.Event, error) {
	var out model.Event
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		ev, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&ev); err != nil {
			return err
		}
		ev.ID = id
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("store.Update: %w", err)
		}
		if err := save(ctx, tx, ev); err != nil {
			return err
		}
		out = ev
		return nil
	})
	return out, err
}

func save(ctx context.Context, tx bun.Tx, ev model.Event) error {
	row := toRow(ev)
	now := time.Now().UTC().UnixNano()

	existing := new(visitRow)
	err := tx.NewSelect().
		Model(existing).
		Column("created_at").
		Where("id = ?", row.ID).
		Scan(ctx)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		row.CreatedAt = now
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("store.Save: %w", err)
		}
	case err != nil:
		return fmt.Errorf("store.Save: %w", err)
	default:
		row.CreatedAt = existing.CreatedAt
		row.UpdatedAt = now
		if _, err := tx.NewUpdate().Model(row).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("store.Save: %w", err)
		}
	}

	if _, err := tx.NewDelete().
		Model((*cancelledRow)(nil)).
		Where("visit_id = ?", row.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("store.Save: %w", err)
	}
	if len(row.Cancelled) > 0 {
		if _, err := tx.NewInsert().Model(&row.Cancelled).Exec(ctx); err != nil {
			return fmt.Errorf("store.Save: %w", err)
		}
	}
	return nil
}

// Delete removes the whole visit, every occurrence included.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return deleteVisit(ctx, tx, id)
	})
}

func deleteVisit(ctx context.Context, tx bun.Tx, id string) error {
	if _, err := tx.NewDelete().
		Model((*cancelledRow)(nil)).
		Where("visit_id = ?", id).
		Exec(ctx); err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}
	res, err := tx.NewDelete().
		Model((*visitRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelOccurrence removes the single date d from the visit's series. A
// one-off visit has only its anchor date, so cancelling that date deletes it
// outright and any other date is a no-op; the returned bool reports whether
// the visit was deleted.
func (s *Store) CancelOccurrence(ctx context.Context, id string, d model.Date) (deleted bool, err error) {
	err = s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		ev, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ev.IsRecurring() {
			if d != ev.AnchorDate {
				return nil
			}
			deleted = true
			return deleteVisit(ctx, tx, id)
		}
		if _, err := tx.NewInsert().
			Model(&cancelledRow{VisitID: id, Date: d.String()}).
			On("CONFLICT DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("store.CancelOccurrence: %w", err)
		}
		return nil
	})
	return deleted, err
}

// RestoreOccurrence undoes a CancelOccurrence for d. Restoring a date that
// was never cancelled changes nothing.
func (s *Store) RestoreOccurrence(ctx context.Context, id string, d model.Date) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		ev, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ev.Restore(d) {
			return nil
		}
		if _, err := tx.NewDelete().
			Model((*cancelledRow)(nil)).
			Where("visit_id = ?", id).
			Where("date = ?", d.String()).
			Exec(ctx); err != nil {
			return fmt.Errorf("store.RestoreOccurrence: %w", err)
		}
		return nil
	})
}

func toRow(ev model.Event) *visitRow {
	row := &visitRow{
		ID:         ev.ID,
		Title:      ev.Title,
		AnchorDate: ev.AnchorDate.String(),
		StartTime:  ev.StartTime.String(),
		Duration:   int(ev.Duration),
		Recurrence: string(ev.Recurrence),
		Memo:       ev.Memo,
	}
	if ev.EndDate != nil {
		row.EndDate = ev.EndDate.String()
	}
	seen := make(map[model.Date]struct{}, len(ev.CancelledDates))
	for _, d := range ev.CancelledDates {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		row.Cancelled = append(row.Cancelled, &cancelledRow{VisitID: ev.ID, Date: d.String()})
	}
	return row
}

func (r *visitRow) toEvent() (model.Event, error) {
	anchor, err := model.ParseDate(r.AnchorDate)
	if err != nil {
		return model.Event{}, err
	}
	start, err := model.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return model.Event{}, err
	}
	ev := model.Event{
		ID:         r.ID,
		Title:      r.Title,
		AnchorDate: anchor,
		StartTime:  start,
		Duration:   model.Duration(r.Duration),
		Recurrence: model.Recurrence(r.Recurrence),
		Memo:       r.Memo,
	}
	if r.EndDate != "" {
		end, err := model.ParseDate(r.EndDate)
		if err != nil {
			return model.Event{}, err
		}
		ev.EndDate = &end
	}
	for _, c := range r.Cancelled {
		d, err := model.ParseDate(c.Date)
		if err != nil {
			return model.Event{}, err
		}
		ev.CancelledDates = append(ev.CancelledDates, d)
	}
	return ev, nil
}
