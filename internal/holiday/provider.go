package holiday

import (
	"context"
	"sync/atomic"
	"time"

	appLog "visitcal/internal/log"
	"visitcal/internal/metric"
	"visitcal/internal/model"
)

// Source is anything that can produce a fresh holiday table.
type Source interface {
	Fetch(ctx context.Context) (FetchResult, error)
}

// Provider holds the current holiday snapshot. Callers take a Snapshot and
// pass it explicitly to the occurrence engine; a refresh swaps in a new map
// and never mutates one that was handed out.
type Provider struct {
	src       Source
	current   atomic.Pointer[model.Holidays]
	updatedAt atomic.Int64
}

// NewProvider returns a Provider with an empty snapshot.
func NewProvider(src Source) *Provider {
	p := &Provider{src: src}
	p.Set(model.Holidays{})
	return p
}

// Snapshot returns the current holiday table. It is never nil and must be
// treated as read-only.
func (p *Provider) Snapshot() model.Holidays {
	return *p.current.Load()
}

// UpdatedAt reports when the snapshot was last replaced (zero if never).
func (p *Provider) UpdatedAt() time.Time {
	n := p.updatedAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Set replaces the snapshot.
func (p *Provider) Set(h model.Holidays) {
	if h == nil {
		h = model.Holidays{}
	}
	p.current.Store(&h)
	metric.HolidaysKnown.Set(float64(len(h)))
}

// Refresh fetches the feed and swaps the snapshot in. On failure the previous
// snapshot stays active, so recurring visits are simply not suppressed when no
// holiday data was ever obtained.
func (p *Provider) Refresh(ctx context.Context) error {
	res, err := p.src.Fetch(ctx)
	if err != nil {
		appLog.Error("holiday refresh failed; keeping previous snapshot", err, "known", len(p.Snapshot()))
		return err
	}
	p.Set(res.Holidays)
	p.updatedAt.Store(time.Now().UnixNano())
	appLog.Info("holiday snapshot updated", "count", len(res.Holidays), "from_cache", res.FromCache)
	return nil
}
