package holiday

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "visitcal/internal/log"
)

const refreshTimeout = time.Minute

// StartRefresh refreshes p on the cron schedule spec until ctx is cancelled.
// Overlapping runs are skipped.
func StartRefresh(ctx context.Context, p *Provider, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		_ = p.Refresh(rctx)
	})
	if err != nil {
		return nil, fmt.Errorf("holiday refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("holiday refresh scheduled", "cron", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
