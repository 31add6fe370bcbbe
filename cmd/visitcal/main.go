package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"visitcal/internal/calendar"
	"visitcal/internal/config"
	"visitcal/internal/holiday"
	appLog "visitcal/internal/log"
	"visitcal/internal/mask"
	"visitcal/internal/model"
	"visitcal/internal/store"
	"visitcal/internal/web"
)

var version = "0.1.0-dev"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	printDate  string
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotenv(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file and environment if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("visitcal starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("unknown timezone; using local time", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"database", conf.Database,
		"holiday_url", conf.Holidays.URL,
		"holiday_refresh", conf.Holidays.Refresh,
		"pin", conf.PIN != "",
		"mask_names", conf.MaskNames,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(ctx, conf.Database)
	if err != nil {
		appLog.Error("failed to open store", err, "database", conf.Database)
		os.Exit(1)
	}
	defer st.Close()

	holidays := holiday.NewProvider(holiday.NewFetcher(conf.Holidays.URL, conf.Holidays.CacheDir))
	// A failed first fetch is not fatal: recurring visits are then simply not
	// suppressed until a later refresh succeeds.
	_ = holidays.Refresh(ctx)

	if flags.printDate != "" {
		if err := printDay(ctx, os.Stdout, st, holidays.Snapshot(), flags.printDate, loc, conf.MaskNames); err != nil {
			appLog.Error("print failed", err, "date", flags.printDate)
			os.Exit(1)
		}
		return
	}

	if _, err := holiday.StartRefresh(ctx, holidays, conf.Holidays.Refresh); err != nil {
		appLog.Error("failed to schedule holiday refresh", err)
		os.Exit(1)
	}

	srv, err := web.NewServer(conf, loc, st, holidays)
	if err != nil {
		appLog.Error("failed to initialize HTTP server", err)
		os.Exit(1)
	}

	if err := serve(ctx, conf.Listen, srv.Handler()); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("visitcal exiting")
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, addr string, h http.Handler) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

var weekdayNames = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// parsePrintDate accepts YYYY-MM-DD or "today" in loc.
func parsePrintDate(s string, loc *time.Location) (model.Date, error) {
	if s == "today" {
		return model.Today(loc), nil
	}
	return model.ParseDate(s)
}

// printDay writes the schedule of one date, e.g.:
//
//	2024-01-14 (日)
//	09:00-09:40  佐藤様  [weekly]
func printDay(ctx context.Context, w io.Writer, st *store.Store, holidays model.Holidays, date string, loc *time.Location, masked bool) error {
	d, err := parsePrintDate(date, loc)
	if err != nil {
		return err
	}
	events, err := st.List(ctx)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("%s (%s)", d, weekdayNames[d.Weekday()])
	if name, ok := holidays.Name(d); ok {
		header += " " + name
	}
	fmt.Fprintln(w, header)

	occs := calendar.OccurrencesOn(events, d, holidays, loc)
	if len(occs) == 0 {
		fmt.Fprintln(w, "(no visits)")
		return nil
	}
	for _, o := range occs {
		title := o.Event.Title
		if masked {
			title = mask.Name(title)
		}
		fmt.Fprintf(w, "%s-%s  %s  [%s]\n", o.Start.Format("15:04"), o.End.Format("15:04"), title, o.Event.Recurrence)
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./visitcal.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to an optional .env file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.printDate, "print", "", "Print the schedule of YYYY-MM-DD (or \"today\") and exit")

	flag.Parse()

	return cfg
}
