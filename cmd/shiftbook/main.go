/*
main.go - Application entry point

PURPOSE:
  The shiftbook binary: runs the local calendar API and offers the data
  operations (export, import, payroll, availability) on the command line.

COMMANDS:
  serve         HTTP API + backup scheduler, graceful shutdown on SIGINT/SIGTERM
  export        Write the export document to a file (or stdout with -)
  import        Apply an export document
  payroll       Print a month's earnings
  availability  Print the shifts assignable on a date

STORE SELECTION:
  The SQLite file at db_path is opened first. If it cannot be opened at all
  the process continues on an in-memory store with a warning; nothing is
  persisted in that mode.

CONFIGURATION:
  --config points at a YAML file; see config.Load for the precedence of
  .env and SHIFTBOOK_* variables. --db and --listen override the file.

EXAMPLES:
  shiftbook serve --listen 127.0.0.1:9000
  shiftbook export --out backup.json
  shiftbook payroll --month 2024-03
  shiftbook availability --date 2024-03-03

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/shiftbook/api"
	"github.com/warp/shiftbook/availability"
	"github.com/warp/shiftbook/config"
	"github.com/warp/shiftbook/logfields"
	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/payroll"
	"github.com/warp/shiftbook/repository"
	"github.com/warp/shiftbook/shift"
	memstore "github.com/warp/shiftbook/shift/store"
	"github.com/warp/shiftbook/store/sqlite"
	"github.com/warp/shiftbook/transfer"
)

var CLI struct {
	Config string `short:"c" help:"Configuration file path" type:"path"`
	DB     string `help:"SQLite database path (overrides config)"`

	Serve struct {
		Listen string `short:"l" help:"Listen address (overrides config)"`
	} `cmd:"" help:"Run the calendar API"`

	Export struct {
		Out string `short:"o" help:"Output file, - for stdout" default:"-"`
	} `cmd:"" help:"Export all data as JSON"`

	Import struct {
		In string `short:"i" help:"Export document to import" required:"" type:"existingfile"`
	} `cmd:"" help:"Import an export document"`

	Payroll struct {
		Month string `short:"m" help:"Month as YYYY-MM (default: current)"`
	} `cmd:"" help:"Print a month's earnings"`

	Availability struct {
		Date string `short:"d" help:"Date as YYYY-MM-DD (default: today)"`
	} `cmd:"" help:"List shifts assignable on a date"`
}

// app is the wired dependency graph shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	recorder metrics.Recorder
	store    shift.Store
	repos    *repository.Set
	transfer *transfer.Manager
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("shiftbook"),
		kong.Description("Shift calendar data and payroll"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}
	if CLI.DB != "" {
		cfg.DBPath = CLI.DB
	}
	if CLI.Serve.Listen != "" {
		cfg.ListenAddr = CLI.Serve.Listen
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", logfields.Error(err))
		os.Exit(1)
	}
	defer a.store.Close()

	switch ctx.Command() {
	case "serve":
		err = a.serve()
	case "export":
		err = a.export(CLI.Export.Out)
	case "import":
		err = a.importFile(CLI.Import.In)
	case "payroll":
		err = a.printPayroll(os.Stdout, CLI.Payroll.Month)
	case "availability":
		err = a.printAvailability(os.Stdout, CLI.Availability.Date)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		logger.Error("Command failed", logfields.Op(ctx.Command()), logfields.Error(err))
		a.store.Close()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	st, err := openStore(cfg.DBPath, rec, logger)
	if err != nil {
		return nil, err
	}

	repos := repository.New(st,
		repository.WithLogger(logger),
		repository.WithRecorder(rec),
		repository.WithDefaultCurrency(cfg.DefaultCurrency),
		repository.WithToggleRule(repository.ToggleRule{
			OnEnableRemove:  cfg.SpecialToggle.OnEnableRemove,
			OnDisableRemove: cfg.SpecialToggle.OnDisableRemove,
		}),
	)
	manager := transfer.NewManager(st, repos,
		transfer.WithLogger(logger),
		transfer.WithRecorder(rec),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		recorder: rec,
		store:    st,
		repos:    repos,
		transfer: manager,
	}, nil
}

// openStore opens the SQLite store, falling back to memory when SQLite is
// unavailable.
func openStore(path string, rec metrics.Recorder, logger *slog.Logger) (shift.Store, error) {
	st, err := sqlite.New(path, sqlite.WithRecorder(rec))
	if err == nil {
		logger.Info("Store opened", logfields.Path(path))
		return st, nil
	}
	if !shift.IsUnavailable(err) {
		return nil, err
	}
	logger.Warn("Persistent store unavailable, data will not survive restart",
		logfields.Path(path),
		logfields.Error(err))
	return memstore.NewMemory(memstore.WithRecorder(rec)), nil
}

// =============================================================================
// SERVE
// =============================================================================

func (a *app) serve() error {
	handler := api.NewHandler(a.store, a.repos, a.transfer, a.logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: a.cfg.AllowedOrigins,
		Metrics:        metrics.HTTPHandler(a.registry),
	})

	var backups *api.BackupScheduler
	if a.cfg.Backup.Dir != "" {
		bs, err := api.NewBackupScheduler(a.transfer, api.BackupConfig{
			Dir:      a.cfg.Backup.Dir,
			Interval: a.cfg.Backup.Interval,
			Keep:     a.cfg.Backup.Keep,
		})
		if err != nil {
			return err
		}
		bs.Logger = a.logger
		bs.Recorder = a.recorder
		if err := bs.Start(); err != nil {
			return err
		}
		backups = bs
	}

	server := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", slog.String("addr", "http://"+a.cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-quit:
	}

	a.logger.Info("Shutting down server")
	if backups != nil {
		if err := backups.Stop(); err != nil {
			a.logger.Warn("Backup scheduler did not stop cleanly", logfields.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("Server stopped")
	return nil
}

// =============================================================================
// DATA COMMANDS
// =============================================================================

func (a *app) export(out string) error {
	doc, err := a.transfer.ExportAll(context.Background())
	if err != nil {
		return err
	}
	if out == "-" {
		return transfer.Encode(os.Stdout, doc)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := transfer.Encode(f, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("Exported", logfields.Path(out))
	return nil
}

func (a *app) importFile(in string) error {
	f, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", in, err)
	}
	defer f.Close()

	doc, err := transfer.Decode(f)
	if err != nil {
		return err
	}
	report, err := a.transfer.ImportAll(context.Background(), doc)
	for _, c := range report.Applied {
		fmt.Printf("applied  %s\n", c)
	}
	for _, c := range report.Failed {
		fmt.Printf("failed   %s\n", c)
	}
	return err
}

func (a *app) printPayroll(w io.Writer, month string) error {
	ctx := context.Background()
	now := time.Now()

	target := now
	if month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return fmt.Errorf("invalid month %q, expected YYYY-MM", month)
		}
		target = t
	}

	schedule, err := a.repos.Schedule.ReadSchedule(ctx)
	if err != nil {
		return err
	}
	settings, err := a.repos.Settings.ReadSettings(ctx)
	if err != nil {
		return err
	}

	res := payroll.Calculate(payroll.Input{
		Schedule: schedule,
		Settings: settings,
		Year:     target.Year(),
		Month:    target.Month(),
		Today:    now,
	})

	currency := a.repos.Settings.DefaultCurrency()
	if settings != nil {
		currency = settings.Currency
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range res.Days {
		fmt.Fprintf(tw, "%s\t%v\t%s\n", d.Date, d.ShiftIDs, d.Amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "month total\t\t%s %s\n", res.MonthlyTotal.StringFixed(2), currency)
	fmt.Fprintf(tw, "month to date\t\t%s %s\n", res.MonthToDateTotal.StringFixed(2), currency)
	return tw.Flush()
}

func (a *app) printAvailability(w io.Writer, date string) error {
	ctx := context.Background()

	key := shift.DateKeyOf(time.Now())
	if date != "" {
		k, err := shift.ParseDateKey(date)
		if err != nil {
			return err
		}
		key = k
	}

	settings, err := a.repos.Settings.ReadSettings(ctx)
	if err != nil {
		return err
	}
	special, err := a.repos.Schedule.ReadSpecialDates(ctx)
	if err != nil {
		return err
	}

	shifts := availability.ResolveKey(key, settings, special)
	if len(shifts) == 0 {
		fmt.Fprintf(w, "%s: no shifts available\n", key)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cs := range shifts {
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%gh\n", cs.ID, cs.Name, cs.StartTime, cs.EndTime, cs.Hours)
	}
	return tw.Flush()
}
