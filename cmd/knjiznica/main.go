package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/mvidmar/knjiznica/internal/api"
	"github.com/mvidmar/knjiznica/internal/db"
	"github.com/mvidmar/knjiznica/internal/notify"
	"github.com/mvidmar/knjiznica/internal/snapshot"
)

// config holds the server settings. Environment variables provide the
// defaults; flags override them.
type config struct {
	DBPath        string        `env:"KNJIZNICA_DB" envDefault:"knjiznica.sqlite3"`
	Addr          string        `env:"KNJIZNICA_ADDR" envDefault:":8080"`
	LogPath       string        `env:"KNJIZNICA_LOG"`
	SnapshotPath  string        `env:"KNJIZNICA_SNAPSHOT" envDefault:"library_state.json"`
	DailyRate     string        `env:"KNJIZNICA_DAILY_RATE" envDefault:"0.25"`
	FinePerDay    string        `env:"KNJIZNICA_FINE_PER_DAY" envDefault:"0.5"`
	GraceDays     int           `env:"KNJIZNICA_GRACE_DAYS" envDefault:"0"`
	SweepInterval time.Duration `env:"KNJIZNICA_SWEEP_INTERVAL" envDefault:"24h"`
	NoSweep       bool          `env:"KNJIZNICA_NO_SWEEP"`
}

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("knjiznica", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "")
	fs.BoolVar(&cfg.NoSweep, "no-sweep", cfg.NoSweep, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: knjiznica [flags]

Flags:
  -d, -db <path>          SQLite database path (default: knjiznica.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -snapshot <path>        state snapshot path (default: library_state.json)
  -no-sweep               disable the periodic overdue sweep
  -h, -help               show this help and exit

The KNJIZNICA_* environment variables set the same options plus the fee
schedule (KNJIZNICA_DAILY_RATE, KNJIZNICA_FINE_PER_DAY, KNJIZNICA_GRACE_DAYS)
and the sweep interval (KNJIZNICA_SWEEP_INTERVAL).
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	dailyRate, err := decimal.NewFromString(cfg.DailyRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid daily rate %q\n", cfg.DailyRate)
		os.Exit(1)
	}
	finePerDay, err := decimal.NewFromString(cfg.FinePerDay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid fine per day %q\n", cfg.FinePerDay)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// Restore a snapshot on first run, when the database is still empty.
	empty, err := databaseEmpty(database)
	if err != nil {
		slog.Error("failed to inspect database", "error", err)
		os.Exit(1)
	}
	if empty {
		loaded, err := snapshot.Load(context.Background(), database, cfg.SnapshotPath)
		if err != nil {
			slog.Error("failed to load snapshot", "path", cfg.SnapshotPath, "error", err)
			os.Exit(1)
		}
		if loaded {
			slog.Info("snapshot restored", "path", cfg.SnapshotPath)
		}
	}

	router := api.NewRouter(database, api.Config{
		DailyRate:    dailyRate,
		FinePerDay:   finePerDay,
		GraceDays:    cfg.GraceDays,
		SnapshotPath: cfg.SnapshotPath,
	})
	handler := api.LoggingMiddleware(router)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if !cfg.NoSweep {
		notifier := &notify.Notifier{
			DB:        database,
			Interval:  cfg.SweepInterval,
			DailyFee:  dailyRate,
			GraceDays: cfg.GraceDays,
		}
		go notifier.Run(sweepCtx)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// databaseEmpty reports whether the catalog and member tables hold no rows.
func databaseEmpty(database *sql.DB) (bool, error) {
	var count int
	err := database.QueryRow(
		`SELECT (SELECT COUNT(*) FROM items) + (SELECT COUNT(*) FROM members)`,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting rows: %w", err)
	}
	return count == 0, nil
}
