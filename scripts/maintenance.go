package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/database"
	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/export"
	"github.com/urielssan/subite/internal/google"
	"github.com/urielssan/subite/internal/logging"
	"github.com/urielssan/subite/internal/service"
	"github.com/urielssan/subite/internal/slots"
	"github.com/urielssan/subite/internal/worker"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"initdb", "apply migrations and seed prices", runInitDB},
	{"seed-prices", "insert missing prices from a JSON file [-file path]", runSeedPrices},
	{"cleanup-slots", "delete off-catalog slots without bookings [-days N] [-dry-run]", runCleanup},
	{"migrate-bookings", "move upcoming bookings to the nearest catalog slot [-dry-run]", runMigrate},
	{"backup", "write a copy of the database to backup.storage_path", runBackup},
	{"export", "write an xlsx of bookings [-from YYYY-MM-DD] [-to YYYY-MM-DD]", runExport},
	{"sync-sheets", "rewrite the Bookings sheet from the database", runSyncSheets},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, ok := lookup(os.Args[1])
	if !ok {
		errColor.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := execute(cmd, os.Args[2:]); err != nil {
		errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	headColor.Fprintln(os.Stderr, "usage: maintenance <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", c.name, dimColor.Sprint(c.usage))
	}
	dimColor.Fprintln(os.Stderr, "config is read from CONFIG_PATH (default configs/config.yaml)")
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// env is what every command needs: config, logger and an open database.
type env struct {
	cfg    *config.Config
	db     *database.DB
	logger *zerolog.Logger
}

func execute(cmd command, args []string) error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(config.LoggingConfig{Level: "warn", Format: "console", Output: "stderr"}, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path, logger, database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	headColor.Printf("» %s ", cmd.name)
	dimColor.Printf("(%s)\n", cfg.Database.Path)
	return cmd.run(ctx, &env{cfg: cfg, db: db, logger: logger}, args)
}

func runInitDB(ctx context.Context, e *env, _ []string) error {
	if err := e.db.Ready(ctx); err != nil {
		return err
	}
	okColor.Println("schema is up to date")

	if e.cfg.Database.PricesSeed == "" {
		warnColor.Println("database.prices_seed not set, prices use built-in defaults")
		return nil
	}
	return seedFrom(ctx, e, e.cfg.Database.PricesSeed)
}

func runSeedPrices(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("seed-prices", flag.ContinueOnError)
	file := fs.String("file", e.cfg.Database.PricesSeed, "JSON object of price key -> value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required when database.prices_seed is not set")
	}
	return seedFrom(ctx, e, *file)
}

func seedFrom(ctx context.Context, e *env, path string) error {
	values, err := database.LoadPriceSeed(path)
	if err != nil {
		return err
	}
	inserted, err := e.db.SeedPrices(ctx, values)
	if err != nil {
		return err
	}
	okColor.Printf("prices seeded: %d inserted, %d already set\n", inserted, len(values)-inserted)
	return nil
}

type slotFlags struct {
	days   int
	dryRun bool
}

func parseSlotFlags(name string, e *env, args []string) (slotFlags, error) {
	var f slotFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.IntVar(&f.days, "days", e.cfg.Slots.CleanupDays, "days ahead of today to process")
	fs.BoolVar(&f.dryRun, "dry-run", false, "report without writing")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.days < 0 {
		return f, errors.New("-days must not be negative")
	}
	return f, nil
}

// slotService builds the service without an event bus. When sheets are
// configured, moves are queued in sync_queue for the server's worker.
func slotService(e *env) (*service.SlotService, error) {
	catalog, err := slots.FromConfig(e.cfg.Slots)
	if err != nil {
		return nil, err
	}
	var syncer domain.SyncWorker
	if e.cfg.Google.BookingSpreadSheetID != "" {
		syncer = worker.NewSheetsWorker(e.db, nil, nil, worker.RetryPolicy{}, e.logger)
	}
	clock := service.NewSystemClock(e.cfg.Location())
	return service.NewSlotService(e.db, catalog, clock, nil, syncer, e.logger), nil
}

func runCleanup(ctx context.Context, e *env, args []string) error {
	f, err := parseSlotFlags("cleanup-slots", e, args)
	if err != nil {
		return err
	}
	svc, err := slotService(e)
	if err != nil {
		return err
	}

	from, to := svc.Window(f.days)
	report, err := svc.CleanupSlots(ctx, from, to, f.dryRun)
	if err != nil {
		return err
	}

	dimColor.Printf("window %s .. %s\n", report.From, report.To)
	for _, s := range report.Deleted {
		fmt.Printf("  %s %s %s %s\n", okColor.Sprint("deleted"), s.Route, s.Date.Format("2006-01-02"), s.Time)
	}
	for _, l := range report.Kept {
		fmt.Printf("  %s %s %s %s (%d booked, flagged for review)\n",
			warnColor.Sprint("kept"), l.Route, l.Date.Format("2006-01-02"), l.Time, l.Booked)
	}
	summary(f.dryRun, "%d deleted, %d kept", len(report.Deleted), len(report.Kept))
	return nil
}

func runMigrate(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("migrate-bookings", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	svc, err := slotService(e)
	if err != nil {
		return err
	}

	from, _ := svc.Window(0)
	report, err := svc.MigrateBookings(ctx, from, *dryRun)
	if err != nil {
		return err
	}

	dimColor.Printf("bookings from %s\n", report.From)
	for _, m := range report.Moved {
		fmt.Printf("  %s #%d %s %s %s -> %s (%d pax)\n",
			okColor.Sprint("moved"), m.BookingID, m.Route, m.Date, m.FromTime, m.ToTime, m.Passengers)
	}
	for _, fail := range report.Failed {
		fmt.Printf("  %s #%d %s %s\n", errColor.Sprint("failed"), fail.BookingID, fail.Reason, fail.Detail)
	}
	summary(*dryRun, "%d moved, %d failed", len(report.Moved), len(report.Failed))
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d bookings could not be moved", len(report.Failed))
	}
	return nil
}

func runBackup(ctx context.Context, e *env, _ []string) error {
	backup := database.NewBackupService(e.db, e.cfg.Backup, e.logger)
	path, err := backup.PerformBackup(ctx)
	if err != nil {
		return err
	}
	removed := backup.CleanupOldBackups()
	okColor.Printf("backup written to %s\n", path)
	if removed > 0 {
		dimColor.Printf("%d old backups removed\n", removed)
	}
	return nil
}

func runExport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	from := fs.String("from", "", "first day, YYYY-MM-DD (default today)")
	to := fs.String("to", "", "last day, YYYY-MM-DD (default today + 60 days)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	clock := service.NewSystemClock(e.cfg.Location())
	admin := service.NewAdminService(e.db, e.db, e.db, clock, nil, nil, e.cfg.Slots.DefaultCapacity, e.logger)
	overview, start, end, err := admin.BookingsBetween(ctx, *from, *to)
	if err != nil {
		return err
	}

	bookings := overview.Summaries()
	path, err := export.SaveBookings(e.cfg.Exports.Path, start, end, bookings)
	if err != nil {
		return err
	}
	okColor.Printf("%d bookings exported to %s\n", len(bookings), path)
	return nil
}

func runSyncSheets(ctx context.Context, e *env, _ []string) error {
	if e.cfg.Google.CredentialsFile == "" || e.cfg.Google.BookingSpreadSheetID == "" {
		return errors.New("google.credentials_file and google.bookings_spreadsheet_id are required")
	}
	if email, err := google.GetServiceAccountEmail(e.cfg.Google.CredentialsFile); err == nil {
		dimColor.Printf("service account %s\n", email)
	}

	sheets, err := google.NewSheetsService(ctx, e.cfg.Google.CredentialsFile, e.cfg.Google.BookingSpreadSheetID)
	if err != nil {
		return err
	}
	if err := sheets.TestConnection(ctx); err != nil {
		return err
	}

	overview, err := e.db.ListBookings(ctx)
	if err != nil {
		return err
	}
	bookings := overview.Summaries()
	if err := sheets.ReplaceBookingsSheet(ctx, bookings); err != nil {
		return err
	}
	okColor.Printf("sheet rewritten with %d bookings\n", len(bookings))
	return nil
}

func summary(dryRun bool, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if dryRun {
		warnColor.Printf("dry run: %s (nothing written)\n", line)
		return
	}
	okColor.Println(line)
}
