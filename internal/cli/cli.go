// Package cli implements the command-line interface for csvload.
package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eunmann/csvload/internal/logctx"
	"github.com/eunmann/csvload/internal/server"
	"github.com/eunmann/csvload/pkg/fileutil"
	"github.com/eunmann/csvload/pkg/humanfmt"
	"github.com/eunmann/csvload/pkg/importer"
	"github.com/eunmann/csvload/pkg/logging"
	"github.com/eunmann/csvload/pkg/membudget"
	"github.com/eunmann/csvload/pkg/memdiag"
	"github.com/eunmann/csvload/pkg/recordstore"
	"github.com/eunmann/csvload/pkg/s3fetch"
	"github.com/eunmann/csvload/pkg/samplegen"
)

// Environment variables providing flag defaults.
const (
	EnvDB   = "CSVLOAD_DB"
	EnvPort = "PORT"
)

const usage = "usage: csvload <command> [options]\ncommands: import, generate, serve, rows"

// Run executes the CLI with the given arguments. SIGINT and SIGTERM cancel
// the running command; an interrupted import is rolled back.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "import":
		return runImport(ctx, args[1:], out)
	case "generate":
		return runGenerate(args[1:], out)
	case "serve":
		return runServe(ctx, args[1:])
	case "rows":
		return runRows(ctx, args[1:], out)
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

// logFlags registers --debug and --human and returns a func that applies them.
func logFlags(fs *flag.FlagSet) func() {
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable console logs instead of JSON")
	return func() { logging.Init(*debug, *human) }
}

// storeFlags registers the record store flags and returns a func building
// the config from them.
func storeFlags(fs *flag.FlagSet) func() (recordstore.Config, error) {
	dbPath := fs.String("db", envOr(EnvDB, recordstore.DefaultDBPath), "SQLite database file (env "+EnvDB+")")
	cacheSize := fs.String("cache-size", "", "page cache size, e.g. 256MiB (env "+membudget.EnvCacheSize+"; default: 1/8 of RAM, 64MiB-1GiB)")
	synchronous := fs.String("synchronous", "OFF", "synchronous pragma: OFF, NORMAL, FULL, EXTRA")
	journalMode := fs.String("journal-mode", "OFF", "journal_mode pragma: OFF, MEMORY, DELETE, TRUNCATE, PERSIST, WAL")
	busyTimeout := fs.Duration("busy-timeout", 5*time.Second, "how long to wait for another import holding the database")

	return func() (recordstore.Config, error) {
		cfg := recordstore.DefaultConfig(*dbPath)
		cfg.Synchronous = *synchronous
		cfg.JournalMode = *journalMode
		cfg.BusyTimeout = *busyTimeout
		budget, err := membudget.Resolve(*cacheSize)
		if err != nil {
			if *cacheSize != "" {
				return cfg, fmt.Errorf("--cache-size: %w", err)
			}
			return cfg, err
		}
		cfg.CacheSizeKB = budget.KiB()
		logging.L().Debug().
			Str("cache_size", humanfmt.Bytes(int64(budget.Bytes))).
			Str("source", string(budget.Source)).
			Msg("page cache budget")
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("invalid store config: %w", err)
		}
		return cfg, nil
	}
}

func runImport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	initLog := logFlags(fs)
	storeCfg := storeFlags(fs)
	progress := fs.Duration("progress", importer.DefaultOptions().ProgressInterval, "progress log interval (0 disables)")
	tmpDir := fs.String("tmp", "", "directory for files downloaded from S3 (default: system temp)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	initLog()

	sources := fs.Args()
	if len(sources) == 0 {
		return errors.New("at least one CSV file is required")
	}

	cfg, err := storeCfg()
	if err != nil {
		return err
	}
	imp := importer.New(cfg, importer.Options{ProgressInterval: *progress})

	mem := memdiag.NewTracker(memdiag.ConfigFromEnv())
	mem.Start()
	defer mem.Stop()

	var s3 *s3fetch.Client
	for _, src := range sources {
		path := src
		if s3fetch.IsS3URI(src) {
			if s3 == nil {
				dl := s3fetch.DefaultDownloaderConfig()
				dl.TempDir = *tmpDir
				if s3, err = s3fetch.NewClient(ctx, dl); err != nil {
					return err
				}
			}
			mem.SetPhase("s3_fetch")
			d, err := s3.Fetch(logctx.WithStr(ctx, "source", src), src)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", src, err)
			}
			defer d.Remove()
			path = d.Path
		}

		mem.SetPhase("import")
		res, err := imp.ImportCSVData(ctx, path)
		if err != nil {
			return fmt.Errorf("import %s: %w", src, err)
		}
		fmt.Fprintf(out, "%s: inserted %d of %d rows (duplicates %d, skipped %d, faults %d) in %s\n",
			src, res.Inserted, res.RowsRead, res.Duplicates, res.Skipped, res.Faults, humanfmt.Duration(res.Elapsed))
	}
	return nil
}

func runGenerate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	initLog := logFlags(fs)
	rows := fs.Int("rows", 1_000_000, "number of distinct people to write")
	outPath := fs.String("out", "", "output CSV path (.gz compresses)")
	seed := fs.Int64("seed", 0, "random seed (0 = fixed default)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	initLog()

	if *outPath == "" {
		return errors.New("--out is required")
	}

	start := time.Now()
	n, err := samplegen.WriteFile(*outPath, samplegen.Config{Rows: *rows, Seed: *seed})
	if err != nil {
		return err
	}

	logging.PhaseComplete(logging.WithPhase("generate"), "generate", time.Since(start)).
		Str("path", *outPath).
		Count("rows", int64(n)).
		RowRate(int64(n)).
		Log("sample file written")
	fmt.Fprintf(out, "wrote %d rows to %s\n", n, *outPath)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	initLog := logFlags(fs)
	storeCfg := storeFlags(fs)
	addr := fs.String("addr", ":"+envOr(EnvPort, "3000"), "listen address (env "+EnvPort+" sets the port)")
	uploads := fs.String("uploads", "uploads", "directory uploaded files are saved to")
	public := fs.String("public", "public", "directory of static files served for GET")
	maxUpload := fs.String("max-upload", "512MiB", "maximum upload size")

	if err := fs.Parse(args); err != nil {
		return err
	}
	initLog()

	store, err := storeCfg()
	if err != nil {
		return err
	}
	limit, err := humanfmt.ParseBytes(*maxUpload)
	if err != nil {
		return fmt.Errorf("--max-upload: %w", err)
	}

	cfg := server.DefaultConfig(*addr, store)
	cfg.UploadDir = *uploads
	cfg.PublicDir = *public
	cfg.MaxUploadBytes = limit

	mem := memdiag.NewTracker(memdiag.ConfigFromEnv())
	mem.Start()
	defer mem.Stop()
	mem.SetPhase("serve")

	return server.New(cfg).ListenAndServe(ctx)
}

// runRows prints the stored rows as CSV, oldest first.
func runRows(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rows", flag.ContinueOnError)
	initLog := logFlags(fs)
	dbPath := fs.String("db", envOr(EnvDB, recordstore.DefaultDBPath), "SQLite database file (env "+EnvDB+")")
	limit := fs.Int("limit", 0, "print at most this many rows (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	initLog()

	if !fileutil.Exists(*dbPath) {
		return fmt.Errorf("database %s does not exist", *dbPath)
	}
	rows, err := recordstore.ReadRows(ctx, *dbPath)
	if err != nil {
		return err
	}
	if *limit > 0 && len(rows) > *limit {
		rows = rows[:*limit]
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"Id", "Name", "Surname", "Initials", "Age", "DateOfBirth"}); err != nil {
		return err
	}
	for _, r := range rows {
		age := ""
		if r.Age.Valid {
			age = strconv.FormatInt(r.Age.Int64, 10)
		}
		rec := []string{strconv.FormatInt(r.ID, 10), r.Name, r.Surname, r.Initials, age, r.DateOfBirth}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
