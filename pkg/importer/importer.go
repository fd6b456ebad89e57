// Package importer turns a person CSV file into committed rows in the record
// store. One call to ImportCSVData owns one recordstore.Session from Open to
// Finalize; rows are staged strictly in file order inside one transaction,
// and nothing is committed unless the whole file was read.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/eunmann/csvload/internal/logctx"
	"github.com/eunmann/csvload/pkg/logging"
	"github.com/eunmann/csvload/pkg/person"
	"github.com/eunmann/csvload/pkg/recordstore"
)

var (
	// ErrRead means the file could not be opened or a read failed mid-stream.
	ErrRead = errors.New("read error")
	// ErrParse means the file is not well-formed delimited text with the
	// expected header.
	ErrParse = errors.New("parse error")
)

// progressCheckEvery is how many rows pass between progress log checks.
const progressCheckEvery = 4096

// Options tunes an import beyond the store configuration.
type Options struct {
	// ProgressInterval is the minimum time between progress log lines.
	// Zero disables progress logging.
	ProgressInterval time.Duration
}

// DefaultOptions returns the options used by the CLI and server.
func DefaultOptions() Options {
	return Options{ProgressInterval: 5 * time.Second}
}

// Result describes a completed import.
type Result struct {
	File       string
	RowsRead   int64
	Inserted   int64
	Duplicates int64
	// Skipped counts rows missing a required field or carrying an
	// unparseable date or age.
	Skipped int64
	Faults  int64
	// Bytes is the number of bytes read from the file (compressed size for .gz).
	Bytes   int64
	Elapsed time.Duration
}

// Importer runs imports against one store configuration.
type Importer struct {
	cfg  recordstore.Config
	opts Options
}

// New creates an importer writing to the store described by cfg.
func New(cfg recordstore.Config, opts Options) *Importer {
	return &Importer{cfg: cfg, opts: opts}
}

// ImportCSVData imports path into the default store file in the working
// directory.
func ImportCSVData(ctx context.Context, path string) (*Result, error) {
	cfg := recordstore.DefaultConfig(recordstore.DefaultDBPath)
	return New(cfg, DefaultOptions()).ImportCSVData(ctx, path)
}

// ImportCSVData opens a store session, streams path into it and commits.
//
// The store is opened before the file, so an unavailable store never
// touches the input. On any read or parse failure, or when ctx is
// cancelled, the transaction is rolled back and nothing from this call is
// visible afterwards. Rows with missing required fields and duplicate keys
// are skipped without failing the import.
func (im *Importer) ImportCSVData(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	ctx = logctx.WithStr(ctx, "import_file", path)
	log := logctx.FromContext(ctx).With().Str("phase", "import").Logger()

	session := recordstore.New(im.cfg)
	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if session.State() != recordstore.StateReady {
			return
		}
		if err := session.Rollback(); err != nil {
			log.Warn().Err(err).Msg("rollback reported an error")
		}
	}()

	res := &Result{File: path}
	if err := im.stream(ctx, path, session, res); err != nil {
		log.Error().
			Err(err).
			Int64("rows_read", res.RowsRead).
			Int64("staged", session.Stats().Staged).
			Msg("import aborted, rolling back")
		return nil, err
	}

	stats, err := session.Finalize()
	if err != nil {
		return nil, err
	}
	res.Inserted = stats.Inserted
	res.Duplicates = stats.Duplicates
	res.Faults = stats.Faults
	res.Elapsed = time.Since(start)

	logging.ImportComplete(log, res.Elapsed).
		Str("file", path).
		Count("rows_read", res.RowsRead).
		Count("inserted", res.Inserted).
		Count("duplicates", res.Duplicates).
		Count("skipped", res.Skipped).
		Count("faults", res.Faults).
		Bytes("bytes_read", res.Bytes).
		RowRate(res.RowsRead).
		Throughput(res.Bytes).
		Log("import completed")

	return res, nil
}

// stream reads every data row of path and stages the valid ones.
func (im *Importer) stream(ctx context.Context, path string, session *recordstore.Session, res *Result) error {
	log := logctx.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrRead, path, err)
	}
	defer f.Close()

	var total int64
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	counter := &countingReader{r: f}
	defer func() { res.Bytes = counter.n.Load() }()

	body, closeGzip, err := decompressReader(counter, path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	if closeGzip != nil {
		defer closeGzip()
	}

	csvr := newPersonReader(decodeText(body))

	header, err := csvr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s is empty, expected a header row", ErrParse, path)
	}
	if err != nil {
		return classify(err, "read header")
	}
	cols, err := mapHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}

	tracker := logging.NewProgressTracker("import", total, im.opts.ProgressInterval, log)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled after %d rows: %w", res.RowsRead, err)
		}

		row, err := csvr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return classify(err, fmt.Sprintf("read row %d", res.RowsRead+1))
		}
		res.RowsRead++

		rec, err := person.Parse(cols.fields(row))
		if err != nil {
			res.Skipped++
			log.Debug().Err(err).Int64("row", res.RowsRead).Msg("row skipped")
		} else {
			session.Stage(ctx, rec)
		}

		if res.RowsRead%progressCheckEvery == 0 {
			tracker.Update(counter.n.Load(), res.RowsRead)
			tracker.MaybeLog(time.Now())
		}
	}
}

// classify maps a csv.Reader error to ErrParse for malformed text and
// ErrRead for everything else.
func classify(err error, what string) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: %s: %w", ErrParse, what, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrRead, what, err)
}
