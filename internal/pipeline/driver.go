// Package pipeline drives one archive through decompression, envelope
// parsing, extraction and record encoding.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"beatgrok/internal/archive"
	"beatgrok/internal/grok"
	"beatgrok/internal/logger"
	"beatgrok/internal/metrics"
)

// maxLoggedLine bounds how much of a bad line goes into a diagnostic.
const maxLoggedLine = 512

// Config holds driver configuration.
type Config struct {
	// OutputDir receives the .influx.gz files
	OutputDir string
	// Logger defaults to the "pipeline" component logger
	Logger *zerolog.Logger
}

// Stats summarizes one archive. Counts reflect whatever was processed
// before an abort.
type Stats struct {
	Path   string
	Output string
	// Lines is the number of lines whose envelope parsed
	Lines int64
	// Bytes is the number of decoded bytes, newlines excluded
	Bytes   int64
	Records int64
	// Written is the number of uncompressed output bytes
	Written int64
	Skipped int64
	Elapsed time.Duration
	// Err is the error that stopped the file early, nil on success
	Err error
}

// Driver processes archives. It holds no per-file state and is safe for
// concurrent ProcessFile calls.
type Driver struct {
	cfg    Config
	rules  *grok.Ruleset
	log    zerolog.Logger
	create func(path string) (*archive.Writer, error)
}

// New constructs a Driver sharing rules across all files.
func New(cfg Config, rules *grok.Ruleset) *Driver {
	log := logger.WithComponent("pipeline")
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Driver{cfg: cfg, rules: rules, log: log, create: archive.Create}
}

// ProcessFile runs one archive end to end and writes its records next to
// OutputDir. It never panics on bad input and always logs a summary.
func (d *Driver) ProcessFile(ctx context.Context, path string) (stats Stats) {
	start := time.Now()
	stats = Stats{Path: path, Output: archive.OutputPath(path, d.cfg.OutputDir)}
	log := d.log.With().Str("file", path).Logger()
	log.Info().Str("output", stats.Output).Msg("starting")

	var outcomes [OutcomeAbort + 1]int64
	defer func() {
		stats.Elapsed = time.Since(start)
		d.finish(log, stats, outcomes)
	}()

	in, err := archive.Open(path)
	if err != nil {
		stats.Err = err
		return stats
	}
	defer in.Close()

	out, err := d.create(stats.Output)
	if err != nil {
		stats.Err = err
		return stats
	}
	defer func() {
		if err := out.Close(); err != nil && stats.Err == nil {
			stats.Err = err
		}
		stats.Written = out.Written()
	}()

	lp := NewLineProcessor(d.rules)

loop:
	for in.Next() {
		if err := ctx.Err(); err != nil {
			stats.Err = err
			break
		}

		res := lp.Process(in.Line())
		outcomes[res.Outcome]++
		if res.Message != nil {
			stats.Lines++
		}

		switch res.Outcome {
		case OutcomeRecord:
			if _, err := out.Write(res.Record); err != nil {
				stats.Err = err
				break loop
			}
			stats.Records++
		case OutcomeNoFields:
		case OutcomeSkip:
			stats.Skipped++
			event := log.Warn()
			if res.Err == ErrEmptyLine {
				event = log.Debug()
			}
			event.Err(res.Err).Str("line", truncate(in.Line())).Msg("skipping line")
		case OutcomeAbort:
			stats.Err = res.Err
			break loop
		}
	}

	if stats.Err == nil {
		stats.Err = in.Err()
	}
	stats.Bytes = in.Bytes()
	return stats
}

func (d *Driver) finish(log zerolog.Logger, stats Stats, outcomes [OutcomeAbort + 1]int64) {
	for o, n := range outcomes {
		if n > 0 {
			metrics.LinesTotal.WithLabelValues("file", Outcome(o).String()).Add(float64(n))
		}
	}
	metrics.BytesDecoded.Add(float64(stats.Bytes))
	metrics.RecordsWritten.WithLabelValues("file").Add(float64(stats.Records))
	metrics.FileDuration.Observe(stats.Elapsed.Seconds())

	event := log.Info()
	if stats.Err != nil {
		metrics.FilesTotal.WithLabelValues("failed").Inc()
		event = log.Error().Err(stats.Err)
	} else {
		metrics.FilesTotal.WithLabelValues("ok").Inc()
	}
	event.
		Int64("lines", stats.Lines).
		Int64("bytes", stats.Bytes).
		Int64("records", stats.Records).
		Int64("written", stats.Written).
		Int64("skipped", stats.Skipped).
		Float64("secs", stats.Elapsed.Seconds()).
		Msg("done")
}

func truncate(line []byte) string {
	if len(line) > maxLoggedLine {
		return string(line[:maxLoggedLine]) + "..."
	}
	return string(line)
}
