// Package assets downloads card images, optionally transcodes them, and
// records where each one was written.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Lusbox/umasparkmaker/pkg/catalog"
	"github.com/Lusbox/umasparkmaker/pkg/logging"
)

// Fetcher retrieves image bytes. Non-success responses must be errors.
type Fetcher interface {
	Image(ctx context.Context, url string) ([]byte, error)
}

// Options controls one pipeline run.
type Options struct {
	Dir        string
	Delay      time.Duration
	Optimize   bool
	MaxWidth   int
	MaxHeight  int
	Quality    int
	Format     Format
	StartIndex int
}

// DefaultOptions mirrors the interactive defaults.
func DefaultOptions() Options {
	return Options{
		Dir:        "images",
		Delay:      500 * time.Millisecond,
		Optimize:   true,
		MaxWidth:   800,
		MaxHeight:  600,
		Quality:    85,
		Format:     WebP,
		StartIndex: 1,
	}
}

// Outcome classifies a single download attempt.
type Outcome string

const (
	OutcomeDownloaded  Outcome = "downloaded"
	OutcomeFetchFailed Outcome = "fetch_failed"
	OutcomeWriteFailed Outcome = "write_failed"
)

// Event describes one attempt and is handed to the Recorder.
type Event struct {
	Index      int
	Card       string
	ImageURL   string
	LocalPath  string
	Outcome    Outcome
	Transcoded bool
	BytesIn    int
	BytesOut   int
	Err        error
}

// Recorder persists attempt events, e.g. into the history ledger.
type Recorder interface {
	RecordAsset(ctx context.Context, ev Event) error
}

// Report totals a pipeline run.
type Report struct {
	Attempted  int
	Downloaded int
	Failed     int
	Transcoded int
	BytesIn    int64
	BytesOut   int64
}

// Pipeline fetches images one card at a time.
type Pipeline struct {
	Fetcher Fetcher
	Logger  *slog.Logger
	// Recorder is optional.
	Recorder Recorder
	// Sleep waits between cards; nil uses a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// withDefaults fills the settings a run cannot go without. Zero bounds and a
// zero delay are meaningful and stay as given.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if strings.TrimSpace(o.Dir) == "" {
		o.Dir = def.Dir
	}
	if o.Format == "" {
		o.Format = def.Format
	}
	if o.Quality <= 0 {
		o.Quality = def.Quality
	}
	if o.StartIndex <= 0 {
		o.StartIndex = def.StartIndex
	}
	return o
}

// NewPipeline creates a Pipeline using f for downloads.
func NewPipeline(f Fetcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Fetcher: f,
		Logger:  logging.NewComponentLogger(logger, "assets"),
	}
}

// Run downloads an image for each card and returns copies of the cards with
// LocalImage set for every successful download. A failing card is logged and
// left as it was; the batch carries on. The error is non-nil only when ctx
// ends the run early, in which case the cards processed so far are returned
// along with the untouched rest.
func (p *Pipeline) Run(ctx context.Context, cards []catalog.Card, opts Options) ([]catalog.Card, Report, error) {
	out := append([]catalog.Card(nil), cards...)
	var rep Report
	if len(cards) == 0 {
		return out, rep, nil
	}
	opts = opts.withDefaults()

	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Info("downloading card images",
		logging.Int("count", len(cards)),
		logging.String("dir", opts.Dir),
		logging.Bool("optimize", opts.Optimize),
		logging.String("format", string(opts.Format)),
		logging.Int("max_width", opts.MaxWidth),
		logging.Int("max_height", opts.MaxHeight),
		logging.Int("quality", opts.Quality))

	for i := range out {
		if err := ctx.Err(); err != nil {
			return out, rep, err
		}
		if i > 0 && opts.Delay > 0 {
			if err := p.sleep(ctx, opts.Delay); err != nil {
				return out, rep, err
			}
		}

		ev := p.process(ctx, logger, opts.StartIndex+i, out[i], opts)
		rep.Attempted++
		rep.BytesIn += int64(ev.BytesIn)
		switch ev.Outcome {
		case OutcomeDownloaded:
			rep.Downloaded++
			rep.BytesOut += int64(ev.BytesOut)
			if ev.Transcoded {
				rep.Transcoded++
			}
			out[i].LocalImage = catalog.NewLocalImage(ev.LocalPath)
		default:
			rep.Failed++
		}

		if p.Recorder != nil {
			if err := p.Recorder.RecordAsset(ctx, ev); err != nil {
				logging.WarnWithContext(logger, "failed to record asset attempt", "asset_record_failed",
					logging.String(logging.FieldCard, ev.Card),
					logging.Error(err),
					logging.String(logging.FieldImpact, "history is missing this attempt"))
			}
		}
	}

	logger.Info("image downloads complete",
		logging.Int("downloaded", rep.Downloaded),
		logging.Int("failed", rep.Failed),
		logging.Int64("bytes_in", rep.BytesIn),
		logging.Int64("bytes_out", rep.BytesOut),
		logging.String("written", humanize.Bytes(uint64(rep.BytesOut))))
	return out, rep, nil
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, index int, card catalog.Card, opts Options) Event {
	ev := Event{Index: index, Card: card.Name, ImageURL: card.Image}
	cardLog := logger.With(logging.String(logging.FieldCard, card.Name), logging.Int("index", index))

	data, err := p.Fetcher.Image(ctx, card.Image)
	if err != nil {
		ev.Outcome = OutcomeFetchFailed
		ev.Err = err
		logging.WarnWithContext(cardLog, "failed to download card image", "asset_fetch_failed",
			logging.String("url", card.Image),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rerun later; the card stays without a local image"),
			logging.String(logging.FieldImpact, "card has no local image"))
		return ev
	}
	ev.BytesIn = len(data)

	final := data
	if opts.Optimize {
		optimized, err := Optimize(data, opts)
		if err != nil {
			logging.WarnWithContext(cardLog, "image optimization failed; keeping original bytes", "asset_transcode_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "image stored without resizing or re-encoding"))
		} else {
			final = optimized
			ev.Transcoded = true
		}
	}

	// Untranscoded bytes keep the source extension.
	nameOpts := opts
	nameOpts.Optimize = ev.Transcoded
	name := FileName(index, card.Name, card.Image, nameOpts)
	path := filepath.Join(opts.Dir, name)
	if err := writeFile(opts.Dir, path, final); err != nil {
		ev.Outcome = OutcomeWriteFailed
		ev.Err = err
		logging.WarnWithContext(cardLog, "failed to write card image", "asset_write_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions and free space in the download directory"),
			logging.String(logging.FieldImpact, "card has no local image"))
		return ev
	}

	ev.Outcome = OutcomeDownloaded
	ev.LocalPath = path
	ev.BytesOut = len(final)
	if ev.Transcoded {
		cardLog.Info("downloaded and optimized",
			logging.String("file", name),
			logging.String("original", humanize.Bytes(uint64(len(data)))),
			logging.String("optimized", humanize.Bytes(uint64(len(final)))),
			logging.String("reduction", reduction(len(data), len(final))))
	} else {
		cardLog.Info("downloaded", logging.String("file", name), logging.String("size", humanize.Bytes(uint64(len(final)))))
	}
	return ev
}

func writeFile(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func reduction(before, after int) string {
	if before == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(before-after)/float64(before)*100)
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
