// Package cardsync runs one synchronisation of the support card catalog
// against the wiki list page.
package cardsync

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/Lusbox/umasparkmaker/pkg/assets"
	"github.com/Lusbox/umasparkmaker/pkg/catalog"
	"github.com/Lusbox/umasparkmaker/pkg/config"
	"github.com/Lusbox/umasparkmaker/pkg/db"
	"github.com/Lusbox/umasparkmaker/pkg/extract"
	"github.com/Lusbox/umasparkmaker/pkg/logging"
)

// Version returns the current version of the package.
func Version() string { return "0.1.0" }

var (
	// ErrSourceFetch wraps any failure to obtain the list page.
	ErrSourceFetch = errors.New("fetch source page")
	// ErrNoCards is returned when the page yields no cards at all.
	ErrNoCards = errors.New("no support cards found on the source page")
)

// Fetcher retrieves the list page and card images.
type Fetcher interface {
	Page(ctx context.Context, url string) ([]byte, error)
	Image(ctx context.Context, url string) ([]byte, error)
}

// ApproveFunc is asked once per run when new cards exist. Returning false
// skips downloads for this run.
type ApproveFunc func(ctx context.Context, added []catalog.Card) (assets.Options, bool, error)

// Options selects what a run does.
type Options struct {
	SourceURL string
	Origin    string
	FilterSSR bool
	// FromFile extracts from a saved page instead of fetching SourceURL.
	FromFile string
	// Approve is nil when images are never downloaded.
	Approve ApproveFunc
}

// OptionsFromConfig fills Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SourceURL: cfg.Source.URL,
		Origin:    cfg.Source.Origin,
		FilterSSR: cfg.Source.SSROnly,
	}
}

// Result describes a completed run.
type Result struct {
	RunID      string
	PageTitle  string
	FilterMode string
	Extracted  int
	Existing   int
	New        []catalog.Card
	Cards      []catalog.Card
	Summary    catalog.Summary
	Downloaded bool
	Report     assets.Report
}

// Syncer wires the catalog store, transport and optional history ledger.
type Syncer struct {
	Store   *catalog.Store
	Fetcher Fetcher
	// History is optional; ledger failures are logged and never fail a run.
	History *sql.DB
	Logger  *slog.Logger

	base *slog.Logger
}

// New creates a Syncer.
func New(store *catalog.Store, fetcher Fetcher, history *sql.DB, logger *slog.Logger) *Syncer {
	return &Syncer{
		Store:   store,
		Fetcher: fetcher,
		History: history,
		Logger:  logging.NewComponentLogger(logger, "cardsync"),
		base:    logger,
	}
}

// Run fetches and extracts the page, downloads images for new cards when
// approved, merges with the stored catalog and saves it. The catalog file is
// left untouched when the page cannot be fetched, yields no cards, or ctx is
// cancelled before the merge.
func (s *Syncer) Run(ctx context.Context, opts Options) (res *Result, err error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	unlock, err := s.Store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	res = &Result{
		RunID:      uuid.NewString(),
		FilterMode: config.FilterModeLabel(opts.FilterSSR),
	}
	logger = logger.With(logging.String(logging.FieldRunID, res.RunID))
	source := opts.SourceURL
	if opts.FromFile != "" {
		source = opts.FromFile
	}

	history := s.startRun(logger, res, source)
	defer func() {
		s.finishRun(logger, history, res, err)
	}()

	logger.Info("starting sync",
		logging.String("source", source),
		logging.String("filter", res.FilterMode),
		logging.String("catalog", s.Store.Path()))

	body, err := s.readSource(ctx, opts)
	if err != nil {
		return res, err
	}

	res.PageTitle = pageTitle(body, opts.SourceURL)
	doc, err := extract.Parse(bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}
	origin := opts.Origin
	if origin == "" {
		origin = extract.DefaultOrigin
	}
	fresh := extract.Extractor{Origin: origin}.Extract(doc, opts.FilterSSR)
	if len(fresh) == 0 {
		return res, ErrNoCards
	}
	res.Extracted = len(fresh)
	logger.Info("extracted cards", logging.Int("card_count", len(fresh)), logging.String("page_title", res.PageTitle))

	existing := s.Store.Load()
	res.Existing = len(existing)
	res.New = catalog.DiffNew(fresh, existing)
	logger.Info("compared with catalog",
		logging.Int("existing", len(existing)),
		logging.Int("new", len(res.New)))

	if len(res.New) > 0 && opts.Approve != nil {
		aopts, ok, err := opts.Approve(ctx, res.New)
		if err != nil {
			return res, fmt.Errorf("confirm downloads: %w", err)
		}
		if ok {
			aopts.StartIndex = len(existing) + 1
			pipeline := assets.NewPipeline(s.Fetcher, s.base)
			pipeline.Logger = pipeline.Logger.With(logging.String(logging.FieldRunID, res.RunID))
			if history != nil {
				pipeline.Recorder = &ledgerRecorder{db: history, runID: res.RunID}
			}
			downloaded, report, err := pipeline.Run(ctx, res.New, aopts)
			res.Downloaded = true
			res.Report = report
			if err != nil {
				return res, fmt.Errorf("download images: %w", err)
			}
			fresh = catalog.AttachLocalImages(fresh, downloaded)
		}
	}

	res.Cards = catalog.Merge(fresh, existing)
	if err := s.Store.Save(res.Cards); err != nil {
		return res, err
	}
	res.Summary = catalog.Summarize(res.Cards, len(res.New))
	logger.Info("sync complete",
		logging.Int("total", res.Summary.Total),
		logging.Int("new", res.Summary.Added),
		logging.Int("with_images", res.Summary.WithImages))
	return res, nil
}

func (s *Syncer) readSource(ctx context.Context, opts Options) ([]byte, error) {
	if opts.FromFile != "" {
		body, err := os.ReadFile(opts.FromFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
		}
		return body, nil
	}
	body, err := s.Fetcher.Page(ctx, opts.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFetch, err)
	}
	return body, nil
}

// pageTitle asks readability for the article title and falls back to the
// document's <title>.
func pageTitle(body []byte, pageURL string) string {
	u, _ := url.Parse(pageURL)
	if u == nil {
		u = &url.URL{}
	}
	if article, err := readability.FromReader(bytes.NewReader(body), u); err == nil {
		if t := strings.TrimSpace(article.Title); t != "" {
			return t
		}
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if n := dom.QuerySelector(doc, "title"); n != nil {
		return strings.TrimSpace(dom.TextContent(n))
	}
	return ""
}

func (s *Syncer) startRun(logger *slog.Logger, res *Result, source string) *sql.DB {
	if s.History == nil {
		return nil
	}
	err := db.CreateRun(s.History, db.Run{
		ID:         res.RunID,
		StartedAt:  time.Now(),
		SourceURL:  source,
		FilterMode: res.FilterMode,
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to record run start", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is missing from history"))
		return nil
	}
	return s.History
}

func (s *Syncer) finishRun(logger *slog.Logger, history *sql.DB, res *Result, runErr error) {
	if history == nil || res == nil {
		return
	}
	err := db.FinishRun(history, res.RunID, db.RunResult{
		PageTitle:  res.PageTitle,
		Total:      res.Summary.Total,
		NewCount:   len(res.New),
		WithImages: res.Summary.WithImages,
		Downloaded: res.Report.Downloaded,
		Failed:     res.Report.Failed,
		Err:        runErr,
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to record run result", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history shows this run as still running"))
	}
}

type ledgerRecorder struct {
	db    *sql.DB
	runID string
}

func (r *ledgerRecorder) RecordAsset(_ context.Context, ev assets.Event) error {
	a := db.Asset{
		RunID:      r.runID,
		Seq:        ev.Index,
		CardName:   ev.Card,
		ImageURL:   ev.ImageURL,
		LocalPath:  ev.LocalPath,
		Outcome:    string(ev.Outcome),
		Transcoded: ev.Transcoded,
		BytesIn:    int64(ev.BytesIn),
		BytesOut:   int64(ev.BytesOut),
	}
	if ev.Err != nil {
		a.Error = ev.Err.Error()
	}
	return db.RecordAsset(r.db, a)
}
