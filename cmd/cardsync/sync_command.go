package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Lusbox/umasparkmaker/pkg/assets"
	"github.com/Lusbox/umasparkmaker/pkg/cardsync"
	"github.com/Lusbox/umasparkmaker/pkg/catalog"
	"github.com/Lusbox/umasparkmaker/pkg/config"
	"github.com/Lusbox/umasparkmaker/pkg/fetch"
	"github.com/Lusbox/umasparkmaker/pkg/logging"
)

type syncFlags struct {
	all        bool
	yes        bool
	download   bool
	noDownload bool
	noOptimize bool
	noHistory  bool
	dir        string
	format     string
	maxWidth   int
	maxHeight  int
	quality    int
	delay      time.Duration
	catalog    string
	fromFile   string
}

// downloadSettings is what the asset pipeline will run with unless the user
// changes it at the prompt.
type downloadSettings struct {
	enabled bool
	opts    assets.Options
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the support card list and update the local catalog",
		Long: `Fetch the wiki's support card list, add new cards to the catalog and
optionally download their images.

Prompts for the rarity filter and download settings when attached to a
terminal. With --yes (or without a terminal) values come from the config
file and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, &flags)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.all, "all", false, "Include every rarity instead of SSR cards only")
	f.BoolVarP(&flags.yes, "yes", "y", false, "Do not prompt; use config and flag values")
	f.BoolVar(&flags.download, "download", false, "Download images for new cards")
	f.BoolVar(&flags.noDownload, "no-download", false, "Never download images")
	f.BoolVar(&flags.noOptimize, "no-optimize", false, "Store images exactly as downloaded")
	f.BoolVar(&flags.noHistory, "no-history", false, "Do not record this run in the history ledger")
	f.StringVar(&flags.dir, "dir", "", "Image download directory")
	f.StringVar(&flags.format, "format", "", "Optimised image format (webp, jpeg, png)")
	f.IntVar(&flags.maxWidth, "max-width", 0, "Maximum image width in pixels")
	f.IntVar(&flags.maxHeight, "max-height", 0, "Maximum image height in pixels")
	f.IntVar(&flags.quality, "quality", 0, "Encoder quality (1-100)")
	f.DurationVar(&flags.delay, "delay", 0, "Pause between image downloads")
	f.StringVar(&flags.catalog, "catalog", "", "Catalog JSON path")
	f.StringVar(&flags.fromFile, "from-file", "", "Extract from a saved HTML page instead of fetching")
	cmd.MarkFlagsMutuallyExclusive("download", "no-download")

	return cmd
}

func runSync(cmd *cobra.Command, cmdCtx *commandContext, flags *syncFlags) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}

	settings, err := resolveDownloadSettings(cmd, cfg, flags)
	if err != nil {
		return err
	}
	catalogPath := cfg.Catalog.Path
	if flags.catalog != "" {
		catalogPath = flags.catalog
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	interactive := !flags.yes && stdioIsTerminal()

	opts := cardsync.OptionsFromConfig(cfg)
	opts.FromFile = flags.fromFile
	if flags.all {
		opts.FilterSSR = false
	} else if interactive {
		if opts.FilterSSR, err = promptFilter(ctx, opts.FilterSSR); err != nil {
			return err
		}
	}
	opts.Approve = func(ctx context.Context, added []catalog.Card) (assets.Options, bool, error) {
		printNewCards(out, added)
		if flags.noDownload {
			return settings.opts, false, nil
		}
		if interactive {
			return promptDownload(ctx, settings)
		}
		return settings.opts, settings.enabled, nil
	}

	var syncer *cardsync.Syncer
	store := catalog.NewStore(catalogPath, logger)
	fetcher := fetch.New(cfg.Timeout(), cfg.Source.UserAgent)
	if flags.noHistory {
		syncer = cardsync.New(store, fetcher, nil, logger)
	} else {
		history, err := cmdCtx.openHistory()
		if err != nil {
			logging.WarnWithContext(logger, "history ledger unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will not be recorded"))
			history = nil
		}
		if history != nil {
			defer history.Close()
		}
		syncer = cardsync.New(store, fetcher, history, logger)
	}

	res, err := syncer.Run(ctx, opts)
	if err != nil {
		return err
	}
	printSummary(out, catalogPath, res)
	return nil
}

func resolveDownloadSettings(cmd *cobra.Command, cfg *config.Config, flags *syncFlags) (downloadSettings, error) {
	format, err := assets.ParseFormat(cfg.Download.Format)
	if err != nil {
		return downloadSettings{}, err
	}
	s := downloadSettings{
		enabled: cfg.Download.Enabled,
		opts: assets.Options{
			Dir:        cfg.Download.Dir,
			Delay:      cfg.Delay(),
			Optimize:   cfg.Download.Optimize,
			MaxWidth:   cfg.Download.MaxWidth,
			MaxHeight:  cfg.Download.MaxHeight,
			Quality:    cfg.Download.Quality,
			Format:     format,
			StartIndex: 1,
		},
	}

	changed := cmd.Flags().Changed
	if changed("download") {
		s.enabled = flags.download
	}
	if flags.noDownload {
		s.enabled = false
	}
	if flags.noOptimize {
		s.opts.Optimize = false
	}
	if changed("dir") {
		if strings.TrimSpace(flags.dir) == "" {
			return s, fmt.Errorf("--dir must not be empty")
		}
		s.opts.Dir = flags.dir
	}
	if changed("format") {
		if s.opts.Format, err = assets.ParseFormat(flags.format); err != nil {
			return s, err
		}
	}
	if changed("max-width") {
		if flags.maxWidth <= 0 {
			return s, fmt.Errorf("--max-width must be positive")
		}
		s.opts.MaxWidth = flags.maxWidth
	}
	if changed("max-height") {
		if flags.maxHeight <= 0 {
			return s, fmt.Errorf("--max-height must be positive")
		}
		s.opts.MaxHeight = flags.maxHeight
	}
	if changed("quality") {
		if err := config.ValidateQuality(flags.quality); err != nil {
			return s, err
		}
		s.opts.Quality = flags.quality
	}
	if changed("delay") {
		if flags.delay < 0 {
			return s, fmt.Errorf("--delay must not be negative")
		}
		s.opts.Delay = flags.delay
	}
	return s, nil
}

func printNewCards(out io.Writer, added []catalog.Card) {
	fmt.Fprintf(out, "Found %d new card(s):\n", len(added))
	for _, c := range added {
		fmt.Fprintf(out, "  - %s\n", c.Name)
	}
}

func printSummary(out io.Writer, catalogPath string, res *cardsync.Result) {
	if len(res.New) == 0 {
		fmt.Fprintln(out, "No new cards found.")
	}
	facts := [][2]string{
		{"Total cards", fmt.Sprintf("%d", res.Summary.Total)},
		{"New cards added", fmt.Sprintf("%d", res.Summary.Added)},
		{"Cards with local images", fmt.Sprintf("%d", res.Summary.WithImages)},
		{"Filter mode", res.FilterMode},
		{"Images downloaded", yesNo(res.Downloaded)},
	}
	if res.Downloaded {
		facts = append(facts,
			[2]string{"Downloads succeeded", fmt.Sprintf("%d", res.Report.Downloaded)},
			[2]string{"Downloads failed", fmt.Sprintf("%d", res.Report.Failed)},
			[2]string{"Bytes written", humanize.Bytes(uint64(res.Report.BytesOut))},
		)
	}
	facts = append(facts, [2]string{"Catalog", catalogPath})
	fmt.Fprintln(out, renderFacts("Sync summary", facts))
}
