package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/Lusbox/umasparkmaker/pkg/assets"
	"github.com/Lusbox/umasparkmaker/pkg/config"
)

func stdioIsTerminal() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func promptFilter(ctx context.Context, ssrOnly bool) (bool, error) {
	choice := ssrOnly
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[bool]().
			Title("Which cards should be synced?").
			Options(
				huh.NewOption("SSR cards only", true),
				huh.NewOption("All cards", false),
			).
			Value(&choice),
	)).RunWithContext(ctx)
	if err != nil {
		return ssrOnly, fmt.Errorf("filter prompt: %w", err)
	}
	return choice, nil
}

// promptDownload asks whether to fetch images for the new cards and, if so,
// where to put them and how to optimise them. settings supplies the defaults.
func promptDownload(ctx context.Context, settings downloadSettings) (assets.Options, bool, error) {
	opts := settings.opts
	download := true
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Download images for the new cards?").
			Affirmative("Yes").
			Negative("No").
			Value(&download),
	)).RunWithContext(ctx); err != nil {
		return opts, false, fmt.Errorf("download prompt: %w", err)
	}
	if !download {
		return opts, false, nil
	}

	dir := opts.Dir
	optimize := opts.Optimize
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Download directory").
			Value(&dir).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("directory is required")
				}
				return nil
			}),
		huh.NewConfirm().
			Title("Optimise images (resize and re-encode)?").
			Value(&optimize),
	)).RunWithContext(ctx); err != nil {
		return opts, false, fmt.Errorf("download prompt: %w", err)
	}
	opts.Dir = strings.TrimSpace(dir)
	opts.Optimize = optimize
	if !optimize {
		return opts, true, nil
	}

	format := opts.Format
	width := strconv.Itoa(opts.MaxWidth)
	height := strconv.Itoa(opts.MaxHeight)
	quality := strconv.Itoa(opts.Quality)
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[assets.Format]().
			Title("Output format").
			Options(
				huh.NewOption("WebP (smallest)", assets.WebP),
				huh.NewOption("JPEG", assets.JPEG),
				huh.NewOption("PNG (lossless)", assets.PNG),
			).
			Value(&format),
		huh.NewInput().Title("Maximum width").Value(&width).Validate(validatePositive),
		huh.NewInput().Title("Maximum height").Value(&height).Validate(validatePositive),
		huh.NewInput().Title("Quality (1-100)").Value(&quality).Validate(validateQuality),
	)).RunWithContext(ctx); err != nil {
		return opts, false, fmt.Errorf("optimisation prompt: %w", err)
	}

	opts.Format = format
	opts.MaxWidth, _ = strconv.Atoi(strings.TrimSpace(width))
	opts.MaxHeight, _ = strconv.Atoi(strings.TrimSpace(height))
	opts.Quality, _ = strconv.Atoi(strings.TrimSpace(quality))
	return opts, true, nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive whole number")
	}
	return nil
}

func validateQuality(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a whole number")
	}
	return config.ValidateQuality(n)
}
