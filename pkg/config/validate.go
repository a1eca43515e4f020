package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSource() error {
	u, err := url.Parse(c.Source.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.url must be an absolute URL, got %q", c.Source.URL)
	}
	o, err := url.Parse(c.Source.Origin)
	if err != nil || o.Scheme == "" || o.Host == "" {
		return fmt.Errorf("source.origin must be an absolute URL, got %q", c.Source.Origin)
	}
	if c.Source.TimeoutSeconds < 0 {
		return errors.New("source.timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if err := ValidateFormat(c.Download.Format); err != nil {
		return fmt.Errorf("download.format: %w", err)
	}
	if c.Download.DelayMS < 0 {
		return errors.New("download.delay_ms must be non-negative")
	}
	if c.Download.MaxWidth <= 0 || c.Download.MaxHeight <= 0 {
		return errors.New("download.max_width and download.max_height must be positive")
	}
	if err := ValidateQuality(c.Download.Quality); err != nil {
		return fmt.Errorf("download.quality: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return errors.New("logging.max_size_mb and logging.max_backups must be non-negative")
	}
	return nil
}

// ValidateFormat reports whether format is one of the supported encodings.
func ValidateFormat(format string) error {
	switch NormalizeFormat(format) {
	case "webp", "jpeg", "png":
		return nil
	default:
		return fmt.Errorf("unsupported image format %q (want webp, jpeg or png)", format)
	}
}

// ValidateQuality checks the 1-100 encoder quality range.
func ValidateQuality(q int) error {
	if q < 1 || q > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", q)
	}
	return nil
}
