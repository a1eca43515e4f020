package config

import "strings"

// normalize trims string fields and fills blanks left by a partial config file.
func (c *Config) normalize() {
	c.Source.URL = strings.TrimSpace(c.Source.URL)
	c.Source.Origin = strings.TrimRight(strings.TrimSpace(c.Source.Origin), "/")
	c.Source.UserAgent = strings.TrimSpace(c.Source.UserAgent)
	if c.Source.URL == "" {
		c.Source.URL = defaultSourceURL
	}
	if c.Source.Origin == "" {
		c.Source.Origin = defaultOrigin
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = defaultUserAgent
	}
	if c.Source.TimeoutSeconds == 0 {
		c.Source.TimeoutSeconds = defaultTimeoutSeconds
	}

	c.Catalog.Path = strings.TrimSpace(c.Catalog.Path)
	if c.Catalog.Path == "" {
		c.Catalog.Path = defaultCatalogPath
	}

	c.Download.Dir = strings.TrimSpace(c.Download.Dir)
	if c.Download.Dir == "" {
		c.Download.Dir = defaultDownloadDir
	}
	c.Download.Format = NormalizeFormat(c.Download.Format)
	if c.Download.Format == "" {
		c.Download.Format = defaultFormat
	}

	c.History.Path = strings.TrimSpace(c.History.Path)
	if c.History.Path == "" {
		c.History.Path = defaultHistoryPath
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

// NormalizeFormat lower-cases an output format and folds "jpg" into "jpeg".
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "jpg" {
		return "jpeg"
	}
	return f
}
