package config

const (
	defaultSourceURL      = "https://umamusu.wiki/Game:List_of_Support_Cards"
	defaultOrigin         = "https://umamusu.wiki"
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeoutSeconds = 30
	defaultCatalogPath    = "support_cards.json"
	defaultDownloadDir    = "images"
	defaultDelayMS        = 500
	defaultFormat         = "webp"
	defaultMaxWidth       = 800
	defaultMaxHeight      = 600
	defaultQuality        = 85
	defaultHistoryPath    = "cardsync.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultLogMaxSizeMB   = 10
	defaultLogMaxBackups  = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Source: Source{
			URL:            defaultSourceURL,
			Origin:         defaultOrigin,
			SSROnly:        true,
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Catalog: Catalog{
			Path: defaultCatalogPath,
		},
		Download: Download{
			Enabled:   false,
			Dir:       defaultDownloadDir,
			DelayMS:   defaultDelayMS,
			Optimize:  true,
			Format:    defaultFormat,
			MaxWidth:  defaultMaxWidth,
			MaxHeight: defaultMaxHeight,
			Quality:   defaultQuality,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}
