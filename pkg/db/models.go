package db

import "time"

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one synchronisation attempt.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	SourceURL  string
	PageTitle  string
	FilterMode string
	Total      int
	NewCount   int
	WithImages int
	Downloaded int
	Failed     int
	Status     string
	Error      string
}

// RunResult holds the values written when a run finishes.
type RunResult struct {
	PageTitle  string
	Total      int
	NewCount   int
	WithImages int
	Downloaded int
	Failed     int
	Err        error
}

// Asset is one image download attempt within a run.
type Asset struct {
	RunID      string
	Seq        int
	CardName   string
	ImageURL   string
	LocalPath  string
	Outcome    string
	Transcoded bool
	BytesIn    int64
	BytesOut   int64
	Error      string
	RecordedAt time.Time
}
