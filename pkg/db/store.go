package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// CreateRun inserts a run in the running state.
func CreateRun(db DBExecutor, r Run) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("run id must be non-empty")
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := db.Exec(`INSERT INTO runs (id, started_at, source_url, page_title, filter_mode, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.SourceURL, nullableString(r.PageTitle), r.FilterMode, StatusRunning)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records totals and the final status of a run. A non-nil res.Err
// marks the run failed.
func FinishRun(db DBExecutor, id string, res RunResult) error {
	status, errText := StatusSucceeded, ""
	if res.Err != nil {
		status, errText = StatusFailed, res.Err.Error()
	}
	out, err := db.Exec(`UPDATE runs SET
		finished_at = ?,
		page_title = COALESCE(NULLIF(?, ''), page_title),
		total = ?, new_count = ?, with_images = ?, downloaded = ?, failed = ?,
		status = ?, error = ?
		WHERE id = ?`,
		time.Now().UTC(), res.PageTitle,
		res.Total, res.NewCount, res.WithImages, res.Downloaded, res.Failed,
		status, nullableString(errText), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecordAsset appends an asset attempt to a run.
func RecordAsset(db DBExecutor, a Asset) error {
	if a.RunID == "" {
		return fmt.Errorf("asset run id must be non-empty")
	}
	if a.RecordedAt.IsZero() {
		a.RecordedAt = time.Now()
	}
	_, err := db.Exec(`INSERT INTO assets
		(run_id, seq, card_name, image_url, local_path, outcome, transcoded, bytes_in, bytes_out, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Seq, a.CardName, a.ImageURL, nullableString(a.LocalPath), a.Outcome,
		a.Transcoded, a.BytesIn, a.BytesOut, nullableString(a.Error), a.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func ListRuns(db DBExecutor, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, source_url, page_title, filter_mode,
		total, new_count, with_images, downloaded, failed, status, error
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		var title, errText sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.SourceURL, &title, &r.FilterMode,
			&r.Total, &r.NewCount, &r.WithImages, &r.Downloaded, &r.Failed, &r.Status, &errText); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		if title.Valid {
			r.PageTitle = title.String
		}
		if errText.Valid {
			r.Error = errText.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveRunID expands a run ID prefix to the full ID. The prefix must match
// exactly one run.
func ResolveRunID(db DBExecutor, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("run id must be non-empty")
	}
	rows, err := db.Query(`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no run matches %q", prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("run id %q is ambiguous", prefix)
	}
}

// AssetsForRun returns the asset attempts of a run in the order they were made.
func AssetsForRun(db DBExecutor, runID string) ([]Asset, error) {
	rows, err := db.Query(`SELECT run_id, seq, card_name, image_url, local_path, outcome,
		transcoded, bytes_in, bytes_out, error, recorded_at
		FROM assets WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		var local, errText sql.NullString
		if err := rows.Scan(&a.RunID, &a.Seq, &a.CardName, &a.ImageURL, &local, &a.Outcome,
			&a.Transcoded, &a.BytesIn, &a.BytesOut, &errText, &a.RecordedAt); err != nil {
			return nil, err
		}
		if local.Valid {
			a.LocalPath = local.String
		}
		if errText.Valid {
			a.Error = errText.String
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullableString returns nil for "" else the value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
