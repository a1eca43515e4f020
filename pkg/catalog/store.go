package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/Lusbox/umasparkmaker/pkg/logging"
)

// ErrLocked is returned by Lock when another process holds the catalog.
var ErrLocked = errors.New("catalog is locked by another cardsync process")

// Store reads and writes the JSON catalog file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for the catalog at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "catalog"),
	}
}

// Path returns the catalog file location.
func (s *Store) Path() string { return s.path }

// Read parses the catalog file. A missing or empty file yields no cards and
// no error; malformed content is an error.
func (s *Store) Read() ([]Card, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []Card
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", s.path, err)
	}

	cards := make([]Card, 0, len(raw))
	for _, c := range raw {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Load returns the persisted catalog, degrading to an empty catalog when the
// file cannot be read or parsed.
func (s *Store) Load() []Card {
	cards, err := s.Read()
	if err != nil {
		logging.WarnWithContext(s.logger, "failed to load existing catalog", "catalog_load_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix or remove the catalog file"),
			logging.String(logging.FieldImpact, "every extracted card is treated as new"))
		return []Card{}
	}
	if cards == nil {
		cards = []Card{}
	}
	s.logger.Debug("loaded catalog", logging.String("path", s.path), logging.Int("card_count", len(cards)))
	return cards
}

// Save overwrites the catalog with cards, writing through a temp file so a
// failed write never truncates the previous catalog.
func (s *Store) Save(cards []Card) error {
	if cards == nil {
		cards = []Card{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cards); err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create catalog directory: %w", err)
		}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace catalog: %w", err)
	}

	s.logger.Info("saved catalog", logging.String("path", s.path), logging.Int("card_count", len(cards)))
	return nil
}

// Lock takes an advisory lock next to the catalog file. The returned func
// releases it.
func (s *Store) Lock() (func() error, error) {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	lock := flock.New(s.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock.Unlock, nil
}
