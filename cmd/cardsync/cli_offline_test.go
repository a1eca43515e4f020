package main_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func TestCLI_OfflineServer(t *testing.T) {
	tmp := t.TempDir()

	// Load fixture content. Try both project-root-relative and package-relative paths.
	fixture := filepath.Join("..", "..", "pkg", "extract", "testdata", "support_cards.html")
	body, err := os.ReadFile(fixture)
	if err != nil {
		body, err = os.ReadFile("pkg/extract/testdata/support_cards.html")
	}
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}))
	defer srv.Close()

	catalogPath := filepath.Join(tmp, "support_cards.json")
	dbPath := filepath.Join(tmp, "cardsync.db")
	configPath := filepath.Join(tmp, "cardsync.toml")
	config := fmt.Sprintf("[source]\nurl = %q\n\n[catalog]\npath = %q\n\n[history]\npath = %q\n", srv.URL, catalogPath, dbPath)
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	bin := filepath.Join(tmp, "cardsync.bin")
	build := exec.Command("go", "build", "-o", bin, "github.com/Lusbox/umasparkmaker/cmd/cardsync")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		t.Fatalf("failed to build CLI: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, "--config", configPath, "sync", "--yes", "--no-download")
	cmd.Dir = tmp
	cmd.Env = append(os.Environ(), "HOME="+tmp)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		t.Fatalf("cli timed out, output:\n%s", out)
	}
	if err != nil {
		t.Fatalf("cli failed: %v\noutput:\n%s", err, out)
	}

	outStr := string(out)
	if !strings.Contains(outStr, "Total cards") {
		t.Fatalf("unexpected CLI output; expected summary table, got:\n%s", outStr)
	}

	raw, err := os.ReadFile(catalogPath)
	if err != nil {
		t.Fatalf("catalog not written: %v", err)
	}
	var cards []map[string]any
	if err := json.Unmarshal(raw, &cards); err != nil {
		t.Fatalf("catalog is not a JSON array: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 SSR cards, got %d:\n%s", len(cards), raw)
	}
	if cards[0]["name"] != "SSR Special Week (Special Dreamer)" {
		t.Errorf("first card = %v", cards[0]["name"])
	}

	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer dbConn.Close()

	var cnt int
	if err := dbConn.QueryRow("SELECT COUNT(*) FROM runs WHERE status = 'succeeded'").Scan(&cnt); err != nil {
		t.Fatalf("db query failed: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 succeeded run in history, found %d", cnt)
	}
}
