package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testListPage = `<!DOCTYPE html>
<html><head><title>Game:List of Support Cards - Umamusume Wiki</title></head>
<body><div id="mw-content-text">
<span typeof="mw:File"><a href="/Game:Special_Week" title="Game:SSR Special Week"><img src="/w/thumb.php?f=sw.png&amp;width=100" srcset="/w/thumb.php?f=sw.png&amp;width=200 2x" /></a></span>
<span typeof="mw:File"><a href="/Game:Kitasan_Black" title="Game:SSR Kitasan Black"><img src="/w/thumb.php?f=kb.png&amp;width=100" /></a></span>
<span typeof="mw:File"><a href="/Game:Silence_Suzuka" title="Game:SR Silence Suzuka"><img src="/w/thumb.php?f=ss.png&amp;width=100" /></a></span>
</div></body></html>`

type cliTestEnv struct {
	dir        string
	configPath string
	catalog    string
	images     string
	history    string
	server     *httptest.Server
}

func newWikiTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	pngBytes := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Game:List_of_Support_Cards":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(testListPage))
		case "/w/thumb.php":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{
		dir:        base,
		configPath: filepath.Join(base, "cardsync.toml"),
		catalog:    filepath.Join(base, "support_cards.json"),
		images:     filepath.Join(base, "images"),
		history:    filepath.Join(base, "cardsync.db"),
		server:     newWikiTestServer(t),
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[source]
url = %q
origin = %q
ssr_only = true
timeout_seconds = 5

[catalog]
path = %q

[download]
enabled = false
dir = %q
delay_ms = 0

[history]
enabled = true
path = %q

[logging]
level = "error"
`, env.server.URL+"/Game:List_of_Support_Cards", env.server.URL, env.catalog, env.images, env.history)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
