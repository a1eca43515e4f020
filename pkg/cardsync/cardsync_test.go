package cardsync

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lusbox/umasparkmaker/pkg/assets"
	"github.com/Lusbox/umasparkmaker/pkg/catalog"
	"github.com/Lusbox/umasparkmaker/pkg/db"
	"github.com/Lusbox/umasparkmaker/pkg/fetch"
	"github.com/Lusbox/umasparkmaker/pkg/logging"
)

const listPage = `<!DOCTYPE html>
<html><head><title>Game:List of Support Cards - Umamusume Wiki</title></head>
<body><div id="mw-content-text">
<p>Support cards currently available.</p>
<span typeof="mw:File"><a href="/Game:Special_Week" title="Game:SSR Special Week"><img src="/w/thumb.php?f=sw.png&amp;width=100" srcset="/w/thumb.php?f=sw.png&amp;width=200 2x" /></a></span>
<span typeof="mw:File"><a href="/Game:Kitasan_Black" title="Game:SSR Kitasan Black"><img src="/w/thumb.php?f=missing.png&amp;width=100" /></a></span>
<span typeof="mw:File"><a href="/Game:Silence_Suzuka" title="Game:SR Silence Suzuka"><img src="/w/thumb.php?f=ss.png&amp;width=100" /></a></span>
</div></body></html>`

type wikiServer struct {
	*httptest.Server
	pageHits  atomic.Int32
	imageHits atomic.Int32
	page      string
	status    int
}

func newWikiServer(t *testing.T, page string) *wikiServer {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 30, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.NRGBA{R: 90, G: 140, B: 200, A: 255})
		}
	}
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	pngBytes := buf.Bytes()

	ws := &wikiServer{page: page, status: http.StatusOK}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Game:List_of_Support_Cards":
			ws.pageHits.Add(1)
			if ws.status != http.StatusOK {
				http.Error(w, "unavailable", ws.status)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(ws.page))
		case "/w/thumb.php":
			ws.imageHits.Add(1)
			if r.URL.Query().Get("f") == "missing.png" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ws.Close)
	return ws
}

func (ws *wikiServer) options(filterSSR bool) Options {
	return Options{
		SourceURL: ws.URL + "/Game:List_of_Support_Cards",
		Origin:    ws.URL,
		FilterSSR: filterSSR,
	}
}

func approveInto(dir string) ApproveFunc {
	return func(_ context.Context, added []catalog.Card) (assets.Options, bool, error) {
		opts := assets.DefaultOptions()
		opts.Dir = dir
		opts.Delay = 0
		opts.Optimize = false
		return opts, true, nil
	}
}

func newTestSyncer(t *testing.T, catalogPath string) (*Syncer, *catalog.Store) {
	t.Helper()
	store := catalog.NewStore(catalogPath, logging.NewNop())
	return New(store, fetch.New(5*time.Second, "cardsync-test"), nil, logging.NewNop()), store
}

func TestVersion(t *testing.T) {
	if Version() == "" {
		t.Fatalf("Version() returned empty string")
	}
}

func TestRunFirstSyncWithPartialImageFailure(t *testing.T) {
	ws := newWikiServer(t, listPage)
	dir := t.TempDir()
	imagesDir := filepath.Join(dir, "images")
	s, store := newTestSyncer(t, filepath.Join(dir, "support_cards.json"))

	opts := ws.options(true)
	opts.Approve = approveInto(imagesDir)
	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Summary.Total != 2 || res.Summary.Added != 2 || res.Summary.WithImages != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if res.Report.Downloaded != 1 || res.Report.Failed != 1 {
		t.Errorf("report = %+v", res.Report)
	}
	if res.FilterMode != "SSR cards only" {
		t.Errorf("filter mode = %q", res.FilterMode)
	}
	if !strings.Contains(res.PageTitle, "List of Support Cards") {
		t.Errorf("page title = %q", res.PageTitle)
	}

	saved, err := store.Read()
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("saved %d cards, want 2", len(saved))
	}
	sw, kb := saved[0], saved[1]
	if sw.Name != "SSR Special Week" || kb.Name != "SSR Kitasan Black" {
		t.Fatalf("names = %q, %q", sw.Name, kb.Name)
	}
	if sw.Image != ws.URL+"/w/thumb.php?f=sw.png&width=200" {
		t.Errorf("image = %q", sw.Image)
	}
	if sw.Link != ws.URL+"/Game:Special_Week" {
		t.Errorf("link = %q", sw.Link)
	}
	wantPath := filepath.Join(imagesDir, "001_SSR Special Week.png")
	if !sw.LocalImage.Valid || sw.LocalImage.Path != wantPath {
		t.Errorf("local image = %+v, want %q", sw.LocalImage, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("image file: %v", err)
	}
	if kb.LocalImage.Valid {
		t.Errorf("failed download must not set local image: %+v", kb.LocalImage)
	}
}

func TestRunSecondSyncIsIdempotentAndKeepsLocalImages(t *testing.T) {
	ws := newWikiServer(t, listPage)
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "support_cards.json")
	s, _ := newTestSyncer(t, catalogPath)

	opts := ws.options(true)
	opts.Approve = approveInto(filepath.Join(dir, "images"))
	if _, err := s.Run(context.Background(), opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first, err := os.ReadFile(catalogPath)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	imagesBefore := ws.imageHits.Load()

	var asked bool
	opts.Approve = func(context.Context, []catalog.Card) (assets.Options, bool, error) {
		asked = true
		return assets.Options{}, false, nil
	}
	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(res.New) != 0 || asked {
		t.Errorf("second run found %d new cards (asked=%v)", len(res.New), asked)
	}
	if ws.imageHits.Load() != imagesBefore {
		t.Error("second run should not fetch images")
	}
	second, err := os.ReadFile(catalogPath)
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("catalog changed on idempotent run:\n%s\n---\n%s", first, second)
	}
}

func TestRunNumbersNewImagesAfterExistingCards(t *testing.T) {
	ws := newWikiServer(t, listPage)
	dir := t.TempDir()
	s, store := newTestSyncer(t, filepath.Join(dir, "support_cards.json"))
	if err := store.Save([]catalog.Card{{Name: "SSR Special Week", Image: "old", Link: "old"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	opts := ws.options(false)
	opts.Approve = approveInto(filepath.Join(dir, "images"))
	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.New) != 2 {
		t.Fatalf("new = %d, want 2", len(res.New))
	}
	saved, _ := store.Read()
	var suzuka catalog.Card
	for _, c := range saved {
		if c.Name == "SR Silence Suzuka" {
			suzuka = c
		}
		if c.Name == "SSR Special Week" && c.Image == "old" {
			t.Error("merge must refresh image of existing cards")
		}
	}
	// Kitasan Black is index 2 and fails; Silence Suzuka is index 3.
	want := filepath.Join(dir, "images", "003_SR Silence Suzuka.png")
	if suzuka.LocalImage.Path != want {
		t.Errorf("suzuka local image = %+v, want %q", suzuka.LocalImage, want)
	}
}

func TestRunSourceFailureLeavesCatalogUntouched(t *testing.T) {
	ws := newWikiServer(t, listPage)
	ws.status = http.StatusServiceUnavailable
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "support_cards.json")
	s, store := newTestSyncer(t, catalogPath)
	if err := store.Save([]catalog.Card{{Name: "Keep Me", Image: "i", Link: "l"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := os.ReadFile(catalogPath)

	_, err := s.Run(context.Background(), ws.options(true))
	if !errors.Is(err, ErrSourceFetch) {
		t.Fatalf("err = %v, want ErrSourceFetch", err)
	}
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want wrapped StatusError", err)
	}
	after, _ := os.ReadFile(catalogPath)
	if !bytes.Equal(before, after) {
		t.Error("catalog was modified after a source failure")
	}
}

func TestRunNoCardsIsFatal(t *testing.T) {
	ws := newWikiServer(t, `<html><body><p>maintenance</p></body></html>`)
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "support_cards.json")
	s, _ := newTestSyncer(t, catalogPath)

	if _, err := s.Run(context.Background(), ws.options(true)); !errors.Is(err, ErrNoCards) {
		t.Fatalf("err = %v, want ErrNoCards", err)
	}
	if _, err := os.Stat(catalogPath); !os.IsNotExist(err) {
		t.Errorf("catalog should not be written, stat err = %v", err)
	}
}

func TestRunFromFile(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "page.html")
	if err := os.WriteFile(pagePath, []byte(listPage), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}
	s, store := newTestSyncer(t, filepath.Join(dir, "support_cards.json"))

	res, err := s.Run(context.Background(), Options{FromFile: pagePath, FilterSSR: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Total != 3 {
		t.Fatalf("total = %d, want 3", res.Summary.Total)
	}
	saved, _ := store.Read()
	if saved[0].Link != "https://umamusu.wiki/Game:Special_Week" {
		t.Errorf("link = %q", saved[0].Link)
	}
}

func TestRunDeclinedDownloadsStillSaves(t *testing.T) {
	ws := newWikiServer(t, listPage)
	dir := t.TempDir()
	s, store := newTestSyncer(t, filepath.Join(dir, "support_cards.json"))

	opts := ws.options(true)
	opts.Approve = func(context.Context, []catalog.Card) (assets.Options, bool, error) {
		return assets.Options{}, false, nil
	}
	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Downloaded || ws.imageHits.Load() != 0 {
		t.Error("declined run should not download")
	}
	saved, _ := store.Read()
	if len(saved) != 2 {
		t.Fatalf("saved %d cards", len(saved))
	}
}

func TestRunCancelledDuringDownloadsDoesNotSave(t *testing.T) {
	ws := newWikiServer(t, listPage)
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "support_cards.json")
	s, _ := newTestSyncer(t, catalogPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := ws.options(true)
	opts.Approve = func(context.Context, []catalog.Card) (assets.Options, bool, error) {
		cancel()
		o := assets.DefaultOptions()
		o.Dir = filepath.Join(dir, "images")
		return o, true, nil
	}
	if _, err := s.Run(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(catalogPath); !os.IsNotExist(err) {
		t.Errorf("catalog should not be written, stat err = %v", err)
	}
}

func TestRunRejectsConcurrentSync(t *testing.T) {
	dir := t.TempDir()
	s, store := newTestSyncer(t, filepath.Join(dir, "support_cards.json"))
	unlock, err := store.Lock()
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	if _, err := s.Run(context.Background(), Options{FromFile: "unused.html"}); !errors.Is(err, catalog.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}

func TestRunWritesHistory(t *testing.T) {
	ws := newWikiServer(t, listPage)
	dir := t.TempDir()
	history, err := db.Open(filepath.Join(dir, "cardsync.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer history.Close()

	store := catalog.NewStore(filepath.Join(dir, "support_cards.json"), logging.NewNop())
	s := New(store, fetch.New(5*time.Second, ""), history, logging.NewNop())
	opts := ws.options(true)
	opts.Approve = approveInto(filepath.Join(dir, "images"))
	res, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := db.ListRuns(history, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	r := runs[0]
	if r.ID != res.RunID || r.Status != db.StatusSucceeded || r.Total != 2 || r.NewCount != 2 || r.WithImages != 1 {
		t.Errorf("run = %+v", r)
	}
	got, err := db.AssetsForRun(history, res.RunID)
	if err != nil {
		t.Fatalf("assets: %v", err)
	}
	if len(got) != 2 || got[0].Outcome != string(assets.OutcomeDownloaded) || got[1].Outcome != string(assets.OutcomeFetchFailed) {
		t.Errorf("assets = %+v", got)
	}

	ws.status = http.StatusBadGateway
	if _, err := s.Run(context.Background(), ws.options(true)); err == nil {
		t.Fatal("expected source failure")
	}
	runs, _ = db.ListRuns(history, 1)
	if runs[0].Status != db.StatusFailed || runs[0].Error == "" {
		t.Errorf("failed run = %+v", runs[0])
	}
}
