package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/sitescraper/internal/mirror"
	"github.com/nao1215/sitescraper/internal/model"
)

const site = "https://example.com"

// testSite is a small link graph:
//
//	/ -> /a /b other.com
//	/a -> / /b /c
//	/b -> /a /d
//	/c -> /e
func testSite() map[string]string {
	return map[string]string{
		site + "/":  `<title>Home</title><h1>Home</h1><a href="/a">A</a><a href="b">B</a><a href="https://other.com/x">X</a>`,
		site + "/a": `<h1>A</h1><a href="/">Home</a><a href="/b">B</a><a href="/c">C</a>`,
		site + "/b": `<h1>B</h1><a href="/a">A</a><a href="/d">D</a>`,
		site + "/c": `<h1>C</h1><a href="/e">E</a>`,
		site + "/d": `<h1>D</h1>`,
		site + "/e": `<h1>E</h1>`,
	}
}

// memSaver keeps saved pages in memory.
type memSaver struct {
	mu    sync.Mutex
	saved map[string]model.PageResult
	fail  map[string]error
}

func newMemSaver() *memSaver {
	return &memSaver{saved: make(map[string]model.PageResult), fail: make(map[string]error)}
}

func (s *memSaver) Save(_ context.Context, page model.PageResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[page.URL]; ok {
		return "", err
	}
	s.saved[page.URL] = page
	return "mem/" + page.URL, nil
}

func (s *memSaver) get(url string) (model.PageResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.saved[url]
	return p, ok
}

// reversingRunner returns every level in reverse completion order.
type reversingRunner struct {
	inner Runner
}

func (r reversingRunner) Run(ctx context.Context, urls []string) []model.PageResult {
	results := r.inner.Run(ctx, urls)
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results
}

// cancellingRunner cancels the crawl once the given level has been fetched.
type cancellingRunner struct {
	inner  Runner
	cancel context.CancelFunc
	after  int
	calls  int
}

func (r *cancellingRunner) Run(ctx context.Context, urls []string) []model.PageResult {
	results := r.inner.Run(ctx, urls)
	if r.calls == r.after {
		r.cancel()
	}
	r.calls++
	return results
}

// recordingObserver records every callback as a string.
type recordingObserver struct {
	events []string
}

func (o *recordingObserver) LevelStarted(_ context.Context, depth, size int) {
	o.events = append(o.events, fmt.Sprintf("start %d %d", depth, size))
}

func (o *recordingObserver) PageProcessed(_ context.Context, record model.PageRecord) {
	o.events = append(o.events, "page "+strings.TrimPrefix(record.URL, site))
}

func (o *recordingObserver) LevelFinished(_ context.Context, level model.LevelSummary) {
	o.events = append(o.events, fmt.Sprintf("finish %d %d/%d", level.Depth, level.Saved, level.Queued))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(fetcher Fetcher) Runner {
	worker := NewWorker(fetcher, nil, WithWorkerLogger(quietLogger()))
	return NewDispatcher(worker.Do, 4, WithDispatcherLogger(quietLogger()))
}

func pageURLs(summary *model.CrawlSummary) []string {
	urls := make([]string, 0, len(summary.Pages))
	for _, p := range summary.Pages {
		urls = append(urls, strings.TrimPrefix(p.URL, site))
	}
	return urls
}

func requestCounts(fetcher *fakeFetcher) map[string]int {
	counts := make(map[string]int)
	for _, u := range fetcher.Requests() {
		counts[strings.TrimPrefix(u, site)]++
	}
	return counts
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestEngine_Crawl tests the breadth-first traversal.
func TestEngine_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("depth bound", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(1), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := pageURLs(summary); !equalStrings(got, []string{"/", "/a", "/b"}) {
			t.Errorf("unexpected pages %v", got)
		}
		if len(summary.Levels) != 2 {
			t.Errorf("expected 2 levels, got %d", len(summary.Levels))
		}
		counts := requestCounts(fetcher)
		if len(counts) != 3 {
			t.Errorf("expected 3 fetched URLs, got %v", counts)
		}
	})

	t.Run("each url is fetched at most once", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(10), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for u, n := range requestCounts(fetcher) {
			if n != 1 {
				t.Errorf("%s fetched %d times", u, n)
			}
		}
		if len(summary.Pages) != 6 {
			t.Errorf("expected 6 pages, got %v", pageURLs(summary))
		}
		if len(summary.Levels) != 4 {
			t.Errorf("expected traversal to stop after 4 levels, got %d", len(summary.Levels))
		}
	})

	t.Run("never leaves the seed host", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(10), WithEngineLogger(quietLogger()))

		if _, err := engine.Crawl(context.Background(), site+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, u := range fetcher.Requests() {
			if !strings.HasPrefix(u, site+"/") {
				t.Errorf("fetched off-site URL %s", u)
			}
		}
	})

	t.Run("max depth zero fetches only the seed", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		saver := newMemSaver()
		engine := NewEngine(newTestRunner(fetcher), saver, WithMaxDepth(0), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fetcher.Requests()) != 1 || len(summary.Pages) != 1 {
			t.Errorf("expected only the seed, fetched %v", fetcher.Requests())
		}
		if _, ok := saver.get(site + "/"); !ok {
			t.Error("expected seed to be saved")
		}
	})

	t.Run("negative depth is treated as zero", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(-3), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.MaxDepth != 0 || len(summary.Pages) != 1 {
			t.Errorf("expected seed-only crawl, got %+v", summary)
		}
	})

	t.Run("order follows the frontier, not completion", func(t *testing.T) {
		t.Parallel()

		want := []string{"/", "/a", "/b", "/c", "/d", "/e"}
		for i := 0; i < 5; i++ {
			fetcher := &fakeFetcher{pages: testSite()}
			runner := reversingRunner{inner: newTestRunner(fetcher)}
			engine := NewEngine(runner, newMemSaver(), WithMaxDepth(10), WithEngineLogger(quietLogger()))

			summary, err := engine.Crawl(context.Background(), site+"/")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := pageURLs(summary); !equalStrings(got, want) {
				t.Fatalf("run %d: expected %v, got %v", i, want, got)
			}
		}
	})

	t.Run("failed seed is saved empty and ends the crawl", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{errs: map[string]error{site + "/": errors.New("connection reset")}}
		saver := newMemSaver()
		engine := NewEngine(newTestRunner(fetcher), saver, WithMaxDepth(3), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("a failed page must not fail the crawl: %v", err)
		}
		if len(summary.Levels) != 1 || len(summary.Pages) != 1 {
			t.Fatalf("expected one level with one page, got %+v", summary)
		}
		if !summary.Pages[0].Failed || summary.TotalFailed() != 1 {
			t.Errorf("expected seed recorded as failed, got %+v", summary.Pages[0])
		}
		page, ok := saver.get(site + "/")
		if !ok || page.Markdown != "" {
			t.Errorf("expected empty page to be saved, got %+v", page)
		}
	})

	t.Run("failed page in the middle is not retried", func(t *testing.T) {
		t.Parallel()

		pages := testSite()
		delete(pages, site+"/b")
		fetcher := &fakeFetcher{pages: pages}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(10), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts := requestCounts(fetcher)
		if counts["/b"] != 1 {
			t.Errorf("expected /b to be tried once, got %d", counts["/b"])
		}
		if counts["/d"] != 0 {
			t.Error("expected /d to stay undiscovered")
		}
		failed := summary.FailedPages()
		if len(failed) != 1 || failed[0].StatusCode != http.StatusNotFound {
			t.Errorf("expected one 404 page, got %+v", failed)
		}
	})

	t.Run("save errors are counted and the crawl continues", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		saver := newMemSaver()
		saver.fail[site+"/a"] = errors.New("disk full")
		engine := NewEngine(newTestRunner(fetcher), saver, WithMaxDepth(10), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.SaveErrors != 1 {
			t.Errorf("expected 1 save error, got %d", summary.SaveErrors)
		}
		if summary.Pages[1].URL != site+"/a" || !summary.Pages[1].SaveFailed {
			t.Errorf("expected /a to be marked unsaved, got %+v", summary.Pages[1])
		}
		if _, ok := saver.get(site + "/c"); !ok {
			t.Error("expected links of the unsaved page to be followed")
		}
		if summary.Levels[1].Saved != 1 {
			t.Errorf("expected 1 saved page at depth 1, got %d", summary.Levels[1].Saved)
		}
	})

	t.Run("host comparison ignores case", func(t *testing.T) {
		t.Parallel()

		pages := map[string]string{
			site + "/":              `<a href="https://EXAMPLE.com/">self</a><a href="https://Example.com/x">x</a>`,
			"https://Example.com/x": `<p>x</p>`,
		}
		fetcher := &fakeFetcher{pages: pages}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(2), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(summary.Pages) != 2 {
			t.Errorf("expected seed and /x, got %v", summary.URLs())
		}
	})

	t.Run("fragments are distinct pages", func(t *testing.T) {
		t.Parallel()

		pages := map[string]string{
			site + "/":              `<a href="/guide">g</a><a href="/guide#install">i</a><a href="#top">top</a>`,
			site + "/guide":         `<p>guide</p>`,
			site + "/guide#install": `<p>guide</p>`,
			site + "/#top":          `<p>home</p>`,
		}
		fetcher := &fakeFetcher{pages: pages}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithMaxDepth(1), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(context.Background(), site+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/", "/guide", "/guide#install", "/#top"}
		if got := pageURLs(summary); !equalStrings(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("observers see every step in order", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: testSite()}
		observer := &recordingObserver{}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(),
			WithMaxDepth(1),
			WithObservers(observer, nil),
			WithEngineLogger(quietLogger()),
		)

		if _, err := engine.Crawl(context.Background(), site+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{
			"start 0 1", "page /", "finish 0 1/1",
			"start 1 2", "page /a", "page /b", "finish 1 2/2",
		}
		if !equalStrings(observer.events, want) {
			t.Errorf("expected %v, got %v", want, observer.events)
		}
	})
}

// TestEngine_CrawlErrors tests the two ways Crawl can fail.
func TestEngine_CrawlErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(newTestRunner(&fakeFetcher{}), newMemSaver(), WithEngineLogger(quietLogger()))
		summary, err := engine.Crawl(context.Background(), "not a url")
		if !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
		if summary != nil {
			t.Error("expected nil summary")
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fetcher := &fakeFetcher{pages: testSite()}
		engine := NewEngine(newTestRunner(fetcher), newMemSaver(), WithEngineLogger(quietLogger()))
		summary, err := engine.Crawl(ctx, site+"/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if summary == nil || !summary.Interrupted || len(summary.Pages) != 0 {
			t.Errorf("expected empty interrupted summary, got %+v", summary)
		}
		if len(fetcher.Requests()) != 0 {
			t.Error("expected no fetches")
		}
	})

	t.Run("cancelled mid-crawl keeps fetched pages", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		fetcher := &fakeFetcher{pages: testSite()}
		saver := newMemSaver()
		runner := &cancellingRunner{inner: newTestRunner(fetcher), cancel: cancel, after: 0}
		engine := NewEngine(runner, saver, WithMaxDepth(5), WithEngineLogger(quietLogger()))

		summary, err := engine.Crawl(ctx, site+"/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !summary.Interrupted {
			t.Error("expected summary to be marked interrupted")
		}
		if len(summary.Pages) != 1 || len(summary.Levels) != 1 {
			t.Errorf("expected only the seed level, got %+v", summary)
		}
		if page, ok := saver.get(site + "/"); !ok || page.Markdown == "" {
			t.Error("expected the fetched seed to be saved despite cancellation")
		}
		if summary.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})
}

// TestEngine_Integration crawls a real HTTP server into a temp directory.
func TestEngine_Integration(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Home</title></head><body>
<h1>Welcome</h1><p>Start <a href="/old">here</a>.</p>
<a href="/missing">broken</a></body></html>`) //nolint:errcheck
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs/":
			_, _ = io.WriteString(w, `<h2>Docs</h2><a href="guide">Guide</a>`) //nolint:errcheck
		case "/docs/guide":
			_, _ = io.WriteString(w, `<h2>Guide</h2><pre>go run .</pre>`) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	outputDir := t.TempDir()
	worker := NewWorker(NewHTTPFetcher(server.Client()), nil, WithWorkerLogger(quietLogger()))
	dispatcher := NewDispatcher(worker.Do, 2, WithDispatcherLogger(quietLogger()))
	engine := NewEngine(dispatcher, mirror.NewWriter(outputDir), WithMaxDepth(2), WithEngineLogger(quietLogger()))

	summary, err := engine.Crawl(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.OutputDir != outputDir {
		t.Errorf("expected output dir %q, got %q", outputDir, summary.OutputDir)
	}

	want := []string{server.URL + "/", server.URL + "/old", server.URL + "/missing", server.URL + "/docs/guide"}
	got := make([]string, 0, len(summary.Pages))
	for _, p := range summary.Pages {
		got = append(got, p.URL)
	}
	if !equalStrings(got, want) {
		t.Fatalf("expected pages %v, got %v", want, got)
	}

	readPage := func(rawURL string) string {
		t.Helper()
		path, err := mirror.PathFor(outputDir, rawURL)
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path) //nolint:gosec // test file path
		if err != nil {
			t.Fatalf("expected %s to be mirrored: %v", rawURL, err)
		}
		return string(data)
	}

	home := readPage(server.URL + "/")
	if !strings.HasPrefix(home, "# "+server.URL+"/\n\n") || !strings.Contains(home, "# Welcome") {
		t.Errorf("unexpected home page:\n%s", home)
	}

	// The redirect target's relative link resolves against /docs/.
	if guide := readPage(server.URL + "/docs/guide"); !strings.Contains(guide, "go run .") {
		t.Errorf("unexpected guide page:\n%s", guide)
	}

	if missing := readPage(server.URL + "/missing"); missing != "# "+server.URL+"/missing\n\n" {
		t.Errorf("expected empty body for failed page, got %q", missing)
	}
	if summary.TotalFailed() != 1 {
		t.Errorf("expected 1 failed page, got %d", summary.TotalFailed())
	}
}

// TestEngine_CrossHostRedirect crawls a seed that redirects to another host.
// Relative links on the redirect target stay on the seed host.
func TestEngine_CrossHostRedirect(t *testing.T) {
	t.Parallel()

	var aboutRequests sync.Map
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<h1>Moved</h1><a href="/about">About</a>`) //nolint:errcheck
	}))
	defer target.Close()

	seed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/about" {
			aboutRequests.Store(r.URL.Path, true)
			_, _ = io.WriteString(w, `<h1>About</h1>`) //nolint:errcheck
			return
		}
		http.Redirect(w, r, target.URL+r.URL.Path, http.StatusMovedPermanently)
	}))
	defer seed.Close()

	worker := NewWorker(NewHTTPFetcher(seed.Client()), nil, WithWorkerLogger(quietLogger()))
	dispatcher := NewDispatcher(worker.Do, 2, WithDispatcherLogger(quietLogger()))
	engine := NewEngine(dispatcher, newMemSaver(), WithMaxDepth(1), WithEngineLogger(quietLogger()))

	summary, err := engine.Crawl(context.Background(), seed.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{seed.URL + "/", seed.URL + "/about"}
	got := make([]string, 0, len(summary.Pages))
	for _, p := range summary.Pages {
		got = append(got, p.URL)
	}
	if !equalStrings(got, want) {
		t.Fatalf("expected pages %v, got %v", want, got)
	}
	if _, ok := aboutRequests.Load("/about"); !ok {
		t.Error("expected /about to be fetched from the seed host")
	}
}
