package relocate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testDownloader(workers int) *Downloader {
	return &Downloader{
		Fetcher: NewFetcher(),
		Workers: workers,
		Retry:   immediateRetry(3),
		Logger:  quietLogger(),
		Quiet:   true,
	}
}

func outcomes(results []FetchResult) map[FetchOutcome]int {
	counts := map[FetchOutcome]int{}
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

func TestFetchAllMirrorsRelativePaths(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("image bytes for " + r.URL.Path))
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	dir := t.TempDir()
	m, err := BuildURLMap([]string{
		"http://" + host + "/wp-content/uploads/2020/x.jpg",
		"http://" + host + "/wp-content/uploads/2020/x-150x150.jpg",
	}, host, "https://cdn.example.net/blog", dir)
	if err != nil {
		t.Fatalf("BuildURLMap failed: %v", err)
	}

	results, err := testDownloader(2).FetchAll(context.Background(), m)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if got := outcomes(results)[Downloaded]; got != 2 {
		t.Errorf("expected 2 downloads, got %d", got)
	}
	for _, rel := range []string{"wp-content/uploads/2020/x.jpg", "wp-content/uploads/2020/x-150x150.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected %s to be mirrored locally: %v", rel, err)
		}
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("expected 2 requests, got %d", hits)
	}
}

func TestFetchAllSkipsCachedFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an already-local file")
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	dir := t.TempDir()
	local := filepath.Join(dir, "wp-content", "x.jpg")
	if err := os.MkdirAll(filepath.Dir(local), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := BuildURLMap([]string{"http://" + host + "/wp-content/x.jpg"}, host, "https://cdn.example.net", dir)
	if err != nil {
		t.Fatal(err)
	}

	results, err := testDownloader(1).FetchAll(context.Background(), m)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if results[0].Outcome != SkippedCached {
		t.Errorf("expected SkippedCached, got %v", results[0].Outcome)
	}
	if !results[0].Fetched() {
		t.Error("a cached file still counts as fetched for the mapping log")
	}
}

func TestFetchAllSkipsDirectoryLikeURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("directory-like URLs must be skipped before any network call")
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	m, err := BuildURLMap([]string{"http://" + host + "/wp-content/uploads/"}, host, "https://cdn.example.net", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	results, err := testDownloader(1).FetchAll(context.Background(), m)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if results[0].Outcome != SkippedDirectory {
		t.Errorf("expected SkippedDirectory, got %v", results[0].Outcome)
	}
	if results[0].Fetched() {
		t.Error("a skipped directory must not enter the mapping log")
	}
}

func TestFetchAllRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	m, err := BuildURLMap([]string{"http://" + host + "/flaky.jpg"}, host, "https://cdn.example.net", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	results, err := testDownloader(1).FetchAll(context.Background(), m)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if results[0].Outcome != Downloaded {
		t.Errorf("expected a download after retries, got %v (err: %v)", results[0].Outcome, results[0].Err)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Errorf("expected 3 attempts, got %d", hits)
	}
}

func TestFetchAllRecordsFailuresAndContinues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer server.Close()

	host := server.Listener.Addr().String()
	m, err := BuildURLMap([]string{
		"http://" + host + "/gone.jpg",
		"http://" + host + "/fine.jpg",
	}, host, "https://cdn.example.net", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	results, err := testDownloader(1).FetchAll(context.Background(), m)
	if err != nil {
		t.Fatalf("one bad asset must not abort the run: %v", err)
	}

	counts := outcomes(results)
	if counts[Failed] != 1 || counts[Downloaded] != 1 {
		t.Errorf("expected 1 failure and 1 download, got %v", counts)
	}
}

func TestFetchToFileLeavesNoPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "x.jpg")

	f := NewFetcher()
	f.Timeout = 5 * time.Second
	if err := f.FetchToFile(context.Background(), server.URL+"/x.jpg", dest); err == nil {
		t.Fatal("expected a fetch error")
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("a failed fetch must not leave a file behind")
	}
}
