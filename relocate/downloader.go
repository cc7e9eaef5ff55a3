package relocate

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// Downloader fetches every mapping entry to its local path.  Fetch order
// doesn't matter, so entries run on a bounded worker pool; the Document is
// never touched here.
type Downloader struct {
	Fetcher *Fetcher
	Workers int
	Retry   RetryPolicy
	Logger  *log.Logger

	// Quiet suppresses the progress bar (tests, non-tty runs).
	Quiet bool
}

type FetchOutcome int

const (
	Downloaded FetchOutcome = iota
	SkippedCached
	SkippedDirectory
	Failed
)

type FetchResult struct {
	Entry   MapEntry
	Outcome FetchOutcome
	Err     error
}

// Fetched reports whether the asset is on disk, whether we downloaded it just
// now or found it already there.
func (r FetchResult) Fetched() bool {
	return r.Outcome == Downloaded || r.Outcome == SkippedCached
}

// FetchAll works through the mapping.  Individual failures are recorded, not
// raised: one dead asset must never abort the migration of hundreds of
// others.  Results come back in no particular order.
func (d *Downloader) FetchAll(ctx context.Context, urlmap *URLMap) ([]FetchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := urlmap.Entries()
	jobQueue := make(chan MapEntry, len(entries))
	for _, e := range entries {
		jobQueue <- e
	}
	close(jobQueue)

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	results := make(chan FetchResult, workers*3)

	grp, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		grp.Go(func() error {
			for entry := range jobQueue {
				result := d.fetchOne(gctx, entry)
				select {
				case results <- result:
				case <-gctx.Done():
					return context.Cause(gctx)
				}
			}
			return nil
		})
	}

	go func() {
		grp.Wait()
		close(results)
	}()

	var p *mpb.Progress
	var bar *mpb.Bar
	if !d.Quiet {
		p = mpb.New(mpb.WithWidth(64))
		bar = p.AddBar(int64(len(entries)),
			mpb.PrependDecorators(
				decor.Name("media:", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d/%d) "),
				decor.NewPercentage("%d"),
			),
		)
	}

	var out []FetchResult
	for result := range results {
		if bar != nil {
			bar.Increment()
		}
		out = append(out, result)
	}

	if err := grp.Wait(); err != nil {
		return out, fmt.Errorf("relocate: download pool failed: %w", err)
	}
	if p != nil {
		p.Wait()
	}

	return out, nil
}

func (d *Downloader) fetchOne(ctx context.Context, entry MapEntry) FetchResult {
	// Directory-like URLs can't be files; skip before any network call.
	if strings.HasSuffix(entry.OldURL, "/") {
		d.Logger.Printf("Skipping directory-like URL: %s", entry.OldURL)
		return FetchResult{Entry: entry, Outcome: SkippedDirectory}
	}

	// An existing local file means a previous run fetched it; the mapping
	// still counts as successful.
	if _, err := os.Stat(entry.LocalPath); err == nil {
		return FetchResult{Entry: entry, Outcome: SkippedCached}
	}

	err := d.Retry.Do(ctx, func() error {
		return d.Fetcher.FetchToFile(ctx, entry.OldURL, entry.LocalPath)
	})
	if err != nil {
		d.Logger.Printf("Warning: failed to fetch %s: %v", entry.OldURL, err)
		return FetchResult{Entry: entry, Outcome: Failed, Err: err}
	}

	return FetchResult{Entry: entry, Outcome: Downloaded}
}
