// Package relocate implements the migration pipeline: classify every media
// URL in a WXR export, build the canonical old→new mapping, mirror the assets
// locally and rewrite the document against the mapping.
package relocate

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/toothbrush/wxr-relocate/wxr"
)

// Migrator owns one run over one document.  The document is exclusively ours
// for the run's duration; callers serialise it only after Run returns.
type Migrator struct {
	OldHost         string
	NewBase         string
	DownloadDir     string
	KeepAttachments bool
	Workers         int

	Fetcher *Fetcher
	Retry   RetryPolicy
	Logger  *log.Logger
	Quiet   bool
}

// Plan is the classification result: everything Run would migrate, computed
// without touching the network or the document.  The scan subcommand prints
// it; Run consumes it.
type Plan struct {
	Catalog       *wxr.Catalog
	Referenced    IDSet
	ThumbnailURLs []string
	Variants      []string
	URLMap        *URLMap
}

func (m *Migrator) BuildPlan(doc *wxr.Document) (*Plan, error) {
	if m.OldHost == "" {
		return nil, fmt.Errorf("relocate: old host is not configured")
	}
	if err := CheckNewBase(m.NewBase); err != nil {
		return nil, err
	}

	cat := wxr.NewCatalog(doc, m.Logger)

	thumbURLs, thumbIDs := ResolveThumbnails(cat, m.Logger)
	inlineIDs := ScanInlineRefs(cat, doc, m.Logger)
	referenced := IDSet{}.Union(thumbIDs).Union(inlineIDs)

	variants := ValidResizedVariants(CollectContentURLs(cat, m.OldHost), cat, m.Logger)

	// The two sources of truth for "must be relocated": attachment URLs and
	// validated resized variants.  Thumbnail URLs are attachment URLs by
	// construction, registering them again is a no-op.
	var urls []string
	for _, rec := range cat.Attachments() {
		urls = append(urls, rec.URL)
	}
	urls = append(urls, thumbURLs...)
	urls = append(urls, variants...)

	urlmap, err := BuildURLMap(urls, m.OldHost, m.NewBase, m.DownloadDir)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Catalog:       cat,
		Referenced:    referenced,
		ThumbnailURLs: thumbURLs,
		Variants:      variants,
		URLMap:        urlmap,
	}, nil
}

// Run executes the full pipeline against doc: plan, fetch, rewrite, prune,
// sanity-check.  Per-asset fetch failures are aggregated into the report;
// only configuration and document-level problems return an error.
func (m *Migrator) Run(ctx context.Context, doc *wxr.Document) (*Report, error) {
	plan, err := m.BuildPlan(doc)
	if err != nil {
		return nil, err
	}

	downloader := &Downloader{
		Fetcher: m.Fetcher,
		Workers: m.Workers,
		Retry:   m.Retry,
		Logger:  m.Logger,
		Quiet:   m.Quiet,
	}
	results, err := downloader.FetchAll(ctx, plan.URLMap)
	if err != nil {
		return nil, fmt.Errorf("relocate: download phase failed: %w", err)
	}

	report := &Report{
		Attachments:     len(plan.Catalog.Attachments()),
		ResizedVariants: len(plan.Variants),
		ReferencedIDs:   len(plan.Referenced),
		MappedURLs:      plan.URLMap.Len(),
	}
	for _, res := range results {
		switch res.Outcome {
		case Downloaded:
			report.Downloaded++
			report.Mapping = append(report.Mapping, res.Entry)
		case SkippedCached:
			report.Cached++
			report.Mapping = append(report.Mapping, res.Entry)
		case SkippedDirectory:
			report.SkippedDirs++
		case Failed:
			report.FetchFailures = append(report.FetchFailures, res.Entry.OldURL)
		}
	}
	// pool results arrive unordered; the logs should be stable run to run
	slices.SortFunc(report.Mapping, func(a, b MapEntry) int {
		if a.OldURL < b.OldURL {
			return -1
		}
		if a.OldURL > b.OldURL {
			return 1
		}
		return 0
	})
	slices.Sort(report.FetchFailures)

	rewriter := &Rewriter{
		OldHost:         m.OldHost,
		NewBase:         collapsePathSlashes(m.NewBase),
		KeepAttachments: m.KeepAttachments,
		Logger:          m.Logger,
	}
	report.PrunedItems = rewriter.Apply(doc, plan.Catalog, plan.URLMap, plan.Referenced)

	rewritten, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	report.RemainingOldHostRefs = CountOldHostRefs(rewritten, m.OldHost)

	return report, nil
}
