package relocate

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Report is the aggregate outcome of one run: counts for the summary, the
// successful mapping rows for the TSV log, and the URLs that never made it.
type Report struct {
	Attachments     int `yaml:"attachments"`
	ResizedVariants int `yaml:"resized-variants"`
	ReferencedIDs   int `yaml:"referenced-ids"`
	MappedURLs      int `yaml:"mapped-urls"`
	Downloaded      int `yaml:"downloaded"`
	Cached          int `yaml:"cached"`
	SkippedDirs     int `yaml:"skipped-directory-urls"`
	PrunedItems     int `yaml:"pruned-items"`

	// Occurrences of scheme://oldHost left in the output document.  Anything
	// non-zero is a defect worth chasing, not a silent pass.
	RemainingOldHostRefs int `yaml:"remaining-old-host-refs"`

	FetchFailures []string `yaml:"fetch-failures"`

	Mapping []MapEntry `yaml:"-"`
}

// WriteMappingLog writes the tab-separated oldURL/newURL/localPath records,
// one per successfully mapped and fetched asset.
func (r *Report) WriteMappingLog(path string) error {
	var b strings.Builder
	for _, e := range r.Mapping {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", e.OldURL, e.NewURL, e.LocalPath)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("relocate: couldn't write mapping log %s: %w", path, err)
	}
	return nil
}

// WriteErrorLog writes one failed URL per line.
func (r *Report) WriteErrorLog(path string) error {
	var b strings.Builder
	for _, u := range r.FetchFailures {
		b.WriteString(u)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("relocate: couldn't write error log %s: %w", path, err)
	}
	return nil
}

// WriteYAML writes the run report for auditing.
func (r *Report) WriteYAML(path string) error {
	out, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("relocate: couldn't marshal report: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("relocate: couldn't write report %s: %w", path, err)
	}
	return nil
}

// PrintSummary enumerates the run's counts through the logger.
func (r *Report) PrintSummary(logger *log.Logger) {
	logger.Printf("Attachments catalogued:  %d", r.Attachments)
	logger.Printf("Resized variants kept:   %d", r.ResizedVariants)
	logger.Printf("Referenced asset IDs:    %d", r.ReferencedIDs)
	logger.Printf("URLs mapped:             %d", r.MappedURLs)
	logger.Printf("Downloaded:              %d (plus %d already local)", r.Downloaded, r.Cached)
	logger.Printf("Pruned attachment items: %d", r.PrunedItems)
	if len(r.FetchFailures) > 0 {
		logger.Printf("Fetch failures:          %d", len(r.FetchFailures))
		for _, u := range r.FetchFailures {
			logger.Printf("  failed: %s", u)
		}
	}
	if r.RemainingOldHostRefs > 0 {
		logger.Printf("WARNING: %d old-host reference(s) remain in the output document.", r.RemainingOldHostRefs)
	} else {
		logger.Printf("Sanity check passed: no old-host references remain.")
	}
}

// CountOldHostRefs counts remaining scheme://host substrings in a rewritten
// document, the final sanity check of a run.
func CountOldHostRefs(doc []byte, host string) int {
	re := regexp.MustCompile(`https?://` + regexp.QuoteMeta(host))
	return len(re.FindAllIndex(doc, -1))
}
