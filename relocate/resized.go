package relocate

import (
	"log"
	"regexp"
	"strings"

	"github.com/toothbrush/wxr-relocate/wxr"
)

// resizedNameRe matches WordPress derivative filenames, <base>-<W>x<H>.<ext>.
var resizedNameRe = regexp.MustCompile(`^(.+)-(\d+)x(\d+)(\.[A-Za-z0-9]+)$`)

// hostURLPattern matches absolute URLs on the given host as free text inside
// markup.  Resized variants aren't dedicated XML elements, so raw-text
// scanning is the right tool here, unlike everywhere else in the pipeline.
func hostURLPattern(host string) *regexp.Regexp {
	return regexp.MustCompile(`https?://` + regexp.QuoteMeta(host) + `/[^\s"'<>]+`)
}

// CollectContentURLs gathers every old-host URL appearing in any item's
// content payload, deduplicated, in first-seen order.
func CollectContentURLs(cat *wxr.Catalog, oldHost string) []string {
	re := hostURLPattern(oldHost)
	seen := map[string]bool{}
	var urls []string
	for _, it := range cat.Items() {
		for _, u := range re.FindAllString(it.ContentEncoded(), -1) {
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// ValidResizedVariants keeps only those candidate URLs whose filename encodes
// a WxH suffix and whose un-suffixed original, in the same directory, is
// verbatim the URL of a catalogued attachment.  Everything else is discarded
// for good: rejected candidates are never downloaded or rewritten, which
// protects unrelated same-host images from being dragged along.
func ValidResizedVariants(candidates []string, cat *wxr.Catalog, logger *log.Logger) []string {
	var valid []string
	for _, u := range candidates {
		slash := strings.LastIndex(u, "/")
		if slash < 0 {
			continue
		}
		dir, name := u[:slash+1], u[slash+1:]

		m := resizedNameRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		original := dir + m[1] + m[4]
		if !cat.HasAttachmentURL(original) {
			logger.Printf("Warning: rejecting resized variant %s: %s is not an attachment.", u, original)
			continue
		}
		valid = append(valid, u)
	}
	return valid
}
