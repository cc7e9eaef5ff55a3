package relocate

import (
	"log"
	"regexp"
	"slices"
	"strings"

	"github.com/toothbrush/wxr-relocate/wxr"
	"golang.org/x/exp/maps"
	"golang.org/x/net/html"
)

// thumbnailMetaKey designates the postmeta entry naming a post's
// representative image.
const thumbnailMetaKey = "_thumbnail_id"

// Block-editor image directives live in HTML comments and carry the numeric
// attachment ID as a JSON-ish field.
var inlineImageIDRe = regexp.MustCompile(`"imageID":\s*(\d+)`)

// IDSet is the set of attachment IDs that are structurally referenced and
// must survive pruning.
type IDSet map[wxr.PostID]bool

func (s IDSet) Sorted() []wxr.PostID {
	ids := maps.Keys(s)
	slices.Sort(ids)
	return ids
}

// Union merges the other set into this one and returns the receiver.
func (s IDSet) Union(other IDSet) IDSet {
	for id := range other {
		s[id] = true
	}
	return s
}

// ResolveThumbnails finds every _thumbnail_id postmeta on non-attachment
// items and resolves it against the catalog.  IDs that don't name a
// catalogued attachment get a warning and are dropped.
func ResolveThumbnails(cat *wxr.Catalog, logger *log.Logger) ([]string, IDSet) {
	candidates := IDSet{}
	for _, it := range cat.NonAttachmentItems() {
		for _, pm := range it.Postmeta() {
			if pm.Key != thumbnailMetaKey {
				continue
			}
			if id := strings.TrimSpace(pm.Value); id != "" {
				candidates[wxr.PostID(id)] = true
			}
		}
	}

	var urls []string
	resolved := IDSet{}
	for _, id := range candidates.Sorted() {
		rec, ok := cat.AttachmentByID(id)
		if !ok {
			logger.Printf("Warning: thumbnail ID %s doesn't match any attachment, skipping.", id)
			continue
		}
		urls = append(urls, rec.URL)
		resolved[id] = true
	}

	return urls, resolved
}

// ScanInlineRefs extracts attachment IDs from inline-image directive blocks.
// The primary pass walks the comment tokens of each item's content payload.
// If that yields nothing, the whole raw document is re-scanned with the same
// pattern: some export variants put directive blocks outside content:encoded,
// and silently finding zero references would make genuinely-referenced
// attachments eligible for deletion.
func ScanInlineRefs(cat *wxr.Catalog, doc *wxr.Document, logger *log.Logger) IDSet {
	ids := IDSet{}

	for _, it := range cat.NonAttachmentItems() {
		content := it.ContentEncoded()
		if content == "" {
			continue
		}
	scanContent:
		for z := html.NewTokenizer(strings.NewReader(content)); ; {
			switch z.Next() {
			case html.ErrorToken:
				break scanContent
			case html.CommentToken:
				comment := z.Token().Data
				if !strings.Contains(comment, "wp:image") {
					continue
				}
				for _, m := range inlineImageIDRe.FindAllStringSubmatch(comment, -1) {
					ids[wxr.PostID(m[1])] = true
				}
			}
		}
	}

	if len(ids) == 0 {
		logger.Printf("No inline image references found in content, re-scanning whole document.")
		for _, m := range inlineImageIDRe.FindAllSubmatch(doc.Raw(), -1) {
			ids[wxr.PostID(m[1])] = true
		}
	}

	return ids
}
