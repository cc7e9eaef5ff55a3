package relocate

import (
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/toothbrush/wxr-relocate/wxr"
)

// absoluteURLRe matches a whole URL token in free text.  The kept-block
// fallback parses each token and compares hosts exactly, so a foreign host
// that merely starts with the old host's name (old.example.org, or
// old.example:8080, when the old host is old.example) is never touched.
var absoluteURLRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

// Rewriter applies the URL mapping to the document in four ordered passes,
// with pruning of unreferenced attachments between passes three and four.
// Passes must run strictly sequentially: pruning wants the fully-rewritten
// guid/content state, and the kept-block pass wants the post-pruning item
// set.  Each pass is idempotent given the same mapping.
type Rewriter struct {
	OldHost         string
	NewBase         string
	KeepAttachments bool
	Logger          *log.Logger
}

// Apply runs the passes.  It returns the number of pruned items.
func (rw *Rewriter) Apply(doc *wxr.Document, cat *wxr.Catalog, urlmap *URLMap, referenced IDSet) int {
	rw.rewriteAttachmentURLs(cat, urlmap)
	rw.rewriteGUIDs(cat, referenced)
	rw.rewriteContent(cat, urlmap)

	pruned := 0
	if !rw.KeepAttachments {
		pruned = rw.prune(doc, referenced)
	}

	rw.rewriteKeptAttachmentBlocks(doc, urlmap)
	return pruned
}

// Pass 1: the dedicated wp:attachment_url element of every mapped attachment.
// Matching is by exact old-URL equality; substring matching could corrupt an
// element whose URL merely has a mapped URL as prefix.
func (rw *Rewriter) rewriteAttachmentURLs(cat *wxr.Catalog, urlmap *URLMap) {
	for _, rec := range cat.Attachments() {
		entry, ok := urlmap.Lookup(rec.URL)
		if !ok {
			continue
		}
		if entry.OldURL == "" || entry.NewURL == "" {
			continue
		}

		it, ok := cat.ItemByID(rec.ID)
		if !ok {
			rw.Logger.Printf("Warning: no item for attachment %s, skipping URL rewrite.", rec.ID)
			continue
		}
		if current := it.AttachmentURL(); current != entry.OldURL {
			// already rewritten, or the document shifted under us
			continue
		}
		if err := it.SetAttachmentURL(entry.NewURL); err != nil {
			rw.Logger.Printf("Warning: %v", err)
		}
	}
}

// Pass 2: guids of referenced attachment items, recomputed with the same
// relative-path rule the mapping uses.  Guids on other hosts are already
// correct or intentionally external.
func (rw *Rewriter) rewriteGUIDs(cat *wxr.Catalog, referenced IDSet) {
	for _, id := range referenced.Sorted() {
		it, ok := cat.ItemByID(id)
		if !ok || !it.IsAttachment() {
			continue
		}

		guid := it.GUID()
		if guid == "" {
			continue
		}
		u, err := url.Parse(guid)
		if err != nil || u.Host != rw.OldHost {
			continue
		}

		mapped := JoinURL(rw.NewBase, relativePath(guid, rw.OldHost))
		if err := it.SetGUID(mapped); err != nil {
			rw.Logger.Printf("Warning: %v", err)
		}
	}
}

// Pass 3: content payloads.  Substitution happens inside the character-data
// payload only, never across element boundaries, and the CDATA wrapper itself
// is preserved by the item setter.  Entries substitute in registration order,
// so if two old URLs ever overlapped, the first-registered mapping wins.
func (rw *Rewriter) rewriteContent(cat *wxr.Catalog, urlmap *URLMap) {
	for _, it := range cat.Items() {
		content := it.ContentEncoded()
		if content == "" {
			continue
		}

		replaced := substituteAll(content, urlmap)
		if replaced == content {
			continue
		}
		if err := it.SetContentEncoded(replaced); err != nil {
			rw.Logger.Printf("Warning: %v", err)
		}
	}
}

// prune drops every attachment item whose ID is not structurally referenced.
func (rw *Rewriter) prune(doc *wxr.Document, referenced IDSet) int {
	pruned := 0
	for _, it := range doc.Items() {
		if !it.IsAttachment() {
			continue
		}
		if referenced[it.PostID()] {
			continue
		}
		rw.Logger.Printf("Pruning unreferenced attachment item %s.", it.PostID())
		doc.RemoveItem(it)
		pruned++
	}
	return pruned
}

// Pass 4: every text node and attribute of the attachment items that survived
// pruning, catching residual references the earlier passes don't cover.  A
// generic old-host fallback then rewrites stray same-host links that never
// made it into the mapping.
func (rw *Rewriter) rewriteKeptAttachmentBlocks(doc *wxr.Document, urlmap *URLMap) {
	for _, it := range doc.Items() {
		if !it.IsAttachment() {
			continue
		}
		it.RewriteAllText(func(text string) string {
			out := substituteAll(text, urlmap)
			return absoluteURLRe.ReplaceAllStringFunc(out, func(match string) string {
				u, err := url.Parse(match)
				if err != nil || u.Host != rw.OldHost {
					return match
				}
				if u.Path == "" {
					// a bare-host link moves to the base itself
					return rw.NewBase
				}
				return JoinURL(rw.NewBase, relativePath(match, rw.OldHost))
			})
		})
	}
}

func substituteAll(text string, urlmap *URLMap) string {
	for _, entry := range urlmap.Entries() {
		if entry.OldURL == "" || entry.NewURL == "" {
			continue
		}
		text = strings.ReplaceAll(text, entry.OldURL, entry.NewURL)
	}
	return text
}
