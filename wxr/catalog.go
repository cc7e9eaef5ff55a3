package wxr

import "log"

// Catalog is the one-pass index over a document: attachment records keyed by
// ID and URL, plus item lookups for the pipeline stages.  Build it once;
// it doesn't chase document mutations.
type Catalog struct {
	items       []Item
	itemByID    map[PostID]Item
	attachments []AttachmentRecord
	byID        map[PostID]AttachmentRecord
	byURL       map[string]PostID
}

func NewCatalog(doc *Document, logger *log.Logger) *Catalog {
	cat := &Catalog{
		itemByID: make(map[PostID]Item),
		byID:     make(map[PostID]AttachmentRecord),
		byURL:    make(map[string]PostID),
	}

	for _, it := range doc.Items() {
		cat.items = append(cat.items, it)
		if id := it.PostID(); id != "" {
			cat.itemByID[id] = it
		}

		if !it.IsAttachment() {
			continue
		}

		url := it.AttachmentURL()
		if url == "" {
			// tolerated: a malformed attachment we can't relocate.
			logger.Printf("Warning: attachment item %s has no attachment URL, skipping.", it.PostID())
			continue
		}

		rec := AttachmentRecord{ID: it.PostID(), URL: url}
		cat.attachments = append(cat.attachments, rec)
		cat.byID[rec.ID] = rec
		cat.byURL[rec.URL] = rec.ID
	}

	return cat
}

// Items returns every catalogued item in document order.
func (c *Catalog) Items() []Item {
	return c.items
}

func (c *Catalog) NonAttachmentItems() []Item {
	var items []Item
	for _, it := range c.items {
		if !it.IsAttachment() {
			items = append(items, it)
		}
	}
	return items
}

func (c *Catalog) Attachments() []AttachmentRecord {
	return c.attachments
}

func (c *Catalog) AttachmentByID(id PostID) (AttachmentRecord, bool) {
	rec, ok := c.byID[id]
	return rec, ok
}

// HasAttachmentURL reports whether url is, verbatim, the attachment URL of
// some catalogued attachment.
func (c *Catalog) HasAttachmentURL(url string) bool {
	_, ok := c.byURL[url]
	return ok
}

func (c *Catalog) ItemByID(id PostID) (Item, bool) {
	it, ok := c.itemByID[id]
	return it, ok
}
