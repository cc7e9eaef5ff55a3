// Package wxr is a thin model over a WordPress eXtended RSS export.  A
// Document wraps the parsed XML tree; mutation happens in place so that a
// serialised document is byte-identical to the input everywhere we didn't
// touch it, CDATA sections included.
package wxr

import (
	"errors"
	"fmt"
	"os"

	"github.com/beevik/etree"
)

// ErrMalformedInput means the input couldn't be read as a WXR document at
// all.  There's no partial fallback; callers should abort.
var ErrMalformedInput = errors.New("wxr: malformed input document")

// PostID is the wp:post_id of an item, unique within a document.
type PostID string

type Document struct {
	tree *etree.Document

	// raw input bytes, kept around for whole-document text scans.
	raw []byte
}

func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wxr: couldn't read %s: %w", path, err)
	}

	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("wxr: couldn't parse %s: %w", path, err)
	}
	return doc, nil
}

func Parse(raw []byte) (*Document, error) {
	tree := etree.NewDocument()
	// CDATA wrappers around content:encoded and friends must survive the
	// round trip untouched.
	tree.ReadSettings.PreserveCData = true
	// explicit end tags keep empty elements byte-identical on the way out
	tree.WriteSettings.CanonicalEndTags = true

	if err := tree.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	rss := tree.SelectElement("rss")
	if rss == nil {
		return nil, fmt.Errorf("%w: no rss root element", ErrMalformedInput)
	}
	if rss.SelectElement("channel") == nil {
		return nil, fmt.Errorf("%w: rss element has no channel", ErrMalformedInput)
	}

	return &Document{tree: tree, raw: raw}, nil
}

// Raw returns the document bytes as they were read, before any rewriting.
func (d *Document) Raw() []byte {
	return d.raw
}

func (d *Document) channel() *etree.Element {
	return d.tree.SelectElement("rss").SelectElement("channel")
}

// Items returns every channel item in document order.
func (d *Document) Items() []Item {
	var items []Item
	for _, el := range d.channel().SelectElements("item") {
		items = append(items, Item{el: el})
	}
	return items
}

// RemoveItem detaches an item from its channel.  Removing an item twice is a
// no-op.
func (d *Document) RemoveItem(it Item) {
	if parent := it.el.Parent(); parent != nil {
		parent.RemoveChild(it.el)
	}
}

func (d *Document) Bytes() ([]byte, error) {
	out, err := d.tree.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("wxr: couldn't serialise document: %w", err)
	}
	return out, nil
}

func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wxr: couldn't create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := d.tree.WriteTo(f); err != nil {
		return fmt.Errorf("wxr: couldn't write %s: %w", path, err)
	}
	return nil
}
