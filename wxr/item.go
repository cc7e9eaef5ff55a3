package wxr

import (
	"fmt"

	"github.com/beevik/etree"
)

// Item is one post, page or attachment in the export.  It holds a live
// reference into the document tree, so setters mutate the document.
type Item struct {
	el *etree.Element
}

// Postmeta is one wp:postmeta key/value pair.  Keys are not unique per item.
type Postmeta struct {
	Key   string
	Value string
}

// AttachmentRecord is the derived view over an attachment-typed item.
type AttachmentRecord struct {
	ID  PostID
	URL string
}

const attachmentPostType = "attachment"

func (it Item) PostID() PostID {
	return PostID(it.childText("wp:post_id"))
}

func (it Item) PostType() string {
	return it.childText("wp:post_type")
}

func (it Item) IsAttachment() bool {
	return it.PostType() == attachmentPostType
}

func (it Item) GUID() string {
	return it.childText("guid")
}

func (it Item) AttachmentURL() string {
	return it.childText("wp:attachment_url")
}

func (it Item) ContentEncoded() string {
	return it.childText("content:encoded")
}

func (it Item) Postmeta() []Postmeta {
	var metas []Postmeta
	for _, m := range it.el.SelectElements("wp:postmeta") {
		metas = append(metas, Postmeta{
			Key:   textOf(m.SelectElement("wp:meta_key")),
			Value: textOf(m.SelectElement("wp:meta_value")),
		})
	}
	return metas
}

func (it Item) SetGUID(value string) error {
	return it.setChildText("guid", value)
}

func (it Item) SetAttachmentURL(value string) error {
	return it.setChildText("wp:attachment_url", value)
}

func (it Item) SetContentEncoded(value string) error {
	return it.setChildText("content:encoded", value)
}

// RewriteAllText applies fn to every character-data token and attribute value
// in the item's subtree.  Element structure and CDATA wrappers are untouched.
func (it Item) RewriteAllText(fn func(string) string) {
	rewriteElementText(it.el, fn)
}

func rewriteElementText(el *etree.Element, fn func(string) string) {
	for i := range el.Attr {
		el.Attr[i].Value = fn(el.Attr[i].Value)
	}
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			t.Data = fn(t.Data)
		case *etree.Element:
			rewriteElementText(t, fn)
		}
	}
}

func (it Item) childText(tag string) string {
	return textOf(it.el.SelectElement(tag))
}

func (it Item) setChildText(tag, value string) error {
	el := it.el.SelectElement(tag)
	if el == nil {
		return fmt.Errorf("wxr: item %s has no %s element", it.PostID(), tag)
	}
	setText(el, value)
	return nil
}

func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}

// setText replaces an element's character data in place.  Mutating the
// existing token (rather than el.SetText) keeps a CDATA wrapper as CDATA.
func setText(el *etree.Element, value string) {
	set := false
	for _, tok := range el.Child {
		cd, ok := tok.(*etree.CharData)
		if !ok {
			continue
		}
		if set {
			cd.Data = ""
			continue
		}
		cd.Data = value
		set = true
	}
	if !set {
		el.SetText(value)
	}
}
