package wxr

import (
	"errors"
	"io"
	"log"
	"strings"
	"testing"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:wp="http://wordpress.org/export/1.2/">
  <channel>
    <title>Test blog</title>
    <item>
      <title>A post</title>
      <guid isPermaLink="false">https://blog.example/?p=1</guid>
      <content:encoded><![CDATA[<p>hello <img src="https://old.example/wp-content/uploads/2020/x-150x150.jpg"></p>]]></content:encoded>
      <wp:post_id>1</wp:post_id>
      <wp:post_type>post</wp:post_type>
      <wp:postmeta>
        <wp:meta_key><![CDATA[_thumbnail_id]]></wp:meta_key>
        <wp:meta_value><![CDATA[5]]></wp:meta_value>
      </wp:postmeta>
      <wp:postmeta>
        <wp:meta_key><![CDATA[_edit_last]]></wp:meta_key>
        <wp:meta_value><![CDATA[2]]></wp:meta_value>
      </wp:postmeta>
    </item>
    <item>
      <title>x.jpg</title>
      <guid isPermaLink="false">https://old.example/wp-content/uploads/2020/x.jpg</guid>
      <wp:post_id>5</wp:post_id>
      <wp:post_type>attachment</wp:post_type>
      <wp:attachment_url><![CDATA[https://old.example/wp-content/uploads/2020/x.jpg]]></wp:attachment_url>
    </item>
    <item>
      <title>broken attachment</title>
      <guid isPermaLink="false"></guid>
      <wp:post_id>7</wp:post_id>
      <wp:post_type>attachment</wp:post_type>
      <wp:attachment_url></wp:attachment_url>
    </item>
  </channel>
</rss>
`

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestParseMalformedInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"truncated XML", "<rss><channel><item>"},
		{"not XML at all", "definitely not xml"},
		{"no rss root", "<html><body/></html>"},
		{"rss without channel", "<rss version=\"2.0\"></rss>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			if !errors.Is(err, ErrMalformedInput) {
				t.Errorf("expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestCatalogAttachments(t *testing.T) {
	doc, err := Parse([]byte(sampleExport))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cat := NewCatalog(doc, quietLogger())

	attachments := cat.Attachments()
	if len(attachments) != 1 {
		t.Fatalf("expected 1 attachment (empty-URL one skipped), got %d", len(attachments))
	}
	if attachments[0].ID != PostID("5") {
		t.Errorf("expected attachment ID 5, got %s", attachments[0].ID)
	}
	if attachments[0].URL != "https://old.example/wp-content/uploads/2020/x.jpg" {
		t.Errorf("unexpected attachment URL: %s", attachments[0].URL)
	}

	if !cat.HasAttachmentURL("https://old.example/wp-content/uploads/2020/x.jpg") {
		t.Error("expected HasAttachmentURL to find the attachment verbatim")
	}
	if cat.HasAttachmentURL("https://old.example/wp-content/uploads/2020/X.jpg") {
		t.Error("attachment URL matching must be exact, not case-folded")
	}

	if _, ok := cat.AttachmentByID(PostID("5")); !ok {
		t.Error("expected AttachmentByID to resolve ID 5")
	}
	if _, ok := cat.AttachmentByID(PostID("1")); ok {
		t.Error("post 1 is not an attachment")
	}

	if got := len(cat.NonAttachmentItems()); got != 1 {
		t.Errorf("expected 1 non-attachment item, got %d", got)
	}
}

func TestItemPostmeta(t *testing.T) {
	doc, err := Parse([]byte(sampleExport))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cat := NewCatalog(doc, quietLogger())
	post, ok := cat.ItemByID(PostID("1"))
	if !ok {
		t.Fatal("expected to find item 1")
	}

	metas := post.Postmeta()
	if len(metas) != 2 {
		t.Fatalf("expected 2 postmeta entries, got %d", len(metas))
	}
	if metas[0].Key != "_thumbnail_id" || metas[0].Value != "5" {
		t.Errorf("unexpected first postmeta: %+v", metas[0])
	}
}

func TestSetContentPreservesCDATA(t *testing.T) {
	doc, err := Parse([]byte(sampleExport))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cat := NewCatalog(doc, quietLogger())
	post, _ := cat.ItemByID(PostID("1"))

	if err := post.SetContentEncoded("<p>rewritten</p>"); err != nil {
		t.Fatalf("SetContentEncoded failed: %v", err)
	}

	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("serialise failed: %v", err)
	}
	if !strings.Contains(string(out), "<![CDATA[<p>rewritten</p>]]>") {
		t.Error("expected rewritten content to keep its CDATA wrapper")
	}
}

func TestRemoveItem(t *testing.T) {
	doc, err := Parse([]byte(sampleExport))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	before := len(doc.Items())
	cat := NewCatalog(doc, quietLogger())
	it, _ := cat.ItemByID(PostID("5"))

	doc.RemoveItem(it)
	doc.RemoveItem(it) // removing twice must be harmless

	if got := len(doc.Items()); got != before-1 {
		t.Errorf("expected %d items after removal, got %d", before-1, got)
	}

	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("serialise failed: %v", err)
	}
	// item 7's empty attachment_url element is still around; item 5's URL
	// must be gone entirely
	if strings.Contains(string(out), "uploads/2020/x.jpg") {
		t.Error("expected the removed attachment item's URL to be gone")
	}
	if strings.Contains(string(out), "<wp:post_id>5</wp:post_id>") {
		t.Error("expected the removed attachment item's post ID to be gone")
	}
}

func TestUntouchedDocumentRoundTrips(t *testing.T) {
	doc, err := Parse([]byte(sampleExport))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	out, err := doc.Bytes()
	if err != nil {
		t.Fatalf("serialise failed: %v", err)
	}
	if strings.TrimRight(string(out), "\n") != strings.TrimRight(sampleExport, "\n") {
		t.Error("expected an untouched document to serialise byte-identically")
	}
}
