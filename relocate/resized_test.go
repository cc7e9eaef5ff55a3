package relocate

import (
	"reflect"
	"testing"
)

const resizedExport = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
    xmlns:content="http://purl.org/rss/1.0/modules/content/"
    xmlns:wp="http://wordpress.org/export/1.2/">
  <channel>
    <item>
      <guid>https://blog.example/?p=1</guid>
      <content:encoded><![CDATA[
<img src="https://old.example/wp-content/uploads/2020/x-150x150.jpg">
<img src="https://old.example/wp-content/uploads/2020/x-150x150.jpg">
<img src="https://old.example/wp-content/uploads/2020/photo-999x999.jpg">
<img src="https://old.example/wp-content/uploads/2020/x.jpg">
<a href="https://old.example/about/">about</a>
<img src="https://elsewhere.example/y-100x100.png">
]]></content:encoded>
      <wp:post_id>1</wp:post_id>
      <wp:post_type>post</wp:post_type>
    </item>
    <item>
      <guid>https://old.example/wp-content/uploads/2020/x.jpg</guid>
      <wp:post_id>5</wp:post_id>
      <wp:post_type>attachment</wp:post_type>
      <wp:attachment_url>https://old.example/wp-content/uploads/2020/x.jpg</wp:attachment_url>
    </item>
  </channel>
</rss>
`

func TestCollectContentURLs(t *testing.T) {
	_, cat := mustParse(t, resizedExport)

	got := CollectContentURLs(cat, "old.example")
	want := []string{
		"https://old.example/wp-content/uploads/2020/x-150x150.jpg",
		"https://old.example/wp-content/uploads/2020/photo-999x999.jpg",
		"https://old.example/wp-content/uploads/2020/x.jpg",
		"https://old.example/about/",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectContentURLs = %v, want %v", got, want)
	}
}

func TestValidResizedVariants(t *testing.T) {
	_, cat := mustParse(t, resizedExport)

	candidates := CollectContentURLs(cat, "old.example")
	got := ValidResizedVariants(candidates, cat, quietLogger())

	// x-150x150.jpg is valid because x.jpg is a catalogued attachment;
	// photo-999x999.jpg has no photo.jpg and must be rejected; plain URLs
	// don't match the WxH pattern at all.
	want := []string{"https://old.example/wp-content/uploads/2020/x-150x150.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ValidResizedVariants = %v, want %v", got, want)
	}
}

func TestResizedNamePattern(t *testing.T) {
	cases := []struct {
		name  string
		match bool
	}{
		{"x-150x150.jpg", true},
		{"holiday-photo-1024x768.jpeg", true},
		{"x.jpg", false},
		{"x-150x.jpg", false},
		{"x-x150.jpg", false},
		{"150x150.jpg", false},
		{"x-150x150", false},
	}

	for _, tc := range cases {
		if got := resizedNameRe.MatchString(tc.name); got != tc.match {
			t.Errorf("resizedNameRe.MatchString(%q) = %v, want %v", tc.name, got, tc.match)
		}
	}
}
