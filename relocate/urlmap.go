package relocate

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// unknownPathBucket is where assets land when we can't derive a relative path
// from their URL.  Relocating under a clearly-marked bucket beats dropping
// the asset.
const unknownPathBucket = "_unknown_path"

// MapEntry is one row of the canonical old→new mapping.
type MapEntry struct {
	OldURL    string
	NewURL    string
	LocalPath string
}

// URLMap is the single source of truth for what gets relocated.  It's built
// exactly once per run and consumed read-only by the downloader and the
// rewriter.  Entries keep insertion order; registering an old URL twice keeps
// the first registration.
type URLMap struct {
	entries []MapEntry
	byOld   map[string]int
}

func (m *URLMap) Entries() []MapEntry {
	return m.entries
}

func (m *URLMap) Lookup(oldURL string) (MapEntry, bool) {
	i, ok := m.byOld[oldURL]
	if !ok {
		return MapEntry{}, false
	}
	return m.entries[i], true
}

func (m *URLMap) Len() int {
	return len(m.entries)
}

// CheckNewBase rejects a new base URL with no explicit scheme.  This is a
// configuration error and must abort the run before anything is touched.
func CheckNewBase(newBase string) error {
	if !schemeRe.MatchString(newBase) {
		return fmt.Errorf("relocate: new base URL %q has no scheme", newBase)
	}
	return nil
}

// BuildURLMap derives the mapping for every given URL: a relative path from
// the old URL, the new URL under newBase, and the local download path under
// downloadDir.  Duplicate slashes in newBase's path are collapsed here, once,
// rather than per entry.
func BuildURLMap(urls []string, oldHost, newBase, downloadDir string) (*URLMap, error) {
	if err := CheckNewBase(newBase); err != nil {
		return nil, err
	}
	base := collapsePathSlashes(newBase)

	m := &URLMap{byOld: make(map[string]int)}
	for _, u := range urls {
		if _, ok := m.byOld[u]; ok {
			continue
		}
		rel := relativePath(u, oldHost)
		m.byOld[u] = len(m.entries)
		m.entries = append(m.entries, MapEntry{
			OldURL:    u,
			NewURL:    JoinURL(base, rel),
			LocalPath: filepath.Join(downloadDir, filepath.FromSlash(rel)),
		})
	}
	return m, nil
}

// relativePath strips scheme://oldHost/ from the URL.  If the URL isn't on
// the old host, the first scheme://anyhost/ segment is stripped instead, and
// if even that fails the asset is bucketed under a synthetic prefix.
func relativePath(rawURL, oldHost string) string {
	for _, scheme := range []string{"http", "https"} {
		prefix := scheme + "://" + oldHost + "/"
		if strings.HasPrefix(rawURL, prefix) {
			return rawURL[len(prefix):]
		}
	}

	if loc := schemeRe.FindString(rawURL); loc != "" {
		rest := rawURL[len(loc):]
		if i := strings.Index(rest, "/"); i >= 0 && i+1 < len(rest) {
			return rest[i+1:]
		}
	}

	return path.Join(unknownPathBucket, path.Base(rawURL))
}

// JoinURL joins a base URL and a relative path with exactly one separator,
// whatever slashes either side carries.
func JoinURL(base, rel string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}

func collapsePathSlashes(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	for strings.Contains(u.Path, "//") {
		u.Path = strings.ReplaceAll(u.Path, "//", "/")
	}
	return u.String()
}
