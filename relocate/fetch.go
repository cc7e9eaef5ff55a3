package relocate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Fetcher is an HTTP GET client for media assets.  The Client field is
// substitutable, e.g. for a go-vcr recorder or an httptest transport.
// Redirects are followed by the default client behaviour.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:  &http.Client{},
		Timeout: 30 * time.Second,
	}
}

// PermanentError is an HTTP failure that retrying won't fix.
type PermanentError struct {
	URL    string
	Status string
	Code   int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("relocate: permanent fetch failure for %s: %s", e.URL, e.Status)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// FetchToFile downloads rawURL to dest, creating parent directories as
// needed.  The body lands in a temp file first so an interrupted download
// never leaves a partial file that a later run would mistake for a cached
// asset.
func (f *Fetcher) FetchToFile(ctx context.Context, rawURL, dest string) error {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("relocate: couldn't instantiate http request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	response, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("relocate: couldn't perform http request: %w", err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
		// fall through to write the body
	case response.StatusCode >= 500:
		return fmt.Errorf("relocate: server error for %s: %s", rawURL, response.Status)
	case response.StatusCode >= 400:
		return &PermanentError{URL: rawURL, Status: response.Status, Code: response.StatusCode}
	default:
		return fmt.Errorf("relocate: unexpected HTTP response status for %s: %s", rawURL, response.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("relocate: couldn't create directory for %s: %w", dest, err)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("relocate: couldn't create file %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, response.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("relocate: couldn't write body to %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("relocate: couldn't close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("relocate: couldn't move %s into place: %w", tmp, err)
	}
	return nil
}
