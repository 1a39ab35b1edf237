package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"net/http"
	"net/url"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
	"golang.org/x/sync/singleflight"
)

// ErrUnsupportedScheme is returned for image sources that are neither
// http(s) URLs, file:// URLs nor plain paths.
var ErrUnsupportedScheme = errors.New("unsupported image source scheme")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetcher loads and decodes images by URL.
//
// Remote sources are fetched with a single anonymous GET: no cookies, no
// credentials and no custom headers. Local paths and file:// URLs are read
// from disk. Decoding is delegated to the image format registry; PNG, JPEG,
// GIF, WebP, BMP and TIFF are registered.
//
// Concurrent loads of the same source share one outstanding request. Nothing
// is cached once the request completes.
//
// Fetcher is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	group  singleflight.Group
	log    logrus.FieldLogger
}

// NewFetcher creates a Fetcher whose remote requests give up after timeout.
// A zero timeout means no limit beyond the caller's context.
func NewFetcher(timeout time.Duration, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

type loadResult struct {
	img image.Image
}

// Load fetches and decodes src.
//
// The returned error wraps the transport, status or decode failure. If ctx is
// cancelled first, Load returns ctx.Err(); a request shared with other callers
// keeps running for them.
func (f *Fetcher) Load(ctx context.Context, src string) (image.Image, error) {
	ch := f.group.DoChan(src, func() (interface{}, error) {
		start := time.Now()
		img, err := f.load(context.WithoutCancel(ctx), src)
		entry := f.log.WithFields(logrus.Fields{
			"source":  src,
			"elapsed": time.Since(start).Round(time.Millisecond),
		})
		if err != nil {
			entry.WithError(err).Warn("Image load failed")
			return nil, err
		}
		b := img.Bounds()
		entry.WithField("size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy())).Debug("Image loaded")
		return loadResult{img: img}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(loadResult).img, nil
	}
}

func (f *Fetcher) load(ctx context.Context, src string) (image.Image, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image source: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchRemote(ctx, src)
	case "file":
		return openLocal(u.Path)
	case "":
		return openLocal(src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, src string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: src, Code: resp.StatusCode}
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func openLocal(path string) (image.Image, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return img, nil
}
