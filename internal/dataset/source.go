package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Source reads raw bytes from one kind of location.
type Source interface {
	// CanOpen reports whether the source handles location.
	CanOpen(location string) bool
	// Stat returns a modification signature; a change means the content
	// changed. An empty signature means the content cannot be versioned.
	Stat(ctx context.Context, location string) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Registry dispatches locations to the first source that accepts them.
type Registry struct {
	sources []Source
}

// NewRegistry returns a registry holding the given sources in priority order.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// SourceOptions configures the default sources.
type SourceOptions struct {
	HTTPTimeout time.Duration
	S3Region    string
	GCSEndpoint string
}

// DefaultRegistry registers the object-store, HTTP and local file sources.
func DefaultRegistry(opt SourceOptions) *Registry {
	r := NewRegistry()
	r.Register(NewS3Source(opt.S3Region))
	r.Register(NewGCSSource(opt.GCSEndpoint))
	r.Register(NewHTTPSource(opt.HTTPTimeout))
	r.Register(FileSource{})
	return r
}

// Register appends a source. Earlier sources win.
func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
}

// Lookup returns the source responsible for location.
func (r *Registry) Lookup(location string) (Source, error) {
	for _, s := range r.sources {
		if s.CanOpen(location) {
			return s, nil
		}
	}
	return nil, errs.Newf(errs.SourceUnavailable, errs.StageLoad, "no source handles %q", location)
}

// Open opens location and transparently decompresses .gz and .zst content.
func (r *Registry) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	s, err := r.Lookup(location)
	if err != nil {
		return nil, err
	}
	rc, err := s.Open(ctx, location)
	if err != nil {
		return nil, asUnavailable(err, "open "+location)
	}
	dec, err := decompress(location, rc)
	if err != nil {
		_ = rc.Close()
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "decompress "+location)
	}
	return dec, nil
}

func objectName(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return strings.ToLower(u.Path)
	}
	return strings.ToLower(location)
}

func trimCompressionSuffix(location string) string {
	name := objectName(location)
	for _, ext := range []string{".gz", ".zst"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

type stackedCloser struct {
	io.Reader
	closers []func() error
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func decompress(location string, rc io.ReadCloser) (io.ReadCloser, error) {
	name := objectName(location)
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, err
		}
		return &stackedCloser{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }, rc.Close}}, nil
	default:
		return rc, nil
	}
}

// FileSource reads local files. It accepts any location without a URL scheme
// and file:// URLs.
type FileSource struct{}

func (FileSource) path(location string) string {
	return strings.TrimPrefix(location, "file://")
}

func (FileSource) CanOpen(location string) bool {
	if strings.HasPrefix(location, "file://") {
		return true
	}
	return !strings.Contains(location, "://")
}

func (f FileSource) Stat(_ context.Context, location string) (string, error) {
	fi, err := os.Stat(f.path(location))
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "stat "+location)
	}
	if fi.IsDir() {
		return "", errs.Newf(errs.SourceUnavailable, errs.StageLoad, "%s is a directory", location)
	}
	return fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size()), nil
}

func (f FileSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	fh, err := os.Open(f.path(location))
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "open "+location)
	}
	return fh, nil
}

// HTTPSource reads http(s) URLs, including share links with query strings.
type HTTPSource struct {
	Client *http.Client
}

// NewHTTPSource returns an HTTP source with the given client timeout.
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{Client: &http.Client{Timeout: timeout}}
}

func (h *HTTPSource) CanOpen(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Stat issues a HEAD request and uses ETag, falling back to Last-Modified and
// Content-Length. Servers that reject HEAD, or send neither ETag nor
// Last-Modified, yield an empty signature, which the Loader never caches.
func (h *HTTPSource) Stat(ctx context.Context, location string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "build request")
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return "", errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "head "+redact(location))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errs.Newf(errs.SourceUnavailable, errs.StageLoad, "head %s: unexpected status %s", redact(location), resp.Status)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		return etag, nil
	}
	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return "", nil
	}
	return lm + "|" + resp.Header.Get("Content-Length"), nil
}

func (h *HTTPSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "build request")
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.SourceUnavailable, errs.StageLoad, "get "+redact(location))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, errs.Newf(errs.SourceUnavailable, errs.StageLoad, "get %s: unexpected status %s: %s", redact(location), resp.Status, strings.TrimSpace(string(b)))
	}
	return resp.Body, nil
}

// redact drops query strings, which may carry share keys.
func redact(location string) string {
	if i := strings.IndexByte(location, '?'); i >= 0 {
		return location[:i] + "?***"
	}
	return location
}

// splitBucketPath splits scheme://bucket/key.
func splitBucketPath(location, scheme string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("not a %s:// location: %s", scheme, location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("expected %s://bucket/key, got %s", scheme, location)
	}
	return bucket, key, nil
}
