package dataset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu           sync.Mutex
	hits, misses int
	loads        int
	failures     int
}

func (c *countingRecorder) CacheHit(string)  { c.mu.Lock(); c.hits++; c.mu.Unlock() }
func (c *countingRecorder) CacheMiss(string) { c.mu.Lock(); c.misses++; c.mu.Unlock() }
func (c *countingRecorder) ObserveLoad(_ string, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if err != nil {
		c.failures++
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func testOptions() Options {
	return Options{DateColumn: "DATE", TextColumns: []string{"VESSEL", "CRUISE-CODE", "STATION-ID"}}
}

func TestLoaderCachesUntilSignatureChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "survey.csv", surveyCSV)
	rec := &countingRecorder{}
	cache := NewCache(rec)
	l := NewLoader(testOptions(), DefaultRegistry(SourceOptions{}), cache, WithRecorder(rec))
	ctx := context.Background()

	first, err := l.Load(ctx, path)
	require.NoError(t, err)
	second, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	// rewrite with a different size and a later mtime
	require.NoError(t, os.WriteFile(path, []byte(surveyCSV+"2021-05-01,X,C9,S9,1,14,36,1\n"), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
	third, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 6, third.Len())
	assert.Equal(t, 3, rec.loads)
}

func TestLoaderInvalidateAndReload(t *testing.T) {
	path := writeFile(t, t.TempDir(), "survey.csv", surveyCSV)
	cache := NewCache(nil)
	l := NewLoader(testOptions(), DefaultRegistry(SourceOptions{}), cache)
	ctx := context.Background()

	first, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Invalidate(path))
	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Invalidate(path))

	again, err := l.Reload(ctx, path)
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.Equal(t, first.Len(), again.Len())
	_, ok := cache.LoadedAt(path)
	assert.True(t, ok)
}

func TestLoaderMissingFileIsSourceUnavailable(t *testing.T) {
	rec := &countingRecorder{}
	l := NewLoader(testOptions(), DefaultRegistry(SourceOptions{}), NewCache(nil), WithRecorder(rec))
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable))
	assert.Equal(t, 1, rec.failures)

	_, err = l.Load(context.Background(), "")
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable))
}

func TestLoaderDecompresses(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(surveyCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gzPath := writeFile(t, dir, "survey.csv.gz", gz.String())

	var zs bytes.Buffer
	enc, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = enc.Write([]byte(surveyCSV))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	zsPath := writeFile(t, dir, "survey.csv.zst", zs.String())

	l := NewLoader(testOptions(), DefaultRegistry(SourceOptions{}), nil)
	for _, p := range []string{gzPath, zsPath} {
		d, err := l.Load(context.Background(), p)
		require.NoError(t, err, p)
		assert.Equal(t, 5, d.Len())
		assert.True(t, d.Has(ColYear))
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/survey.csv":
			assert.Equal(t, "k1", r.URL.Query().Get("rlkey"))
			w.Header().Set("ETag", `"v1"`)
			if r.Method == http.MethodHead {
				return
			}
			_, _ = io.WriteString(w, surveyCSV)
		default:
			http.Error(w, "no such file", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource(5 * time.Second)
	sig, err := src.Stat(context.Background(), srv.URL+"/survey.csv?rlkey=k1&dl=1")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, sig)

	l := NewLoader(testOptions(), NewRegistry(src), NewCache(nil))
	d, err := l.Load(context.Background(), srv.URL+"/survey.csv?rlkey=k1&dl=1")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Len())

	_, err = l.Load(context.Background(), srv.URL+"/missing.csv")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable))
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPSourceWithoutValidatorIsNotCached(t *testing.T) {
	var mu sync.Mutex
	gets := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			if r.URL.Path == "/nohead.csv" {
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
			return
		}
		mu.Lock()
		gets[r.URL.Path]++
		mu.Unlock()
		_, _ = io.WriteString(w, surveyCSV)
	}))
	defer srv.Close()

	src := NewHTTPSource(5 * time.Second)
	cache := NewCache(nil)
	l := NewLoader(testOptions(), NewRegistry(src), cache)
	ctx := context.Background()

	for _, path := range []string{"/nohead.csv", "/plain.csv"} {
		sig, err := src.Stat(ctx, srv.URL+path)
		require.NoError(t, err, path)
		assert.Empty(t, sig, path)

		for i := 0; i < 2; i++ {
			d, err := l.Load(ctx, srv.URL+path)
			require.NoError(t, err, path)
			assert.Equal(t, 5, d.Len())
		}
		mu.Lock()
		assert.Equal(t, 2, gets[path], "%s fetched on every load", path)
		mu.Unlock()
	}
	assert.Equal(t, 0, cache.Len())
}

type fakeS3 struct {
	objects map[string]string
	gets    int
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func TestS3Source(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"ocean/gift/survey.csv": surveyCSV}}
	reg := NewRegistry(NewS3SourceWithClient(fake), FileSource{})
	l := NewLoader(testOptions(), reg, NewCache(nil))
	ctx := context.Background()

	d, err := l.Load(ctx, "s3://ocean/gift/survey.csv")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Len())
	_, err = l.Load(ctx, "s3://ocean/gift/survey.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.gets, "second load served from cache")

	_, err = l.Load(ctx, "s3://ocean/missing.csv")
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable))
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry(SourceOptions{})
	for loc, want := range map[string]string{
		"s3://b/k.csv":         "*dataset.S3Source",
		"gs://b/k.csv":         "*dataset.GCSSource",
		"https://x.org/a.csv":  "*dataset.HTTPSource",
		"data/survey.csv":      "dataset.FileSource",
		"file:///tmp/data.csv": "dataset.FileSource",
	} {
		s, err := reg.Lookup(loc)
		require.NoError(t, err, loc)
		assert.Equal(t, want, typeName(s), loc)
	}
	_, err := reg.Lookup("ftp://host/file.csv")
	assert.True(t, errs.IsKind(err, errs.SourceUnavailable))
}

func typeName(v any) string {
	switch v.(type) {
	case *S3Source:
		return "*dataset.S3Source"
	case *GCSSource:
		return "*dataset.GCSSource"
	case *HTTPSource:
		return "*dataset.HTTPSource"
	case FileSource:
		return "dataset.FileSource"
	default:
		return "?"
	}
}

func TestSplitBucketPath(t *testing.T) {
	b, k, err := splitBucketPath("gs://bucket/dir/file.csv.gz", "gs")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "dir/file.csv.gz", k)

	_, _, err = splitBucketPath("gs://bucket", "gs")
	assert.Error(t, err)
}
