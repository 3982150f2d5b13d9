package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/seascope/internal/app"
	"github.com/KaramelBytes/seascope/internal/config"
	"github.com/KaramelBytes/seascope/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCasts(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("DATE,VESSEL,CRUISE-CODE,SAMPLING DEPTH,CTD TEMPERATURE (ITS-90),CTD SALINITY (PSS-78),DISSOLVED OXYGEN\n")
	for i := 0; i < n; i++ {
		depth := float64(10 + (i%5)*50)
		fmt.Fprintf(&b, "%d-%02d-10,Sarmiento de Gamboa,GIFT%d,%.0f,%.2f,%.3f,%.1f\n",
			2019+i/12, i%12+1, 2019+i/12, depth, 17-depth/50, 36.4+depth/250, 210-depth/3)
	}
	path := filepath.Join(dir, "casts.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func newServer(t *testing.T, watch bool) (*Server, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Path = writeCasts(t, t.TempDir(), 24)
	a := app.New(cfg, metrics.New(), nil)
	return New(a, Config{Addr: "127.0.0.1:0", Watch: watch}), cfg.Data.Path
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := newServer(t, false)
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDPropagates(t *testing.T) {
	s, _ := newServer(t, false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestSummary(t *testing.T) {
	s, _ := newServer(t, false)
	rec := get(t, s.Handler(), "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 24, summary["observations"])
}

func TestErrorStatuses(t *testing.T) {
	s, _ := newServer(t, false)
	h := s.Handler()

	tests := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"bad float", "/api/hypoxia?threshold=abc", http.StatusBadRequest, "invalid_parameter"},
		{"bad int", "/api/cluster?k=two", http.StatusBadRequest, "invalid_parameter"},
		{"k too small", "/api/cluster?k=1", http.StatusBadRequest, "invalid_parameter"},
		{"bad period", "/api/temporal?period=decade", http.StatusBadRequest, "invalid_parameter"},
		{"inverted bounds", "/api/watermass?lower=38&upper=37", http.StatusBadRequest, "invalid_parameter"},
		{"unknown column", "/api/trend?column=PH", http.StatusUnprocessableEntity, "schema_mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestMissingDataIsBadGateway(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Path = filepath.Join(t.TempDir(), "absent.csv")
	s := New(app.New(cfg, nil, nil), Config{})
	rec := get(t, s.Handler(), "/api/summary")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "source_unavailable", decode(t, rec)["kind"])
}

func TestWaterMassAndHypoxia(t *testing.T) {
	s, _ := newServer(t, false)
	h := s.Handler()

	rec := get(t, h, "/api/watermass")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 24, body["labeled"])
	assert.NotEmpty(t, body["groups"])

	rec = get(t, h, "/api/hypoxia?threshold=150")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.EqualValues(t, 150, body["threshold"])
}

func TestReportFormats(t *testing.T) {
	s, _ := newServer(t, false)
	h := s.Handler()

	rec := get(t, h, "/api/report?format=markdown")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "Observations: 24")

	rec = get(t, h, "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "summary")
}

func TestReloadAndMetrics(t *testing.T) {
	s, _ := newServer(t, false)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 24, decode(t, rec)["rows"])

	rec = get(t, h, "/api/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `seascope_http_requests_total{code="200",method="POST",route="/api/reload"} 1`)
	assert.Contains(t, out, "seascope_dataset_rows 24")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newServer(t, false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok\n", string(b))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWatchInvalidatesCache(t *testing.T) {
	s, path := newServer(t, true)
	_, err := s.app.Dataset(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, s.app.Loader.Cache().Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx) }()

	// Give the watcher time to register before touching the file.
	time.Sleep(200 * time.Millisecond)
	writeCasts(t, filepath.Dir(path), 30)

	assert.Eventually(t, func() bool { return s.app.Loader.Cache().Len() == 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestWatchIgnoresRemoteData(t *testing.T) {
	cfg := config.Default()
	cfg.Data.Path = "s3://bucket/casts.csv"
	s := New(app.New(cfg, nil, nil), Config{Watch: true})
	assert.NoError(t, s.watch(context.Background()))
}
