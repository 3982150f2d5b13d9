package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/KaramelBytes/seascope/internal/errs"
	"github.com/KaramelBytes/seascope/internal/render"
	"go.uber.org/zap"
)

// statusFor maps error kinds to HTTP statuses.
func statusFor(err error) int {
	k, ok := errs.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch k {
	case errs.InvalidParameter:
		return http.StatusBadRequest
	case errs.SchemaMismatch, errs.InsufficientData:
		return http.StatusUnprocessableEntity
	case errs.SourceUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error     string         `json:"error"`
	Kind      string         `json:"kind,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error(), RequestID: requestIDFrom(r.Context())}
	var e *errs.Error
	if errors.As(err, &e) {
		body.Kind, body.Stage, body.Details = string(e.Kind), string(e.Stage), e.Details
	}
	if code >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, code, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := render.Marshal(v)
	if err != nil {
		s.log.Error("encode response", zap.Error(err))
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// respond writes v, or the error when err is set.
func respond[T any](s *Server, w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func badParam(name, raw string, err error) error {
	return errs.Wrap(err, errs.InvalidParameter, errs.StageAnalysis, "query parameter "+name+"="+strconv.Quote(raw)).
		WithDetail("parameter", name)
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badParam(name, raw, err)
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(name, raw, err)
	}
	return v, nil
}

func stringParam(r *http.Request, name, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	return def
}

// listParam splits a comma separated list; repeated parameters are joined.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Overview(r.Context())
	respond(s, w, r, v, err)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.app.Columns(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type column struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	out := make([]column, len(cols))
	for i, c := range cols {
		out[i] = column{Name: c[0], Kind: c[1]}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Describe(r.Context(), listParam(r, "columns"))
	respond(s, w, r, v, err)
}

func (s *Server) handleCorrelate(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Cfg.Analysis
	minPeriods, err := intParam(r, "min_periods", cfg.MinPeriods)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.Correlate(r.Context(), listParam(r, "columns"), stringParam(r, "method", cfg.CorrelationMethod), minPeriods)
	respond(s, w, r, v, err)
}

func (s *Server) handleWaterMass(w http.ResponseWriter, r *http.Request) {
	t := s.app.Cfg.Thresholds
	lower, err := floatParam(r, "lower", t.AtlanticMax)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	upper, err := floatParam(r, "upper", t.MediterraneanMin)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.WaterMasses(r.Context(), lower, upper)
	respond(s, w, r, v, err)
}

func (s *Server) handleOutliers(w http.ResponseWriter, r *http.Request) {
	k, err := floatParam(r, "k", s.app.Cfg.Thresholds.OutlierIQR)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.Outliers(r.Context(), stringParam(r, "column", s.app.Cfg.Columns.Temperature), k)
	respond(s, w, r, v, err)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	th, err := floatParam(r, "threshold", s.app.Cfg.Thresholds.ZScore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.Anomalies(r.Context(), stringParam(r, "column", s.app.Cfg.Columns.Temperature), th)
	respond(s, w, r, v, err)
}

func (s *Server) handleTemporal(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Cfg
	v, err := s.app.Temporal(r.Context(),
		stringParam(r, "column", cfg.Columns.Temperature),
		stringParam(r, "period", cfg.Analysis.Period),
		stringParam(r, "agg", cfg.Analysis.Aggregation))
	respond(s, w, r, v, err)
}

func (s *Server) handleSeasonal(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Seasonal(r.Context(), stringParam(r, "column", s.app.Cfg.Columns.Temperature))
	respond(s, w, r, v, err)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Trend(r.Context(), stringParam(r, "column", s.app.Cfg.Columns.Temperature))
	respond(s, w, r, v, err)
}

func (s *Server) handlePCA(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "components", s.app.Cfg.Analysis.Components)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.PCA(r.Context(), listParam(r, "columns"), n)
	respond(s, w, r, v, err)
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	k, err := intParam(r, "k", s.app.Cfg.Analysis.Clusters)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.Cluster(r.Context(), listParam(r, "columns"), k)
	respond(s, w, r, v, err)
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Campaigns(r.Context())
	respond(s, w, r, v, err)
}

func (s *Server) handleVessels(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Vessels(r.Context())
	respond(s, w, r, v, err)
}

func (s *Server) handleNutrients(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Nutrients(r.Context())
	respond(s, w, r, v, err)
}

func (s *Server) handleHypoxia(w http.ResponseWriter, r *http.Request) {
	th, err := floatParam(r, "threshold", s.app.Cfg.Thresholds.Hypoxia)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.app.Hypoxia(r.Context(), th)
	respond(s, w, r, v, err)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Profile(r.Context(), stringParam(r, "variable", ""))
	respond(s, w, r, v, err)
}

// handleReport returns the overview as JSON, or as Markdown with
// ?format=markdown.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.app.Report(r.Context(), listParam(r, "columns"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if f := stringParam(r, "format", "json"); f == "markdown" || f == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(rep.Markdown()))
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	d, err := s.app.Reload(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("dataset reloaded", zap.String("dataset_id", d.ID), zap.Int("rows", d.Len()))
	s.writeJSON(w, http.StatusOK, map[string]any{"dataset_id": d.ID, "rows": d.Len(), "columns": len(d.Columns())})
}
