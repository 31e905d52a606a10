package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/mprscape/pkg/buildinfo"
	perrors "github.com/matzehuels/mprscape/pkg/errors"
	mio "github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/pipeline"
	"github.com/matzehuels/mprscape/pkg/recon"
)

// =============================================================================
// Request Handling
// =============================================================================

// decode reads the request body into a problem and merged options.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (recon.Problem, pipeline.Options, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return recon.Problem{}, pipeline.Options{}, perrors.Wrap(perrors.ErrCodeInvalidInput, err,
				"request body exceeds %d bytes", tooLarge.Limit)
		}
		return recon.Problem{}, pipeline.Options{}, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode request")
	}
	prob, err := req.Problem.Problem()
	if err != nil {
		return recon.Problem{}, pipeline.Options{}, err
	}
	return prob, req.Options.Merge(s.cfg.Defaults), nil
}

// reconcile decodes the request and builds its graph, writing the error
// response on failure.
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) (*pipeline.Result, pipeline.Options, bool) {
	prob, opts, err := s.decode(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return nil, opts, false
	}
	res, err := s.runner.Reconcile(r.Context(), prob, opts)
	if err != nil {
		s.respondError(w, r, err)
		return nil, opts, false
	}
	return res, opts, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: perrors.UserMessage(err),
		Code:    string(perrors.GetCode(err)),
		Status:  status,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// The client is gone; the status is only logged.
		return 499
	case perrors.IsClientError(err):
		return http.StatusBadRequest
	case perrors.Is(err, perrors.ErrCodeNotFound), perrors.Is(err, perrors.ErrCodeFileNotFound):
		return http.StatusNotFound
	case perrors.Is(err, perrors.ErrCodeUnsupported):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Build:  buildinfo.Get(),
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Time:   time.Now().UTC(),
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	g := res.Graph
	s.respondJSON(w, http.StatusOK, ReconcileResponse{
		RunID:       res.RunID,
		ProblemHash: res.ProblemHash,
		MinCost:     g.MinCost().Float(),
		Count:       g.TotalCount().String(),
		Nodes:       g.Len(),
		Events:      g.EventCount(),
		CacheHit:    res.CacheHit,
		Graph:       mio.GraphDocOf(g),
	})
}

func (s *Server) handleMedian(w http.ResponseWriter, r *http.Request) {
	res, opts, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	med, err := s.runner.Median(r.Context(), res.Graph, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, MedianResponse{
		RunID:          res.RunID,
		Reconciliation: mio.ReconciliationDocOf(res.Problem, med),
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	res, opts, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	samples, err := s.runner.Sample(r.Context(), res.Graph, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := SampleResponse{RunID: res.RunID, Reconciliations: make([]mio.ReconciliationDoc, len(samples))}
	for i, rc := range samples {
		resp.Reconciliations[i] = mio.ReconciliationDocOf(res.Problem, rc)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	res, opts, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	h, err := s.runner.Histogram(r.Context(), res.Graph, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, HistogramResponse{
		RunID:     res.RunID,
		Histogram: h,
		Diameter:  h.Diameter(),
		Mean:      h.Mean(),
		Pairs:     h.Total().String(),
	})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	res, opts, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	cl, err := s.runner.Cluster(r.Context(), res.Graph, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := ClusterResponse{
		RunID:                res.RunID,
		Groups:               make([]GroupResponse, len(cl.Groups)),
		MeanDistance:         cl.Histogram.Mean(),
		WeightedMeanDistance: cl.WeightedMeanDistance(),
	}
	if imp := cl.Improvement(); !math.IsInf(imp, 0) {
		resp.Improvement = &imp
	}
	for i, grp := range cl.Groups {
		resp.Groups[i] = GroupResponse{
			Count:        grp.Count().String(),
			MeanDistance: grp.MeanDistance(),
			Histogram:    grp.Histogram,
			Graph:        mio.GraphDocOf(grp.Graph),
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	prob, opts, err := s.decode(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	regions, err := s.runner.Regions(r.Context(), prob, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	opts.SetDefaults()
	s.respondJSON(w, http.StatusOK, RegionsResponse{
		RunID:   uuid.NewString(),
		Rect:    opts.Region,
		Regions: regions,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	prob, opts, err := s.decode(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.runner.Stats(r.Context(), prob, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, StatsResponse{RunID: uuid.NewString(), Result: res})
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := mio.WriteCSV(&buf, res.Graph); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Run-ID", res.RunID)
	_, _ = w.Write(buf.Bytes())
}

// handleDOT renders the graph as DOT, or as SVG with ?format=svg. Event
// frequencies are added to the labels with ?frequencies=true.
func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	withFreq := false
	if v := q.Get("frequencies"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, r, perrors.New(perrors.ErrCodeInvalidInput, "frequencies: %q is not a boolean", v))
			return
		}
		withFreq = b
	}
	format := q.Get("format")
	if format != "" && format != "dot" && format != "svg" {
		s.respondError(w, r, perrors.New(perrors.ErrCodeUnsupported, "format %q (want dot or svg)", format))
		return
	}

	res, _, ok := s.reconcile(w, r)
	if !ok {
		return
	}
	dot := mio.ToDOT(res.Graph, mio.DOTOptions{Frequencies: withFreq})
	w.Header().Set("X-Run-ID", res.RunID)
	if format != "svg" {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		_, _ = w.Write([]byte(dot))
		return
	}
	svg, err := mio.RenderSVG(r.Context(), dot)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}
