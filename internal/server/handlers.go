package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/feature"
	"github.com/areal-labs/overlay-cli/internal/join"
	"github.com/areal-labs/overlay-cli/internal/layerio"
	"github.com/areal-labs/overlay-cli/internal/overlay"
)

type interpolateRequest struct {
	Source    json.RawMessage `json:"source"`
	Target    json.RawMessage `json:"target"`
	Attrs     []string        `json:"attrs"`
	Extensive []string        `json:"extensive"`
	Strict    bool            `json:"strict"`
	Workers   int             `json:"workers"`
}

type joinRequest struct {
	Left      json.RawMessage `json:"left"`
	Right     json.RawMessage `json:"right"`
	Predicate string          `json:"predicate"`
	Largest   bool            `json:"largest"`
	Inner     bool            `json:"inner"`
	Distance  float64         `json:"distance"`
}

type aggregateRequest struct {
	Layer    json.RawMessage   `json:"layer"`
	GroupBy  string            `json:"group_by"`
	Reducers map[string]string `json:"reducers"`
}

// opResponse is the envelope for all operation endpoints: the result layer
// plus any diagnostics gathered while computing it.
type opResponse struct {
	RunID       string               `json:"run_id,omitempty"`
	Result      json.RawMessage      `json:"result"`
	Diagnostics []feature.Diagnostic `json:"diagnostics,omitempty"`
	Failed      []int                `json:"failed,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInterpolate(w http.ResponseWriter, r *http.Request) {
	var req interpolateRequest
	if err := decodeBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		return
	}

	src, err := layerio.DecodeGeoJSON(bytes.NewReader(req.Source))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode source"))
		return
	}
	tgt, err := layerio.DecodeGeoJSON(bytes.NewReader(req.Target))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode target"))
		return
	}

	extensive := make(map[string]bool, len(req.Extensive))
	for _, a := range req.Extensive {
		extensive[a] = true
	}

	targets := make([]geom.T, len(tgt.Features))
	for i, f := range tgt.Features {
		targets[i] = f.Geometry
	}

	runID := s.recordRun(r, "interpolate", req)

	out, report, err := overlay.Interpolate(r.Context(), s.prov, src, targets, req.Attrs, overlay.Options{
		Extensive:  extensive,
		Strict:     req.Strict,
		Workers:    req.Workers,
		TargetSRID: tgt.SRID,
	})
	s.respond(w, r, runID, out, report, err)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		return
	}

	left, err := layerio.DecodeGeoJSON(bytes.NewReader(req.Left))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode left"))
		return
	}
	right, err := layerio.DecodeGeoJSON(bytes.NewReader(req.Right))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode right"))
		return
	}

	pred := req.Predicate
	if pred == "" {
		pred = "intersects"
	}
	predicate, err := join.ParsePredicate(pred)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runID := s.recordRun(r, "join", req)

	out, report, err := join.Join(s.prov, left, right, predicate, join.Options{
		Largest:  req.Largest,
		Inner:    req.Inner,
		Distance: req.Distance,
	})
	s.respond(w, r, runID, out, report, err)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := decodeBody(w, r, &req, s.cfg.MaxBodyBytes); err != nil {
		return
	}

	layer, err := layerio.DecodeGeoJSON(bytes.NewReader(req.Layer))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode layer"))
		return
	}

	reducers := make(map[string]join.Reducer, len(req.Reducers))
	for attr, name := range req.Reducers {
		red, err := join.ParseReducer(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		reducers[attr] = red
	}

	runID := s.recordRun(r, "aggregate", req)

	out, report, err := join.Aggregate(s.prov, layer, req.GroupBy, reducers)
	s.respond(w, r, runID, out, report, err)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: run store disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("server: run store disabled"))
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// recordRun opens a run record when a store is configured. Returns the run
// ID, or empty when recording is off.
func (s *Server) recordRun(r *http.Request, op string, params any) string {
	if s.store == nil {
		return ""
	}
	run, err := s.store.CreateRun(r.Context(), op, params)
	if err != nil {
		zap.L().Warn("record run", zap.String("op", op), zap.Error(err))
		return ""
	}
	return run.ID
}

// respond finishes the run record and writes the operation envelope.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, runID string, out *feature.Collection, report *overlay.Report, err error) {
	if err != nil {
		if s.store != nil && runID != "" {
			if ferr := s.store.FailRun(r.Context(), runID, err.Error()); ferr != nil {
				zap.L().Warn("fail run", zap.String("run", runID), zap.Error(ferr))
			}
		}
		writeError(w, statusFor(err), err)
		return
	}

	var buf bytes.Buffer
	if err := layerio.EncodeGeoJSON(&buf, out); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := opResponse{RunID: runID, Result: buf.Bytes()}
	if report != nil {
		resp.Diagnostics = report.Diagnostics
		resp.Failed = report.Failed
	}

	if s.store != nil && runID != "" {
		if ferr := s.store.FinishRun(r.Context(), runID, out.Len(), buf.Bytes(), resp.Diagnostics); ferr != nil {
			zap.L().Warn("finish run", zap.String("run", runID), zap.Error(ferr))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps well-known operation errors to 400; everything else is 500.
func statusFor(err error) int {
	switch {
	case eris.Is(err, feature.ErrMissingAttribute),
		eris.Is(err, overlay.ErrNotNumeric),
		eris.Is(err, overlay.ErrSRIDMismatch),
		eris.Is(err, overlay.ErrInvalidGeometry),
		eris.Is(err, overlay.ErrDegenerateArea):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: decode request"))
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
