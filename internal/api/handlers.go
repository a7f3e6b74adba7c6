package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/report"
	"trading-backtestv1/internal/returns"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errorStatus maps a run failure to an HTTP status and body.
func errorStatus(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error()}
	var ipe *backtest.InvalidParameterError
	switch {
	case errors.As(err, &ipe):
		body.Field, body.Reason = ipe.Field, ipe.Reason
		return http.StatusBadRequest, body
	case errors.Is(err, backtest.ErrNoData):
		return http.StatusNotFound, body
	default:
		return http.StatusInternalServerError, body
	}
}

// preflight handles CORS and method checks; it reports whether the handler
// should continue.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	var req backtest.Request
	if !decode(w, r, &req) {
		return
	}

	rep, err := s.runner.Run(r.Context(), req)
	if err != nil {
		code, body := errorStatus(err)
		writeJSON(w, code, body)
		return
	}
	s.remember(rep)

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if err := report.WriteMarkdown(w, rep); err == nil {
			report.Comparison(w, rep)
		}
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// BatchRequest is the body of POST /api/v1/backtest/batch.
type BatchRequest struct {
	Workers  int                `json:"workers,omitempty"`
	Requests []backtest.Request `json:"requests"`
}

const maxBatch = 50

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Requests) == 0 || len(req.Requests) > maxBatch {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "requests must hold 1 to 50 entries", Field: "requests"})
		return
	}
	workers := req.Workers
	if workers <= 0 || workers > s.workers {
		workers = s.workers
	}

	out := s.runner.RunAll(r.Context(), req.Requests, workers)
	for _, br := range out {
		if br.Report != nil {
			s.remember(br.Report)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// remember records a finished report for /api/v1/runs.
func (s *Server) remember(rep *backtest.Report) {
	s.recent.Push(rep)
	if s.health != nil {
		s.health.SetLastRun(time.Now())
	}
}

// RunSummary is one entry of GET /api/v1/runs.
type RunSummary struct {
	RunID   string          `json:"run_id"`
	Symbol  string          `json:"symbol"`
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Bars    int             `json:"bars"`
	Results []ResultSummary `json:"results"`
}

type ResultSummary struct {
	Strategy string          `json:"strategy"`
	Summary  returns.Summary `json:"summary"`
	Error    string          `json:"error,omitempty"`
}

func summarize(rep *backtest.Report) RunSummary {
	rs := RunSummary{RunID: rep.RunID, Symbol: rep.Symbol, Start: rep.Start, End: rep.End, Bars: rep.Bars}
	add := func(res *backtest.Result) {
		rs.Results = append(rs.Results, ResultSummary{Strategy: res.Strategy, Summary: res.Summary, Error: res.Error})
	}
	for i := range rep.Results {
		add(&rep.Results[i])
	}
	if rep.Combined != nil {
		add(rep.Combined)
	}
	return rs
}

// handleRuns lists recent reports, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	reps := s.recent.Snapshot()
	out := make([]RunSummary, 0, len(reps))
	for i := len(reps) - 1; i >= 0; i-- {
		out = append(out, summarize(reps[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	id := r.PathValue("id")
	rep, ok := s.recent.Find(func(rep *backtest.Report) bool { return rep.RunID == id })
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown run " + id})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
