package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leaplg/internal/lg"
	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/leapstack-labs/leaplg/internal/state"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type evaluateRequest struct {
	Scope any `json:"scope"`
}

type inlineRequest struct {
	Text  string `json:"text"`
	Scope any    `json:"scope"`
}

type evaluateResponse struct {
	Output  *string `json:"output"`
	Present bool    `json:"present"`
}

type expandResponse struct {
	Outputs []string `json:"outputs"`
}

type analyzeResponse struct {
	Variables          []string `json:"variables"`
	TemplateReferences []string `json:"templateReferences"`
}

type templateInfo struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
}

type diagnosticInfo struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Template string `json:"template,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

type evaluationInfo struct {
	ID         string          `json:"id"`
	Template   string          `json:"template"`
	Mode       string          `json:"mode"`
	Scope      json.RawMessage `json:"scope"`
	Output     json.RawMessage `json:"output"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	DurationMS float64         `json:"durationMs"`
}

type errorResponse struct {
	Error       string           `json:"error"`
	Diagnostics []diagnosticInfo `json:"diagnostics,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"templates": s.engine.Store().Len(),
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := s.engine.Store().Templates()
	out := make([]templateInfo, 0, len(templates))
	for _, t := range templates {
		params := t.Parameters
		if params == nil {
			params = []string{}
		}
		out = append(out, templateInfo{
			Name:       t.Name,
			Parameters: params,
			File:       t.Pos.File,
			Line:       t.Pos.Line,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toDiagnosticInfos(s.engine.Diagnostics()))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.requireTemplate(w, name) {
		return
	}
	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	res, err := s.engine.EvaluateTemplate(name, req.Scope)
	s.record(r.Context(), name, state.ModeEvaluate, req.Scope, outputOf(res, err), err, start)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluateResponse(res))
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.requireTemplate(w, name) {
		return
	}
	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	outputs, err := s.engine.ExpandTemplate(name, req.Scope)
	s.record(r.Context(), name, state.ModeExpand, req.Scope, outputs, err, start)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if outputs == nil {
		outputs = []string{}
	}
	writeJSON(w, http.StatusOK, expandResponse{Outputs: outputs})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.requireTemplate(w, name) {
		return
	}
	res, err := s.engine.AnalyzeTemplate(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Variables:          nonNil(res.Variables),
		TemplateReferences: nonNil(res.TemplateReferences),
	})
}

func (s *Server) handleInline(w http.ResponseWriter, r *http.Request) {
	var req inlineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	start := time.Now()
	body, err := lgfile.ParseInline(req.Text)
	var res lg.Result
	if err == nil {
		res, err = s.engine.EvaluateInline(body, req.Scope)
	}
	s.record(r.Context(), lg.InlineTemplateName, state.ModeInline, req.Scope, outputOf(res, err), err, start)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluateResponse(res))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history recording is disabled"))
		return
	}
	opts := state.ListOptions{Template: r.URL.Query().Get("template")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		opts.Limit = n
	}

	evals, err := s.history.ListEvaluations(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]evaluationInfo, 0, len(evals))
	for _, e := range evals {
		out = append(out, toEvaluationInfo(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("history recording is disabled"))
		return
	}
	e, err := s.history.GetEvaluation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, state.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationInfo(e))
}

// handleEvents streams reload events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) requireTemplate(w http.ResponseWriter, name string) bool {
	if s.engine.Store().Has(name) {
		return true
	}
	writeError(w, http.StatusNotFound, lg.NewTemplateNotFoundError(lg.Position{}, name))
	return false
}

// record stores an evaluation in the history store, if one is configured.
// Failures are logged and never fail the request.
func (s *Server) record(ctx context.Context, template string, mode state.Mode, scope, output any, evalErr error, start time.Time) {
	if s.history == nil {
		return
	}
	e := state.NewEvaluation(template, mode, scope, output, evalErr, start)
	if err := s.history.RecordEvaluation(ctx, e); err != nil {
		s.logger.Warn("failed to record evaluation", slog.String("template", template), slog.Any("error", err))
	}
}

// outputOf is the recorded output of an evaluation: the text, or nil when
// there was none.
func outputOf(res lg.Result, err error) any {
	if err != nil || !res.Present {
		return nil
	}
	return res.Text
}

// statusFor maps evaluation errors to HTTP status codes.
func statusFor(err error) int {
	var (
		checkErr *lg.CheckError
		lgErr    lg.Error
		fileErr  lgfile.Error
	)
	switch {
	case errors.As(err, &checkErr), errors.As(err, &lgErr), errors.As(err, &fileErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var checkErr *lg.CheckError
	if errors.As(err, &checkErr) {
		resp.Diagnostics = toDiagnosticInfos(checkErr.Diagnostics)
	}
	writeJSON(w, status, resp)
}

func toEvaluateResponse(res lg.Result) evaluateResponse {
	if !res.Present {
		return evaluateResponse{}
	}
	text := res.Text
	return evaluateResponse{Output: &text, Present: true}
}

func toDiagnosticInfos(diags lg.Diagnostics) []diagnosticInfo {
	out := make([]diagnosticInfo, 0, len(diags))
	for _, d := range diags {
		info := diagnosticInfo{
			Message:  d.Message,
			Severity: d.Severity.String(),
			Template: d.Template,
		}
		if d.Range != nil {
			info.File = d.Range.Start.File
			info.Line = d.Range.Start.Line
			info.Column = d.Range.Start.Column
		}
		out = append(out, info)
	}
	return out
}

func toEvaluationInfo(e *state.Evaluation) evaluationInfo {
	return evaluationInfo{
		ID:         e.ID,
		Template:   e.Template,
		Mode:       string(e.Mode),
		Scope:      e.Scope,
		Output:     e.Output,
		Error:      e.Error,
		StartedAt:  e.StartedAt,
		DurationMS: float64(e.Duration) / float64(time.Millisecond),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
