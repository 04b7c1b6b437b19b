package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/leapstack-labs/schemagraph/internal/notifier"
	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
	"github.com/leapstack-labs/schemagraph/pkg/layout"
)

// keepAlive is the SSE comment interval that keeps idle proxies open.
const keepAlive = 30 * time.Second

// DiagramRequest is the JSON body of POST /api/diagram and PUT /api/source.
// A body of any other content type is taken as raw SQL.
type DiagramRequest struct {
	SQL       string           `json:"sql"`
	Focus     string           `json:"focus,omitempty"`
	Direction layout.Direction `json:"direction,omitempty"`
}

// DiagramResponse carries a diagram and its fingerprint.
type DiagramResponse struct {
	Fingerprint string        `json:"fingerprint"`
	Diagram     *core.Diagram `json:"diagram"`
	// Skipped lists statements that failed and were left out.
	Skipped []string `json:"skipped,omitempty"`
}

// SourceResponse acknowledges PUT /api/source.
type SourceResponse struct {
	Fingerprint string `json:"fingerprint"`
	Changed     bool   `json:"changed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	opts := s.cfg.Diagram
	if req.Focus != "" {
		opts.Focus = req.Focus
	}
	if req.Direction != "" {
		opts.Layout.Direction = req.Direction
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := diagram.Generate(ctx, req.SQL, opts)
	if err != nil {
		s.generateFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response(res))
}

func (s *Server) handlePutSource(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, changed, err := s.SetSource(ctx, req.SQL)
	if err != nil {
		s.generateFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SourceResponse{Fingerprint: res.Fingerprint, Changed: changed})
}

func (s *Server) handleSourceDiagram(w http.ResponseWriter, r *http.Request) {
	res := s.Current()
	if res == nil {
		writeError(w, http.StatusNotFound, "no source loaded")
		return
	}

	etag := `"` + res.Fingerprint + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, response(res))
}

// handleEvents streams a "ready" event with the current fingerprint, then a
// "source" event whenever the served diagram changes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ready := notifier.Event{}
	if cur := s.Current(); cur != nil {
		ready.Fingerprint = cur.Fingerprint
	}
	writeEvent(w, "ready", ready)
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeEvent(w, "source", ev)
			flusher.Flush()
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// readRequest decodes the body, writing the error response itself when it
// cannot.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (DiagramRequest, bool) {
	var req DiagramRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return req, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return req, false
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		req.SQL = string(body)
		return req, true
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) generateFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "diagram generation timed out")
	case r.Context().Err() != nil:
		// client went away; nobody is listening
	default:
		s.logger.Error("diagram generation failed",
			slog.Any("error", err),
			slog.String("request_id", RequestIDFromContext(r.Context())))
		writeError(w, http.StatusInternalServerError, "diagram generation failed")
	}
}

func response(res *diagram.Result) DiagramResponse {
	out := DiagramResponse{Fingerprint: res.Fingerprint, Diagram: res.Diagram}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, sk.Error())
	}
	return out
}

// etagMatch implements the If-None-Match comparison, ignoring weak markers.
func etagMatch(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "W/")
		if part == "*" || part == etag {
			return true
		}
	}
	return false
}

func writeEvent(w io.Writer, name string, ev notifier.Event) {
	data, _ := json.Marshal(ev)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"code":    status,
		"message": msg,
	})
}
