package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/contractgraph"
	"github.com/brunobiangulo/contractgraph/parser"
)

// service is the part of the pipeline the handlers use.
type service interface {
	Run(ctx context.Context, path string, opts contractgraph.RunOptions) (*contractgraph.RunResult, error)
	Summarize(ctx context.Context, req contractgraph.SummaryRequest) ([]byte, error)
	Status(ctx context.Context, limit int) (*contractgraph.Status, error)
	DocumentStatus(ctx context.Context, docID string) (*contractgraph.DocumentStatus, error)
}

type handler struct {
	svc     service
	dataDir string
}

func newHandler(svc service, dataDir string) *handler {
	return &handler{svc: svc, dataDir: dataDir}
}

// POST /process
// Accepts a multipart PDF upload or JSON with a file path.
func (h *handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var (
		path string
		opts contractgraph.RunOptions
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
			writeError(w, http.StatusBadRequest, "invalid multipart upload")
			return
		}
		saved, err := h.saveUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		path = saved
		opts.Method = r.FormValue("method")
		opts.Force = r.FormValue("force") == "true"
	} else {
		var req struct {
			Path   string `json:"path"`
			Method string `json:"method,omitempty"`
			Force  bool   `json:"force,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		abs, err := filepath.Abs(req.Path)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid path")
			return
		}
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			writeError(w, http.StatusBadRequest, "path must be an existing file")
			return
		}
		path, opts = abs, contractgraph.RunOptions{Method: req.Method, Force: req.Force}
	}

	res, err := h.svc.Run(ctx, path, opts)
	if err != nil {
		writeError(w, statusFor(err), "processing failed: "+err.Error())
		slog.Error("process error", "path", path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// saveUpload stores the "file" part under <data>/uploads so repeated
// uploads of the same contract hit the unchanged-PDF check.
func (h *handler) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", errors.New("file is required")
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", errors.New("only PDF uploads are supported")
	}
	dir := filepath.Join(h.dataDir, "uploads")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return filepath.Abs(dst.Name())
}

// GET /contracts/{id}/summary?source=graph|json&format=md|html
func (h *handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "md"
	}
	if format != "md" && format != "html" {
		writeError(w, http.StatusBadRequest, "format must be md or html")
		return
	}
	req := contractgraph.SummaryRequest{HTML: format == "html"}
	switch q.Get("source") {
	case "", "graph":
		req.DocumentID = id
	case "json":
		req.InputPath = contractgraph.EnhancedPath(parser.OutputPath(filepath.Join(h.dataDir, id), parser.FormatJSON))
	default:
		writeError(w, http.StatusBadRequest, "source must be graph or json")
		return
	}

	out, err := h.svc.Summarize(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), "summary failed: "+err.Error())
		slog.Error("summary error", "doc_id", id, "error", err)
		return
	}
	if req.HTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /documents/{id}
func (h *handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ds, err := h.svc.DocumentStatus(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "document lookup failed: "+err.Error())
		slog.Error("get document error", "doc_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, contractgraph.ErrContractNotFound), errors.Is(err, contractgraph.ErrDocumentNotFound),
		errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, contractgraph.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, contractgraph.ErrNoUsableInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contractgraph.ErrGraphUnavailable), errors.Is(err, contractgraph.ErrParserNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
