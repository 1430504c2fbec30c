// Package server exposes the translation pipeline over HTTP for the
// slide editor frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/valpere/slidetran/internal/editor"
	"github.com/valpere/slidetran/internal/enhancer"
	"github.com/valpere/slidetran/internal/orchestrator"
	"github.com/valpere/slidetran/internal/pptx"
	"github.com/valpere/slidetran/internal/preview"
	"github.com/valpere/slidetran/internal/store"
	"github.com/valpere/slidetran/internal/translator"
)

// Server wires the pipeline components behind the HTTP API.
type Server struct {
	orch          *orchestrator.Orchestrator
	editor        *editor.Editor
	preview       *preview.Service
	store         *store.Store
	service       translator.Service
	enhancer      enhancer.Enhancer // nil when refinement is not configured
	models        map[string]string
	allowedOrigin string
	logger        *slog.Logger
}

func New(
	orch *orchestrator.Orchestrator,
	ed *editor.Editor,
	pv *preview.Service,
	st *store.Store,
	svc translator.Service,
	enh enhancer.Enhancer,
	models map[string]string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:          orch,
		editor:        ed,
		preview:       pv,
		store:         st,
		service:       svc,
		enhancer:      enh,
		models:        models,
		allowedOrigin: "*",
		logger:        logger,
	}
}

// WithAllowedOrigin sets the origin echoed in CORS headers.
func (s *Server) WithAllowedOrigin(origin string) *Server {
	if origin != "" {
		s.allowedOrigin = origin
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/documents/upload", s.handleUpload)
	mux.HandleFunc("POST /api/documents/translate", s.handleTranslate)
	mux.HandleFunc("GET /api/documents/download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /api/documents/models", s.handleModels)

	mux.HandleFunc("GET /api/editor/content/{filename}", s.handleGetContent)
	mux.HandleFunc("POST /api/editor/content", s.handleUpdateContent)
	mux.HandleFunc("GET /api/editor/preview/{filename}/{slide}", s.handlePreview)
	mux.HandleFunc("POST /api/editor/preview-with-edits", s.handlePreviewWithEdits)

	mux.HandleFunc("POST /api/translation/translate", s.handleTranslateText)
	mux.HandleFunc("POST /api/translation/improve", s.handleImproveText)

	return s.corsMiddleware(s.logMiddleware(mux))
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if s.allowedOrigin != "*" {
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiError is the machine-readable error envelope.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, apiError{Error: msg, Kind: kind})
}

// writeDomainError maps pipeline errors onto status codes and kinds.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var parseErr *pptx.ParseError
	var uploadErr *store.UploadError
	var unknownUnit *editor.UnknownUnitError
	var providerErr *translator.ProviderError

	switch {
	case errors.As(err, &uploadErr):
		writeError(w, http.StatusBadRequest, "upload_rejected", uploadErr.Error())
	case errors.As(err, &parseErr):
		writeError(w, http.StatusUnprocessableEntity, "extraction_error", parseErr.Error())
	case errors.As(err, &unknownUnit):
		writeError(w, http.StatusNotFound, "unknown_unit", unknownUnit.Error())
	case errors.Is(err, orchestrator.ErrServiceUnavailable):
		writeError(w, http.StatusBadGateway, "translation_service_error", err.Error())
	case errors.As(err, &providerErr):
		writeError(w, http.StatusBadGateway, "translation_service_error", providerErr.Error())
	case errors.Is(err, preview.ErrUnavailable):
		writeError(w, http.StatusNotFound, "preview_unavailable", err.Error())
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	name, err := s.store.SaveUpload(header.Filename, file)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Reject files that are not actually presentations before the job runs.
	path := s.store.UploadPath(name)
	doc, err := pptx.Open(path)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	s.logger.Info("document uploaded", "filename", name, "slides", doc.SlideCount(), "bytes", size)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"filename":  name,
		"file_path": path,
		"file_size": size,
		"slides":    doc.SlideCount(),
	})
}

type translateRequest struct {
	Filename           string `json:"filename"`
	SourceLang         string `json:"source_lang"`
	TargetLang         string `json:"target_lang"`
	UseLLM             bool   `json:"use_llm"`
	LLMModel           string `json:"llm_model"`
	PreserveFormatting bool   `json:"preserve_formatting"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Filename == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "filename and target_lang are required")
		return
	}

	stats, err := s.orch.Translate(r.Context(), orchestrator.Job{
		Filename:           req.Filename,
		SourceLang:         req.SourceLang,
		TargetLang:         req.TargetLang,
		UseLLM:             req.UseLLM,
		LLMModel:           req.LLMModel,
		PreserveFormatting: req.PreserveFormatting,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.preview.Invalidate(stats.OutputFilename)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	data, err := s.store.ReadOutput(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no translated document %s", filename))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.presentationml.presentation")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	type model struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	models := make([]model, 0, len(s.models))
	for id, name := range s.models {
		models = append(models, model{ID: id, Name: name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	content, err := s.editor.GetContent(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no translated document %s", filename))
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var batch editor.EditBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if batch.Filename == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "filename is required")
		return
	}

	if err := s.editor.ApplyEdits(batch); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no translated document %s", batch.Filename))
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.preview.Invalidate(batch.Filename)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"filename":     batch.Filename,
		"edited_count": len(batch.Edits),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	slide, err := strconv.Atoi(r.PathValue("slide"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "slide must be a number")
		return
	}

	png, err := s.preview.Slide(filename, slide)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	// The v query parameter is a cache-busting token; vary caching on it.
	if r.URL.Query().Get("v") != "" {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Write(png)
}

type previewWithEditsRequest struct {
	Filename string        `json:"filename"`
	Slide    int           `json:"slide"`
	Edits    []editor.Edit `json:"edits"`
}

// handlePreviewWithEdits renders a slide with unsaved edits applied to an
// in-memory copy of the document, without persisting anything.
func (s *Server) handlePreviewWithEdits(w http.ResponseWriter, r *http.Request) {
	var req previewWithEditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "filename is required")
		return
	}

	edits := make(map[string]string, len(req.Edits))
	for _, e := range req.Edits {
		edits[e.ID] = e.Text
	}

	png, err := s.preview.SlideWithEdits(req.Filename, req.Slide, edits)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

type translateTextRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// handleTranslateText translates a single free-standing text, used by the
// editor for ad-hoc retranslation of one frame.
func (s *Server) handleTranslateText(w http.ResponseWriter, r *http.Request) {
	var req translateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Text == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "text and target_lang are required")
		return
	}

	results, err := s.service.TranslateBatch(r.Context(), []string{req.Text}, req.SourceLang, req.TargetLang)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":              results[0].Text,
		"detected_language": results[0].DetectedLanguage,
	})
}

type improveTextRequest struct {
	OriginalText string `json:"original_text"`
	DraftText    string `json:"draft_text"`
	SourceLang   string `json:"source_lang"`
	TargetLang   string `json:"target_lang"`
	Feedback     string `json:"feedback"`
	Model        string `json:"model"`
}

// handleImproveText refines one translation with the configured LLM,
// optionally steered by reviewer feedback.
func (s *Server) handleImproveText(w http.ResponseWriter, r *http.Request) {
	if s.enhancer == nil {
		writeError(w, http.StatusServiceUnavailable, "enhancement_unconfigured", "no enhancement model is configured")
		return
	}

	var req improveTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.DraftText == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "draft_text and target_lang are required")
		return
	}

	improved, err := s.enhancer.Enhance(r.Context(), enhancer.Request{
		OriginalText: req.OriginalText,
		DraftText:    req.DraftText,
		SourceLang:   req.SourceLang,
		TargetLang:   req.TargetLang,
		Feedback:     req.Feedback,
		Model:        req.Model,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": improved})
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully within timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeout time.Duration) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
