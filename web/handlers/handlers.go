// Package handlers exposes the debate status surface over HTTP.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/athenslab/athens/internal/conversation"
	"github.com/athenslab/athens/internal/debate"
	"github.com/athenslab/athens/internal/export"
	"github.com/athenslab/athens/internal/storage"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	storage storage.Storage
	live    *debate.Manager
}

// New creates a new Handler. live may be nil when no debate is running in
// this process.
func New(store storage.Storage, live *debate.Manager) *Handler {
	return &Handler{storage: store, live: live}
}

// Router builds the HTTP router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/summary", h.handleSummary)
		r.Route("/debates", func(r chi.Router) {
			r.Get("/", h.handleListDebates)
			r.Get("/{id}", h.handleGetDebate)
			r.Get("/{id}/messages", h.handleGetMessages)
			r.Get("/{id}/export", h.handleExport)
		})
	})
	return r
}

// handleStatus returns the live debate status snapshot.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		h.writeError(w, http.StatusNotFound, "no debate running")
		return
	}
	h.writeJSON(w, http.StatusOK, h.live.Status())
}

// handleSummary returns the live debate's full summary.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		h.writeError(w, http.StatusNotFound, "no debate running")
		return
	}
	h.writeJSON(w, http.StatusOK, h.live.Summary())
}

func (h *Handler) handleListDebates(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	debates, err := h.storage.ListDebates(limit, offset)
	if err != nil {
		slog.Error("failed to list debates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list debates")
		return
	}
	h.writeJSON(w, http.StatusOK, debates)
}

func (h *Handler) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.storage.GetDebate(id)
	if err != nil {
		slog.Error("failed to get debate", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get debate")
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "debate not found")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := h.storage.LoadConversation(id)
	if err != nil {
		slog.Error("failed to load conversation", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv == nil {
		h.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	h.writeJSON(w, http.StatusOK, conv.Export())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}

	exporter, err := export.GetExporter(format)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.storage.GetDebate(id)
	if err != nil || rec == nil {
		h.writeError(w, http.StatusNotFound, "debate not found")
		return
	}
	conv, err := h.storage.LoadConversation(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	summary := export.SummaryFromRecord(rec, conv)
	var doc *conversation.Document
	if conv != nil {
		doc = conv.Export()
	}

	filename := export.GenerateFilename(rec.Topic, exporter.FileExtension())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	switch format {
	case export.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown")
	case export.FormatPDF:
		w.Header().Set("Content-Type", "application/pdf")
	default:
		w.Header().Set("Content-Type", "application/json")
	}

	if err := exporter.Export(summary, doc, w); err != nil {
		slog.Error("failed to export debate", "id", id, "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	if val := r.URL.Query().Get(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}
