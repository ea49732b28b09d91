package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/store"
)

const excerptRunes = 160

// handlePutDocument serializes the posted nodes and stores the HTML.
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := documentKey(w, r)
	if !ok {
		return
	}
	var req nodesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	html, err := s.serialize(req.Nodes, "false")
	if err != nil {
		conversionError(w, err)
		return
	}
	rec := store.Record{Key: key, Title: req.Title, HTML: html, ContentHash: store.ContentHash(html)}

	existing, err := s.store.Get(r.Context(), key)
	if err == nil && existing.ContentHash == rec.ContentHash && existing.Title == rec.Title {
		writeJSON(w, http.StatusOK, map[string]any{
			"key":          key,
			"content_hash": existing.ContentHash,
			"updated_at":   existing.UpdatedAt,
			"unchanged":    true,
		})
		return
	}

	if err := s.store.Put(r.Context(), rec); err != nil {
		s.log.Error("store document failed", "key", key, "error", err)
		jsonError(w, "failed to store document: "+err.Error(), http.StatusBadGateway)
		return
	}
	saved, err := s.store.Get(r.Context(), key)
	if err != nil {
		jsonError(w, "failed to read back document: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":          key,
		"content_hash": saved.ContentHash,
		"updated_at":   saved.UpdatedAt,
		"unchanged":    false,
	})
}

// handleGetDocument returns a stored document as nodes, rebuilt from its
// HTML, alongside the HTML itself.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := documentKey(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusBadGateway)
		return
	}

	nodes, err := s.conv.Deserialize(rec.HTML)
	s.metrics.Conversion(convert.Deserializing, err)
	if err != nil {
		conversionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":          rec.Key,
		"title":        rec.Title,
		"nodes":        doctree.Nodes(nodes),
		"html":         rec.HTML,
		"content_hash": rec.ContentHash,
		"updated_at":   rec.UpdatedAt,
	})
}

// handleDeleteDocument deletes a stored document.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	key, ok := documentKey(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), key); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

// handleListDocuments lists a user's documents with plain-text excerpts.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if err := store.ValidateID("user_id", userID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	prefix := store.UserPrefix(userID)
	recs, err := s.store.List(r.Context(), prefix, limit)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}

	docs := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, map[string]any{
			"doc_id":       strings.TrimPrefix(rec.Key, prefix+"/"),
			"title":        rec.Title,
			"excerpt":      markup.Excerpt(rec.HTML, excerptRunes),
			"content_hash": rec.ContentHash,
			"updated_at":   rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func documentKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	docID := chi.URLParam(r, "docID")
	if err := validateIDs(userID, docID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return store.DocumentKey(userID, docID), true
}

func validateIDs(userID, docID string) error {
	if err := store.ValidateID("user_id", userID); err != nil {
		return err
	}
	return store.ValidateID("doc_id", docID)
}
