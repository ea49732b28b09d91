package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/parser"
	"github.com/dgallion1/richconv/internal/store"
)

type nodesRequest struct {
	Title string        `json:"title,omitempty"`
	Nodes doctree.Nodes `json:"nodes"`
}

// handleDeserialize converts a markup body into document nodes. HTML is
// parsed as a body fragment; other formats go through their importer.
func (s *Server) handleDeserialize(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	var tree []markup.Node
	var err error
	switch format {
	case "", "html":
		tree, err = markup.ParseHTML(bytes.NewReader(body))
	case "pdf", "docx":
		jsonError(w, fmt.Sprintf("unsupported format: %s (use /api/import)", format), http.StatusBadRequest)
		return
	default:
		p, perr := parser.ForFormat(format)
		if perr != nil {
			jsonError(w, perr.Error(), http.StatusBadRequest)
			return
		}
		var src *parser.Source
		if src, err = p.Parse(bytes.NewReader(body), "body"); err == nil {
			tree = src.Nodes
		}
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	nodes, err := s.conv.DeserializeNodes(tree)
	s.metrics.Conversion(convert.Deserializing, err)
	if err != nil {
		conversionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"nodes": doctree.Nodes(nodes)})
}

// handleSerialize converts document nodes into HTML.
func (s *Server) handleSerialize(w http.ResponseWriter, r *http.Request) {
	var req nodesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	html, err := s.serialize(req.Nodes, r.URL.Query().Get("minify"))
	if err != nil {
		conversionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"html": html})
}

// handleImport converts an uploaded file. When user_id and doc_id are given
// the canonical HTML is stored as well.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	p, err := parser.ForFile(filename)
	if err != nil {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = s.cfg.PDFFallbackPdftotext
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	src, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "parse: "+err.Error(), http.StatusBadRequest)
		return
	}
	nodes, err := s.conv.DeserializeNodes(src.Nodes)
	s.metrics.Conversion(convert.Deserializing, err)
	if err != nil {
		conversionError(w, err)
		return
	}
	html, err := s.serialize(nodes, r.FormValue("minify"))
	if err != nil {
		conversionError(w, err)
		return
	}

	title := src.Title
	if t := r.FormValue("title"); t != "" {
		title = t
	}
	resp := map[string]any{
		"filename": filename,
		"title":    title,
		"nodes":    doctree.Nodes(nodes),
		"html":     html,
	}

	userID, docID := r.FormValue("user_id"), r.FormValue("doc_id")
	if userID != "" || docID != "" {
		if err := validateIDs(userID, docID); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec := store.Record{Key: store.DocumentKey(userID, docID), Title: title, HTML: html}
		if err := s.store.Put(r.Context(), rec); err != nil {
			s.log.Error("store import failed", "key", rec.Key, "error", err)
			jsonError(w, "failed to store document: "+err.Error(), http.StatusBadGateway)
			return
		}
		resp["key"] = rec.Key
	}

	writeJSON(w, http.StatusOK, resp)
}

// serialize prints nodes, minifying when asked by query/form value or by
// configuration.
func (s *Server) serialize(nodes []doctree.Node, minify string) (string, error) {
	html, err := s.conv.Serialize(nodes...)
	s.metrics.Conversion(convert.Serializing, err)
	if err != nil {
		return "", err
	}
	if minify == "true" || (minify == "" && s.cfg.MinifyOutput) {
		return markup.Minify(html)
	}
	return html, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		} else {
			jsonError(w, "failed to read body", http.StatusBadRequest)
		}
		return nil, false
	}
	return body, true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// conversionError maps converter failures to status codes. Anything other
// than a depth overflow came from a rule and is a server fault.
func conversionError(w http.ResponseWriter, err error) {
	if errors.Is(err, convert.ErrMaxDepth) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
