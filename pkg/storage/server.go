package storage

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Handler serves b over the file API HTTPBackend speaks. Mount it at the
// base URL clients are configured with.
func Handler(b Backend) http.Handler {
	s := &server{backend: b}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/{path...}", s.handleRead)
	mux.HandleFunc("PUT /files/{path...}", s.handleWrite)
	mux.HandleFunc("DELETE /files/{path...}", s.handleDelete)
	mux.HandleFunc("GET /list/{path...}", s.handleList)
	return mux
}

type server struct {
	backend Backend
}

func (s *server) handleRead(w http.ResponseWriter, r *http.Request) {
	data, err := s.backend.ReadFile(r.Context(), r.PathValue("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeBody(w, r, "application/octet-stream", data)
}

func (s *server) handleWrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if isZstdEncoded(r.Header.Get("Content-Encoding")) {
		body, err = decompressZstd(body, maxBodyBytes)
		if err != nil {
			http.Error(w, "decode body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := s.backend.WriteFile(r.Context(), r.PathValue("path"), body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteFile(r.Context(), r.PathValue("path")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.backend.ListDirectory(r.Context(), r.PathValue("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeBody(w, r, "application/json", data)
}

func writeBody(w http.ResponseWriter, r *http.Request, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	if isZstdEncoded(r.Header.Get("Accept-Encoding")) {
		if compressed, err := compressZstd(data); err == nil {
			w.Header().Set("Content-Encoding", zstdEncoding)
			data = compressed
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidPath):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
