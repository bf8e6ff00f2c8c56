package http

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
)

// handleMedia serves stored receipt images to logged-in users.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.requireLogin(w, r); !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/media/")
	if path == "" || strings.Contains(path, "..") {
		http.NotFound(w, r)
		return
	}

	rc, err := s.svc.OpenReceipt(r.Context(), path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(r.Context(), "Receipt open error", "error", err, "path", path)
		http.Error(w, "could not read receipt", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	// Sniff the content type from the first chunk.
	head := make([]byte, 512)
	n, _ := io.ReadFull(rc, head)
	w.Header().Set("Content-Type", http.DetectContentType(head[:n]))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(head[:n]); err != nil {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.WarnContext(r.Context(), "Receipt write aborted", "error", err, "path", path)
	}
}
