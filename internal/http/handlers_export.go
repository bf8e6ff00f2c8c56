package http

import (
	"fmt"
	"net/http"
	"strconv"

	"gastos/internal/core"
	"gastos/internal/export"
)

// handleExport streams the filtered expense set as a zip archive with the
// spreadsheet and the receipt images.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}

	filter, err := s.svc.ResolveFilter(r.Context(), ident, filterParams(r.URL.Query()))
	if err != nil {
		if fe, fieldOK := core.AsFieldErrors(err); fieldOK {
			http.Error(w, fe.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.ErrorContext(r.Context(), "Filter resolve error", "error", err)
		http.Error(w, "could not export expenses", http.StatusInternalServerError)
		return
	}

	expenses, err := s.svc.ExportSet(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export set error", "error", err)
		http.Error(w, "could not export expenses", http.StatusInternalServerError)
		return
	}

	archive, err := s.exporter.Build(r.Context(), expenses)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export build error", "error", err)
		http.Error(w, "could not export expenses", http.StatusInternalServerError)
		return
	}

	filename := export.Filename(filter)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	if _, err := w.Write(archive); err != nil {
		s.logger.WarnContext(r.Context(), "Export write aborted", "error", err)
	}
}
