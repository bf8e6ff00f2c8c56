package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gastos/internal/auth"
	"gastos/internal/core"
	"gastos/internal/services"
)

// requireLogin resolves the caller identity, redirecting anonymous visitors
// to the login page.
func (s *Server) requireLogin(w http.ResponseWriter, r *http.Request) (core.Identity, bool) {
	ident := auth.IdentityFromContext(r.Context())
	if !ident.Authenticated {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return core.Identity{}, false
	}
	return ident, true
}

type indexData struct {
	Ident    core.Identity
	Projects []core.Project
	Today    string
	Flash    string
	Errors   core.FieldErrors
	Values   url.Values
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}

	projects, err := s.svc.Projects(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Project list error", "error", err)
	}
	s.render(w, r, "index.html", indexData{
		Ident:    ident,
		Projects: projects,
		Today:    time.Now().Format("2006-01-02"),
		Flash:    popFlash(w, r),
		Values:   url.Values{},
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.logger.WarnContext(r.Context(), "Upload too large", "limit", maxErr.Limit)
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.ErrorContext(r.Context(), "Parse multipart form error", "error", err)
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	in, fieldErrs := parseExpenseForm(r.MultipartForm.Value)
	if len(fieldErrs) > 0 {
		s.renderIndexWithErrors(w, r, ident, fieldErrs, r.MultipartForm.Value)
		return
	}

	var uploads []services.Upload
	for _, fh := range r.MultipartForm.File["receipts"] {
		f, err := fh.Open()
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Upload open error", "error", err, "filename", fh.Filename)
			http.Error(w, "invalid upload", http.StatusBadRequest)
			return
		}
		defer f.Close()
		uploads = append(uploads, services.Upload{Filename: fh.Filename, Content: f})
	}

	e, err := s.svc.CreateExpense(r.Context(), ident, in, uploads)
	if err != nil {
		if fe, ok := core.AsFieldErrors(err); ok {
			s.renderIndexWithErrors(w, r, ident, fe, r.MultipartForm.Value)
			return
		}
		if errors.Is(err, core.ErrPermissionDenied) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s.logger.ErrorContext(r.Context(), "Create expense error", "error", err)
		http.Error(w, "could not save expense", http.StatusInternalServerError)
		return
	}

	setFlash(w, fmt.Sprintf("Expense #%d saved: %s (%s)", e.ID, e.Vendor, e.Total.StringFixed(2)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderIndexWithErrors(w http.ResponseWriter, r *http.Request, ident core.Identity, fieldErrs core.FieldErrors, values url.Values) {
	projects, err := s.svc.Projects(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Project list error", "error", err)
	}
	w.WriteHeader(http.StatusUnprocessableEntity)
	s.render(w, r, "index.html", indexData{
		Ident:    ident,
		Projects: projects,
		Today:    time.Now().Format("2006-01-02"),
		Errors:   fieldErrs,
		Values:   values,
	})
}

type listData struct {
	Ident    core.Identity
	Rows     []core.Expense
	Total    int64
	Page     int
	LastPage int
	Projects []core.Project
	Users    []core.User
	Params   services.FilterParams
	Query    string
	Flash    string
	Errors   core.FieldErrors
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}

	params := filterParams(r.URL.Query())
	data := listData{
		Ident:  ident,
		Page:   1,
		Params: params,
		Flash:  popFlash(w, r),
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			data.Page = p
		}
	}

	if projects, err := s.svc.Projects(r.Context()); err == nil {
		data.Projects = projects
	} else {
		s.logger.ErrorContext(r.Context(), "Project list error", "error", err)
	}
	if ident.Privileged {
		if users, err := s.svc.Users(r.Context()); err == nil {
			data.Users = users
		} else {
			s.logger.ErrorContext(r.Context(), "User list error", "error", err)
		}
	}

	// Filter query string carried over to the export link and page links.
	q := url.Values{}
	for _, kv := range []struct{ k, v string }{
		{"start", params.Start}, {"end", params.End},
		{"project", params.Project}, {"user", params.User},
	} {
		if kv.v != "" {
			q.Set(kv.k, kv.v)
		}
	}
	data.Query = q.Encode()

	filter, err := s.svc.ResolveFilter(r.Context(), ident, params)
	if err != nil {
		if fe, ok := core.AsFieldErrors(err); ok {
			data.Errors = fe
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "gastos.html", data)
			return
		}
		s.logger.ErrorContext(r.Context(), "Filter resolve error", "error", err)
		http.Error(w, "could not load expenses", http.StatusInternalServerError)
		return
	}

	rows, total, err := s.svc.List(r.Context(), filter, data.Page)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Expense list error", "error", err)
		http.Error(w, "could not load expenses", http.StatusInternalServerError)
		return
	}
	data.Rows = rows
	data.Total = total
	data.LastPage = int((total + int64(s.svc.PageSize()) - 1) / int64(s.svc.PageSize()))
	if data.LastPage < 1 {
		data.LastPage = 1
	}
	s.render(w, r, "gastos.html", data)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseUint(r.Form.Get("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid expense id", http.StatusBadRequest)
		return
	}

	switch err := s.svc.DeleteExpense(r.Context(), ident, uint(id)); {
	case err == nil:
		setFlash(w, fmt.Sprintf("Expense #%d deleted", id))
	case errors.Is(err, core.ErrPermissionDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case errors.Is(err, core.ErrNotFound):
		setFlash(w, fmt.Sprintf("Expense #%d not found", id))
	default:
		s.logger.ErrorContext(r.Context(), "Delete expense error", "error", err, "id", id)
		http.Error(w, "could not delete expense", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/gastos", http.StatusSeeOther)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	filter, err := s.svc.ResolveFilter(r.Context(), ident, filterParams(r.Form))
	if err != nil {
		if fe, ok := core.AsFieldErrors(err); ok {
			setFlash(w, "Nothing deleted: "+fe.Error())
			http.Redirect(w, r, "/gastos", http.StatusSeeOther)
			return
		}
		s.logger.ErrorContext(r.Context(), "Filter resolve error", "error", err)
		http.Error(w, "could not delete expenses", http.StatusInternalServerError)
		return
	}

	count, err := s.svc.BulkDelete(r.Context(), ident, filter)
	if err != nil {
		if errors.Is(err, core.ErrPermissionDenied) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s.logger.ErrorContext(r.Context(), "Bulk delete error", "error", err)
		http.Error(w, "could not delete expenses", http.StatusInternalServerError)
		return
	}

	setFlash(w, fmt.Sprintf("Deleted %d expenses", count))
	http.Redirect(w, r, "/gastos", http.StatusSeeOther)
}
