package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"gastos/internal/core"
)

type projectsData struct {
	Ident    core.Identity
	Projects []core.Project
	Flash    string
	Errors   core.FieldErrors
	Name     string
	Code     string
}

// handleProjects serves the project admin page and accepts new projects.
// Managers only; operators pick projects from the expense form dropdown.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	ident, ok := s.requireLogin(w, r)
	if !ok {
		return
	}
	if !ident.Privileged {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "projects.html", projectsData{
			Ident:    ident,
			Projects: s.projectList(r),
			Flash:    popFlash(w, r),
		})
	case http.MethodPost:
		s.createProject(w, r, ident)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request, ident core.Identity) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	p := core.Project{
		Name:   sanitizeInput(r.Form.Get("name")),
		Code:   sanitizeInput(r.Form.Get("code")),
		Active: true,
	}
	if err := s.svc.CreateProject(r.Context(), ident, &p); err != nil {
		if fe, ok := core.AsFieldErrors(err); ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.render(w, r, "projects.html", projectsData{
				Ident:    ident,
				Projects: s.projectList(r),
				Errors:   fe,
				Name:     p.Name,
				Code:     p.Code,
			})
			return
		}
		s.logger.ErrorContext(r.Context(), "Create project error", "error", err)
		http.Error(w, "could not create project", http.StatusInternalServerError)
		return
	}

	setFlash(w, fmt.Sprintf("Project %q created", p.Label()))
	http.Redirect(w, r, "/projects", http.StatusSeeOther)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
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
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	switch err := s.svc.DeleteProject(r.Context(), ident, uint(id)); {
	case err == nil:
		setFlash(w, fmt.Sprintf("Project #%d deleted", id))
	case errors.Is(err, core.ErrPermissionDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case errors.Is(err, core.ErrNotFound):
		setFlash(w, fmt.Sprintf("Project #%d not found", id))
	default:
		s.logger.ErrorContext(r.Context(), "Delete project error", "error", err, "id", id)
		http.Error(w, "could not delete project", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/projects", http.StatusSeeOther)
}

func (s *Server) projectList(r *http.Request) []core.Project {
	projects, err := s.svc.Projects(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Project list error", "error", err)
		return nil
	}
	return projects
}
