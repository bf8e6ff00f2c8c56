package http

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/services"
)

const flashCookie = "gastos_flash"

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"add": func(a, b int) int { return a + b },
	}
}

// setFlash stores a one-shot message shown on the next page load.
func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.URLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash message, if any.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	msg, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

// filterParams pulls the shared filter fields from query or form values.
func filterParams(values url.Values) services.FilterParams {
	return services.FilterParams{
		Start:   strings.TrimSpace(values.Get("start")),
		End:     strings.TrimSpace(values.Get("end")),
		Project: strings.TrimSpace(values.Get("project")),
		User:    strings.TrimSpace(values.Get("user")),
	}
}

// parseExpenseForm converts posted form values into a create input. Parse
// failures come back as field errors so the form re-renders with the
// offending fields marked.
func parseExpenseForm(values url.Values) (services.CreateExpenseInput, core.FieldErrors) {
	fieldErrs := core.FieldErrors{}
	in := services.CreateExpenseInput{
		Category:    sanitizeInput(values.Get("category")),
		Vendor:      sanitizeInput(values.Get("vendor")),
		Description: sanitizeInput(values.Get("description")),
		Account:     sanitizeInput(values.Get("account")),
		Subaccount:  sanitizeInput(values.Get("subaccount")),
		ProjectCode: sanitizeInput(values.Get("project_code")),
		Notes:       sanitizeInput(values.Get("notes")),
		CostType:    core.CostType(strings.TrimSpace(values.Get("cost_type"))),
	}

	if v := strings.TrimSpace(values.Get("date")); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			fieldErrs["date"] = "enter a valid date"
		} else {
			in.Date = d
		}
	}

	if v := strings.TrimSpace(values.Get("quantity")); v != "" {
		q, err := decimal.NewFromString(v)
		if err != nil {
			fieldErrs["quantity"] = "enter a valid number"
		} else {
			in.Quantity = q
		}
	}

	if v := strings.TrimSpace(values.Get("unit_price")); v != "" {
		p, err := decimal.NewFromString(v)
		if err != nil {
			fieldErrs["unit_price"] = "enter a valid number"
		} else {
			in.UnitPrice = p
		}
	}

	if v := strings.TrimSpace(values.Get("project")); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			fieldErrs["project"] = "enter a valid project"
		} else {
			pid := uint(id)
			in.ProjectID = &pid
		}
	}

	if len(fieldErrs) > 0 {
		return in, fieldErrs
	}
	return in, nil
}

// render executes the named template, logging instead of double-writing on
// failure after the body started.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}
