package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gastos/internal/core"
)

// FilterParams are the raw query parameters shared by the list, export and
// bulk-delete endpoints.
type FilterParams struct {
	Start   string
	End     string
	Project string
	User    string
}

const dateLayout = "2006-01-02"

// ResolveFilter turns raw parameters plus the caller identity into an
// authorization-scoped filter.
//
// The asymmetry mirrors how the UI behaves: date
// problems are hard validation errors, while a project or user id that no
// longer resolves is silently dropped (a stale dropdown selection should
// not break the page).
func (s *ExpenseService) ResolveFilter(ctx context.Context, ident core.Identity, params FilterParams) (core.Filter, error) {
	if !ident.Authenticated {
		// A normal, reportable empty result set, not an error.
		return core.Filter{MatchNone: true}, nil
	}

	fe := core.FieldErrors{}
	var f core.Filter

	if params.Start != "" {
		t, err := time.Parse(dateLayout, params.Start)
		if err != nil {
			fe["start"] = "invalid date, expected YYYY-MM-DD"
		} else {
			f.Start = &t
		}
	}
	if params.End != "" {
		t, err := time.Parse(dateLayout, params.End)
		if err != nil {
			fe["end"] = "invalid date, expected YYYY-MM-DD"
		} else {
			f.End = &t
		}
	}
	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		fe["end"] = `the "to" date must be on or after the "from" date`
	}
	if len(fe) > 0 {
		return core.Filter{}, fe
	}

	if params.Project != "" {
		if id, err := strconv.ParseUint(params.Project, 10, 32); err == nil {
			project, err := s.repo.GetProject(ctx, uint(id))
			switch {
			case err == nil:
				f.Project = &project
			case errors.Is(err, core.ErrNotFound):
				s.logger.DebugContext(ctx, "Ignoring stale project filter", "project_id", id)
			default:
				return core.Filter{}, err
			}
		}
	}

	if ident.Privileged {
		if params.User != "" {
			if id, err := strconv.ParseUint(params.User, 10, 32); err == nil {
				user, err := s.repo.GetUser(ctx, uint(id))
				switch {
				case err == nil:
					f.Owner = &user
				case errors.Is(err, core.ErrNotFound):
					s.logger.DebugContext(ctx, "Ignoring stale user filter", "user_id", id)
				default:
					return core.Filter{}, err
				}
			}
		}
		// No user parameter: a privileged caller sees every owner.
	} else {
		// Operators only ever see their own records; a requested user
		// filter is ignored, not honored.
		f.Owner = &core.User{ID: ident.UserID, Username: ident.Username}
	}

	return f, nil
}
