package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"gastos/internal/blob"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

func newTestService(t *testing.T) (*ExpenseService, *storage.Repository, *blob.MemStore) {
	t.Helper()
	logger := applog.New(applog.Config{Level: slog.LevelError})
	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	blobs := blob.NewMemStore()
	return NewExpenseService(repo, blobs, logger, 20), repo, blobs
}

func testUser(t *testing.T, repo *storage.Repository, username string, manager bool) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{Username: username, Manager: manager}, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestResolveFilterUnauthenticated(t *testing.T) {
	svc, _, _ := newTestService(t)

	f, err := svc.ResolveFilter(context.Background(), core.Anonymous, FilterParams{Start: "2025-01-01"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !f.MatchNone {
		t.Fatalf("expected MatchNone filter, got %+v", f)
	}
}

func TestResolveFilterDateValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	mgr := testUser(t, repo, "mgr", true)
	ident := core.IdentityFor(mgr)

	cases := []struct {
		name   string
		params FilterParams
		field  string
	}{
		{"bad start", FilterParams{Start: "01/02/2025"}, "start"},
		{"bad end", FilterParams{End: "yesterday"}, "end"},
		{"inverted range", FilterParams{Start: "2025-02-01", End: "2025-01-01"}, "end"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ResolveFilter(context.Background(), ident, tc.params)
			fe, ok := core.AsFieldErrors(err)
			if !ok {
				t.Fatalf("expected FieldErrors, got %v", err)
			}
			if _, found := fe[tc.field]; !found {
				t.Fatalf("expected error on %q, got %v", tc.field, fe)
			}
		})
	}

	// Equal bounds are a valid single-day range.
	f, err := svc.ResolveFilter(context.Background(), ident, FilterParams{Start: "2025-01-15", End: "2025-01-15"})
	if err != nil {
		t.Fatalf("expected single-day range to resolve, got %v", err)
	}
	if f.Start == nil || f.End == nil || !f.Start.Equal(*f.End) {
		t.Fatalf("expected matching bounds, got %+v", f)
	}
}

func TestResolveFilterStaleProjectIgnored(t *testing.T) {
	svc, repo, _ := newTestService(t)
	mgr := testUser(t, repo, "mgr", true)

	f, err := svc.ResolveFilter(context.Background(), core.IdentityFor(mgr), FilterParams{Project: "9999"})
	if err != nil {
		t.Fatalf("expected stale project to be dropped, got %v", err)
	}
	if f.Project != nil {
		t.Fatalf("expected no project restriction, got %+v", f.Project)
	}
}

func TestResolveFilterProjectApplied(t *testing.T) {
	svc, repo, _ := newTestService(t)
	mgr := testUser(t, repo, "mgr", true)
	p := core.Project{Name: "Bridge repair", Active: true}
	if err := repo.CreateProject(context.Background(), &p); err != nil {
		t.Fatalf("create project: %v", err)
	}

	f, err := svc.ResolveFilter(context.Background(), core.IdentityFor(mgr), FilterParams{Project: strconv.Itoa(int(p.ID))})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.Project == nil || f.Project.ID != p.ID {
		t.Fatalf("expected project %d, got %+v", p.ID, f.Project)
	}
}

func TestResolveFilterOwnerScoping(t *testing.T) {
	svc, repo, _ := newTestService(t)
	mgr := testUser(t, repo, "mgr", true)
	op := testUser(t, repo, "op", false)
	other := testUser(t, repo, "other", false)

	// A non-privileged caller is always pinned to their own records, even
	// when asking for someone else's.
	f, err := svc.ResolveFilter(context.Background(), core.IdentityFor(op), FilterParams{User: strconv.Itoa(int(other.ID))})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.Owner == nil || f.Owner.ID != op.ID {
		t.Fatalf("expected owner pinned to caller, got %+v", f.Owner)
	}

	// A privileged caller may pick any owner.
	f, err = svc.ResolveFilter(context.Background(), core.IdentityFor(mgr), FilterParams{User: strconv.Itoa(int(other.ID))})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.Owner == nil || f.Owner.ID != other.ID {
		t.Fatalf("expected owner %d, got %+v", other.ID, f.Owner)
	}

	// And without a user parameter sees everyone.
	f, err = svc.ResolveFilter(context.Background(), core.IdentityFor(mgr), FilterParams{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.Owner != nil {
		t.Fatalf("expected unrestricted owner, got %+v", f.Owner)
	}

	// A stale user id from a privileged caller is dropped like a stale
	// project, leaving the scope unrestricted.
	f, err = svc.ResolveFilter(context.Background(), core.IdentityFor(mgr), FilterParams{User: "9999"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.Owner != nil {
		t.Fatalf("expected stale user to be dropped, got %+v", f.Owner)
	}
}
