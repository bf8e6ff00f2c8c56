package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/blob"
	"gastos/internal/cache"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// blobPrefix is where receipt originals live inside the blob store.
const blobPrefix = "receipts/originals"

// ExpenseService is the mutation gateway and query engine: every expense
// read or write from the HTTP layer goes through here with an explicit
// caller identity.
type ExpenseService struct {
	repo     *storage.Repository
	blobs    blob.Store
	logger   *applog.Logger
	pageSize int

	projectCache *cache.LRUCache[[]core.Project]
}

func NewExpenseService(repo *storage.Repository, blobs blob.Store, logger *applog.Logger, pageSize int) *ExpenseService {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &ExpenseService{
		repo:         repo,
		blobs:        blobs,
		logger:       logger.WithComponent("services"),
		pageSize:     pageSize,
		projectCache: cache.NewLRUCache[[]core.Project](1, 5*time.Minute),
	}
}

// PageSize returns the listing page size.
func (s *ExpenseService) PageSize() int { return s.pageSize }

// CreateExpenseInput carries the already-parsed form fields. Any total the
// caller computed is not part of the input at all: totals are derived.
type CreateExpenseInput struct {
	Date        time.Time
	Category    string
	Vendor      string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	CostType    core.CostType
	Account     string
	Subaccount  string
	ProjectID   *uint
	ProjectCode string
	Notes       string
}

// Upload is one receipt image from a multipart form.
type Upload struct {
	Filename string
	Content  io.Reader
}

// CreateExpense validates the input, stores the uploaded receipt images and
// persists the expense with its receipts in one transaction. The caller
// identity becomes the owner; anonymous creation is rejected.
func (s *ExpenseService) CreateExpense(ctx context.Context, ident core.Identity, in CreateExpenseInput, uploads []Upload) (core.Expense, error) {
	if !ident.Authenticated {
		return core.Expense{}, core.ErrPermissionDenied
	}

	ownerID := ident.UserID
	e := core.Expense{
		Date:          in.Date,
		Category:      strings.TrimSpace(in.Category),
		Vendor:        strings.TrimSpace(in.Vendor),
		Description:   strings.TrimSpace(in.Description),
		Quantity:      in.Quantity,
		UnitPrice:     in.UnitPrice,
		CostType:      in.CostType,
		PaymentMethod: core.PayOther,
		Account:       strings.TrimSpace(in.Account),
		Subaccount:    strings.TrimSpace(in.Subaccount),
		ProjectCode:   strings.TrimSpace(in.ProjectCode),
		Notes:         strings.TrimSpace(in.Notes),
		OwnerID:       &ownerID,
	}

	// A stale project selection is dropped, same as in the filters.
	if in.ProjectID != nil {
		project, err := s.repo.GetProject(ctx, *in.ProjectID)
		switch {
		case err == nil:
			e.ProjectID = &project.ID
		case errors.Is(err, core.ErrNotFound):
			s.logger.DebugContext(ctx, "Ignoring stale project on create", "project_id", *in.ProjectID)
		default:
			return core.Expense{}, err
		}
	}

	// Validate before touching blob storage so a bad form writes nothing.
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	receipts := make([]core.Receipt, 0, len(uploads))
	written := make([]string, 0, len(uploads))
	for _, up := range uploads {
		p := blobPath(up.Filename)
		stored, err := s.blobs.Write(ctx, p, up.Content)
		if err != nil {
			s.cleanupBlobs(ctx, written)
			return core.Expense{}, fmt.Errorf("store receipt image: %w", err)
		}
		written = append(written, stored)
		receipts = append(receipts, core.Receipt{
			BlobPath:     stored,
			OriginalName: sanitizeFilename(up.Filename),
			UploadedAt:   time.Now(),
		})
	}

	if err := s.repo.CreateExpense(ctx, &e, receipts); err != nil {
		// A failed create must not leave orphaned receipt blobs behind.
		s.cleanupBlobs(ctx, written)
		return core.Expense{}, err
	}
	return e, nil
}

// DeleteExpense removes one expense and its receipts. Privileged callers
// only; the permission check runs before any side effect.
func (s *ExpenseService) DeleteExpense(ctx context.Context, ident core.Identity, id uint) error {
	if !ident.Privileged {
		return core.ErrPermissionDenied
	}
	paths, err := s.repo.DeleteExpense(ctx, id)
	if err != nil {
		return err
	}
	s.cleanupBlobs(ctx, paths)
	return nil
}

// BulkDelete removes every expense the caller's resolved filter currently
// matches and reports how many went away. Receipt blobs are cleaned up once
// the rows are gone. Privileged callers only.
func (s *ExpenseService) BulkDelete(ctx context.Context, ident core.Identity, f core.Filter) (int64, error) {
	if !ident.Privileged {
		return 0, core.ErrPermissionDenied
	}
	count, paths, err := s.repo.BulkDeleteExpenses(ctx, f)
	if err != nil {
		return 0, err
	}
	s.cleanupBlobs(ctx, paths)
	return count, nil
}

// List returns one page of the filtered expenses, newest first, plus the
// total match count.
func (s *ExpenseService) List(ctx context.Context, f core.Filter, page int) ([]core.Expense, int64, error) {
	return s.repo.ListExpenses(ctx, f, page, s.pageSize)
}

// ExportSet returns the entire filtered result in export order (date ASC,
// id ASC) with receipts preloaded, ready for the export builder.
func (s *ExpenseService) ExportSet(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	return s.repo.ExportExpenses(ctx, f)
}

// OpenReceipt streams a receipt image blob for serving.
func (s *ExpenseService) OpenReceipt(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, blobPath)
}

// Projects lists projects for the form dropdowns, cached briefly since the
// set changes rarely but renders on every page.
func (s *ExpenseService) Projects(ctx context.Context) ([]core.Project, error) {
	if projects, ok := s.projectCache.Get("all"); ok {
		return projects, nil
	}
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	s.projectCache.Set("all", projects)
	return projects, nil
}

// CreateProject adds a project and invalidates the dropdown cache.
// Privileged callers only.
func (s *ExpenseService) CreateProject(ctx context.Context, ident core.Identity, p *core.Project) error {
	if !ident.Privileged {
		return core.ErrPermissionDenied
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return err
	}
	s.projectCache.Delete("all")
	return nil
}

// DeleteProject removes a project; attributed expenses survive with the
// reference cleared. Privileged callers only.
func (s *ExpenseService) DeleteProject(ctx context.Context, ident core.Identity, id uint) error {
	if !ident.Privileged {
		return core.ErrPermissionDenied
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.projectCache.Delete("all")
	return nil
}

// Users lists users for the manager-only owner filter dropdown.
func (s *ExpenseService) Users(ctx context.Context) ([]core.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *ExpenseService) cleanupBlobs(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete receipt blob", "path", p, "error", err)
		}
	}
}

// blobPath builds a collision-free storage path for an uploaded image.
func blobPath(filename string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s/%d_%s", blobPrefix, time.Now().UnixNano(), sanitizeFilename(filename))
	}
	return fmt.Sprintf("%s/%s_%s", blobPrefix, hex.EncodeToString(buf), sanitizeFilename(filename))
}

// sanitizeFilename keeps only the base name and strips characters that
// could be abused in storage paths or archive entries.
func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, "..", ".")
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}
