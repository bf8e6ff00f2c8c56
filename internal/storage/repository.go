package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// Repository is the record store: gorm over SQLite, enforcing the domain
// invariants at the persistence boundary rather than trusting the forms.
type Repository struct {
	db     *gorm.DB
	logger *applog.Logger
}

// New opens (creating if needed) the SQLite database at dbPath, runs the
// embedded migrations and returns a ready repository.
func New(dbPath string, logger *applog.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// _fk=1 turns on SQLite foreign key enforcement for the pool; the
	// repository still performs its cascades explicitly inside transactions.
	db, err := gorm.Open(sqlite.Open(dbPath+"?_fk=1"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return &Repository{db: db, logger: logger.WithComponent("storage")}, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- Projects ---

func (r *Repository) CreateProject(ctx context.Context, p *core.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := projectRow{Name: p.Name, Code: p.Code, Active: p.Active}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	p.ID = row.ID
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id uint) (core.Project, error) {
	var row projectRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Project{}, core.ErrNotFound
		}
		return core.Project{}, fmt.Errorf("get project: %w", err)
	}
	return row.toDomain(), nil
}

// ListProjects returns all projects ordered the way the filter dropdown
// shows them: by code, then name.
func (r *Repository) ListProjects(ctx context.Context) ([]core.Project, error) {
	var rows []projectRow
	if err := r.db.WithContext(ctx).Order("code, name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]core.Project, len(rows))
	for i, row := range rows {
		projects[i] = row.toDomain()
	}
	return projects, nil
}

// DeleteProject removes a project. Expenses attributed to it keep existing
// with their project reference cleared.
func (r *Repository) DeleteProject(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&projectRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- Users ---

func (r *Repository) CreateUser(ctx context.Context, u core.User, passwordHash string) (core.User, error) {
	row := userRow{
		Username:     u.Username,
		PasswordHash: passwordHash,
		Admin:        u.Admin,
		Manager:      u.Manager,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return row.toDomain(), nil
}

// UpsertUser creates the user or, when the username exists, updates its
// password hash and flags. Used by the adduser tool.
func (r *Repository) UpsertUser(ctx context.Context, u core.User, passwordHash string) (core.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where("username = ?", u.Username).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.CreateUser(ctx, u, passwordHash)
	case err != nil:
		return core.User{}, fmt.Errorf("lookup user: %w", err)
	}
	row.PasswordHash = passwordHash
	row.Admin = u.Admin
	row.Manager = u.Manager
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return core.User{}, fmt.Errorf("update user: %w", err)
	}
	return row.toDomain(), nil
}

func (r *Repository) GetUser(ctx context.Context, id uint) (core.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}

// GetCredentials returns the user and its password hash for login checks.
func (r *Repository) GetCredentials(ctx context.Context, username string) (core.User, string, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.User{}, "", core.ErrNotFound
		}
		return core.User{}, "", fmt.Errorf("get credentials: %w", err)
	}
	return row.toDomain(), row.PasswordHash, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("username").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]core.User, len(rows))
	for i, row := range rows {
		users[i] = row.toDomain()
	}
	return users, nil
}

// DeleteUser refuses to delete a user that still owns expenses: ownership
// protects the user record, it does not cascade.
func (r *Repository) DeleteUser(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&expenseRow{}).Where("owner_id = ?", id).Count(&owned).Error; err != nil {
			return fmt.Errorf("count owned expenses: %w", err)
		}
		if owned > 0 {
			return core.ErrUserOwnsExpenses
		}
		res := tx.Delete(&userRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// --- Expenses ---

// CreateExpense persists an expense and its receipts atomically. The total
// is recomputed here no matter what the caller filled in, and validation is
// repeated at this boundary so no invalid row can slip past the form layer.
func (r *Repository) CreateExpense(ctx context.Context, e *core.Expense, receipts []core.Receipt) error {
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PayOther
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.Normalize()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := expenseRowFromDomain(*e)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		e.ID = row.ID
		e.CreatedAt = row.CreatedAt

		for i := range receipts {
			rr := receiptRow{
				ExpenseID:    row.ID,
				BlobPath:     receipts[i].BlobPath,
				OriginalName: receipts[i].OriginalName,
				UploadedAt:   receipts[i].UploadedAt,
			}
			// The original filename is captured once at upload and never
			// overwritten afterwards.
			if rr.OriginalName == "" {
				rr.OriginalName = path.Base(rr.BlobPath)
			}
			if rr.UploadedAt.IsZero() {
				rr.UploadedAt = time.Now()
			}
			if err := tx.Create(&rr).Error; err != nil {
				return fmt.Errorf("insert receipt: %w", err)
			}
			receipts[i] = rr.toDomain()
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.Receipts = receipts
	r.logger.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"vendor", e.Vendor,
		"total", e.Total.String(),
		"receipts", len(receipts))
	return nil
}

func (r *Repository) GetExpense(ctx context.Context, id uint) (core.Expense, error) {
	var row expenseRow
	err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("Owner").
		Preload("Receipts", func(db *gorm.DB) *gorm.DB { return db.Order("receipts.id ASC") }).
		First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Expense{}, core.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return row.toDomain(), nil
}

// DeleteExpense removes the expense and cascades to its receipts in one
// transaction. It returns the blob paths of the removed receipts so callers
// can report them.
func (r *Repository) DeleteExpense(ctx context.Context, id uint) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var receipts []receiptRow
		if err := tx.Where("expense_id = ?", id).Find(&receipts).Error; err != nil {
			return fmt.Errorf("load receipts: %w", err)
		}
		if err := tx.Where("expense_id = ?", id).Delete(&receiptRow{}).Error; err != nil {
			return fmt.Errorf("delete receipts: %w", err)
		}
		res := tx.Delete(&expenseRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete expense: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.ErrNotFound
		}
		for _, rr := range receipts {
			paths = append(paths, rr.BlobPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Expense deleted", "id", id, "receipts", len(paths))
	return paths, nil
}

// ListExpenses applies the resolved filter and returns one page ordered
// newest first (date DESC, id DESC) plus the total match count. Project,
// owner and receipts are preloaded; listing never goes back per row.
func (r *Repository) ListExpenses(ctx context.Context, f core.Filter, page, pageSize int) ([]core.Expense, int64, error) {
	if f.MatchNone {
		return nil, 0, nil
	}
	if page < 1 {
		page = 1
	}

	var total int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&expenseRow{}), f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	q := applyFilter(r.db.WithContext(ctx), f).
		Preload("Project").
		Preload("Owner").
		Preload("Receipts", func(db *gorm.DB) *gorm.DB { return db.Order("receipts.id ASC") }).
		Order("date DESC, id DESC")
	if pageSize > 0 {
		q = q.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	var rows []expenseRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	return rowsToDomain(rows), total, nil
}

// ExportExpenses returns the whole filtered set in export order: date ASC,
// id ASC, the reverse of the interactive listing. No pagination.
func (r *Repository) ExportExpenses(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	if f.MatchNone {
		return nil, nil
	}
	var rows []expenseRow
	err := applyFilter(r.db.WithContext(ctx), f).
		Preload("Project").
		Preload("Owner").
		Preload("Receipts", func(db *gorm.DB) *gorm.DB { return db.Order("receipts.id ASC") }).
		Order("date ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	return rowsToDomain(rows), nil
}

// BulkDeleteExpenses deletes everything the filter currently matches. The
// matching ids and receipt blob paths are snapshotted inside the transaction
// first, so the count reported is exactly what was removed and the caller can
// clean up the associated blobs.
func (r *Repository) BulkDeleteExpenses(ctx context.Context, f core.Filter) (int64, []string, error) {
	if f.MatchNone {
		return 0, nil, nil
	}
	var count int64
	var blobPaths []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := applyFilter(tx.Model(&expenseRow{}), f).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("snapshot matching ids: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Model(&receiptRow{}).Where("expense_id IN ?", ids).Pluck("blob_path", &blobPaths).Error; err != nil {
			return fmt.Errorf("snapshot blob paths: %w", err)
		}
		if err := tx.Where("expense_id IN ?", ids).Delete(&receiptRow{}).Error; err != nil {
			return fmt.Errorf("delete receipts: %w", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&expenseRow{}).Error; err != nil {
			return fmt.Errorf("delete expenses: %w", err)
		}
		count = int64(len(ids))
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	r.logger.InfoContext(ctx, "Bulk delete completed", "count", count, "receipts", len(blobPaths))
	return count, blobPaths, nil
}

func applyFilter(q *gorm.DB, f core.Filter) *gorm.DB {
	if f.MatchNone {
		return q.Where("1 = 0")
	}
	if f.Start != nil {
		q = q.Where("date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date <= ?", *f.End)
	}
	if f.Project != nil {
		q = q.Where("project_id = ?", f.Project.ID)
	}
	if f.Owner != nil {
		q = q.Where("owner_id = ?", f.Owner.ID)
	}
	return q
}

func rowsToDomain(rows []expenseRow) []core.Expense {
	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = row.toDomain()
	}
	return expenses
}
