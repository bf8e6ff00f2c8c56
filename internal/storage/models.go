package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// Row types mirror the migrated schema. The schema itself is owned by the
// SQL migrations; the gorm tags only describe what already exists.

type userRow struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Admin        bool   `gorm:"not null"`
	Manager      bool   `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type projectRow struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:120;uniqueIndex;not null"`
	Code   string `gorm:"size:60;index"`
	Active bool   `gorm:"not null"`
}

func (projectRow) TableName() string { return "projects" }

type expenseRow struct {
	ID            uint      `gorm:"primaryKey"`
	Date          time.Time `gorm:"not null;index"`
	Category      string    `gorm:"size:100;not null"`
	Vendor        string    `gorm:"size:200;not null"`
	Description   string    `gorm:"size:300"`
	Quantity      decimal.Decimal `gorm:"type:numeric;not null"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric;not null"`
	Total         decimal.Decimal `gorm:"type:numeric;not null"`
	CostType      string    `gorm:"size:10;not null;index"`
	PaymentMethod string    `gorm:"size:20;not null"`
	Account       string    `gorm:"size:50"`
	Subaccount    string    `gorm:"size:50"`
	ProjectID     *uint     `gorm:"index"`
	Project       *projectRow
	OwnerID       *uint `gorm:"index"`
	Owner         *userRow `gorm:"foreignKey:OwnerID"`
	ProjectCode   string   `gorm:"size:50"`
	Notes         string
	CreatedAt     time.Time
	Receipts      []receiptRow `gorm:"foreignKey:ExpenseID"`
}

func (expenseRow) TableName() string { return "expenses" }

type receiptRow struct {
	ID           uint   `gorm:"primaryKey"`
	ExpenseID    uint   `gorm:"not null;index"`
	BlobPath     string `gorm:"size:500;not null"`
	OriginalName string `gorm:"size:255"`
	UploadedAt   time.Time
}

func (receiptRow) TableName() string { return "receipts" }

func (r userRow) toDomain() core.User {
	return core.User{
		ID:       r.ID,
		Username: r.Username,
		Admin:    r.Admin,
		Manager:  r.Manager,
	}
}

func (r projectRow) toDomain() core.Project {
	return core.Project{
		ID:     r.ID,
		Name:   r.Name,
		Code:   r.Code,
		Active: r.Active,
	}
}

func (r receiptRow) toDomain() core.Receipt {
	return core.Receipt{
		ID:           r.ID,
		ExpenseID:    r.ExpenseID,
		BlobPath:     r.BlobPath,
		OriginalName: r.OriginalName,
		UploadedAt:   r.UploadedAt,
	}
}

func (r expenseRow) toDomain() core.Expense {
	e := core.Expense{
		ID:            r.ID,
		Date:          r.Date,
		Category:      r.Category,
		Vendor:        r.Vendor,
		Description:   r.Description,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		Total:         r.Total,
		CostType:      core.CostType(r.CostType),
		PaymentMethod: core.PaymentMethod(r.PaymentMethod),
		Account:       r.Account,
		Subaccount:    r.Subaccount,
		ProjectID:     r.ProjectID,
		OwnerID:       r.OwnerID,
		ProjectCode:   r.ProjectCode,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt,
	}
	if r.Project != nil {
		p := r.Project.toDomain()
		e.Project = &p
	}
	if r.Owner != nil {
		u := r.Owner.toDomain()
		e.Owner = &u
	}
	if len(r.Receipts) > 0 {
		e.Receipts = make([]core.Receipt, len(r.Receipts))
		for i, rr := range r.Receipts {
			e.Receipts[i] = rr.toDomain()
		}
	}
	return e
}

func expenseRowFromDomain(e core.Expense) expenseRow {
	return expenseRow{
		ID:            e.ID,
		Date:          e.Date,
		Category:      e.Category,
		Vendor:        e.Vendor,
		Description:   e.Description,
		Quantity:      e.Quantity,
		UnitPrice:     e.UnitPrice,
		Total:         e.Total,
		CostType:      string(e.CostType),
		PaymentMethod: string(e.PaymentMethod),
		Account:       e.Account,
		Subaccount:    e.Subaccount,
		ProjectID:     e.ProjectID,
		OwnerID:       e.OwnerID,
		ProjectCode:   e.ProjectCode,
		Notes:         e.Notes,
	}
}
