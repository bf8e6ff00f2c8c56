package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CostJob       CostType = "JOB"
	CostEquipment CostType = "EQ"
)

const (
	PayCash     PaymentMethod = "cash"
	PayDebit    PaymentMethod = "debit"
	PayCredit   PaymentMethod = "credit"
	PayTransfer PaymentMethod = "transfer"
	PayCheck    PaymentMethod = "check"
	PayOther    PaymentMethod = "other"
)

type (
	// CostType classifies an expense as a job cost or an equipment cost.
	CostType string

	// PaymentMethod is kept for backward compatibility; it is persisted but
	// no longer shown on the upload form.
	PaymentMethod string

	// Project is a job/cost-center an expense can be attributed to.
	Project struct {
		ID     uint
		Name   string
		Code   string
		Active bool
	}

	// User is an application identity that can own expenses.
	User struct {
		ID       uint
		Username string
		Admin    bool
		Manager  bool
	}

	// Expense is a single uploaded expense record. Total is always derived
	// from Quantity and UnitPrice at persistence time; a caller-supplied
	// value is never trusted.
	Expense struct {
		ID            uint
		Date          time.Time
		Category      string
		Vendor        string
		Description   string
		Quantity      decimal.Decimal
		UnitPrice     decimal.Decimal
		Total         decimal.Decimal
		CostType      CostType
		PaymentMethod PaymentMethod
		Account       string
		Subaccount    string
		ProjectID     *uint
		Project       *Project
		OwnerID       *uint
		Owner         *User
		ProjectCode   string
		Notes         string
		CreatedAt     time.Time
		Receipts      []Receipt
	}

	// Receipt is a ticket image attached to an expense. It only exists as a
	// side effect of expense creation and dies with its expense.
	Receipt struct {
		ID           uint
		ExpenseID    uint
		BlobPath     string
		OriginalName string
		UploadedAt   time.Time
	}
)

func (ct CostType) IsValid() bool {
	return ct == CostJob || ct == CostEquipment
}

func (pm PaymentMethod) IsValid() bool {
	switch pm {
	case PayCash, PayDebit, PayCredit, PayTransfer, PayCheck, PayOther:
		return true
	}
	return false
}

// Privileged reports whether the user may run manager operations
// (owner-scoped filtering, deletes, bulk deletes).
func (u User) Privileged() bool {
	return u.Admin || u.Manager
}

// Label returns the short display name: the code when set, else the name.
func (p Project) Label() string {
	if p.Code != "" {
		return p.Code
	}
	return p.Name
}

func (p Project) Validate() error {
	fe := FieldErrors{}
	if strings.TrimSpace(p.Name) == "" {
		fe["name"] = "name is required"
	} else if len(p.Name) > 120 {
		fe["name"] = "name too long (max 120 characters)"
	}
	if len(p.Code) > 60 {
		fe["code"] = "code too long (max 60 characters)"
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// Normalize recomputes the derived total from quantity and unit price,
// overriding whatever the caller supplied. Runs before every persist.
func (e *Expense) Normalize() {
	e.Total = e.Quantity.Mul(e.UnitPrice)
}

// Validate checks the persistence invariants. It returns FieldErrors so the
// form layer can attach messages to individual inputs.
func (e Expense) Validate() error {
	fe := FieldErrors{}
	if e.Date.IsZero() {
		fe["date"] = "date is required"
	}
	if strings.TrimSpace(e.Category) == "" {
		fe["category"] = "category is required"
	} else if len(e.Category) > 100 {
		fe["category"] = "category too long (max 100 characters)"
	}
	if strings.TrimSpace(e.Vendor) == "" {
		fe["vendor"] = "vendor is required"
	} else if len(e.Vendor) > 200 {
		fe["vendor"] = "vendor too long (max 200 characters)"
	}
	if len(e.Description) > 300 {
		fe["description"] = "description too long (max 300 characters)"
	}
	if !e.Quantity.IsPositive() {
		fe["quantity"] = "quantity must be greater than 0"
	}
	if e.UnitPrice.IsNegative() {
		fe["unit_price"] = "price cannot be negative"
	}
	if !e.CostType.IsValid() {
		fe["cost_type"] = "invalid cost type"
	}
	if e.PaymentMethod != "" && !e.PaymentMethod.IsValid() {
		fe["payment_method"] = "invalid payment method"
	}
	if len(e.Account) > 50 {
		fe["account"] = "account too long (max 50 characters)"
	}
	if len(e.Subaccount) > 50 {
		fe["subaccount"] = "subaccount too long (max 50 characters)"
	}
	if len(e.ProjectCode) > 50 {
		fe["project_code"] = "job/EQ# too long (max 50 characters)"
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// JobCode is the exported "job code/number" column: the free-text code when
// present, else the attributed project's name, else empty.
func (e Expense) JobCode() string {
	if e.ProjectCode != "" {
		return e.ProjectCode
	}
	if e.Project != nil {
		return e.Project.Name
	}
	return ""
}

// OwnerUsername returns the owner's username or the empty string.
func (e Expense) OwnerUsername() string {
	if e.Owner == nil {
		return ""
	}
	return e.Owner.Username
}

// FirstReceipt returns the first attached receipt, or nil. Only the first
// receipt is ever referenced by the export sheet.
func (e Expense) FirstReceipt() *Receipt {
	if len(e.Receipts) == 0 {
		return nil
	}
	return &e.Receipts[0]
}
