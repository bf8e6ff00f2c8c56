package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validExpense() Expense {
	return Expense{
		Date:      time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Category:  "materials",
		Vendor:    "Acme Supply",
		Quantity:  decimal.NewFromInt(2),
		UnitPrice: decimal.RequireFromString("9.99"),
		CostType:  CostJob,
	}
}

func TestExpenseNormalize(t *testing.T) {
	e := validExpense()
	e.Total = decimal.NewFromInt(999) // caller-supplied total is discarded
	e.Normalize()
	if !e.Total.Equal(decimal.RequireFromString("19.98")) {
		t.Fatalf("expected total 19.98, got %s", e.Total)
	}

	e.Quantity = decimal.RequireFromString("0.5")
	e.UnitPrice = decimal.RequireFromString("10.10")
	e.Normalize()
	if !e.Total.Equal(decimal.RequireFromString("5.05")) {
		t.Fatalf("expected total 5.05, got %s", e.Total)
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mod   func(*Expense)
		field string
	}{
		{"zero date", func(e *Expense) { e.Date = time.Time{} }, "date"},
		{"empty category", func(e *Expense) { e.Category = " " }, "category"},
		{"long category", func(e *Expense) { e.Category = strings.Repeat("x", 101) }, "category"},
		{"empty vendor", func(e *Expense) { e.Vendor = "" }, "vendor"},
		{"long vendor", func(e *Expense) { e.Vendor = strings.Repeat("x", 201) }, "vendor"},
		{"long description", func(e *Expense) { e.Description = strings.Repeat("x", 301) }, "description"},
		{"zero quantity", func(e *Expense) { e.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(e *Expense) { e.Quantity = decimal.NewFromInt(-1) }, "quantity"},
		{"negative price", func(e *Expense) { e.UnitPrice = decimal.RequireFromString("-0.01") }, "unit_price"},
		{"bad cost type", func(e *Expense) { e.CostType = "LABOR" }, "cost_type"},
		{"bad payment method", func(e *Expense) { e.PaymentMethod = "iou" }, "payment_method"},
		{"long account", func(e *Expense) { e.Account = strings.Repeat("x", 51) }, "account"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mod(&e)
			err := e.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			fe, ok := AsFieldErrors(err)
			if !ok {
				t.Fatalf("expected FieldErrors, got %T", err)
			}
			if _, found := fe[tc.field]; !found {
				t.Fatalf("expected error on field %q, got %v", tc.field, fe)
			}
		})
	}
}

func TestExpenseValidateAllowsZeroPrice(t *testing.T) {
	e := validExpense()
	e.UnitPrice = decimal.Zero
	if err := e.Validate(); err != nil {
		t.Fatalf("expected zero price to pass, got %v", err)
	}
}

func TestExpenseJobCode(t *testing.T) {
	e := validExpense()
	if got := e.JobCode(); got != "" {
		t.Fatalf("expected empty job code, got %q", got)
	}
	e.Project = &Project{Name: "Bridge repair"}
	if got := e.JobCode(); got != "Bridge repair" {
		t.Fatalf("expected project name, got %q", got)
	}
	e.ProjectCode = "J-1042"
	if got := e.JobCode(); got != "J-1042" {
		t.Fatalf("expected free-text code to win, got %q", got)
	}
}

func TestExpenseFirstReceipt(t *testing.T) {
	e := validExpense()
	if e.FirstReceipt() != nil {
		t.Fatalf("expected nil with no receipts")
	}
	e.Receipts = []Receipt{
		{ID: 7, BlobPath: "receipts/originals/a.jpg"},
		{ID: 8, BlobPath: "receipts/originals/b.jpg"},
	}
	r := e.FirstReceipt()
	if r == nil || r.ID != 7 {
		t.Fatalf("expected first receipt id 7, got %+v", r)
	}
}

func TestUserPrivileged(t *testing.T) {
	cases := []struct {
		u    User
		want bool
	}{
		{User{}, false},
		{User{Admin: true}, true},
		{User{Manager: true}, true},
		{User{Admin: true, Manager: true}, true},
	}
	for i, tc := range cases {
		if got := tc.u.Privileged(); got != tc.want {
			t.Fatalf("case %d expected %t, got %t", i, tc.want, got)
		}
	}
}

func TestProjectLabel(t *testing.T) {
	if got := (Project{Name: "Depot", Code: "D-9"}).Label(); got != "D-9" {
		t.Fatalf("expected code, got %q", got)
	}
	if got := (Project{Name: "Depot"}).Label(); got != "Depot" {
		t.Fatalf("expected name, got %q", got)
	}
}

func TestProjectValidate(t *testing.T) {
	if err := (Project{Name: "Depot"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Project{Name: ""}).Validate(); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := (Project{Name: strings.Repeat("x", 121)}).Validate(); err == nil {
		t.Fatalf("expected error for long name")
	}
}
