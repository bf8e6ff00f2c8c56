package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"gastos/internal/blob"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError})
}

func putBlob(t *testing.T, store *blob.MemStore, path, content string) {
	t.Helper()
	if _, err := store.Write(context.Background(), path, strings.NewReader(content)); err != nil {
		t.Fatalf("write blob: %v", err)
	}
}

func exportExpense(id uint, day int, receipts ...core.Receipt) core.Expense {
	return core.Expense{
		ID:          id,
		Date:        time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
		Category:    "materials",
		Vendor:      "Acme Supply",
		Description: "bolts",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("3.50"),
		Total:       decimal.RequireFromString("7.00"),
		CostType:    core.CostJob,
		Account:     "6000",
		Subaccount:  "6000-01",
		ProjectCode: "J-1042",
		Owner:       &core.User{Username: "alice"},
		Receipts:    receipts,
	}
}

func openArchive(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	return zr
}

func archiveNames(zr *zip.Reader) map[string]bool {
	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	return names
}

func openWorkbook(t *testing.T, zr *zip.Reader) *excelize.File {
	t.Helper()
	f, err := zr.Open(WorkbookName)
	if err != nil {
		t.Fatalf("open workbook entry: %v", err)
	}
	defer f.Close()
	wb, err := excelize.OpenReader(f)
	if err != nil {
		t.Fatalf("parse workbook: %v", err)
	}
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func TestBuildArchive(t *testing.T) {
	store := blob.NewMemStore()
	putBlob(t, store, "receipts/originals/aa_lunch.jpg", "jpeg-one")
	putBlob(t, store, "receipts/originals/bb_first.jpg", "jpeg-two")
	putBlob(t, store, "receipts/originals/cc_second.jpg", "jpeg-three")

	expenses := []core.Expense{
		exportExpense(1, 1, core.Receipt{BlobPath: "receipts/originals/aa_lunch.jpg", OriginalName: "lunch.jpg"}),
		exportExpense(2, 2,
			core.Receipt{BlobPath: "receipts/originals/bb_first.jpg", OriginalName: "first.jpg"},
			core.Receipt{BlobPath: "receipts/originals/cc_second.jpg", OriginalName: "second.jpg"},
		),
		exportExpense(3, 3),
	}

	data, err := NewBuilder(store, testLogger()).Build(context.Background(), expenses)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	zr := openArchive(t, data)
	names := archiveNames(zr)
	if !names[WorkbookName] {
		t.Fatalf("missing %s, got %v", WorkbookName, names)
	}
	// Only the first receipt of each expense is archived.
	if !names["receipts/1_lunch.jpg"] || !names["receipts/2_first.jpg"] {
		t.Fatalf("missing receipt entries, got %v", names)
	}
	if names["receipts/2_second.jpg"] {
		t.Fatalf("second receipt must not be archived")
	}
	if len(zr.File) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(zr.File))
	}

	wb := openWorkbook(t, zr)
	rows, err := wb.GetRows(SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}

	wantHeaders := []string{"id", "job code/number", "description", "quantity", "price", "total", "account", "subaccount", "user", "receipt"}
	for i, h := range wantHeaders {
		if rows[0][i] != h {
			t.Fatalf("header %d: expected %q, got %q", i, h, rows[0][i])
		}
	}

	first := rows[1]
	if first[0] != "1" || first[1] != "J-1042" || first[8] != "alice" {
		t.Fatalf("unexpected first row %v", first)
	}
	if first[9] != "receipts/1_lunch.jpg" {
		t.Fatalf("expected receipt reference, got %q", first[9])
	}
	// An expense without receipts exports with an empty receipt cell.
	third := rows[3]
	if len(third) > 9 && third[9] != "" {
		t.Fatalf("expected empty receipt cell, got %q", third[9])
	}
}

func TestBuildDegradesOnMissingBlob(t *testing.T) {
	store := blob.NewMemStore()
	putBlob(t, store, "receipts/originals/ok.jpg", "jpeg")

	expenses := []core.Expense{
		exportExpense(1, 1, core.Receipt{BlobPath: "receipts/originals/gone.jpg", OriginalName: "gone.jpg"}),
		exportExpense(2, 2, core.Receipt{BlobPath: "receipts/originals/ok.jpg", OriginalName: "ok.jpg"}),
	}

	data, err := NewBuilder(store, testLogger()).Build(context.Background(), expenses)
	if err != nil {
		t.Fatalf("expected degraded build to succeed, got %v", err)
	}

	zr := openArchive(t, data)
	names := archiveNames(zr)
	if names["receipts/1_gone.jpg"] {
		t.Fatalf("unreadable blob must not be archived")
	}
	if !names["receipts/2_ok.jpg"] {
		t.Fatalf("readable blob missing, got %v", names)
	}

	wb := openWorkbook(t, zr)
	rows, err := wb.GetRows(SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if len(rows[1]) > 9 && rows[1][9] != "" {
		t.Fatalf("expected empty receipt cell for degraded row, got %q", rows[1][9])
	}
	if rows[2][9] != "receipts/2_ok.jpg" {
		t.Fatalf("expected receipt reference, got %q", rows[2][9])
	}
}

// brokenReadStore opens blobs whose readers fail partway through.
type brokenReadStore struct {
	*blob.MemStore
}

func (s *brokenReadStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.MemStore.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(io.MultiReader(io.LimitReader(rc, 4), errReader{})), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("storage read failed") }

func TestBuildLeavesNoPartialEntryOnReadFailure(t *testing.T) {
	mem := blob.NewMemStore()
	putBlob(t, mem, "receipts/originals/torn.jpg", "jpeg-bytes-beyond-the-limit")
	store := &brokenReadStore{MemStore: mem}

	expenses := []core.Expense{
		exportExpense(1, 1, core.Receipt{BlobPath: "receipts/originals/torn.jpg", OriginalName: "torn.jpg"}),
	}

	data, err := NewBuilder(store, testLogger()).Build(context.Background(), expenses)
	if err != nil {
		t.Fatalf("expected degraded build to succeed, got %v", err)
	}

	zr := openArchive(t, data)
	names := archiveNames(zr)
	if names["receipts/1_torn.jpg"] {
		t.Fatalf("half-read blob must not leave an archive entry, got %v", names)
	}
	if len(zr.File) != 1 {
		t.Fatalf("expected workbook only, got %d entries", len(zr.File))
	}

	wb := openWorkbook(t, zr)
	rows, err := wb.GetRows(SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows[1]) > 9 && rows[1][9] != "" {
		t.Fatalf("expected empty receipt cell for degraded row, got %q", rows[1][9])
	}
}

func TestBuildEmptySet(t *testing.T) {
	data, err := NewBuilder(blob.NewMemStore(), testLogger()).Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	zr := openArchive(t, data)
	if len(zr.File) != 1 {
		t.Fatalf("expected workbook only, got %d entries", len(zr.File))
	}
	wb := openWorkbook(t, zr)
	rows, err := wb.GetRows(SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header row only, got %d", len(rows))
	}
}

func TestFilename(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		f    core.Filter
		want string
	}{
		{"unrestricted", core.Filter{}, "gastos-ALL-all.zip"},
		{"scoped", core.Filter{Owner: &core.User{Username: "alice"}, Start: &start, End: &end}, "gastos-alice-2025-01-01_to_2025-01-31.zip"},
		{"traversal", core.Filter{Owner: &core.User{Username: "../evil"}}, "gastos-.evil-all.zip"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Filename(tc.f); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
