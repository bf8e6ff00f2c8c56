// Package export turns a filtered expense set into a downloadable archive:
// one workbook plus the first receipt image of every expense that has one.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"gastos/internal/blob"
	"gastos/internal/core"
	applog "gastos/internal/log"
)

const (
	// WorkbookName is the spreadsheet entry inside the archive.
	WorkbookName = "expenses.xlsx"
	// SheetName is the single sheet holding the rows.
	SheetName = "expenses"
	// receiptsDir prefixes every archived receipt image.
	receiptsDir = "receipts"
)

// Column order is fixed; consumers key on these headers.
var headers = []string{
	"id",
	"job code/number",
	"description",
	"quantity",
	"price",
	"total",
	"account",
	"subaccount",
	"user",
	"receipt",
}

var colWidths = []float64{6, 20, 40, 12, 12, 12, 16, 18, 18, 28}

// Builder assembles export archives in memory. Nothing is handed to the
// caller until the archive is complete.
type Builder struct {
	blobs  blob.Store
	logger *applog.Logger
}

func NewBuilder(blobs blob.Store, logger *applog.Logger) *Builder {
	return &Builder{blobs: blobs, logger: logger.WithComponent("export")}
}

// Build writes one spreadsheet row per expense, in the order given, and
// archives each expense's first receipt image next to it. A receipt blob
// that cannot be opened degrades that row to an empty receipt reference
// instead of failing the whole export.
func (b *Builder) Build(ctx context.Context, expenses []core.Expense) ([]byte, error) {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := wb.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := wb.SetColWidth(SheetName, col, col, colWidths[i]); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, e := range expenses {
		receiptRef := ""
		if r := e.FirstReceipt(); r != nil {
			ref, err := b.archiveReceipt(ctx, zw, e.ID, *r)
			if err != nil {
				b.logger.WarnContext(ctx, "Skipping unreadable receipt blob",
					"expense_id", e.ID,
					"path", r.BlobPath,
					"error", err)
			} else {
				receiptRef = ref
			}
		}

		quantity, _ := e.Quantity.Float64()
		price, _ := e.UnitPrice.Float64()
		total, _ := e.Total.Float64()
		row := []interface{}{
			e.ID,
			e.JobCode(),
			e.Description,
			quantity,
			price,
			total,
			e.Account,
			e.Subaccount,
			e.OwnerUsername(),
			receiptRef,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row cell: %w", err)
		}
		if err := wb.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	xlsx, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	w, err := zw.Create(WorkbookName)
	if err != nil {
		return nil, fmt.Errorf("create workbook entry: %w", err)
	}
	if _, err := w.Write(xlsx.Bytes()); err != nil {
		return nil, fmt.Errorf("write workbook entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// archiveReceipt copies the receipt blob into the archive and returns its
// in-archive path "receipts/<expense-id>_<filename>". The blob is read in
// full before the entry is created, so a read failure leaves no truncated
// entry behind.
func (b *Builder) archiveReceipt(ctx context.Context, zw *zip.Writer, expenseID uint, r core.Receipt) (string, error) {
	rc, err := b.blobs.Open(ctx, r.BlobPath)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}

	filename := r.OriginalName
	if filename == "" {
		filename = path.Base(r.BlobPath)
	}
	zipPath := fmt.Sprintf("%s/%d_%s", receiptsDir, expenseID, filename)
	w, err := zw.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return "", fmt.Errorf("write archive entry: %w", err)
	}
	return zipPath, nil
}

// Filename is the suggested download name: owner scope plus the resolved
// period, with path traversal sequences squashed.
func Filename(f core.Filter) string {
	who := f.OwnerScope()
	who = strings.NewReplacer("/", "", "\\", "", "..", ".").Replace(who)
	name := fmt.Sprintf("gastos-%s-%s.zip", who, f.Period())
	return strings.ReplaceAll(name, "..", ".")
}
