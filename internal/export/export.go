// Package export renders items and borrows as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"

	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	ItemsSheet   = "Inventory Items"
	BorrowsSheet = "Peminjaman"
)

type column struct {
	header string
	width  float64
}

var itemColumns = []column{
	{"Kode", 14},
	{"Nama Barang", 30},
	{"Kategori", 18},
	{"Kondisi", 15},
	{"Status", 12},
	{"Lokasi", 12},
	{"Dibuat", 20},
	{"Catatan", 30},
}

var borrowColumns = []column{
	{"Kode Pinjam", 15},
	{"Peminjam", 20},
	{"Kelas", 12},
	{"Barang", 40},
	{"Tanggal Pinjam", 20},
	{"Tenggat", 20},
	{"Status", 12},
	{"Tanggal Kembali", 20},
	{"Kondisi Kembali", 15},
	{"Catatan", 30},
}

// Filename returns e.g. "Inventory_2024-01-10.xlsx" for the WIB date of now.
func Filename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, now.In(clock.WIB).Format("2006-01-02"))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(clock.WIB).Format("02/01/2006 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteItems writes one row per item.
func WriteItems(w io.Writer, items []domain.Item) error {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.Code,
			it.Name,
			string(it.Category),
			string(it.Condition),
			string(it.Status),
			string(it.Location),
			formatDate(it.CreatedAt),
			orDash(it.Notes),
		})
	}
	return write(w, ItemsSheet, itemColumns, rows)
}

// WriteBorrows writes one row per borrow. Items are listed by name; notes
// fall back to the per-item notes when no return notes exist.
func WriteBorrows(w io.Writer, borrows []domain.BorrowDetails) error {
	rows := make([][]any, 0, len(borrows))
	for _, b := range borrows {
		names := make([]string, 0, len(b.Items))
		var itemNotes []string
		for _, bi := range b.Items {
			names = append(names, bi.Item.Name)
			if bi.Notes != "" {
				itemNotes = append(itemNotes, bi.Notes)
			}
		}

		returnDate := "-"
		if b.Record.ReturnDate != nil {
			returnDate = formatDate(*b.Record.ReturnDate)
		}
		notes := b.Record.ReturnNotes
		if notes == "" {
			notes = strings.Join(itemNotes, ", ")
		}

		rows = append(rows, []any{
			b.Record.Code,
			b.User.Name,
			orDash(b.User.Class),
			strings.Join(names, ", "),
			formatDate(b.Record.BorrowDate),
			formatDate(b.Record.DueDate),
			string(b.Record.Status),
			returnDate,
			orDash(string(b.Record.ReturnCondition)),
			orDash(notes),
		})
	}
	return write(w, BorrowsSheet, borrowColumns, rows)
}

func write(w io.Writer, sheet string, cols []column, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
