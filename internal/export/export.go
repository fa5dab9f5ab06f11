// Package export renders inventory snapshots as xlsx workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/popis/internal/model"
)

// SheetName is the name of the single worksheet in every export.
const SheetName = "Popis"

// File is a rendered workbook ready to be sent or stored.
type File struct {
	Name string
	Data []byte
}

// Render builds a workbook with one header row and one row per inventory row,
// in the order given. The display name column is only present when at least
// one row carries a display name.
func Render(name string, rows []model.Row) (*File, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	withNames := model.HasDisplayNames(rows)
	header := []any{"Artikel"}
	if withNames {
		header = append(header, "Naziv")
	}
	header = append(header, "Skupina", "Količina")

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("styling header: %w", err)
	}

	for i, r := range rows {
		values := []any{r.Article}
		if withNames {
			values = append(values, r.DisplayName)
		}
		values = append(values, r.GroupName, r.Quantity.InexactFloat64())

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	for col := 1; col <= len(header); col++ {
		letter, _ := excelize.ColumnNumberToName(col)
		if err := f.SetColWidth(SheetName, letter, letter, 18); err != nil {
			return nil, fmt.Errorf("sizing column %s: %w", letter, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}

	return &File{Name: name + ".xlsx", Data: buf.Bytes()}, nil
}

// SafeName turns a free-text snapshot name into a file name that cannot escape
// its directory.
func SafeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "popis"
	}
	return cleaned
}

// WriteFile stores the workbook under dir using a sanitized file name and
// returns the path written.
func WriteFile(dir string, file *File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	base := strings.TrimSuffix(file.Name, ".xlsx")
	path := filepath.Join(dir, SafeName(base)+".xlsx")
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
