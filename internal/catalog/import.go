package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andresuchdata/opsdash/internal/domain"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// recordNamespace seeds deterministic document ids derived from SKUs.
var recordNamespace = uuid.MustParse("5b7c51a4-3f0e-4c8e-9a57-2f1d0c6a9e11")

// Format is a supported catalog import file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the import format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported catalog file %q", name)
}

// ParseFile reads raw records in the given format.
func ParseFile(r io.Reader, format Format) ([]domain.RawProductRecord, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r)
	}
	return nil, fmt.Errorf("unsupported catalog format %q", format)
}

// ParseCSV reads raw records from a CSV file with a header row.
func ParseCSV(r io.Reader) ([]domain.RawProductRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := newColumnMap(header)

	var records []domain.RawProductRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		rec, ok, err := cols.record(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			records = append(records, rec)
		}
	}

	AssignIDs(records)
	return records, nil
}

// ParseXLSX reads raw records from the first sheet of a workbook.
func ParseXLSX(r io.Reader) ([]domain.RawProductRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var (
		cols    *columnMap
		records []domain.RawProductRecord
	)
	for line := 1; rows.Next(); line++ {
		row, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		if cols == nil {
			cols = newColumnMap(row)
			continue
		}
		rec, ok, err := cols.record(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if ok {
			records = append(records, rec)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in %s: %w", sheet, err)
	}
	if cols == nil {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	AssignIDs(records)
	return records, nil
}

// AssignIDs gives every record without an id one derived from its SKU, so
// re-importing the same file overwrites rather than duplicates. Rows without a
// SKU key on their name and its occurrence count instead.
func AssignIDs(records []domain.RawProductRecord) {
	unnamed := map[string]int{}
	for i := range records {
		if records[i].ID != "" {
			continue
		}
		key := records[i].SKU
		if key == "" {
			name := strings.TrimSpace(records[i].Name)
			key = "name:" + name + "#" + strconv.Itoa(unnamed[name])
			unnamed[name]++
		}
		records[i].ID = uuid.NewSHA1(recordNamespace, []byte(key)).String()
	}
}

type columnMap struct {
	index map[string]int
}

var columnAliases = map[string]string{
	"id":           "id",
	"sku":          "sku",
	"name":         "name",
	"category":     "category",
	"subcategory":  "subcategory",
	"sub_category": "subcategory",
	"grade":        "grade",
	"weight":       "weight",
	"upc":          "upc",
	"imageurl":     "imageurl",
	"image_url":    "imageurl",
}

func newColumnMap(header []string) *columnMap {
	index := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if canonical, ok := columnAliases[key]; ok {
			if _, dup := index[canonical]; !dup {
				index[canonical] = i
			}
		}
	}
	return &columnMap{index: index}
}

func (c *columnMap) get(row []string, col string) string {
	i, ok := c.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// record maps a row onto a raw record. Blank rows are skipped.
func (c *columnMap) record(row []string) (domain.RawProductRecord, bool, error) {
	rec := domain.RawProductRecord{
		ID:          c.get(row, "id"),
		SKU:         c.get(row, "sku"),
		Name:        c.get(row, "name"),
		Category:    c.get(row, "category"),
		SubCategory: c.get(row, "subcategory"),
		Grade:       c.get(row, "grade"),
		UPC:         c.get(row, "upc"),
		ImageURL:    c.get(row, "imageurl"),
	}
	if rec.SKU == "" && rec.Name == "" {
		return rec, false, nil
	}

	if w := c.get(row, "weight"); w != "" {
		v, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return rec, false, fmt.Errorf("invalid weight %q for sku %s", w, rec.SKU)
		}
		rec.Weight = &v
	}
	return rec, true, nil
}
