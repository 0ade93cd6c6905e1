package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Target selects which entity a CSV batch imports.
type Target string

const (
	// TargetProducts creates product variants.
	TargetProducts Target = "products"
	// TargetSales records stock-out events.
	TargetSales Target = "sales"
	// TargetStock records stock-in events.
	TargetStock Target = "stock"
	// TargetAdjustments records manual corrections.
	TargetAdjustments Target = "adjustments"
)

// ParseTarget validates a target name from a URL segment.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case TargetProducts:
		return TargetProducts, nil
	case TargetSales:
		return TargetSales, nil
	case TargetStock:
		return TargetStock, nil
	case TargetAdjustments:
		return TargetAdjustments, nil
	}
	return "", fmt.Errorf("importer: unknown import target %q", s)
}

// Row is one CSV record keyed by header name. Parsing is upstream of the
// reconciler; the reconciler only consumes rows.
type Row map[string]string

// ParseCSV reads a headed CSV stream into rows. Header names and cell
// values are trimmed; blank lines are skipped.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("importer: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("importer: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("importer: read row %d: %w", len(rows)+2, err)
		}
		row := make(Row, len(header))
		empty := true
		for i, cell := range record {
			if i >= len(header) {
				break
			}
			cell = strings.TrimSpace(cell)
			if cell != "" {
				empty = false
			}
			row[header[i]] = cell
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// productRow is a products-import record.
type productRow struct {
	Name      string  `validate:"required"`
	Color     string  `validate:"required"`
	Size      string  `validate:"required"`
	Quantity  float64 `validate:"gte=0"`
	Threshold float64 `validate:"gte=0"`
	Unit      string  `validate:"required"`
	Price     decimal.Decimal
}

// saleRow is a sales-import record.
type saleRow struct {
	Name     string  `validate:"required"`
	Color    string  `validate:"required"`
	Size     string  `validate:"required"`
	Quantity float64 `validate:"gt=0"`
	Price    decimal.Decimal
	SoldAt   time.Time
}

// stockRow is a stock-additions-import record.
type stockRow struct {
	Name     string  `validate:"required"`
	Color    string  `validate:"required"`
	Size     string  `validate:"required"`
	Quantity float64 `validate:"gt=0"`
	Price    decimal.Decimal
	AddedAt  time.Time
}

// adjustmentRow is an adjustments-import record. The stated current
// quantity comes from the CSV, not live state: the file is a point-in-time
// physical count and its baseline is trusted.
type adjustmentRow struct {
	Name     string `validate:"required"`
	Color    string `validate:"required"`
	Size     string `validate:"required"`
	Current  float64
	Adjusted float64
	Reason   string
	Number   string
}

// requiredFields lists the columns a row must fill per target, checked
// before any matching happens.
var requiredFields = map[Target][]string{
	TargetProducts:    {"productName", "productColor", "productSize", "actualProductQuantity", "productUnit"},
	TargetSales:       {"productName", "productColor", "productSize", "quantitySold"},
	TargetStock:       {"productName", "productColor", "productSize", "quantityAdded"},
	TargetAdjustments: {"productName", "productColor", "productSize", "currentQuantity", "adjustedQuantity"},
}

// checkRequired reports the first missing required column.
func checkRequired(target Target, row Row) error {
	for _, field := range requiredFields[target] {
		if row[field] == "" {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	return nil
}

func parseFloat(row Row, field string) (float64, error) {
	raw := row[field]
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: not a number: %q", field, raw)
	}
	return val, nil
}

func parsePrice(row Row, field string) (decimal.Decimal, error) {
	raw := row[field]
	if raw == "" {
		return decimal.Decimal{}, nil
	}
	val, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("field %q: not a price: %q", field, raw)
	}
	return val, nil
}

func parseDate(row Row, field string) (time.Time, error) {
	raw := row[field]
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: not a date: %q", field, raw)
	}
	return t, nil
}

func decodeProductRow(v *validator.Validate, row Row) (productRow, error) {
	out := productRow{
		Name:  row["productName"],
		Color: row["productColor"],
		Size:  row["productSize"],
		Unit:  row["productUnit"],
	}
	var err error
	if out.Quantity, err = parseFloat(row, "actualProductQuantity"); err != nil {
		return out, err
	}
	if out.Threshold, err = parseFloat(row, "thresholdProductQuantity"); err != nil {
		return out, err
	}
	if out.Price, err = parsePrice(row, "productPrice"); err != nil {
		return out, err
	}
	return out, v.Struct(out)
}

func decodeSaleRow(v *validator.Validate, row Row) (saleRow, error) {
	out := saleRow{
		Name:  row["productName"],
		Color: row["productColor"],
		Size:  row["productSize"],
	}
	var err error
	if out.Quantity, err = parseFloat(row, "quantitySold"); err != nil {
		return out, err
	}
	if out.Price, err = parsePrice(row, "salePrice"); err != nil {
		return out, err
	}
	if out.SoldAt, err = parseDate(row, "addedDate"); err != nil {
		return out, err
	}
	return out, v.Struct(out)
}

func decodeStockRow(v *validator.Validate, row Row) (stockRow, error) {
	out := stockRow{
		Name:  row["productName"],
		Color: row["productColor"],
		Size:  row["productSize"],
	}
	var err error
	if out.Quantity, err = parseFloat(row, "quantityAdded"); err != nil {
		return out, err
	}
	if out.Price, err = parsePrice(row, "productPrice"); err != nil {
		return out, err
	}
	if out.AddedAt, err = parseDate(row, "addedDate"); err != nil {
		return out, err
	}
	return out, v.Struct(out)
}

func decodeAdjustmentRow(v *validator.Validate, row Row) (adjustmentRow, error) {
	out := adjustmentRow{
		Name:   row["productName"],
		Color:  row["productColor"],
		Size:   row["productSize"],
		Reason: row["reason"],
		Number: row["adjustmentNo"],
	}
	var err error
	if out.Current, err = parseFloat(row, "currentQuantity"); err != nil {
		return out, err
	}
	if out.Adjusted, err = parseFloat(row, "adjustedQuantity"); err != nil {
		return out, err
	}
	return out, v.Struct(out)
}
