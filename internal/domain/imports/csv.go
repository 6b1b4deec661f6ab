package imports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/types"
)

// Header contract for monthly movement files. The two cost columns are
// optional; everything else is required, in this order.
var (
	requiredColumns = []string{"isbn", "warehouseCode", "movementType", "quantity", "movementDate", "referenceNumber"}
	optionalColumns = []string{"rrp", "unitCost"}
)

const dateLayout = "2006-01-02"

// largeQuantityThreshold flags suspiciously large rows for review.
const largeQuantityThreshold = 10000

// Row is one parsed line of an import file.
type Row struct {
	Line int

	ISBN          string
	WarehouseCode string
	MovementType  string
	Quantity      int64
	MovementDate  time.Time
	Reference     string

	RRP      *types.Money
	UnitCost *types.Money
}

// ParseFile reads a movement CSV (plain or gzip-compressed), validates the
// header and parses every row. Structural problems (unreadable stream, bad
// header) fail the whole parse; per-row value problems are collected so the
// caller decides whether to continue.
func ParseFile(r io.Reader) ([]Row, []RowError, error) {
	plain, err := maybeGunzip(r)
	if err != nil {
		return nil, nil, apperror.NewValidation("file is not readable").WithCause(err)
	}

	cr := csv.NewReader(plain)
	cr.TrimLeadingSpace = true
	// Column-count mismatches are per-row errors, not parse failures.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, apperror.NewValidation("file has no header row").WithCause(err)
	}
	withCosts, err := checkHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows     []Row
		rowErrs  []RowError
		lineNo   = 1
		expected = len(requiredColumns)
	)
	if withCosts {
		expected += len(optionalColumns)
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, nil, apperror.NewValidation(fmt.Sprintf("malformed csv at line %d", lineNo)).WithCause(err)
		}
		if len(record) != expected {
			rowErrs = append(rowErrs, RowError{
				Row:     lineNo,
				Message: fmt.Sprintf("expected %d columns, got %d", expected, len(record)),
			})
			continue
		}

		row, errs := parseRow(record, lineNo, withCosts)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		rows = append(rows, row)
	}

	return rows, rowErrs, nil
}

// maybeGunzip sniffs the gzip magic bytes and wraps the reader accordingly.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		// Short or empty stream: let the csv reader report it.
		return br, nil
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}

func checkHeader(header []string) (withCosts bool, err error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.TrimSpace(h)
	}

	switch len(normalized) {
	case len(requiredColumns):
	case len(requiredColumns) + len(optionalColumns):
		withCosts = true
	default:
		return false, apperror.NewValidation("unexpected column count in header").
			WithDetail("expected", strings.Join(requiredColumns, ","))
	}

	for i, want := range requiredColumns {
		if normalized[i] != want {
			return false, apperror.NewValidation(fmt.Sprintf("header column %d must be %q", i+1, want)).
				WithDetail("got", normalized[i])
		}
	}
	if withCosts {
		for i, want := range optionalColumns {
			pos := len(requiredColumns) + i
			if normalized[pos] != want {
				return false, apperror.NewValidation(fmt.Sprintf("header column %d must be %q", pos+1, want)).
					WithDetail("got", normalized[pos])
			}
		}
	}
	return withCosts, nil
}

func parseRow(record []string, line int, withCosts bool) (Row, []RowError) {
	var errs []RowError
	fail := func(message, field string) {
		errs = append(errs, RowError{Row: line, Message: message, Field: field})
	}

	row := Row{
		Line:          line,
		ISBN:          strings.TrimSpace(record[0]),
		WarehouseCode: strings.TrimSpace(record[1]),
		MovementType:  strings.ToUpper(strings.TrimSpace(record[2])),
		Reference:     strings.TrimSpace(record[5]),
	}

	if row.ISBN == "" {
		fail("isbn is required", "isbn")
	}
	if row.WarehouseCode == "" {
		fail("warehouseCode is required", "warehouseCode")
	}
	if row.MovementType == "" {
		fail("movementType is required", "movementType")
	}

	qty, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil {
		fail("quantity must be an integer", "quantity")
	}
	row.Quantity = qty

	date, err := time.Parse(dateLayout, strings.TrimSpace(record[4]))
	if err != nil {
		fail("movementDate must be YYYY-MM-DD", "movementDate")
	}
	row.MovementDate = date

	if withCosts {
		if v := strings.TrimSpace(record[6]); v != "" {
			m, err := types.NewMoneyFromString(v)
			if err != nil {
				fail("rrp must be a decimal amount", "rrp")
			} else {
				row.RRP = &m
			}
		}
		if v := strings.TrimSpace(record[7]); v != "" {
			m, err := types.NewMoneyFromString(v)
			if err != nil {
				fail("unitCost must be a decimal amount", "unitCost")
			} else {
				row.UnitCost = &m
			}
		}
	}

	return row, errs
}
