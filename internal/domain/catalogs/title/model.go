// Package title provides the Title catalog: one entry per stock-keeping
// book edition, keyed by ISBN.
package title

import (
	"context"
	"regexp"
	"time"

	"bookledger/internal/core/apperror"
	"bookledger/internal/core/id"
	"bookledger/internal/core/types"
)

// Title represents a stock-keeping unit (book edition).
// Identity (ID, ISBN) is immutable; pricing and metadata are mutable.
type Title struct {
	ID id.ID `db:"id" json:"id"`

	// ISBN is the unique catalog identifier
	ISBN string `db:"isbn" json:"isbn"`

	Name      string `db:"name" json:"name"`
	Publisher string `db:"publisher" json:"publisher,omitempty"`

	// RRP is the recommended retail price
	RRP types.Money `db:"rrp" json:"rrp"`

	// UnitCost is the default production/acquisition cost per copy
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// LowStockThreshold triggers low-stock listings when set
	LowStockThreshold *int64 `db:"low_stock_threshold" json:"lowStockThreshold,omitempty"`

	Active bool `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewTitle creates a new Title with required fields.
func NewTitle(isbn, name string) *Title {
	now := time.Now().UTC()
	return &Title{
		ID:        id.New(),
		ISBN:      isbn,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var isbnPattern = regexp.MustCompile(`^(97[89])?\d{9}[\dXx]$`)

// Validate checks title invariants.
func (t *Title) Validate(ctx context.Context) error {
	if t.ISBN == "" {
		return apperror.NewValidation("isbn is required").WithDetail("field", "isbn")
	}
	if !isbnPattern.MatchString(t.ISBN) {
		return apperror.NewValidation("isbn must be a valid ISBN-10 or ISBN-13").
			WithDetail("field", "isbn").
			WithDetail("value", t.ISBN)
	}
	if t.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if t.RRP.IsNegative() || t.UnitCost.IsNegative() {
		return apperror.NewValidation("prices must not be negative").
			WithDetail("field", "rrp")
	}
	return nil
}
