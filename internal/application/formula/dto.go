package formula

import (
	"time"

	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateFormulaCommand carries the input for a new deduction formula
type CreateFormulaCommand struct {
	Name        string
	Kind        string
	Parameter   *decimal.Decimal
	Description string
	SortOrder   int
}

// UpdateFormulaCommand carries the input for editing a formula
type UpdateFormulaCommand struct {
	Name        string
	Kind        string
	Parameter   *decimal.Decimal
	Description string
	SortOrder   int
}

// EvaluateCommand previews a gross to net conversion. Either FormulaID names
// a configured formula, or Kind/Parameter define one inline.
type EvaluateCommand struct {
	FormulaID   *uuid.UUID
	Kind        string
	Parameter   *decimal.Decimal
	GrossWeight decimal.Decimal
	UnitCount   *int64
}

// EvaluationResult is the outcome of a preview evaluation
type EvaluationResult struct {
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight"`
	TareWeight  decimal.Decimal `json:"tare_weight"`
	Display     string          `json:"display,omitempty"`
}

// FormulaView is the read model for a configured formula
type FormulaView struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Kind        string           `json:"kind"`
	Parameter   *decimal.Decimal `json:"parameter,omitempty"`
	Description string           `json:"description,omitempty"`
	Display     string           `json:"display,omitempty"`
	IsDefault   bool             `json:"is_default"`
	IsActive    bool             `json:"is_active"`
	SortOrder   int              `json:"sort_order"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewFormulaView projects a formula aggregate
func NewFormulaView(f *formula.DeductionFormula) FormulaView {
	return FormulaView{
		ID:          f.ID,
		Name:        f.Name,
		Kind:        f.Kind.String(),
		Parameter:   f.Parameter,
		Description: f.Description,
		Display:     f.Snapshot().Display(),
		IsDefault:   f.IsDefault,
		IsActive:    f.IsActive,
		SortOrder:   f.SortOrder,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}
