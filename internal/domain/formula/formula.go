package formula

import (
	"fmt"
	"time"

	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Kind identifies how a deduction formula converts gross weight to net weight.
type Kind string

const (
	// KindNone applies no deduction: net = gross
	KindNone Kind = "none"
	// KindPercentage multiplies: net = gross × parameter (parameter in (0,1])
	KindPercentage Kind = "percentage"
	// KindFixed subtracts a flat amount: net = gross − parameter, floored at 0
	KindFixed Kind = "fixed"
	// KindFixedPerUnit subtracts per carton: net = gross − unitCount × parameter, floored at 0
	KindFixedPerUnit Kind = "fixed_per_unit"
)

// IsValid checks if the kind is one of the known formula kinds
func (k Kind) IsValid() bool {
	switch k {
	case KindNone, KindPercentage, KindFixed, KindFixedPerUnit:
		return true
	}
	return false
}

// RequiresParameter returns true for kinds that need a parameter value
func (k Kind) RequiresParameter() bool {
	return k != KindNone
}

// RequiresUnitCount returns true for kinds that need a carton count to evaluate
func (k Kind) RequiresUnitCount() bool {
	return k == KindFixedPerUnit
}

// String returns the string representation
func (k Kind) String() string {
	return string(k)
}

// AllKinds returns all valid formula kinds
func AllKinds() []Kind {
	return []Kind{KindNone, KindPercentage, KindFixed, KindFixedPerUnit}
}

// Snapshot is the value-object copy of a formula that batches embed at
// creation time. It is deliberately not a reference: editing or deleting the
// configured formula later must not change how a historical batch was valued.
type Snapshot struct {
	Kind      Kind             `gorm:"type:varchar(20)" json:"kind"`
	Parameter *decimal.Decimal `gorm:"type:decimal(12,4)" json:"parameter,omitempty"`
}

// IsZero returns true when no formula was captured for a batch
func (s Snapshot) IsZero() bool {
	return s.Kind == ""
}

// Validate checks the kind/parameter combination
func (s Snapshot) Validate() error {
	if !s.Kind.IsValid() {
		return shared.NewValidationError("kind", fmt.Sprintf("unknown formula kind %q", s.Kind))
	}
	if s.Kind == KindNone {
		return nil
	}
	if s.Parameter == nil {
		return shared.NewValidationError("parameter", fmt.Sprintf("formula kind %q requires a parameter", s.Kind))
	}
	switch s.Kind {
	case KindPercentage:
		if s.Parameter.LessThanOrEqual(decimal.Zero) || s.Parameter.GreaterThan(decimal.NewFromInt(1)) {
			return shared.NewValidationError("parameter", "percentage parameter must be in (0, 1]")
		}
	case KindFixed, KindFixedPerUnit:
		if s.Parameter.IsNegative() {
			return shared.NewValidationError("parameter", "deduction amount cannot be negative")
		}
	}
	return nil
}

// Evaluate converts a gross weight into a net weight according to the
// snapshot. unitCount is only consulted for fixed_per_unit formulas and must
// be supplied by the caller in that case. Fixed deductions clamp at zero
// rather than going negative. The result is a pure function of the inputs so
// it stays reproducible after the source formula row is edited or deleted.
func (s Snapshot) Evaluate(grossWeight decimal.Decimal, unitCount *int64) (decimal.Decimal, error) {
	if grossWeight.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_INPUT", "gross weight cannot be negative")
	}
	if err := s.Validate(); err != nil {
		return decimal.Zero, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	switch s.Kind {
	case KindNone:
		return grossWeight, nil
	case KindPercentage:
		return grossWeight.Mul(*s.Parameter), nil
	case KindFixed:
		net := grossWeight.Sub(*s.Parameter)
		if net.IsNegative() {
			return decimal.Zero, nil
		}
		return net, nil
	case KindFixedPerUnit:
		if unitCount == nil {
			return decimal.Zero, shared.NewDomainError("INVALID_INPUT", "fixed_per_unit formula requires a unit count")
		}
		if *unitCount < 0 {
			return decimal.Zero, shared.NewDomainError("INVALID_INPUT", "unit count cannot be negative")
		}
		net := grossWeight.Sub(decimal.NewFromInt(*unitCount).Mul(*s.Parameter))
		if net.IsNegative() {
			return decimal.Zero, nil
		}
		return net, nil
	}
	return decimal.Zero, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("unknown formula kind %q", s.Kind))
}

// TareWeight returns gross − net for the snapshot
func (s Snapshot) TareWeight(grossWeight decimal.Decimal, unitCount *int64) (decimal.Decimal, error) {
	net, err := s.Evaluate(grossWeight, unitCount)
	if err != nil {
		return decimal.Zero, err
	}
	return grossWeight.Sub(net), nil
}

// Display renders the formula as a human-readable rule
func (s Snapshot) Display() string {
	switch s.Kind {
	case KindNone:
		return "net = gross"
	case KindPercentage:
		if s.Parameter != nil {
			return fmt.Sprintf("net = gross × %s", s.Parameter.String())
		}
	case KindFixed:
		if s.Parameter != nil {
			return fmt.Sprintf("net = gross − %s", s.Parameter.String())
		}
	case KindFixedPerUnit:
		if s.Parameter != nil {
			return fmt.Sprintf("net = gross − (units × %s)", s.Parameter.String())
		}
	}
	return ""
}

// DeductionFormula is the configurable rule for converting a purchased gross
// weight into the billable net weight. Rows are configuration only: batches
// keep a Snapshot of the values they were created with.
type DeductionFormula struct {
	shared.BaseAggregateRoot
	Name        string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	Kind        Kind             `gorm:"type:varchar(20);not null;default:'none'"`
	Parameter   *decimal.Decimal `gorm:"type:decimal(12,4)"`
	Description string           `gorm:"type:varchar(200)"`
	IsDefault   bool             `gorm:"not null;default:false"`
	IsActive    bool             `gorm:"not null;default:true"`
	SortOrder   int              `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (DeductionFormula) TableName() string {
	return "deduction_formulas"
}

// NewDeductionFormula creates a new formula after validating the
// kind/parameter combination
func NewDeductionFormula(name string, kind Kind, parameter *decimal.Decimal, description string) (*DeductionFormula, error) {
	if name == "" {
		return nil, shared.NewValidationError("name", "formula name is required")
	}
	f := &DeductionFormula{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Kind:              kind,
		Parameter:         parameter,
		Description:       description,
		IsActive:          true,
	}
	if err := f.Snapshot().Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Snapshot returns the value-object copy embedded into batches at creation
func (f *DeductionFormula) Snapshot() Snapshot {
	return Snapshot{Kind: f.Kind, Parameter: f.Parameter}
}

// Update changes the formula definition. Existing batches are unaffected
// because they carry their own snapshot.
func (f *DeductionFormula) Update(name string, kind Kind, parameter *decimal.Decimal, description string) error {
	if name == "" {
		return shared.NewValidationError("name", "formula name is required")
	}
	candidate := Snapshot{Kind: kind, Parameter: parameter}
	if err := candidate.Validate(); err != nil {
		return err
	}
	f.Name = name
	f.Kind = kind
	f.Parameter = parameter
	f.Description = description
	f.UpdatedAt = time.Now()
	f.IncrementVersion()
	return nil
}

// Deactivate hides the formula from selection without touching history
func (f *DeductionFormula) Deactivate() {
	f.IsActive = false
	f.UpdatedAt = time.Now()
	f.IncrementVersion()
}
