package formula

import (
	"context"

	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository defines the interface for deduction formula persistence
type Repository interface {
	// FindByID finds a formula by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*DeductionFormula, error)

	// FindByName finds a formula by its unique name
	FindByName(ctx context.Context, name string) (*DeductionFormula, error)

	// FindAll finds formulas matching the filter, ordered by sort order then id
	FindAll(ctx context.Context, filter shared.Filter) ([]DeductionFormula, error)

	// FindActive finds active formulas for selection lists
	FindActive(ctx context.Context) ([]DeductionFormula, error)

	// Save creates or updates a formula
	Save(ctx context.Context, f *DeductionFormula) error

	// Delete removes a formula. Batches keep their snapshot, so deletion
	// never rewrites history.
	Delete(ctx context.Context, id uuid.UUID) error

	// ExistsByName checks whether a formula name is already taken
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Count counts formulas matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
