package persistence

import (
	"context"
	"errors"

	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFormulaRepository implements formula.Repository using GORM
type GormFormulaRepository struct {
	db *gorm.DB
}

// NewGormFormulaRepository creates a new GormFormulaRepository
func NewGormFormulaRepository(db *gorm.DB) *GormFormulaRepository {
	return &GormFormulaRepository{db: db}
}

// FindByID finds a formula by its ID
func (r *GormFormulaRepository) FindByID(ctx context.Context, id uuid.UUID) (*formula.DeductionFormula, error) {
	var f formula.DeductionFormula
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// FindByName finds a formula by its unique name
func (r *GormFormulaRepository) FindByName(ctx context.Context, name string) (*formula.DeductionFormula, error) {
	var f formula.DeductionFormula
	if err := r.db.WithContext(ctx).First(&f, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// FindAll finds formulas matching the filter, ordered by sort order then id
func (r *GormFormulaRepository) FindAll(ctx context.Context, filter shared.Filter) ([]formula.DeductionFormula, error) {
	var formulas []formula.DeductionFormula
	query := r.db.WithContext(ctx).Model(&formula.DeductionFormula{})

	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if v, ok := filter.Filters["is_active"]; ok {
		query = query.Where("is_active = ?", v)
	}

	query = query.Order("sort_order ASC, id ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if err := query.Find(&formulas).Error; err != nil {
		return nil, err
	}
	return formulas, nil
}

// FindActive finds active formulas for selection lists
func (r *GormFormulaRepository) FindActive(ctx context.Context) ([]formula.DeductionFormula, error) {
	var formulas []formula.DeductionFormula
	if err := r.db.WithContext(ctx).
		Where("is_active = TRUE").
		Order("sort_order ASC, id ASC").
		Find(&formulas).Error; err != nil {
		return nil, err
	}
	return formulas, nil
}

// Save creates or updates a formula
func (r *GormFormulaRepository) Save(ctx context.Context, f *formula.DeductionFormula) error {
	return r.db.WithContext(ctx).Save(f).Error
}

// Delete removes a formula
func (r *GormFormulaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&formula.DeductionFormula{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExistsByName checks whether a formula name is already taken
func (r *GormFormulaRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&formula.DeductionFormula{}).
		Where("name = ?", name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count counts formulas matching the filter
func (r *GormFormulaRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&formula.DeductionFormula{})
	if filter.Search != "" {
		query = query.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if v, ok := filter.Filters["is_active"]; ok {
		query = query.Where("is_active = ?", v)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormFormulaRepository implements formula.Repository
var _ formula.Repository = (*GormFormulaRepository)(nil)
