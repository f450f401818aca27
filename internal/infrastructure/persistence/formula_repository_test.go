package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockFormulaRepository(t *testing.T) (*GormFormulaRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormFormulaRepository(gormDB), mock, mockDB
}

func TestGormFormulaRepository_FindByID(t *testing.T) {
	t.Run("finds existing formula", func(t *testing.T) {
		repo, mock, mockDB := newMockFormulaRepository(t)
		defer mockDB.Close()

		formulaID := uuid.New()
		param := decimal.NewFromFloat(0.98)

		rows := sqlmock.NewRows([]string{"id", "name", "kind", "parameter", "is_active", "version"}).
			AddRow(formulaID, "standard 2 percent", "percentage", param, true, 1)

		mock.ExpectQuery(`SELECT \* FROM "deduction_formulas" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(formulaID, 1).
			WillReturnRows(rows)

		f, err := repo.FindByID(context.Background(), formulaID)

		assert.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, formulaID, f.ID)
		assert.Equal(t, formula.KindPercentage, f.Kind)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found for missing formula", func(t *testing.T) {
		repo, mock, mockDB := newMockFormulaRepository(t)
		defer mockDB.Close()

		formulaID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "deduction_formulas" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(formulaID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		f, err := repo.FindByID(context.Background(), formulaID)

		assert.Nil(t, f)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormFormulaRepository_ExistsByName(t *testing.T) {
	t.Run("reports taken name", func(t *testing.T) {
		repo, mock, mockDB := newMockFormulaRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "deduction_formulas" WHERE name = \$1`).
			WithArgs("standard 2 percent").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.ExistsByName(context.Background(), "standard 2 percent")

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormFormulaRepository_Delete(t *testing.T) {
	t.Run("returns not found for missing formula", func(t *testing.T) {
		repo, mock, mockDB := newMockFormulaRepository(t)
		defer mockDB.Close()

		formulaID := uuid.New()

		mock.ExpectExec(`DELETE FROM "deduction_formulas" WHERE id = \$1`).
			WithArgs(formulaID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.Background(), formulaID)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
