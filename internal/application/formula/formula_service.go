package formula

import (
	"context"
	"fmt"

	"github.com/coldtrade/backend/internal/domain/formula"
	"github.com/coldtrade/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Service manages the configured deduction formulas and offers a pure
// evaluation endpoint for previewing a conversion before a batch exists.
type Service struct {
	repo formula.Repository
}

// NewService creates a new formula Service
func NewService(repo formula.Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a new formula with a unique name
func (s *Service) Create(ctx context.Context, cmd CreateFormulaCommand) (*FormulaView, error) {
	exists, err := s.repo.ExistsByName(ctx, cmd.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("formula named %q already exists", cmd.Name))
	}

	f, err := formula.NewDeductionFormula(cmd.Name, formula.Kind(cmd.Kind), cmd.Parameter, cmd.Description)
	if err != nil {
		return nil, err
	}
	f.SortOrder = cmd.SortOrder

	if err := s.repo.Save(ctx, f); err != nil {
		return nil, err
	}
	view := NewFormulaView(f)
	return &view, nil
}

// Update edits a formula definition. Existing batches keep their snapshots.
func (s *Service) Update(ctx context.Context, id uuid.UUID, cmd UpdateFormulaCommand) (*FormulaView, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Name != f.Name {
		exists, err := s.repo.ExistsByName(ctx, cmd.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("formula named %q already exists", cmd.Name))
		}
	}

	if err := f.Update(cmd.Name, formula.Kind(cmd.Kind), cmd.Parameter, cmd.Description); err != nil {
		return nil, err
	}
	f.SortOrder = cmd.SortOrder

	if err := s.repo.Save(ctx, f); err != nil {
		return nil, err
	}
	view := NewFormulaView(f)
	return &view, nil
}

// Get returns one formula
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*FormulaView, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewFormulaView(f)
	return &view, nil
}

// List returns all formulas; activeOnly hides deactivated ones
func (s *Service) List(ctx context.Context, activeOnly bool) ([]FormulaView, error) {
	var (
		formulas []formula.DeductionFormula
		err      error
	)
	if activeOnly {
		formulas, err = s.repo.FindActive(ctx)
	} else {
		formulas, err = s.repo.FindAll(ctx, shared.DefaultFilter())
	}
	if err != nil {
		return nil, err
	}

	views := make([]FormulaView, 0, len(formulas))
	for i := range formulas {
		views = append(views, NewFormulaView(&formulas[i]))
	}
	return views, nil
}

// Deactivate hides a formula from selection without touching batch history
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	f.Deactivate()
	return s.repo.Save(ctx, f)
}

// Evaluate previews a gross to net conversion without creating anything
func (s *Service) Evaluate(ctx context.Context, cmd EvaluateCommand) (*EvaluationResult, error) {
	snapshot, err := s.resolveSnapshot(ctx, cmd)
	if err != nil {
		return nil, err
	}

	net, err := snapshot.Evaluate(cmd.GrossWeight, cmd.UnitCount)
	if err != nil {
		return nil, err
	}
	return &EvaluationResult{
		GrossWeight: cmd.GrossWeight,
		NetWeight:   net,
		TareWeight:  cmd.GrossWeight.Sub(net),
		Display:     snapshot.Display(),
	}, nil
}

// resolveSnapshot builds the snapshot to evaluate: an inline definition wins,
// otherwise the configured formula is looked up
func (s *Service) resolveSnapshot(ctx context.Context, cmd EvaluateCommand) (formula.Snapshot, error) {
	if cmd.FormulaID != nil {
		f, err := s.repo.FindByID(ctx, *cmd.FormulaID)
		if err != nil {
			return formula.Snapshot{}, err
		}
		return f.Snapshot(), nil
	}
	if cmd.Kind == "" {
		return formula.Snapshot{}, shared.NewValidationError("kind", "either a formula id or an inline definition is required")
	}
	snapshot := formula.Snapshot{Kind: formula.Kind(cmd.Kind), Parameter: cmd.Parameter}
	if err := snapshot.Validate(); err != nil {
		return formula.Snapshot{}, err
	}
	return snapshot, nil
}
