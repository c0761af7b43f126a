package statement

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

// EBITDA-style reads stop rendering after the operating margin line.
const operatingCutoff = "operating_margin"

// Request describes one statement or drill-down read.
type Request struct {
	OrganizationID     int64
	StatementID        string
	Period             shared.Period
	Granularity        string
	Scope              string
	EntityID           int64
	IncludeBudget      bool
	IncludeYoY         bool
	OperatingOnly      bool
	IncludeProForma    bool
	IncludeAllocations bool
}

// Validate rejects malformed requests with a specific message.
func (r Request) Validate() error {
	if r.OrganizationID <= 0 {
		return fmt.Errorf("statement: organization id is required")
	}
	if _, ok := TemplateByID(r.StatementID); !ok {
		return fmt.Errorf("statement: unknown statement %q", r.StatementID)
	}
	if !r.Period.Valid() {
		return fmt.Errorf("%w: %s", shared.ErrInvalidPeriod, r.Period.Key())
	}
	switch r.Scope {
	case "", consol.ScopeOrganization:
	case consol.ScopeEntity:
		if r.EntityID <= 0 {
			return fmt.Errorf("statement: entity id required for entity scope")
		}
	default:
		return fmt.Errorf("statement: unknown scope %q", r.Scope)
	}
	switch r.Granularity {
	case "", shared.GranularityMonthly, shared.GranularityQuarterly, shared.GranularityYearly:
	default:
		return fmt.Errorf("statement: unknown granularity %q", r.Granularity)
	}
	if r.OperatingOnly && r.StatementID != IncomeStatementID {
		return fmt.Errorf("statement: operating-only view applies to the income statement")
	}
	return nil
}

// Service composes consolidation reads into rendered statements.
type Service struct {
	repo consol.SnapshotLoader
	now  func() time.Time
}

// NewService constructs a statement service instance.
func NewService(repo consol.SnapshotLoader) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// GetStatement builds the requested statement with its actual column and,
// when asked, budget and prior-year columns. Actual and budget source rows
// load concurrently; prior year reuses the actual snapshot since its window
// covers both periods.
func (s *Service) GetStatement(ctx context.Context, req Request) (Statement, error) {
	if s == nil || s.repo == nil {
		return Statement{}, fmt.Errorf("statement: service not initialised")
	}
	if err := req.Validate(); err != nil {
		return Statement{}, err
	}
	tpl, _ := TemplateByID(req.StatementID)
	if req.OperatingOnly {
		tpl = tpl.TruncateAfter(operatingCutoff)
	}
	if req.Scope == consol.ScopeEntity {
		ok, err := s.repo.EntityExists(ctx, req.OrganizationID, req.EntityID)
		if err != nil {
			return Statement{}, err
		}
		if !ok {
			return Statement{}, fmt.Errorf("statement: entity %d not in organization %d", req.EntityID, req.OrganizationID)
		}
	}

	from, to := req.window()
	var actualSnap, budgetSnap *consol.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.repo.LoadSnapshot(gctx, req.OrganizationID, from, to)
		if err != nil {
			return err
		}
		actualSnap = snap
		return nil
	})
	if req.IncludeBudget {
		g.Go(func() error {
			bFrom, bTo := periodWindow(req.Granularity, req.Period)
			snap, err := s.repo.LoadBudgetSnapshot(gctx, req.OrganizationID, bFrom, bTo)
			if err != nil {
				return err
			}
			budgetSnap = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Statement{}, err
	}

	opts := req.buildOptions(req.Period)
	actual, err := consol.BuildTrialBalance(actualSnap, opts)
	if err != nil {
		return Statement{}, err
	}
	columns := []ColumnData{{Type: ColumnActual, TrialBalance: actual}}

	if req.IncludeBudget {
		budgetOpts := req.buildOptions(req.Period)
		budgetOpts.Adjustments = consol.AdjustmentOptions{}
		budget, err := consol.BuildTrialBalance(budgetSnap, budgetOpts)
		if err != nil {
			return Statement{}, err
		}
		columns = append(columns, ColumnData{Type: ColumnBudget, TrialBalance: budget})
	}
	if req.IncludeYoY {
		prior, err := consol.BuildTrialBalance(actualSnap, req.buildOptions(req.Period.AddMonths(-12)))
		if err != nil {
			return Statement{}, err
		}
		columns = append(columns, ColumnData{Type: ColumnPriorYear, TrialBalance: prior})
	}

	return Build(tpl, columns)
}

// GetDrillDown expands one statement cell into its constituent rows.
func (s *Service) GetDrillDown(ctx context.Context, req Request, lineID, columnType string) (DrillDown, error) {
	if s == nil || s.repo == nil {
		return DrillDown{}, fmt.Errorf("statement: service not initialised")
	}
	if err := req.Validate(); err != nil {
		return DrillDown{}, err
	}
	tpl, _ := TemplateByID(req.StatementID)
	if req.OperatingOnly {
		tpl = tpl.TruncateAfter(operatingCutoff)
	}

	period := req.Period
	opts := req.buildOptions(period)
	var (
		snap *consol.Snapshot
		err  error
	)
	switch columnType {
	case "", ColumnActual:
		columnType = ColumnActual
		from, to := periodWindow(req.Granularity, period)
		snap, err = s.repo.LoadSnapshot(ctx, req.OrganizationID, from, to)
	case ColumnBudget:
		opts.Adjustments = consol.AdjustmentOptions{}
		from, to := periodWindow(req.Granularity, period)
		snap, err = s.repo.LoadBudgetSnapshot(ctx, req.OrganizationID, from, to)
	case ColumnPriorYear:
		period = req.Period.AddMonths(-12)
		opts = req.buildOptions(period)
		from, to := periodWindow(req.Granularity, period)
		snap, err = s.repo.LoadSnapshot(ctx, req.OrganizationID, from, to)
	default:
		return DrillDown{}, fmt.Errorf("statement: unknown column type %q", columnType)
	}
	if err != nil {
		return DrillDown{}, err
	}
	return BuildDrillDown(tpl, lineID, columnType, snap, opts)
}

// window computes the inclusive month range covering the target period,
// its granularity expansion, and the prior-year column when requested.
func (r Request) window() (shared.Period, shared.Period) {
	from, to := periodWindow(r.Granularity, r.Period)
	if r.IncludeYoY {
		pFrom, pTo := periodWindow(r.Granularity, r.Period.AddMonths(-12))
		if pFrom.Before(from) {
			from = pFrom
		}
		if pTo.After(to) {
			to = pTo
		}
	}
	return from, to
}

func periodWindow(granularity string, p shared.Period) (shared.Period, shared.Period) {
	periods := shared.ExpandGranularity(granularity, p)
	return periods[0], periods[len(periods)-1]
}

func (r Request) buildOptions(period shared.Period) consol.BuildOptions {
	opts := consol.BuildOptions{
		Period:      period,
		Granularity: r.Granularity,
		Adjustments: consol.AdjustmentOptions{
			IncludeAllocations: r.IncludeAllocations,
			IncludeProForma:    r.IncludeProForma,
		},
	}
	if r.Scope == consol.ScopeEntity {
		opts.EntityIDs = []int64{r.EntityID}
	}
	return opts
}
