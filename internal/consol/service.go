package consol

import (
	"context"
	"fmt"
	"time"

	"github.com/jdavon/closebook/internal/shared"
)

// Scope selects whether a report covers the organization or one entity.
const (
	ScopeOrganization = "organization"
	ScopeEntity       = "entity"
)

// Filters encapsulates query parameters for the consolidated trial balance.
type Filters struct {
	OrganizationID     int64
	Period             shared.Period
	ComparePeriod      *shared.Period
	Scope              string
	EntityID           int64
	Granularity        string
	IncludeProForma    bool
	IncludeAllocations bool
}

// Validate rejects malformed filters with a specific message.
func (f Filters) Validate() error {
	if f.OrganizationID <= 0 {
		return fmt.Errorf("consol: organization id is required")
	}
	if !f.Period.Valid() {
		return fmt.Errorf("%w: %s", shared.ErrInvalidPeriod, f.Period.Key())
	}
	if f.ComparePeriod != nil && !f.ComparePeriod.Valid() {
		return fmt.Errorf("%w: compare %s", shared.ErrInvalidPeriod, f.ComparePeriod.Key())
	}
	switch f.Scope {
	case "", ScopeOrganization:
	case ScopeEntity:
		if f.EntityID <= 0 {
			return fmt.Errorf("consol: entity id required for entity scope")
		}
	default:
		return fmt.Errorf("consol: unknown scope %q", f.Scope)
	}
	switch f.Granularity {
	case "", shared.GranularityMonthly, shared.GranularityQuarterly, shared.GranularityYearly:
	default:
		return fmt.Errorf("consol: unknown granularity %q", f.Granularity)
	}
	return nil
}

// SnapshotLoader defines the required persistence behaviour for the service.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, organizationID int64, from, to shared.Period) (*Snapshot, error)
	LoadBudgetSnapshot(ctx context.Context, organizationID int64, from, to shared.Period) (*Snapshot, error)
	EntityExists(ctx context.Context, organizationID, entityID int64) (bool, error)
}

// Service orchestrates consolidation reads.
type Service struct {
	repo SnapshotLoader
	now  func() time.Time
}

// NewService constructs a consolidation service instance.
func NewService(repo SnapshotLoader) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// GetTrialBalance loads a snapshot for the requested window and builds
// the consolidated trial balance.
func (s *Service) GetTrialBalance(ctx context.Context, filters Filters) (TrialBalance, error) {
	if s == nil || s.repo == nil {
		return TrialBalance{}, fmt.Errorf("consol: service not initialised")
	}
	if err := filters.Validate(); err != nil {
		return TrialBalance{}, err
	}
	if filters.Scope == ScopeEntity {
		ok, err := s.repo.EntityExists(ctx, filters.OrganizationID, filters.EntityID)
		if err != nil {
			return TrialBalance{}, err
		}
		if !ok {
			return TrialBalance{}, fmt.Errorf("consol: entity %d not in organization %d", filters.EntityID, filters.OrganizationID)
		}
	}

	from, to := filters.window()
	snap, err := s.repo.LoadSnapshot(ctx, filters.OrganizationID, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(snap, filters.buildOptions())
}

// GetBudgetTrialBalance runs the same pipeline over budget source rows.
func (s *Service) GetBudgetTrialBalance(ctx context.Context, filters Filters) (TrialBalance, error) {
	if s == nil || s.repo == nil {
		return TrialBalance{}, fmt.Errorf("consol: service not initialised")
	}
	if err := filters.Validate(); err != nil {
		return TrialBalance{}, err
	}
	from, to := filters.window()
	snap, err := s.repo.LoadBudgetSnapshot(ctx, filters.OrganizationID, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	opts := filters.buildOptions()
	// Budget rows carry no manual adjustments.
	opts.Adjustments = AdjustmentOptions{}
	return BuildTrialBalance(snap, opts)
}

// window computes the inclusive month range the snapshot must cover for
// the target period, its granularity expansion, and any compare period.
func (f Filters) window() (shared.Period, shared.Period) {
	periods := shared.ExpandGranularity(f.Granularity, f.Period)
	from, to := periods[0], periods[len(periods)-1]
	if f.ComparePeriod != nil {
		compare := shared.ExpandGranularity(f.Granularity, *f.ComparePeriod)
		if compare[0].Before(from) {
			from = compare[0]
		}
		if compare[len(compare)-1].After(to) {
			to = compare[len(compare)-1]
		}
	}
	return from, to
}

func (f Filters) buildOptions() BuildOptions {
	opts := BuildOptions{
		Period:        f.Period,
		ComparePeriod: f.ComparePeriod,
		Granularity:   f.Granularity,
		Adjustments: AdjustmentOptions{
			IncludeAllocations: f.IncludeAllocations,
			IncludeProForma:    f.IncludeProForma,
		},
	}
	if f.Scope == ScopeEntity {
		opts.EntityIDs = []int64{f.EntityID}
	}
	return opts
}
