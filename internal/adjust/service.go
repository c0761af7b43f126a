package adjust

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

// Store defines the persistence behaviour the service requires.
type Store interface {
	InsertAllocation(ctx context.Context, ref uuid.UUID, in AllocationInput) (consol.AllocationAdjustment, error)
	UpdateAllocation(ctx context.Context, id int64, in AllocationInput) error
	SetAllocationExcluded(ctx context.Context, organizationID, id int64, excluded bool) error
	DeleteAllocation(ctx context.Context, organizationID, id int64) error

	InsertProForma(ctx context.Context, ref uuid.UUID, in ProFormaInput) (consol.ProFormaAdjustment, error)
	UpdateProForma(ctx context.Context, id int64, in ProFormaInput) error
	SetProFormaExcluded(ctx context.Context, organizationID, id int64, excluded bool) error
	DeleteProForma(ctx context.Context, organizationID, id int64) error

	InsertElimination(ctx context.Context, ref uuid.UUID, in EliminationInput) (consol.Elimination, error)
	GetElimination(ctx context.Context, organizationID, id int64) (consol.Elimination, error)
	UpdateElimination(ctx context.Context, id int64, in EliminationInput) error
	SetEliminationStatus(ctx context.Context, organizationID, id int64, current, target consol.EliminationStatus) error
	DeleteElimination(ctx context.Context, organizationID, id int64) error
}

// AuditRecorder abstracts the audit trail sink.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates adjustment and elimination mutations.
type Service struct {
	store Store
	audit AuditRecorder
	now   func() time.Time
}

// NewService constructs an adjust service instance.
func NewService(store Store, audit AuditRecorder) *Service {
	return &Service{store: store, audit: audit, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// record writes an audit entry. A failed write never blocks the mutation
// it describes.
func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

// CreateAllocation validates and persists a new allocation adjustment.
func (s *Service) CreateAllocation(ctx context.Context, in AllocationInput) (consol.AllocationAdjustment, error) {
	if err := in.Validate(); err != nil {
		return consol.AllocationAdjustment{}, err
	}
	row, err := s.store.InsertAllocation(ctx, uuid.New(), in)
	if err != nil {
		return consol.AllocationAdjustment{}, err
	}
	s.record(ctx, in.ActorID, "create", "allocation_adjustment", row.ID, map[string]any{
		"kind": string(in.Kind), "amount": in.Amount,
	})
	return row, nil
}

// UpdateAllocation validates and replaces an existing allocation adjustment.
func (s *Service) UpdateAllocation(ctx context.Context, id int64, in AllocationInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateAllocation(ctx, id, in); err != nil {
		return err
	}
	s.record(ctx, in.ActorID, "update", "allocation_adjustment", id, nil)
	return nil
}

// SetAllocationExcluded toggles an allocation in or out of consolidation.
// Toggling twice restores the original contribution exactly.
func (s *Service) SetAllocationExcluded(ctx context.Context, organizationID, id, actorID int64, excluded bool) error {
	if err := s.store.SetAllocationExcluded(ctx, organizationID, id, excluded); err != nil {
		return err
	}
	s.record(ctx, actorID, "toggle_exclude", "allocation_adjustment", id, map[string]any{"excluded": excluded})
	return nil
}

// DeleteAllocation removes an allocation adjustment.
func (s *Service) DeleteAllocation(ctx context.Context, organizationID, id, actorID int64) error {
	if err := s.store.DeleteAllocation(ctx, organizationID, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "allocation_adjustment", id, nil)
	return nil
}

// CreateProForma validates and persists a new pro forma adjustment.
func (s *Service) CreateProForma(ctx context.Context, in ProFormaInput) (consol.ProFormaAdjustment, error) {
	if err := in.Validate(); err != nil {
		return consol.ProFormaAdjustment{}, err
	}
	row, err := s.store.InsertProForma(ctx, uuid.New(), in)
	if err != nil {
		return consol.ProFormaAdjustment{}, err
	}
	s.record(ctx, in.ActorID, "create", "pro_forma_adjustment", row.ID, map[string]any{
		"period": in.Period.Key(), "amount": in.Amount,
	})
	return row, nil
}

// UpdateProForma validates and replaces an existing pro forma adjustment.
func (s *Service) UpdateProForma(ctx context.Context, id int64, in ProFormaInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateProForma(ctx, id, in); err != nil {
		return err
	}
	s.record(ctx, in.ActorID, "update", "pro_forma_adjustment", id, nil)
	return nil
}

// SetProFormaExcluded toggles a pro forma adjustment in or out of
// consolidation.
func (s *Service) SetProFormaExcluded(ctx context.Context, organizationID, id, actorID int64, excluded bool) error {
	if err := s.store.SetProFormaExcluded(ctx, organizationID, id, excluded); err != nil {
		return err
	}
	s.record(ctx, actorID, "toggle_exclude", "pro_forma_adjustment", id, map[string]any{"excluded": excluded})
	return nil
}

// DeleteProForma removes a pro forma adjustment.
func (s *Service) DeleteProForma(ctx context.Context, organizationID, id, actorID int64) error {
	if err := s.store.DeleteProForma(ctx, organizationID, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "pro_forma_adjustment", id, nil)
	return nil
}

// CreateElimination validates and persists a new draft elimination.
func (s *Service) CreateElimination(ctx context.Context, in EliminationInput) (consol.Elimination, error) {
	if err := in.Validate(); err != nil {
		return consol.Elimination{}, err
	}
	row, err := s.store.InsertElimination(ctx, uuid.New(), in)
	if err != nil {
		return consol.Elimination{}, err
	}
	s.record(ctx, in.ActorID, "create", "elimination", row.ID, map[string]any{
		"period": in.Period.Key(), "amount": in.Amount, "type": in.EliminationType,
	})
	return row, nil
}

// UpdateElimination replaces a draft elimination's fields. Posted and
// reversed entries are immutable.
func (s *Service) UpdateElimination(ctx context.Context, id int64, in EliminationInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateElimination(ctx, id, in); err != nil {
		return err
	}
	s.record(ctx, in.ActorID, "update", "elimination", id, nil)
	return nil
}

// PostElimination moves a draft elimination into the posted state, at
// which point it starts contributing to consolidated balances.
func (s *Service) PostElimination(ctx context.Context, organizationID, id, actorID int64) (consol.Elimination, error) {
	return s.transition(ctx, organizationID, id, actorID, consol.EliminationPosted)
}

// ReverseElimination backs a posted elimination out of consolidation
// while keeping the row for audit.
func (s *Service) ReverseElimination(ctx context.Context, organizationID, id, actorID int64) (consol.Elimination, error) {
	return s.transition(ctx, organizationID, id, actorID, consol.EliminationReversed)
}

func (s *Service) transition(ctx context.Context, organizationID, id, actorID int64, target consol.EliminationStatus) (consol.Elimination, error) {
	row, err := s.store.GetElimination(ctx, organizationID, id)
	if err != nil {
		return consol.Elimination{}, err
	}
	if err := consol.ValidateEliminationTransition(row.Status, target); err != nil {
		return consol.Elimination{}, err
	}
	if err := s.store.SetEliminationStatus(ctx, organizationID, id, row.Status, target); err != nil {
		return consol.Elimination{}, err
	}
	s.record(ctx, actorID, "status_"+string(target), "elimination", id, map[string]any{
		"from": string(row.Status), "to": string(target),
	})
	row.Status = target
	return row, nil
}

// DeleteElimination removes a draft elimination.
func (s *Service) DeleteElimination(ctx context.Context, organizationID, id, actorID int64) error {
	if err := s.store.DeleteElimination(ctx, organizationID, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", "elimination", id, nil)
	return nil
}
