package consol

import (
	"github.com/google/uuid"

	"github.com/jdavon/closebook/internal/shared"
)

// AllocationKind separates the two allocation variants that the flat
// record historically overloaded: moving an amount between entities under
// one master account, or between two master accounts within one entity.
type AllocationKind string

const (
	// AllocationInterEntity moves an amount between two entities for the
	// same master account. Nets to zero at the consolidated level.
	AllocationInterEntity AllocationKind = "inter_entity"
	// AllocationReclass moves an amount between two master accounts
	// within the same entity.
	AllocationReclass AllocationKind = "reclass"
)

// AllocationAdjustment is a scheduled manual adjustment.
type AllocationAdjustment struct {
	ID                         int64
	Ref                        uuid.UUID
	OrganizationID             int64
	Kind                       AllocationKind
	SourceEntityID             int64
	DestinationEntityID        int64
	MasterAccountID            int64
	DestinationMasterAccountID int64 // reclass only
	Amount                     float64
	Description                string
	Excluded                   bool
	Schedule                   Schedule
}

// Deltas emits the signed contributions of this adjustment to the target
// period as (entity, master account, amount) tuples. Excluded or
// non-covering adjustments emit nothing. An inter-entity pair always sums
// to zero per master account; a reclass pair sums to zero across its two
// master accounts.
func (a AllocationAdjustment) Deltas(p shared.Period) []Delta {
	if a.Excluded {
		return nil
	}
	amount := a.Schedule.AmountFor(a.Amount, p)
	if amount == 0 {
		return nil
	}
	if a.Kind == AllocationReclass {
		return []Delta{
			{EntityID: a.SourceEntityID, MasterAccountID: a.MasterAccountID, Amount: -amount},
			{EntityID: a.SourceEntityID, MasterAccountID: a.DestinationMasterAccountID, Amount: amount},
		}
	}
	return []Delta{
		{EntityID: a.SourceEntityID, MasterAccountID: a.MasterAccountID, Amount: -amount},
		{EntityID: a.DestinationEntityID, MasterAccountID: a.MasterAccountID, Amount: amount},
	}
}

// ProFormaAdjustment is a one-sided, single-period delta for one entity
// and master account. Never spread or repeated.
type ProFormaAdjustment struct {
	ID              int64
	Ref             uuid.UUID
	OrganizationID  int64
	EntityID        int64
	MasterAccountID int64
	Period          shared.Period
	Amount          float64
	Description     string
	Excluded        bool
}

// Deltas emits the pro-forma contribution on an exact period match.
func (a ProFormaAdjustment) Deltas(p shared.Period) []Delta {
	if a.Excluded || p != a.Period {
		return nil
	}
	return []Delta{{EntityID: a.EntityID, MasterAccountID: a.MasterAccountID, Amount: a.Amount}}
}

// AdjustmentOptions gates which adjustment families are folded in.
type AdjustmentOptions struct {
	IncludeAllocations bool
	IncludeProForma    bool
}

// AdjustmentDeltas evaluates every adjustment against the requested
// months and accumulates signed deltas keyed by (entity, master account).
func AdjustmentDeltas(periods []shared.Period, allocations []AllocationAdjustment, proForma []ProFormaAdjustment, opts AdjustmentOptions) map[EntityKey]float64 {
	deltas := make(map[EntityKey]float64)
	for _, p := range periods {
		if opts.IncludeAllocations {
			for _, a := range allocations {
				for _, d := range a.Deltas(p) {
					deltas[EntityKey{EntityID: d.EntityID, MasterAccountID: d.MasterAccountID}] += d.Amount
				}
			}
		}
		if opts.IncludeProForma {
			for _, a := range proForma {
				for _, d := range a.Deltas(p) {
					deltas[EntityKey{EntityID: d.EntityID, MasterAccountID: d.MasterAccountID}] += d.Amount
				}
			}
		}
	}
	return deltas
}
