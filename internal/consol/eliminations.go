package consol

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jdavon/closebook/internal/shared"
)

// EliminationStatus captures the lifecycle of an elimination entry.
type EliminationStatus string

const (
	// EliminationDraft entries are inert, retained for review.
	EliminationDraft EliminationStatus = "DRAFT"
	// EliminationPosted entries contribute to consolidated balances.
	EliminationPosted EliminationStatus = "POSTED"
	// EliminationReversed entries are inert, retained for audit.
	EliminationReversed EliminationStatus = "REVERSED"
)

// String implements fmt.Stringer for debugging.
func (s EliminationStatus) String() string {
	return string(s)
}

// ValidateEliminationTransition checks status changes against policy:
// draft entries may be posted, posted entries may be reversed, nothing
// else moves.
func ValidateEliminationTransition(current, target EliminationStatus) error {
	switch current {
	case EliminationDraft:
		if target == EliminationPosted {
			return nil
		}
	case EliminationPosted:
		if target == EliminationReversed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidStatusTransition, current, target)
}

// Elimination is a consolidation-level debit/credit pair removing
// intercompany effects. It carries no entity attribution.
type Elimination struct {
	ID                    int64
	Ref                   uuid.UUID
	OrganizationID        int64
	DebitMasterAccountID  int64
	CreditMasterAccountID int64
	Amount                float64
	Period                shared.Period
	Status                EliminationStatus
	EliminationType       string
	Description           string
}

// Deltas emits the debit/credit pair in debit-minus-credit space for the
// target period. Only posted entries contribute; the pair always nets to
// zero, keeping total debits equal to total credits.
func (e Elimination) Deltas(p shared.Period) []Delta {
	if e.Status != EliminationPosted || p != e.Period {
		return nil
	}
	return []Delta{
		{MasterAccountID: e.DebitMasterAccountID, Amount: e.Amount},
		{MasterAccountID: e.CreditMasterAccountID, Amount: -e.Amount},
	}
}

// EliminationDeltas accumulates posted elimination contributions for the
// requested months, keyed by master account only.
func EliminationDeltas(periods []shared.Period, rows []Elimination) map[int64]float64 {
	deltas := make(map[int64]float64)
	for _, p := range periods {
		for _, e := range rows {
			for _, d := range e.Deltas(p) {
				deltas[d.MasterAccountID] += d.Amount
			}
		}
	}
	return deltas
}
