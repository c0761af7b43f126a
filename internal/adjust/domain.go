// Package adjust is the write side of the consolidation ledger: manual
// allocation and pro forma adjustments plus elimination entries.
package adjust

import (
	"errors"
	"strings"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

// ErrAdjustmentNotFound occurs when an adjustment lookup fails.
var ErrAdjustmentNotFound = errors.New("adjust: adjustment not found")

// ErrEliminationNotFound occurs when an elimination lookup fails.
var ErrEliminationNotFound = errors.New("adjust: elimination not found")

// ErrDuplicateRef indicates the client-supplied reference already exists.
var ErrDuplicateRef = errors.New("adjust: duplicate reference")

// ErrNotDraft indicates a mutation that only draft eliminations accept.
var ErrNotDraft = errors.New("adjust: elimination is not a draft")

// AllocationInput captures a new or replacement allocation adjustment.
type AllocationInput struct {
	OrganizationID             int64
	Kind                       consol.AllocationKind
	SourceEntityID             int64
	DestinationEntityID        int64
	MasterAccountID            int64
	DestinationMasterAccountID int64
	Amount                     float64
	Description                string
	Schedule                   consol.Schedule
	ActorID                    int64
}

// Validate ensures the adjustment is coherent before it reaches storage.
func (in AllocationInput) Validate() error {
	if in.OrganizationID <= 0 {
		return errors.New("adjust: organization id required")
	}
	if in.Amount == 0 {
		return errors.New("adjust: amount must be non-zero")
	}
	if in.SourceEntityID <= 0 {
		return errors.New("adjust: source entity required")
	}
	if in.MasterAccountID <= 0 {
		return errors.New("adjust: master account required")
	}
	switch in.Kind {
	case consol.AllocationInterEntity:
		if in.DestinationEntityID <= 0 {
			return errors.New("adjust: destination entity required")
		}
		if in.DestinationEntityID == in.SourceEntityID {
			return errors.New("adjust: entities must differ")
		}
		if in.DestinationMasterAccountID != 0 {
			return errors.New("adjust: inter-entity adjustments keep one master account")
		}
	case consol.AllocationReclass:
		if in.DestinationMasterAccountID <= 0 {
			return errors.New("adjust: destination master account required")
		}
		if in.DestinationMasterAccountID == in.MasterAccountID {
			return errors.New("adjust: master accounts must differ")
		}
		if in.DestinationEntityID != 0 && in.DestinationEntityID != in.SourceEntityID {
			return errors.New("adjust: reclass stays within one entity")
		}
	default:
		return errors.New("adjust: unknown adjustment kind")
	}
	if in.ActorID <= 0 {
		return errors.New("adjust: actor required")
	}
	return in.Schedule.Validate()
}

// ProFormaInput captures a new or replacement pro forma adjustment.
type ProFormaInput struct {
	OrganizationID  int64
	EntityID        int64
	MasterAccountID int64
	Period          shared.Period
	Amount          float64
	Description     string
	ActorID         int64
}

// Validate ensures the pro forma row is coherent.
func (in ProFormaInput) Validate() error {
	if in.OrganizationID <= 0 {
		return errors.New("adjust: organization id required")
	}
	if in.EntityID <= 0 {
		return errors.New("adjust: entity required")
	}
	if in.MasterAccountID <= 0 {
		return errors.New("adjust: master account required")
	}
	if in.Amount == 0 {
		return errors.New("adjust: amount must be non-zero")
	}
	if !in.Period.Valid() {
		return shared.ErrInvalidPeriod
	}
	if in.ActorID <= 0 {
		return errors.New("adjust: actor required")
	}
	return nil
}

// EliminationInput captures a new or replacement elimination entry.
// Entries always start as drafts.
type EliminationInput struct {
	OrganizationID        int64
	DebitMasterAccountID  int64
	CreditMasterAccountID int64
	Amount                float64
	Period                shared.Period
	EliminationType       string
	Description           string
	ActorID               int64
}

// Validate ensures the elimination pair is balanced and coherent.
func (in EliminationInput) Validate() error {
	if in.OrganizationID <= 0 {
		return errors.New("adjust: organization id required")
	}
	if in.DebitMasterAccountID <= 0 || in.CreditMasterAccountID <= 0 {
		return errors.New("adjust: master account pair required")
	}
	if in.DebitMasterAccountID == in.CreditMasterAccountID {
		return errors.New("adjust: debit and credit accounts must differ")
	}
	if in.Amount <= 0 {
		return errors.New("adjust: amount must be positive")
	}
	if !in.Period.Valid() {
		return shared.ErrInvalidPeriod
	}
	if strings.TrimSpace(in.EliminationType) == "" {
		return errors.New("adjust: elimination type required")
	}
	if in.ActorID <= 0 {
		return errors.New("adjust: actor required")
	}
	return nil
}
