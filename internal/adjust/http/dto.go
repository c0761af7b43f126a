package http

import (
	"context"

	"github.com/jdavon/closebook/internal/adjust"
	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

type transitionFunc func(ctx context.Context, organizationID, id, actorID int64) (consol.Elimination, error)

type allocationPayload struct {
	OrganizationID             int64   `json:"organization_id" validate:"required,gt=0"`
	Kind                       string  `json:"kind" validate:"required,oneof=inter_entity reclass"`
	SourceEntityID             int64   `json:"source_entity_id" validate:"required,gt=0"`
	DestinationEntityID        int64   `json:"destination_entity_id" validate:"gte=0"`
	MasterAccountID            int64   `json:"master_account_id" validate:"required,gt=0"`
	DestinationMasterAccountID int64   `json:"destination_master_account_id" validate:"gte=0"`
	Amount                     float64 `json:"amount" validate:"required"`
	Description                string  `json:"description" validate:"max=500"`
	ScheduleType               string  `json:"schedule_type" validate:"required,oneof=single_month repeating monthly_spread"`
	Start                      string  `json:"start" validate:"required"`
	End                        string  `json:"end"`
	ActorID                    int64   `json:"actor_id" validate:"required,gt=0"`
}

func (p allocationPayload) toInput() (adjust.AllocationInput, error) {
	start, err := shared.ParsePeriod(p.Start)
	if err != nil {
		return adjust.AllocationInput{}, err
	}
	var end shared.Period
	if p.End != "" {
		if end, err = shared.ParsePeriod(p.End); err != nil {
			return adjust.AllocationInput{}, err
		}
	}
	return adjust.AllocationInput{
		OrganizationID:             p.OrganizationID,
		Kind:                       consol.AllocationKind(p.Kind),
		SourceEntityID:             p.SourceEntityID,
		DestinationEntityID:        p.DestinationEntityID,
		MasterAccountID:            p.MasterAccountID,
		DestinationMasterAccountID: p.DestinationMasterAccountID,
		Amount:                     p.Amount,
		Description:                p.Description,
		Schedule:                   consol.Schedule{Kind: consol.ScheduleKind(p.ScheduleType), Start: start, End: end},
		ActorID:                    p.ActorID,
	}, nil
}

type proFormaPayload struct {
	OrganizationID  int64   `json:"organization_id" validate:"required,gt=0"`
	EntityID        int64   `json:"entity_id" validate:"required,gt=0"`
	MasterAccountID int64   `json:"master_account_id" validate:"required,gt=0"`
	Period          string  `json:"period" validate:"required"`
	Amount          float64 `json:"amount" validate:"required"`
	Description     string  `json:"description" validate:"max=500"`
	ActorID         int64   `json:"actor_id" validate:"required,gt=0"`
}

func (p proFormaPayload) toInput() (adjust.ProFormaInput, error) {
	period, err := shared.ParsePeriod(p.Period)
	if err != nil {
		return adjust.ProFormaInput{}, err
	}
	return adjust.ProFormaInput{
		OrganizationID:  p.OrganizationID,
		EntityID:        p.EntityID,
		MasterAccountID: p.MasterAccountID,
		Period:          period,
		Amount:          p.Amount,
		Description:     p.Description,
		ActorID:         p.ActorID,
	}, nil
}

type eliminationPayload struct {
	OrganizationID        int64   `json:"organization_id" validate:"required,gt=0"`
	DebitMasterAccountID  int64   `json:"debit_master_account_id" validate:"required,gt=0"`
	CreditMasterAccountID int64   `json:"credit_master_account_id" validate:"required,gt=0"`
	Amount                float64 `json:"amount" validate:"required,gt=0"`
	Period                string  `json:"period" validate:"required"`
	EliminationType       string  `json:"elimination_type" validate:"required,max=50"`
	Description           string  `json:"description" validate:"max=500"`
	ActorID               int64   `json:"actor_id" validate:"required,gt=0"`
}

func (p eliminationPayload) toInput() (adjust.EliminationInput, error) {
	period, err := shared.ParsePeriod(p.Period)
	if err != nil {
		return adjust.EliminationInput{}, err
	}
	return adjust.EliminationInput{
		OrganizationID:        p.OrganizationID,
		DebitMasterAccountID:  p.DebitMasterAccountID,
		CreditMasterAccountID: p.CreditMasterAccountID,
		Amount:                p.Amount,
		Period:                period,
		EliminationType:       p.EliminationType,
		Description:           p.Description,
		ActorID:               p.ActorID,
	}, nil
}

// actorPayload rides on deletes and status transitions.
type actorPayload struct {
	OrganizationID int64 `json:"organization_id" validate:"required,gt=0"`
	ActorID        int64 `json:"actor_id" validate:"required,gt=0"`
}

type excludePayload struct {
	OrganizationID int64 `json:"organization_id" validate:"required,gt=0"`
	ActorID        int64 `json:"actor_id" validate:"required,gt=0"`
	Excluded       bool  `json:"excluded"`
}

// allocationVM is the JSON shape of a stored allocation adjustment.
type allocationVM struct {
	ID                         int64   `json:"id"`
	Ref                        string  `json:"ref"`
	OrganizationID             int64   `json:"organization_id"`
	Kind                       string  `json:"kind"`
	SourceEntityID             int64   `json:"source_entity_id"`
	DestinationEntityID        int64   `json:"destination_entity_id,omitempty"`
	MasterAccountID            int64   `json:"master_account_id"`
	DestinationMasterAccountID int64   `json:"destination_master_account_id,omitempty"`
	Amount                     float64 `json:"amount"`
	Description                string  `json:"description,omitempty"`
	Excluded                   bool    `json:"excluded"`
	ScheduleType               string  `json:"schedule_type"`
	Start                      string  `json:"start"`
	End                        string  `json:"end,omitempty"`
}

func allocationFromDomain(a consol.AllocationAdjustment) allocationVM {
	vm := allocationVM{
		ID:                         a.ID,
		Ref:                        a.Ref.String(),
		OrganizationID:             a.OrganizationID,
		Kind:                       string(a.Kind),
		SourceEntityID:             a.SourceEntityID,
		DestinationEntityID:        a.DestinationEntityID,
		MasterAccountID:            a.MasterAccountID,
		DestinationMasterAccountID: a.DestinationMasterAccountID,
		Amount:                     a.Amount,
		Description:                a.Description,
		Excluded:                   a.Excluded,
		ScheduleType:               string(a.Schedule.Kind),
		Start:                      a.Schedule.Start.Key(),
	}
	if !a.Schedule.End.IsZero() {
		vm.End = a.Schedule.End.Key()
	}
	return vm
}

type proFormaVM struct {
	ID              int64   `json:"id"`
	Ref             string  `json:"ref"`
	OrganizationID  int64   `json:"organization_id"`
	EntityID        int64   `json:"entity_id"`
	MasterAccountID int64   `json:"master_account_id"`
	Period          string  `json:"period"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description,omitempty"`
	Excluded        bool    `json:"excluded"`
}

func proFormaFromDomain(a consol.ProFormaAdjustment) proFormaVM {
	return proFormaVM{
		ID:              a.ID,
		Ref:             a.Ref.String(),
		OrganizationID:  a.OrganizationID,
		EntityID:        a.EntityID,
		MasterAccountID: a.MasterAccountID,
		Period:          a.Period.Key(),
		Amount:          a.Amount,
		Description:     a.Description,
		Excluded:        a.Excluded,
	}
}

type eliminationVM struct {
	ID                    int64   `json:"id"`
	Ref                   string  `json:"ref"`
	OrganizationID        int64   `json:"organization_id"`
	DebitMasterAccountID  int64   `json:"debit_master_account_id"`
	CreditMasterAccountID int64   `json:"credit_master_account_id"`
	Amount                float64 `json:"amount"`
	Period                string  `json:"period"`
	Status                string  `json:"status"`
	EliminationType       string  `json:"elimination_type"`
	Description           string  `json:"description,omitempty"`
}

func eliminationFromDomain(e consol.Elimination) eliminationVM {
	return eliminationVM{
		ID:                    e.ID,
		Ref:                   e.Ref.String(),
		OrganizationID:        e.OrganizationID,
		DebitMasterAccountID:  e.DebitMasterAccountID,
		CreditMasterAccountID: e.CreditMasterAccountID,
		Amount:                e.Amount,
		Period:                e.Period.Key(),
		Status:                string(e.Status),
		EliminationType:       e.EliminationType,
		Description:           e.Description,
	}
}
