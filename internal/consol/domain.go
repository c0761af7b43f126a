package consol

import (
	"github.com/jdavon/closebook/internal/shared"
)

// Classification buckets every master account into one statement class.
type Classification string

const (
	ClassAsset     Classification = "ASSET"
	ClassLiability Classification = "LIABILITY"
	ClassEquity    Classification = "EQUITY"
	ClassRevenue   Classification = "REVENUE"
	ClassExpense   Classification = "EXPENSE"
)

// CreditNormal reports whether the classification carries a credit
// normal balance, meaning raw debit-minus-credit amounts are negated for
// display.
func (c Classification) CreditNormal() bool {
	switch c {
	case ClassLiability, ClassEquity, ClassRevenue:
		return true
	}
	return false
}

// Flow reports whether balances of this classification accumulate over a
// period range (income statement) rather than carry an ending position
// (balance sheet).
func (c Classification) Flow() bool {
	return c == ClassRevenue || c == ClassExpense
}

// Entity is one legal entity contributing balances to the consolidation.
type Entity struct {
	ID             int64
	OrganizationID int64
	Code           string
	Name           string
}

// MasterAccount is a node in the consolidated chart of accounts.
type MasterAccount struct {
	ID             int64
	OrganizationID int64
	Number         string
	Name           string
	Classification Classification
	AccountType    string
}

// AccountMapping links one entity-scoped ledger account to a master
// account. At most one mapping exists per entity account.
type AccountMapping struct {
	EntityID        int64
	EntityAccountID int64
	MasterAccountID int64
}

// RawBalance is one externally supplied ledger balance row for an entity
// account and month.
type RawBalance struct {
	EntityID        int64
	EntityAccountID int64
	Period          shared.Period
	DebitTotal      float64
	CreditTotal     float64
}

// Net returns the debit-minus-credit amount for the row.
func (b RawBalance) Net() float64 {
	return b.DebitTotal - b.CreditTotal
}

// UnmappedBalance records an entity account with activity in the period
// but no mapping to the consolidated chart. Surfaced, never dropped.
type UnmappedBalance struct {
	EntityID        int64  `json:"entity_id"`
	EntityCode      string `json:"entity_code"`
	EntityAccountID int64  `json:"entity_account_id"`
	PeriodKey       string `json:"period"`
	Amount          float64 `json:"amount"`
}

// EntityBalance is one entity's share of a consolidated account.
type EntityBalance struct {
	EntityID        int64
	EntityName      string
	EndingBalance   float64
	Adjustments     float64
	AdjustedBalance float64
}

// ConsolidatedAccount is the derived per-master-account view for one
// period. Never persisted; recomputed per request.
type ConsolidatedAccount struct {
	MasterAccountID        int64
	Number                 string
	Name                   string
	Classification         Classification
	AccountType            string
	EndingBalance          float64
	Adjustments            float64
	EliminationAdjustments float64
	AdjustedBalance        float64
	EntityBreakdown        []EntityBalance
	CompareDelta           *float64
}

// ClassificationTotals summarises adjusted balances per class, each
// stated with its natural sign (credit-normal classes positive when in
// credit).
type ClassificationTotals struct {
	TotalAssets      float64
	TotalLiabilities float64
	TotalEquity      float64
	TotalRevenue     float64
	TotalExpenses    float64
	NetIncome        float64
}

// TrialBalance is the consolidated trial balance for one period request.
type TrialBalance struct {
	OrganizationID int64
	Period         shared.Period
	PeriodKey      string
	Granularity    string
	Accounts       []ConsolidatedAccount
	Totals         ClassificationTotals
	ComparePeriod  *shared.Period
	CompareTotals  *ClassificationTotals
	Unmapped       []UnmappedBalance
}

// EntityKey addresses a delta contribution by entity and master account.
type EntityKey struct {
	EntityID        int64
	MasterAccountID int64
}

// Delta is one signed adjustment contribution. Emitting tuples keeps the
// zero-sum invariants of allocations and reclasses directly testable.
type Delta struct {
	EntityID        int64
	MasterAccountID int64
	Amount          float64
}
