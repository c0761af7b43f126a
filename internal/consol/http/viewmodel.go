package http

import (
	"github.com/jdavon/closebook/internal/consol"
)

// EntityShareVM is one entity row inside an account breakdown.
type EntityShareVM struct {
	EntityID        int64   `json:"entity_id"`
	EntityName      string  `json:"entity_name"`
	EndingBalance   float64 `json:"ending_balance"`
	Adjustments     float64 `json:"adjustments"`
	AdjustedBalance float64 `json:"adjusted_balance"`
}

// AccountVM is one consolidated account line.
type AccountVM struct {
	MasterAccountID int64           `json:"master_account_id"`
	Number          string          `json:"number"`
	Name            string          `json:"name"`
	Classification  string          `json:"classification"`
	AccountType     string          `json:"account_type"`
	EndingBalance   float64         `json:"ending_balance"`
	Adjustments     float64         `json:"adjustments"`
	Eliminations    float64         `json:"eliminations"`
	AdjustedBalance float64         `json:"adjusted_balance"`
	Breakdown       []EntityShareVM `json:"breakdown"`
	CompareDelta    *float64        `json:"compare_delta,omitempty"`
}

// TotalsVM summarises the trial balance per classification.
type TotalsVM struct {
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
	Equity      float64 `json:"equity"`
	Revenue     float64 `json:"revenue"`
	Expenses    float64 `json:"expenses"`
	NetIncome   float64 `json:"net_income"`
}

// TrialBalanceVM is the JSON shape of one consolidated trial balance.
type TrialBalanceVM struct {
	OrganizationID int64                    `json:"organization_id"`
	Period         string                   `json:"period"`
	ComparePeriod  string                   `json:"compare_period,omitempty"`
	Granularity    string                   `json:"granularity,omitempty"`
	Accounts       []AccountVM              `json:"accounts"`
	Totals         TotalsVM                 `json:"totals"`
	CompareTotals  *TotalsVM                `json:"compare_totals,omitempty"`
	Unmapped       []consol.UnmappedBalance `json:"unmapped"`
}

func totalsVM(t consol.ClassificationTotals) TotalsVM {
	return TotalsVM{
		Assets:      t.TotalAssets,
		Liabilities: t.TotalLiabilities,
		Equity:      t.TotalEquity,
		Revenue:     t.TotalRevenue,
		Expenses:    t.TotalExpenses,
		NetIncome:   t.NetIncome,
	}
}

// FromDomain maps a computed trial balance into the response shape.
func FromDomain(tb consol.TrialBalance) TrialBalanceVM {
	vm := TrialBalanceVM{
		OrganizationID: tb.OrganizationID,
		Period:         tb.PeriodKey,
		Granularity:    tb.Granularity,
		Totals:         totalsVM(tb.Totals),
		Unmapped:       tb.Unmapped,
	}
	if vm.Unmapped == nil {
		vm.Unmapped = []consol.UnmappedBalance{}
	}
	if tb.ComparePeriod != nil {
		vm.ComparePeriod = tb.ComparePeriod.Key()
	}
	if tb.CompareTotals != nil {
		totals := totalsVM(*tb.CompareTotals)
		vm.CompareTotals = &totals
	}
	vm.Accounts = make([]AccountVM, len(tb.Accounts))
	for i, line := range tb.Accounts {
		account := AccountVM{
			MasterAccountID: line.MasterAccountID,
			Number:          line.Number,
			Name:            line.Name,
			Classification:  string(line.Classification),
			AccountType:     line.AccountType,
			EndingBalance:   line.EndingBalance,
			Adjustments:     line.Adjustments,
			Eliminations:    line.EliminationAdjustments,
			AdjustedBalance: line.AdjustedBalance,
			CompareDelta:    line.CompareDelta,
		}
		account.Breakdown = make([]EntityShareVM, len(line.EntityBreakdown))
		for j, share := range line.EntityBreakdown {
			account.Breakdown[j] = EntityShareVM{
				EntityID:        share.EntityID,
				EntityName:      share.EntityName,
				EndingBalance:   share.EndingBalance,
				Adjustments:     share.Adjustments,
				AdjustedBalance: share.AdjustedBalance,
			}
		}
		vm.Accounts[i] = account
	}
	return vm
}
