package consol

import (
	"fmt"
	"sort"

	"github.com/jdavon/closebook/internal/shared"
)

// EliminationBreakdownID labels the synthetic breakdown row carrying
// consolidation-level elimination deltas, so the breakdown always sums to
// the account's adjusted balance.
const EliminationBreakdownID int64 = 0

// BuildOptions parameterise one trial balance computation.
type BuildOptions struct {
	Period        shared.Period
	ComparePeriod *shared.Period
	Granularity   string
	EntityIDs     []int64 // empty means organization scope
	Adjustments   AdjustmentOptions
}

// BuildTrialBalance combines the aggregator, adjustment engine, and
// elimination ledger into one adjusted balance per master account. Pure:
// a given snapshot and options always produce the same result.
func BuildTrialBalance(snap *Snapshot, opts BuildOptions) (TrialBalance, error) {
	if snap == nil {
		return TrialBalance{}, fmt.Errorf("consol: snapshot required")
	}
	if !opts.Period.Valid() {
		return TrialBalance{}, fmt.Errorf("%w: %s", shared.ErrInvalidPeriod, opts.Period.Key())
	}

	periods := shared.ExpandGranularity(opts.Granularity, opts.Period)
	idx := NewMappingIndex(snap.Mappings)
	raw := aggregateRaw(snap, idx, periods)
	adj := AdjustmentDeltas(periods, snap.Allocations, snap.ProForma, opts.Adjustments)

	includeAll := len(opts.EntityIDs) == 0
	included := make(map[int64]struct{}, len(opts.EntityIDs))
	for _, id := range opts.EntityIDs {
		included[id] = struct{}{}
	}

	// Eliminations are consolidation-level by definition; an entity-scoped
	// view has no elimination column.
	var elim map[int64]float64
	if includeAll {
		elim = EliminationDeltas(periods, snap.Eliminations)
	} else {
		elim = map[int64]float64{}
	}

	entities := make(map[int64]Entity, len(snap.Entities))
	for _, e := range snap.Entities {
		entities[e.ID] = e
	}

	contributors := make(map[int64]map[int64]struct{})
	mark := func(accountID, entityID int64) {
		if !includeAll {
			if _, ok := included[entityID]; !ok {
				return
			}
		}
		set := contributors[accountID]
		if set == nil {
			set = make(map[int64]struct{})
			contributors[accountID] = set
		}
		set[entityID] = struct{}{}
	}
	for key := range raw.byEntity {
		mark(key.MasterAccountID, key.EntityID)
	}
	for key := range adj {
		mark(key.MasterAccountID, key.EntityID)
	}

	accounts := append([]MasterAccount(nil), snap.Accounts...)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Number < accounts[j].Number })

	lines := make([]ConsolidatedAccount, 0, len(accounts))
	var totals ClassificationTotals
	for _, account := range accounts {
		entitySet := contributors[account.ID]
		elimDelta := elim[account.ID]
		if len(entitySet) == 0 && elimDelta == 0 {
			continue
		}

		entityIDs := make([]int64, 0, len(entitySet))
		for id := range entitySet {
			entityIDs = append(entityIDs, id)
		}
		sort.Slice(entityIDs, func(i, j int) bool { return entityIDs[i] < entityIDs[j] })

		line := ConsolidatedAccount{
			MasterAccountID: account.ID,
			Number:          account.Number,
			Name:            account.Name,
			Classification:  account.Classification,
			AccountType:     account.AccountType,
		}
		for _, entityID := range entityIDs {
			key := EntityKey{EntityID: entityID, MasterAccountID: account.ID}
			share := EntityBalance{
				EntityID:      entityID,
				EndingBalance: raw.byEntity[key],
				Adjustments:   adj[key],
			}
			if e, ok := entities[entityID]; ok {
				share.EntityName = e.Name
			}
			share.AdjustedBalance = share.EndingBalance + share.Adjustments
			line.EndingBalance += share.EndingBalance
			line.Adjustments += share.Adjustments
			line.EntityBreakdown = append(line.EntityBreakdown, share)
		}
		if elimDelta != 0 {
			line.EliminationAdjustments = elimDelta
			line.EntityBreakdown = append(line.EntityBreakdown, EntityBalance{
				EntityID:        EliminationBreakdownID,
				EntityName:      "Eliminations",
				Adjustments:     elimDelta,
				AdjustedBalance: elimDelta,
			})
		}
		line.AdjustedBalance = line.EndingBalance + line.Adjustments + line.EliminationAdjustments

		addToTotals(&totals, account.Classification, line.AdjustedBalance)
		lines = append(lines, line)
	}
	totals.NetIncome = totals.TotalRevenue - totals.TotalExpenses

	tb := TrialBalance{
		OrganizationID: snap.OrganizationID,
		Period:         opts.Period,
		PeriodKey:      opts.Period.Key(),
		Granularity:    opts.Granularity,
		Accounts:       lines,
		Totals:         totals,
		Unmapped:       raw.unmapped,
	}

	if opts.ComparePeriod != nil {
		compareOpts := opts
		compareOpts.Period = *opts.ComparePeriod
		compareOpts.ComparePeriod = nil
		compare, err := BuildTrialBalance(snap, compareOpts)
		if err != nil {
			return TrialBalance{}, err
		}
		attachCompare(&tb, compare)
	}
	return tb, nil
}

// addToTotals books an adjusted balance into its classification bucket,
// negating credit-normal classes so each total reads positive in its
// natural direction.
func addToTotals(totals *ClassificationTotals, class Classification, adjusted float64) {
	switch class {
	case ClassAsset:
		totals.TotalAssets += adjusted
	case ClassLiability:
		totals.TotalLiabilities += -adjusted
	case ClassEquity:
		totals.TotalEquity += -adjusted
	case ClassRevenue:
		totals.TotalRevenue += -adjusted
	case ClassExpense:
		totals.TotalExpenses += adjusted
	}
}

func attachCompare(tb *TrialBalance, compare TrialBalance) {
	compareByID := make(map[int64]float64, len(compare.Accounts))
	for _, line := range compare.Accounts {
		compareByID[line.MasterAccountID] = line.AdjustedBalance
	}
	current := make(map[int64]struct{}, len(tb.Accounts))
	for i := range tb.Accounts {
		current[tb.Accounts[i].MasterAccountID] = struct{}{}
		delta := tb.Accounts[i].AdjustedBalance - compareByID[tb.Accounts[i].MasterAccountID]
		tb.Accounts[i].CompareDelta = &delta
	}
	// Accounts with activity only in the comparison period still get a
	// line (zero current balance), so per-account deltas sum to the
	// totals delta.
	for _, line := range compare.Accounts {
		if _, ok := current[line.MasterAccountID]; ok {
			continue
		}
		delta := -line.AdjustedBalance
		tb.Accounts = append(tb.Accounts, ConsolidatedAccount{
			MasterAccountID: line.MasterAccountID,
			Number:          line.Number,
			Name:            line.Name,
			Classification:  line.Classification,
			AccountType:     line.AccountType,
			CompareDelta:    &delta,
		})
	}
	sort.Slice(tb.Accounts, func(i, j int) bool { return tb.Accounts[i].Number < tb.Accounts[j].Number })
	tb.ComparePeriod = &compare.Period
	deltas := ClassificationTotals{
		TotalAssets:      tb.Totals.TotalAssets - compare.Totals.TotalAssets,
		TotalLiabilities: tb.Totals.TotalLiabilities - compare.Totals.TotalLiabilities,
		TotalEquity:      tb.Totals.TotalEquity - compare.Totals.TotalEquity,
		TotalRevenue:     tb.Totals.TotalRevenue - compare.Totals.TotalRevenue,
		TotalExpenses:    tb.Totals.TotalExpenses - compare.Totals.TotalExpenses,
		NetIncome:        tb.Totals.NetIncome - compare.Totals.NetIncome,
	}
	tb.CompareTotals = &deltas
}
