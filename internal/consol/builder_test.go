package consol

import (
	"math"
	"sort"
	"testing"

	"github.com/jdavon/closebook/internal/shared"
)

// rentSnapshot reproduces the worked example: Entity A holds 10,000 of
// rent in 2025-06, with a 6,000 six-month spread allocation to Entity B.
func rentSnapshot() *Snapshot {
	return &Snapshot{
		OrganizationID: 1,
		Entities: []Entity{
			{ID: 1, OrganizationID: 1, Code: "A", Name: "Entity A"},
			{ID: 2, OrganizationID: 1, Code: "B", Name: "Entity B"},
		},
		Accounts: []MasterAccount{
			{ID: 60, OrganizationID: 1, Number: "6000", Name: "Rent", Classification: ClassExpense},
		},
		Mappings: []AccountMapping{
			{EntityID: 1, EntityAccountID: 101, MasterAccountID: 60},
		},
		Balances: []RawBalance{
			{EntityID: 1, EntityAccountID: 101, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 10000},
		},
		Allocations: []AllocationAdjustment{{
			ID:                  1,
			Kind:                AllocationInterEntity,
			SourceEntityID:      1,
			DestinationEntityID: 2,
			MasterAccountID:     60,
			Amount:              6000,
			Schedule:            SpreadSchedule(shared.Period{Year: 2025, Month: 1}, shared.Period{Year: 2025, Month: 6}),
		}},
	}
}

func findAccount(t *testing.T, tb TrialBalance, number string) ConsolidatedAccount {
	t.Helper()
	for _, a := range tb.Accounts {
		if a.Number == number {
			return a
		}
	}
	t.Fatalf("account %s not in trial balance", number)
	return ConsolidatedAccount{}
}

func TestSpreadAllocationShiftsBreakdownNotTotal(t *testing.T) {
	tb, err := BuildTrialBalance(rentSnapshot(), BuildOptions{
		Period:      shared.Period{Year: 2025, Month: 6},
		Adjustments: AdjustmentOptions{IncludeAllocations: true},
	})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	rent := findAccount(t, tb, "6000")
	if rent.AdjustedBalance != 10000 {
		t.Fatalf("consolidated rent = %v want 10000 (allocation must not move the total)", rent.AdjustedBalance)
	}
	if len(rent.EntityBreakdown) != 2 {
		t.Fatalf("expected 2 breakdown rows got %d", len(rent.EntityBreakdown))
	}
	byEntity := make(map[int64]EntityBalance)
	for _, share := range rent.EntityBreakdown {
		byEntity[share.EntityID] = share
	}
	if got := byEntity[1].AdjustedBalance; got != 9000 {
		t.Errorf("Entity A adjusted = %v want 9000", got)
	}
	if got := byEntity[2].AdjustedBalance; got != 1000 {
		t.Errorf("Entity B adjusted = %v want 1000", got)
	}
}

func TestBreakdownSumsToAccountTotal(t *testing.T) {
	snap := rentSnapshot()
	snap.ProForma = []ProFormaAdjustment{{
		ID: 9, EntityID: 2, MasterAccountID: 60,
		Period: shared.Period{Year: 2025, Month: 6}, Amount: 123.45,
	}}
	snap.Eliminations = []Elimination{{
		ID: 7, DebitMasterAccountID: 60, CreditMasterAccountID: 60,
		Amount: 50, Period: shared.Period{Year: 2025, Month: 6}, Status: EliminationPosted,
	}}
	tb, err := BuildTrialBalance(snap, BuildOptions{
		Period:      shared.Period{Year: 2025, Month: 6},
		Adjustments: AdjustmentOptions{IncludeAllocations: true, IncludeProForma: true},
	})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	for _, account := range tb.Accounts {
		var sum float64
		for _, share := range account.EntityBreakdown {
			sum += share.AdjustedBalance
		}
		if math.Abs(sum-account.AdjustedBalance) > epsilon {
			t.Errorf("account %s breakdown sums to %v, adjusted balance %v", account.Number, sum, account.AdjustedBalance)
		}
	}
}

func TestReclassMovesBetweenAccountsWithinEntity(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: 1,
		Entities:       []Entity{{ID: 1, OrganizationID: 1, Code: "A", Name: "Entity A"}},
		Accounts: []MasterAccount{
			{ID: 50, Number: "5000", Name: "Supplies", Classification: ClassExpense},
			{ID: 51, Number: "5010", Name: "Supplies - Vehicle", Classification: ClassExpense},
		},
		Mappings: []AccountMapping{{EntityID: 1, EntityAccountID: 102, MasterAccountID: 50}},
		Balances: []RawBalance{
			{EntityID: 1, EntityAccountID: 102, Period: shared.Period{Year: 2025, Month: 3}, DebitTotal: 2000},
		},
		Allocations: []AllocationAdjustment{{
			ID:                         2,
			Kind:                       AllocationReclass,
			SourceEntityID:             1,
			MasterAccountID:            50,
			DestinationMasterAccountID: 51,
			Amount:                     500,
			Schedule:                   ExactSchedule(shared.Period{Year: 2025, Month: 3}),
		}},
	}
	build := func(p shared.Period) TrialBalance {
		tb, err := BuildTrialBalance(snap, BuildOptions{Period: p, Adjustments: AdjustmentOptions{IncludeAllocations: true}})
		if err != nil {
			t.Fatalf("BuildTrialBalance(%s): %v", p.Key(), err)
		}
		return tb
	}

	tb := build(shared.Period{Year: 2025, Month: 3})
	supplies := findAccount(t, tb, "5000")
	vehicle := findAccount(t, tb, "5010")
	if supplies.AdjustedBalance != 1500 {
		t.Errorf("5000 adjusted = %v want 1500", supplies.AdjustedBalance)
	}
	if vehicle.AdjustedBalance != 500 {
		t.Errorf("5010 adjusted = %v want 500", vehicle.AdjustedBalance)
	}
	if supplies.AdjustedBalance+vehicle.AdjustedBalance != 2000 {
		t.Errorf("reclass changed the combined total")
	}

	// That period only.
	other := build(shared.Period{Year: 2025, Month: 4})
	for _, account := range other.Accounts {
		if account.Adjustments != 0 {
			t.Errorf("reclass leaked into 2025-04 on account %s: %v", account.Number, account.Adjustments)
		}
	}
}

func TestUnmappedBalanceReportedAndExcluded(t *testing.T) {
	snap := rentSnapshot()
	snap.Balances = append(snap.Balances, RawBalance{
		EntityID: 2, EntityAccountID: 999,
		Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 777,
	})
	tb, err := BuildTrialBalance(snap, BuildOptions{Period: shared.Period{Year: 2025, Month: 6}})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	if len(tb.Unmapped) != 1 {
		t.Fatalf("expected 1 unmapped row got %d", len(tb.Unmapped))
	}
	row := tb.Unmapped[0]
	if row.EntityID != 2 || row.EntityAccountID != 999 || row.Amount != 777 {
		t.Fatalf("unmapped row = %+v", row)
	}
	if row.EntityCode != "B" {
		t.Errorf("unmapped entity code = %q", row.EntityCode)
	}
	for _, account := range tb.Accounts {
		for _, share := range account.EntityBreakdown {
			if share.EntityID == 2 && share.EndingBalance != 0 {
				t.Errorf("unmapped balance leaked into consolidated account %s", account.Number)
			}
		}
	}
}

func TestEliminationAppearsAtConsolidationLevelOnly(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: 1,
		Entities:       []Entity{{ID: 1, Code: "A", Name: "Entity A"}},
		Accounts: []MasterAccount{
			{ID: 10, Number: "1200", Name: "Intercompany Receivable", Classification: ClassAsset},
			{ID: 20, Number: "2200", Name: "Intercompany Payable", Classification: ClassLiability},
		},
		Mappings: []AccountMapping{
			{EntityID: 1, EntityAccountID: 11, MasterAccountID: 10},
			{EntityID: 1, EntityAccountID: 21, MasterAccountID: 20},
		},
		Balances: []RawBalance{
			{EntityID: 1, EntityAccountID: 11, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 900},
			{EntityID: 1, EntityAccountID: 21, Period: shared.Period{Year: 2025, Month: 6}, CreditTotal: 900},
		},
		Eliminations: []Elimination{{
			ID: 1, DebitMasterAccountID: 20, CreditMasterAccountID: 10,
			Amount: 900, Period: shared.Period{Year: 2025, Month: 6}, Status: EliminationPosted,
		}},
	}
	tb, err := BuildTrialBalance(snap, BuildOptions{Period: shared.Period{Year: 2025, Month: 6}})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	receivable := findAccount(t, tb, "1200")
	payable := findAccount(t, tb, "2200")
	if receivable.AdjustedBalance != 0 || payable.AdjustedBalance != 0 {
		t.Errorf("intercompany pair not eliminated: %v / %v", receivable.AdjustedBalance, payable.AdjustedBalance)
	}
	if receivable.EliminationAdjustments != -900 || payable.EliminationAdjustments != 900 {
		t.Errorf("elimination columns = %v / %v", receivable.EliminationAdjustments, payable.EliminationAdjustments)
	}

	// Entity scope: no elimination column.
	scoped, err := BuildTrialBalance(snap, BuildOptions{Period: shared.Period{Year: 2025, Month: 6}, EntityIDs: []int64{1}})
	if err != nil {
		t.Fatalf("BuildTrialBalance scoped: %v", err)
	}
	for _, account := range scoped.Accounts {
		if account.EliminationAdjustments != 0 {
			t.Errorf("entity-scoped view carried eliminations on %s", account.Number)
		}
	}
}

func TestClassificationTotalsAndNetIncome(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: 1,
		Entities:       []Entity{{ID: 1, Code: "A", Name: "Entity A"}},
		Accounts: []MasterAccount{
			{ID: 1, Number: "1000", Name: "Cash", Classification: ClassAsset},
			{ID: 2, Number: "2000", Name: "Payables", Classification: ClassLiability},
			{ID: 3, Number: "3000", Name: "Equity", Classification: ClassEquity},
			{ID: 4, Number: "4000", Name: "Sales", Classification: ClassRevenue},
			{ID: 5, Number: "5000", Name: "Wages", Classification: ClassExpense},
		},
		Mappings: []AccountMapping{
			{EntityID: 1, EntityAccountID: 11, MasterAccountID: 1},
			{EntityID: 1, EntityAccountID: 21, MasterAccountID: 2},
			{EntityID: 1, EntityAccountID: 31, MasterAccountID: 3},
			{EntityID: 1, EntityAccountID: 41, MasterAccountID: 4},
			{EntityID: 1, EntityAccountID: 51, MasterAccountID: 5},
		},
		Balances: []RawBalance{
			{EntityID: 1, EntityAccountID: 11, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 1500},
			{EntityID: 1, EntityAccountID: 21, Period: shared.Period{Year: 2025, Month: 6}, CreditTotal: 400},
			{EntityID: 1, EntityAccountID: 31, Period: shared.Period{Year: 2025, Month: 6}, CreditTotal: 500},
			{EntityID: 1, EntityAccountID: 41, Period: shared.Period{Year: 2025, Month: 6}, CreditTotal: 1000},
			{EntityID: 1, EntityAccountID: 51, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 400},
		},
	}
	tb, err := BuildTrialBalance(snap, BuildOptions{Period: shared.Period{Year: 2025, Month: 6}})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	totals := tb.Totals
	if totals.TotalAssets != 1500 || totals.TotalLiabilities != 400 || totals.TotalEquity != 500 {
		t.Errorf("balance sheet totals = %+v", totals)
	}
	if totals.TotalRevenue != 1000 || totals.TotalExpenses != 400 {
		t.Errorf("income totals = %+v", totals)
	}
	if totals.NetIncome != 600 {
		t.Errorf("net income = %v want 600", totals.NetIncome)
	}
}

func TestComparePeriodDeltas(t *testing.T) {
	snap := rentSnapshot()
	snap.Balances = append(snap.Balances, RawBalance{
		EntityID: 1, EntityAccountID: 101,
		Period: shared.Period{Year: 2025, Month: 5}, DebitTotal: 8000,
	})
	compare := shared.Period{Year: 2025, Month: 5}
	tb, err := BuildTrialBalance(snap, BuildOptions{
		Period:        shared.Period{Year: 2025, Month: 6},
		ComparePeriod: &compare,
		Adjustments:   AdjustmentOptions{IncludeAllocations: true},
	})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	rent := findAccount(t, tb, "6000")
	if rent.CompareDelta == nil {
		t.Fatal("compare delta missing")
	}
	// 10,000 in June vs 8,000 in May; the allocation nets to zero in both.
	if *rent.CompareDelta != 2000 {
		t.Errorf("compare delta = %v want 2000", *rent.CompareDelta)
	}
	if tb.CompareTotals == nil {
		t.Fatal("compare totals missing")
	}
	if tb.CompareTotals.TotalExpenses != 2000 {
		t.Errorf("compare expense delta = %v", tb.CompareTotals.TotalExpenses)
	}
}

func TestGranularityAggregation(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: 1,
		Entities:       []Entity{{ID: 1, Code: "A", Name: "Entity A"}},
		Accounts: []MasterAccount{
			{ID: 1, Number: "1000", Name: "Cash", Classification: ClassAsset},
			{ID: 4, Number: "4000", Name: "Sales", Classification: ClassRevenue},
		},
		Mappings: []AccountMapping{
			{EntityID: 1, EntityAccountID: 11, MasterAccountID: 1},
			{EntityID: 1, EntityAccountID: 41, MasterAccountID: 4},
		},
		Balances: []RawBalance{
			{EntityID: 1, EntityAccountID: 41, Period: shared.Period{Year: 2025, Month: 4}, CreditTotal: 100},
			{EntityID: 1, EntityAccountID: 41, Period: shared.Period{Year: 2025, Month: 5}, CreditTotal: 200},
			{EntityID: 1, EntityAccountID: 41, Period: shared.Period{Year: 2025, Month: 6}, CreditTotal: 300},
			{EntityID: 1, EntityAccountID: 11, Period: shared.Period{Year: 2025, Month: 5}, DebitTotal: 5000},
			{EntityID: 1, EntityAccountID: 11, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 5500},
		},
	}
	tb, err := BuildTrialBalance(snap, BuildOptions{
		Period:      shared.Period{Year: 2025, Month: 6},
		Granularity: shared.GranularityQuarterly,
	})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	sales := findAccount(t, tb, "4000")
	if sales.AdjustedBalance != -600 {
		t.Errorf("quarterly sales = %v want -600 (flow accounts accumulate)", sales.AdjustedBalance)
	}
	cash := findAccount(t, tb, "1000")
	if cash.AdjustedBalance != 5500 {
		t.Errorf("quarterly cash = %v want 5500 (position accounts take final month)", cash.AdjustedBalance)
	}
}

func TestUnmappedActivityReportedForEveryCoveredMonth(t *testing.T) {
	snap := rentSnapshot()
	// Quarterly build for 2025-06 covers April through June; the unmapped
	// account is active in April and June only.
	snap.Balances = append(snap.Balances,
		RawBalance{EntityID: 2, EntityAccountID: 999, Period: shared.Period{Year: 2025, Month: 4}, DebitTotal: 300},
		RawBalance{EntityID: 2, EntityAccountID: 999, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 450},
	)
	tb, err := BuildTrialBalance(snap, BuildOptions{
		Period:      shared.Period{Year: 2025, Month: 6},
		Granularity: shared.GranularityQuarterly,
	})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	if len(tb.Unmapped) != 2 {
		t.Fatalf("expected 2 unmapped rows got %d: %+v", len(tb.Unmapped), tb.Unmapped)
	}
	april, june := tb.Unmapped[0], tb.Unmapped[1]
	if april.PeriodKey != "2025-04" || april.Amount != 300 {
		t.Errorf("april row = %+v", april)
	}
	if june.PeriodKey != "2025-06" || june.Amount != 450 {
		t.Errorf("june row = %+v", june)
	}
	for _, account := range tb.Accounts {
		for _, share := range account.EntityBreakdown {
			if share.EntityID == 2 && share.EndingBalance != 0 {
				t.Errorf("unmapped balance leaked into consolidated account %s", account.Number)
			}
		}
	}
}

func TestCompareEmitsLinesForCompareOnlyAccounts(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: 1,
		Entities:       []Entity{{ID: 1, OrganizationID: 1, Code: "A", Name: "Entity A"}},
		Accounts: []MasterAccount{
			{ID: 60, OrganizationID: 1, Number: "6000", Name: "Rent", Classification: ClassExpense},
			{ID: 61, OrganizationID: 1, Number: "6100", Name: "Repairs", Classification: ClassExpense},
		},
		Mappings: []AccountMapping{
			{EntityID: 1, EntityAccountID: 101, MasterAccountID: 60},
			{EntityID: 1, EntityAccountID: 102, MasterAccountID: 61},
		},
		Balances: []RawBalance{
			{EntityID: 1, EntityAccountID: 101, Period: shared.Period{Year: 2025, Month: 6}, DebitTotal: 10000},
			// Repairs hit only the comparison period.
			{EntityID: 1, EntityAccountID: 102, Period: shared.Period{Year: 2025, Month: 5}, DebitTotal: 700},
		},
	}
	compare := shared.Period{Year: 2025, Month: 5}
	tb, err := BuildTrialBalance(snap, BuildOptions{
		Period:        shared.Period{Year: 2025, Month: 6},
		ComparePeriod: &compare,
	})
	if err != nil {
		t.Fatalf("BuildTrialBalance: %v", err)
	}
	repairs := findAccount(t, tb, "6100")
	if repairs.AdjustedBalance != 0 || repairs.EndingBalance != 0 {
		t.Errorf("compare-only account carried a current balance: %+v", repairs)
	}
	if repairs.CompareDelta == nil || *repairs.CompareDelta != -700 {
		t.Errorf("repairs compare delta = %v want -700", repairs.CompareDelta)
	}
	var deltaSum float64
	for _, account := range tb.Accounts {
		if account.CompareDelta == nil {
			t.Fatalf("account %s missing compare delta", account.Number)
		}
		deltaSum += *account.CompareDelta
	}
	if tb.CompareTotals == nil {
		t.Fatal("compare totals missing")
	}
	if math.Abs(deltaSum-tb.CompareTotals.TotalExpenses) > epsilon {
		t.Errorf("sum of per-account deltas = %v, totals expense delta = %v", deltaSum, tb.CompareTotals.TotalExpenses)
	}
	if !sort.SliceIsSorted(tb.Accounts, func(i, j int) bool { return tb.Accounts[i].Number < tb.Accounts[j].Number }) {
		t.Error("account lines not sorted by number after compare attach")
	}
}
