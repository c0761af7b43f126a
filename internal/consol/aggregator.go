package consol

import (
	"sort"

	"github.com/jdavon/closebook/internal/shared"
)

// Snapshot is the immutable set of source rows a request computes from.
// Loaded once, derived views are built from it many times; nothing in the
// read pipeline mutates it.
type Snapshot struct {
	OrganizationID int64
	Entities       []Entity
	Accounts       []MasterAccount
	Mappings       []AccountMapping
	Balances       []RawBalance
	Allocations    []AllocationAdjustment
	ProForma       []ProFormaAdjustment
	Eliminations   []Elimination
}

// rawAggregate is the output of the balance aggregation pass.
type rawAggregate struct {
	byEntity map[EntityKey]float64
	unmapped []UnmappedBalance
}

// aggregateRaw sums raw ledger balances per (entity, master account) for
// the requested months using the mapping index. Flow accounts (revenue,
// expense) accumulate across the range; position accounts take the final
// month's row. Entity accounts with activity but no mapping are recorded
// in the unmapped report, one row per covered month, instead of being
// dropped. An unmapped account has no classification, so every month in
// the range counts as activity.
func aggregateRaw(snap *Snapshot, idx *MappingIndex, periods []shared.Period) rawAggregate {
	result := rawAggregate{byEntity: make(map[EntityKey]float64)}
	if len(periods) == 0 {
		return result
	}
	last := periods[len(periods)-1]
	inRange := make(map[shared.Period]struct{}, len(periods))
	for _, p := range periods {
		inRange[p] = struct{}{}
	}
	accounts := make(map[int64]MasterAccount, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accounts[a.ID] = a
	}
	entities := make(map[int64]Entity, len(snap.Entities))
	for _, e := range snap.Entities {
		entities[e.ID] = e
	}

	for _, row := range snap.Balances {
		if _, ok := inRange[row.Period]; !ok {
			continue
		}
		masterID, mapped := idx.Resolve(row.EntityID, row.EntityAccountID)
		if !mapped {
			if row.Net() != 0 {
				entry := UnmappedBalance{
					EntityID:        row.EntityID,
					EntityAccountID: row.EntityAccountID,
					PeriodKey:       row.Period.Key(),
					Amount:          row.Net(),
				}
				if e, ok := entities[row.EntityID]; ok {
					entry.EntityCode = e.Code
				}
				result.unmapped = append(result.unmapped, entry)
			}
			continue
		}
		account, ok := accounts[masterID]
		if ok && !account.Classification.Flow() && row.Period != last {
			continue
		}
		key := EntityKey{EntityID: row.EntityID, MasterAccountID: masterID}
		result.byEntity[key] += row.Net()
	}

	sort.Slice(result.unmapped, func(i, j int) bool {
		if result.unmapped[i].EntityID != result.unmapped[j].EntityID {
			return result.unmapped[i].EntityID < result.unmapped[j].EntityID
		}
		if result.unmapped[i].EntityAccountID != result.unmapped[j].EntityAccountID {
			return result.unmapped[i].EntityAccountID < result.unmapped[j].EntityAccountID
		}
		return result.unmapped[i].PeriodKey < result.unmapped[j].PeriodKey
	})
	return result
}
