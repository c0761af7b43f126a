package statement

import (
	"fmt"
	"sort"

	"github.com/jdavon/closebook/internal/consol"
	"github.com/jdavon/closebook/internal/shared"
)

// Detail row sources.
const (
	SourceRaw         = "raw"
	SourceAllocation  = "allocation"
	SourceProForma    = "pro_forma"
	SourceElimination = "elimination"
)

// DetailRow is one literal contribution to a drilled-down cell.
type DetailRow struct {
	Source          string  `json:"source"`
	EntityID        int64   `json:"entity_id,omitempty"`
	EntityName      string  `json:"entity_name,omitempty"`
	EntityAccountID int64   `json:"entity_account_id,omitempty"`
	Description     string  `json:"description,omitempty"`
	Amount          float64 `json:"amount"`
}

// DetailGroup collects the rows of one master account. Sign records how
// the enclosing statement line consumes the group's subtotal, so
// subtractive sections reconcile against the rendered figure.
type DetailGroup struct {
	MasterAccountID int64       `json:"master_account_id"`
	AccountNumber   string      `json:"account_number"`
	AccountName     string      `json:"account_name"`
	Sign            int         `json:"sign"`
	Rows            []DetailRow `json:"rows"`
	Subtotal        float64     `json:"subtotal"`
}

// DrillDown re-expresses one statement cell as its constituent rows.
type DrillDown struct {
	LineID     string        `json:"line_id"`
	PeriodKey  string        `json:"period"`
	ColumnType string        `json:"column_type"`
	Groups     []DetailGroup `json:"groups"`
	Total      float64       `json:"total"`
}

// resolveSigns expands a template line into the master-account signs its
// value is built from. Subtotals recurse through their operands; a minus
// operand flips every sign beneath it.
func resolveSigns(tpl Template, line Line, snap *consol.Snapshot, sign int, out map[int64]int) {
	switch line.Kind {
	case LineSection:
		for _, account := range snap.Accounts {
			if line.Filter.Matches(account) {
				out[account.ID] += sign
			}
		}
	case LineSubtotal:
		for _, id := range line.Plus {
			if operand, ok := tpl.Line(id); ok {
				resolveSigns(tpl, operand, snap, sign, out)
			}
		}
		for _, id := range line.Minus {
			if operand, ok := tpl.Line(id); ok {
				resolveSigns(tpl, operand, snap, -sign, out)
			}
		}
	}
}

// BuildDrillDown derives the exact rows behind one statement cell from
// the snapshot the statement was computed from. Margin lines have no
// additive decomposition and return empty detail.
func BuildDrillDown(tpl Template, lineID, columnType string, snap *consol.Snapshot, opts consol.BuildOptions) (DrillDown, error) {
	line, ok := tpl.Line(lineID)
	if !ok {
		return DrillDown{}, fmt.Errorf("statement: line %q not in template %s", lineID, tpl.ID)
	}
	out := DrillDown{LineID: lineID, PeriodKey: opts.Period.Key(), ColumnType: columnType}
	if line.Kind == LineMargin {
		return out, nil
	}

	signs := make(map[int64]int)
	resolveSigns(tpl, line, snap, 1, signs)

	periods := shared.ExpandGranularity(opts.Granularity, opts.Period)
	idx := consol.NewMappingIndex(snap.Mappings)

	includeAll := len(opts.EntityIDs) == 0
	included := make(map[int64]struct{}, len(opts.EntityIDs))
	for _, id := range opts.EntityIDs {
		included[id] = struct{}{}
	}
	entityIncluded := func(id int64) bool {
		if includeAll {
			return true
		}
		_, ok := included[id]
		return ok
	}
	entityName := make(map[int64]string, len(snap.Entities))
	for _, e := range snap.Entities {
		entityName[e.ID] = e.Name
	}
	accounts := make(map[int64]consol.MasterAccount, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accounts[a.ID] = a
	}

	rowsByAccount := make(map[int64][]DetailRow)
	add := func(accountID int64, row DetailRow) {
		rowsByAccount[accountID] = append(rowsByAccount[accountID], row)
	}

	last := periods[len(periods)-1]
	inRange := make(map[shared.Period]struct{}, len(periods))
	for _, p := range periods {
		inRange[p] = struct{}{}
	}
	for _, balance := range snap.Balances {
		if _, ok := inRange[balance.Period]; !ok {
			continue
		}
		masterID, mapped := idx.Resolve(balance.EntityID, balance.EntityAccountID)
		if !mapped {
			continue
		}
		if _, wanted := signs[masterID]; !wanted || !entityIncluded(balance.EntityID) {
			continue
		}
		account := accounts[masterID]
		if !account.Classification.Flow() && balance.Period != last {
			continue
		}
		add(masterID, DetailRow{
			Source:          SourceRaw,
			EntityID:        balance.EntityID,
			EntityName:      entityName[balance.EntityID],
			EntityAccountID: balance.EntityAccountID,
			Amount:          displayAmount(account.Classification, balance.Net()),
		})
	}

	for _, p := range periods {
		if opts.Adjustments.IncludeAllocations {
			for _, a := range snap.Allocations {
				for _, d := range a.Deltas(p) {
					if _, wanted := signs[d.MasterAccountID]; !wanted || !entityIncluded(d.EntityID) {
						continue
					}
					account := accounts[d.MasterAccountID]
					add(d.MasterAccountID, DetailRow{
						Source:      SourceAllocation,
						EntityID:    d.EntityID,
						EntityName:  entityName[d.EntityID],
						Description: a.Description,
						Amount:      displayAmount(account.Classification, d.Amount),
					})
				}
			}
		}
		if opts.Adjustments.IncludeProForma {
			for _, a := range snap.ProForma {
				for _, d := range a.Deltas(p) {
					if _, wanted := signs[d.MasterAccountID]; !wanted || !entityIncluded(d.EntityID) {
						continue
					}
					account := accounts[d.MasterAccountID]
					add(d.MasterAccountID, DetailRow{
						Source:      SourceProForma,
						EntityID:    d.EntityID,
						EntityName:  entityName[d.EntityID],
						Description: a.Description,
						Amount:      displayAmount(account.Classification, d.Amount),
					})
				}
			}
		}
		if includeAll {
			for _, e := range snap.Eliminations {
				for _, d := range e.Deltas(p) {
					if _, wanted := signs[d.MasterAccountID]; !wanted {
						continue
					}
					account := accounts[d.MasterAccountID]
					add(d.MasterAccountID, DetailRow{
						Source:      SourceElimination,
						Description: e.Description,
						Amount:      displayAmount(account.Classification, d.Amount),
					})
				}
			}
		}
	}

	accountIDs := make([]int64, 0, len(rowsByAccount))
	for id := range rowsByAccount {
		accountIDs = append(accountIDs, id)
	}
	sort.Slice(accountIDs, func(i, j int) bool {
		return accounts[accountIDs[i]].Number < accounts[accountIDs[j]].Number
	})

	for _, id := range accountIDs {
		account := accounts[id]
		group := DetailGroup{
			MasterAccountID: id,
			AccountNumber:   account.Number,
			AccountName:     account.Name,
			Sign:            signs[id],
			Rows:            rowsByAccount[id],
		}
		for _, row := range group.Rows {
			group.Subtotal += row.Amount
		}
		out.Total += float64(group.Sign) * group.Subtotal
		out.Groups = append(out.Groups, group)
	}
	return out, nil
}
