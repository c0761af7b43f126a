package statement

import (
	"fmt"

	"github.com/jdavon/closebook/internal/consol"
)

// Column types a statement can carry in parallel.
const (
	ColumnActual    = "actual"
	ColumnBudget    = "budget"
	ColumnPriorYear = "prior_year"
)

// ColumnData pairs one column type with the trial balance backing it.
type ColumnData struct {
	Type         string
	TrialBalance consol.TrialBalance
}

// Cell is one rendered value. A nil Value renders as a dash: margins over
// a zero denominator have no value, not an error.
type Cell struct {
	Value   *float64 `json:"value"`
	Percent bool     `json:"percent,omitempty"`
}

// StatementLine is one computed row across all columns.
type StatementLine struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Kind    LineKind        `json:"kind"`
	Cells   map[string]Cell `json:"cells"`
}

// Statement is the rendered report for one period request.
type Statement struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PeriodKey   string          `json:"period"`
	Granularity string          `json:"granularity,omitempty"`
	Columns     []string        `json:"columns"`
	Lines       []StatementLine `json:"lines"`
}

// displayAmount converts a debit-minus-credit adjusted balance to its
// statement presentation: credit-normal classes read positive when in
// credit.
func displayAmount(class consol.Classification, adjusted float64) float64 {
	if class.CreditNormal() {
		return -adjusted
	}
	return adjusted
}

// sectionValue sums the display amounts of every account a section matches.
func sectionValue(filter AccountFilter, tb consol.TrialBalance) float64 {
	var total float64
	for _, account := range tb.Accounts {
		master := consol.MasterAccount{Classification: account.Classification, AccountType: account.AccountType}
		if !filter.Matches(master) {
			continue
		}
		total += displayAmount(account.Classification, account.AdjustedBalance)
	}
	return total
}

// Build maps trial balance columns onto the template, computing section
// sums, subtotals, and margins per column. Every column must describe the
// same organization and period request.
func Build(tpl Template, columns []ColumnData) (Statement, error) {
	if len(columns) == 0 {
		return Statement{}, fmt.Errorf("statement: at least one column required")
	}
	out := Statement{
		ID:          tpl.ID,
		Name:        tpl.Name,
		PeriodKey:   columns[0].TrialBalance.PeriodKey,
		Granularity: columns[0].TrialBalance.Granularity,
	}
	for _, col := range columns {
		out.Columns = append(out.Columns, col.Type)
	}

	// Dollar values memoised per column for subtotal and margin operands.
	values := make(map[string]map[string]float64, len(columns))
	for _, col := range columns {
		values[col.Type] = make(map[string]float64, len(tpl.Lines))
	}

	for _, line := range tpl.Lines {
		rendered := StatementLine{ID: line.ID, Label: line.Label, Kind: line.Kind, Cells: make(map[string]Cell, len(columns))}
		for _, col := range columns {
			memo := values[col.Type]
			switch line.Kind {
			case LineSection:
				v := sectionValue(line.Filter, col.TrialBalance)
				memo[line.ID] = v
				rendered.Cells[col.Type] = Cell{Value: &v}
			case LineSubtotal:
				var v float64
				for _, id := range line.Plus {
					v += memo[id]
				}
				for _, id := range line.Minus {
					v -= memo[id]
				}
				value := v
				memo[line.ID] = value
				rendered.Cells[col.Type] = Cell{Value: &value}
			case LineMargin:
				denominator := memo[line.Denominator]
				if denominator == 0 {
					rendered.Cells[col.Type] = Cell{Percent: true}
					continue
				}
				ratio := memo[line.Numerator] / denominator * 100
				rendered.Cells[col.Type] = Cell{Value: &ratio, Percent: true}
			default:
				return Statement{}, fmt.Errorf("statement: unknown line kind %q on %s", line.Kind, line.ID)
			}
		}
		out.Lines = append(out.Lines, rendered)
	}
	return out, nil
}
