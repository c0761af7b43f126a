// Package statement maps consolidated balances onto hierarchical
// financial statement templates with subtotal and margin lines.
package statement

import (
	"strings"

	"github.com/jdavon/closebook/internal/consol"
)

// LineKind distinguishes how a template line derives its value.
type LineKind string

const (
	// LineSection sums adjusted balances of the accounts its filter matches.
	LineSection LineKind = "section"
	// LineSubtotal combines other lines arithmetically.
	LineSubtotal LineKind = "subtotal"
	// LineMargin is a ratio of two lines, rendered as a percentage. It
	// carries no raw balance and no additive decomposition.
	LineMargin LineKind = "margin"
)

// Statement template identifiers served by the API.
const (
	IncomeStatementID = "income_statement"
	BalanceSheetID    = "balance_sheet"
)

// marginSuffix is the naming convention separating percentage lines from
// dollar lines.
const marginSuffix = "_margin"

// IsMarginLine reports whether a line ID names a percentage line.
func IsMarginLine(lineID string) bool {
	return strings.HasSuffix(lineID, marginSuffix)
}

// AccountFilter selects master accounts for a section line.
type AccountFilter struct {
	Classifications []consol.Classification
	IncludeTypes    []string
	ExcludeTypes    []string
}

// Matches reports whether the master account belongs to the section.
func (f AccountFilter) Matches(account consol.MasterAccount) bool {
	if len(f.Classifications) > 0 {
		found := false
		for _, c := range f.Classifications {
			if account.Classification == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.IncludeTypes) > 0 {
		found := false
		for _, t := range f.IncludeTypes {
			if account.AccountType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range f.ExcludeTypes {
		if account.AccountType == t {
			return false
		}
	}
	return true
}

// Line is one row of a statement template.
type Line struct {
	ID          string
	Label       string
	Kind        LineKind
	Filter      AccountFilter // section lines
	Subtract    bool          // section is subtracted by the subtotals that reference it
	Plus        []string      // subtotal operands
	Minus       []string
	Numerator   string        // margin operands
	Denominator string
}

// Template is an ordered statement layout.
type Template struct {
	ID    string
	Name  string
	Lines []Line
}

// Line finds a template line by ID.
func (t Template) Line(id string) (Line, bool) {
	for _, line := range t.Lines {
		if line.ID == id {
			return line, true
		}
	}
	return Line{}, false
}

// TruncateAfter returns a copy of the template that ends at the given
// line, dropping everything after it. Used for the EBITDA-only view,
// which stops at the operating margin.
func (t Template) TruncateAfter(lineID string) Template {
	for i, line := range t.Lines {
		if line.ID == lineID {
			out := t
			out.Lines = append([]Line(nil), t.Lines[:i+1]...)
			return out
		}
	}
	return t
}

// IncomeStatementTemplate is the fixed consolidated P&L layout.
func IncomeStatementTemplate() Template {
	return Template{
		ID:   IncomeStatementID,
		Name: "Income Statement",
		Lines: []Line{
			{ID: "revenue", Label: "Revenue", Kind: LineSection,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassRevenue}, ExcludeTypes: []string{"other_income"}}},
			{ID: "cogs", Label: "Cost of Goods Sold", Kind: LineSection, Subtract: true,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassExpense}, IncludeTypes: []string{"cogs"}}},
			{ID: "gross_profit", Label: "Gross Profit", Kind: LineSubtotal,
				Plus: []string{"revenue"}, Minus: []string{"cogs"}},
			{ID: "gross_margin", Label: "Gross Margin", Kind: LineMargin,
				Numerator: "gross_profit", Denominator: "revenue"},
			{ID: "operating_expenses", Label: "Operating Expenses", Kind: LineSection, Subtract: true,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassExpense}, ExcludeTypes: []string{"cogs", "other_expense"}}},
			{ID: "operating_income", Label: "Operating Income", Kind: LineSubtotal,
				Plus: []string{"gross_profit"}, Minus: []string{"operating_expenses"}},
			{ID: "operating_margin", Label: "Operating Margin", Kind: LineMargin,
				Numerator: "operating_income", Denominator: "revenue"},
			{ID: "other_income", Label: "Other Income", Kind: LineSection,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassRevenue}, IncludeTypes: []string{"other_income"}}},
			{ID: "other_expense", Label: "Other Expense", Kind: LineSection, Subtract: true,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassExpense}, IncludeTypes: []string{"other_expense"}}},
			{ID: "net_income", Label: "Net Income", Kind: LineSubtotal,
				Plus: []string{"operating_income", "other_income"}, Minus: []string{"other_expense"}},
			{ID: "net_margin", Label: "Net Margin", Kind: LineMargin,
				Numerator: "net_income", Denominator: "revenue"},
		},
	}
}

// BalanceSheetTemplate is the fixed consolidated balance sheet layout.
func BalanceSheetTemplate() Template {
	return Template{
		ID:   BalanceSheetID,
		Name: "Balance Sheet",
		Lines: []Line{
			{ID: "assets", Label: "Assets", Kind: LineSection,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassAsset}}},
			{ID: "total_assets", Label: "Total Assets", Kind: LineSubtotal, Plus: []string{"assets"}},
			{ID: "liabilities", Label: "Liabilities", Kind: LineSection,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassLiability}}},
			{ID: "equity", Label: "Equity", Kind: LineSection,
				Filter: AccountFilter{Classifications: []consol.Classification{consol.ClassEquity}}},
			{ID: "total_liabilities_equity", Label: "Total Liabilities & Equity", Kind: LineSubtotal,
				Plus: []string{"liabilities", "equity"}},
		},
	}
}

// TemplateByID resolves a statement identifier to its template.
func TemplateByID(id string) (Template, bool) {
	switch id {
	case IncomeStatementID:
		return IncomeStatementTemplate(), true
	case BalanceSheetID:
		return BalanceSheetTemplate(), true
	}
	return Template{}, false
}
