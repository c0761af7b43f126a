package http

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jdavon/closebook/internal/consol"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var amountPrinter = message.NewPrinter(language.English)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

// writeTBCsv streams a consolidated trial balance as CSV with metadata
// comment lines ahead of the header row.
func writeTBCsv(w io.Writer, tb consol.TrialBalance, filters consol.Filters) error {
	streamer := newCSVStreamer(w)
	if err := writeMetadata(streamer, tb, filters); err != nil {
		return err
	}
	header := []string{"Account", "Name", "Classification", "Ending Balance", "Adjustments", "Eliminations", "Adjusted Balance"}
	if tb.ComparePeriod != nil {
		header = append(header, "Delta vs "+tb.ComparePeriod.Key())
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}
	for _, line := range tb.Accounts {
		row := []string{
			line.Number,
			line.Name,
			string(line.Classification),
			formatDecimal(line.EndingBalance),
			formatDecimal(line.Adjustments),
			formatDecimal(line.EliminationAdjustments),
			formatDecimal(line.AdjustedBalance),
		}
		if tb.ComparePeriod != nil {
			delta := ""
			if line.CompareDelta != nil {
				delta = formatDecimal(*line.CompareDelta)
			}
			row = append(row, delta)
		}
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"", "", "", "", "", "", ""}); err != nil {
		return err
	}
	totalsRows := [][]string{
		{"Totals", "Assets", "", "", "", "", formatAmount(tb.Totals.TotalAssets)},
		{"Totals", "Liabilities", "", "", "", "", formatAmount(tb.Totals.TotalLiabilities)},
		{"Totals", "Equity", "", "", "", "", formatAmount(tb.Totals.TotalEquity)},
		{"Totals", "Revenue", "", "", "", "", formatAmount(tb.Totals.TotalRevenue)},
		{"Totals", "Expenses", "", "", "", "", formatAmount(tb.Totals.TotalExpenses)},
		{"Totals", "Net Income", "", "", "", "", formatAmount(tb.Totals.NetIncome)},
	}
	for _, row := range totalsRows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	return streamer.Close()
}

func writeMetadata(streamer *csvStreamer, tb consol.TrialBalance, filters consol.Filters) error {
	if err := streamer.writeComment("# Report: Consolidated Trial Balance"); err != nil {
		return err
	}
	scope := "organization"
	if filters.Scope == consol.ScopeEntity {
		scope = "entity:" + strconv.FormatInt(filters.EntityID, 10)
	}
	granularity := tb.Granularity
	if granularity == "" {
		granularity = "monthly"
	}
	if err := streamer.writeComment(fmt.Sprintf("# Organization: %d | Period: %s | Granularity: %s | Scope: %s",
		tb.OrganizationID, tb.PeriodKey, granularity, scope)); err != nil {
		return err
	}
	if len(tb.Unmapped) == 0 {
		return streamer.writeComment("# Unmapped accounts: none")
	}
	// One mention per account even when the report carries a row per month.
	seen := make(map[string]struct{}, len(tb.Unmapped))
	parts := make([]string, 0, len(tb.Unmapped))
	for _, u := range tb.Unmapped {
		part := fmt.Sprintf("%s/%d", u.EntityCode, u.EntityAccountID)
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		parts = append(parts, part)
	}
	sort.Strings(parts)
	return streamer.writeComment("# Unmapped accounts: " + strings.Join(parts, "; "))
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// formatAmount renders grouped totals for human readers of the footer.
func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}
