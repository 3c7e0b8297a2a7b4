// Package report renders a window of transactions and its summary into a
// delimited text export with a deterministic layout.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"lojista/internal/core"
)

// ErrEmptyWindow is returned only when the caller demands at least one
// transaction in the export. Without that policy an empty window renders a
// header-only report, which is a valid business state.
var ErrEmptyWindow = errors.New("no transactions in window")

// Labels carries the locale-facing strings of a report. The zero value is
// not usable; start from DefaultLabels.
type Labels struct {
	Inflow     string
	Outflow    string
	Store      string
	Period     string
	TotalIn    string
	TotalOut   string
	Balance    string
	Columns    []string
	DateLayout string
	Separator  rune
}

// DefaultLabels is the pt-BR layout used by the dashboard export.
func DefaultLabels() Labels {
	return Labels{
		Inflow:     "venda",
		Outflow:    "despesa",
		Store:      "loja",
		Period:     "periodo",
		TotalIn:    "total_vendas",
		TotalOut:   "total_despesas",
		Balance:    "saldo",
		Columns:    []string{"tipo", "data", "valor", "descricao", "categoria"},
		DateLayout: "02/01/2006",
		Separator:  ';',
	}
}

// Report is one window's export payload.
type Report struct {
	StoreName    string
	Window       core.DateWindow
	Transactions []core.Transaction
	Summary      core.WindowSummary

	// RequireRows makes an empty window an error instead of a
	// header-only export.
	RequireRows bool
}

// Write renders the report. Layout: a header block (store, period, three
// totals), a blank line, the column header, then one row per transaction
// ordered by occurrence date ascending with recording time as tiebreak.
// All fields go through the CSV writer so embedded separators and quotes
// in free text cannot corrupt the output.
func Write(w io.Writer, rep Report, labels Labels) error {
	if rep.RequireRows && len(rep.Transactions) == 0 {
		return ErrEmptyWindow
	}

	cw := csv.NewWriter(w)
	cw.Comma = labels.Separator

	header := [][]string{
		{labels.Store, rep.StoreName},
		{labels.Period, rep.Window.Start.Format(labels.DateLayout) + " - " + rep.Window.End.Format(labels.DateLayout)},
		{labels.TotalIn, rep.Summary.Inflow.String()},
		{labels.TotalOut, rep.Summary.Outflow.String()},
		{labels.Balance, rep.Summary.Balance.String()},
		{""},
		labels.Columns,
	}
	for _, row := range header {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
	}

	rows := make([]core.Transaction, len(rep.Transactions))
	copy(rows, rep.Transactions)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].OccurredOn.Compare(rows[j].OccurredOn); c != 0 {
			return c < 0
		}
		if !rows[i].RecordedAt.Equal(rows[j].RecordedAt) {
			return rows[i].RecordedAt.Before(rows[j].RecordedAt)
		}
		return rows[i].ID < rows[j].ID
	})

	for _, t := range rows {
		kind := labels.Inflow
		category := ""
		if t.Kind == core.Outflow {
			kind = labels.Outflow
			category = t.Category
		}
		row := []string{
			kind,
			t.OccurredOn.Format(labels.DateLayout),
			t.Amount.String(),
			t.Description,
			category,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// Render is Write into a string.
func Render(rep Report, labels Labels) (string, error) {
	var b strings.Builder
	if err := Write(&b, rep, labels); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Filename suggests a deterministic export name for a window, e.g.
// "relatorio_2024-03-01_2024-03-31.csv".
func Filename(window core.DateWindow) string {
	return fmt.Sprintf("relatorio_%s_%s.csv", window.Start, window.End)
}
