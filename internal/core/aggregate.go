package core

// DailyBucket is the per-date aggregate inside a window.
type DailyBucket struct {
	Date    Date
	Inflow  Money
	Outflow Money
}

// WindowSummary is the reduction of a window: total sales, total expenses
// and their difference. Balance may be negative; it is never clamped.
type WindowSummary struct {
	Inflow  Money
	Outflow Money
	Balance Money
}

// Aggregate groups transactions by OccurredOn into per-date buckets,
// considering only dates present in the given sequence. Rows outside the
// window are skipped rather than miscounted: the repository query filters
// by range already, but extra rows must not corrupt the totals. Inputs are
// not mutated and the result is independent of input order.
func Aggregate(txs []Transaction, dates []Date) map[Date]DailyBucket {
	inWindow := make(map[Date]bool, len(dates))
	for _, d := range dates {
		inWindow[d] = true
	}
	buckets := make(map[Date]DailyBucket)
	for _, t := range txs {
		if !inWindow[t.OccurredOn] {
			continue
		}
		b := buckets[t.OccurredOn]
		b.Date = t.OccurredOn
		switch t.Kind {
		case Inflow:
			b.Inflow = b.Inflow.Add(t.Amount)
		case Outflow:
			b.Outflow = b.Outflow.Add(t.Amount)
		}
		buckets[t.OccurredOn] = b
	}
	return buckets
}

// BuildSeries turns the sparse bucket map into a dense series: one bucket
// per window date, in window order, zero-valued where no transactions
// exist. A zero-activity day must appear explicitly or charts would show a
// shorter axis than the window.
func BuildSeries(window DateWindow, buckets map[Date]DailyBucket) []DailyBucket {
	series := make([]DailyBucket, len(window.Dates))
	for i, d := range window.Dates {
		if b, ok := buckets[d]; ok {
			series[i] = b
		} else {
			series[i] = DailyBucket{Date: d}
		}
	}
	return series
}

// Summarize reduces a bucket sequence to window totals.
func Summarize(buckets []DailyBucket) WindowSummary {
	var s WindowSummary
	for _, b := range buckets {
		s.Inflow = s.Inflow.Add(b.Inflow)
		s.Outflow = s.Outflow.Add(b.Outflow)
	}
	s.Balance = s.Inflow.Sub(s.Outflow)
	return s
}

// SummarizeTransactions reduces raw transactions directly, without going
// through a series. For any window, summarizing the dense series and
// summarizing the window's transactions must agree.
func SummarizeTransactions(txs []Transaction) WindowSummary {
	var s WindowSummary
	for _, t := range txs {
		switch t.Kind {
		case Inflow:
			s.Inflow = s.Inflow.Add(t.Amount)
		case Outflow:
			s.Outflow = s.Outflow.Add(t.Amount)
		}
	}
	s.Balance = s.Inflow.Sub(s.Outflow)
	return s
}
