package report

import "crate_ledger/internal/domain"

// Summary is everything the dashboard shows for one filter selection.
type Summary struct {
	Filter    Filter            `json:"filter"`
	Items     int               `json:"items"`
	ByYear    []YearCount       `json:"by_year"`
	TopStyles []NameCount       `json:"top_styles"`
	Pressings PressingBreakdown `json:"pressings"`
	Growth    []MonthCount      `json:"growth"`
	Spending  SpendingSummary   `json:"spending"`
}

func Summarize(items []domain.CollectionItem, f Filter, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopStyles
	}
	filtered := f.Apply(items)
	return Summary{
		Filter:    f,
		Items:     len(filtered),
		ByYear:    ByYear(filtered),
		TopStyles: TopStyles(filtered, topN),
		Pressings: Pressings(filtered),
		Growth:    Growth(filtered),
		Spending:  Spending(filtered, topN),
	}
}
