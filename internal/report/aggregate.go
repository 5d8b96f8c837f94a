package report

import (
	"sort"
	"time"

	"crate_ledger/internal/domain"
)

// DefaultTopStyles is the number of styles ranked when no limit is given.
const DefaultTopStyles = 15

type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// ByYear counts items per release year, ascending. Unknown years (<= 0) are
// left out.
func ByYear(items []domain.CollectionItem) []YearCount {
	counts := make(map[int]int)
	for _, item := range items {
		if item.Year > 0 {
			counts[item.Year]++
		}
	}

	out := make([]YearCount, 0, len(counts))
	for year, n := range counts {
		out = append(out, YearCount{Year: year, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopStyles ranks styles by how many items carry them, ties broken by name.
func TopStyles(items []domain.CollectionItem, n int) []NameCount {
	if n <= 0 {
		n = DefaultTopStyles
	}

	counts := make(map[string]int)
	for _, item := range items {
		for _, style := range domain.SplitList(item.Styles) {
			counts[style]++
		}
	}

	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type PressingBreakdown struct {
	Total    int `json:"total"`
	Original int `json:"original"`
	Reissue  int `json:"reissue"`
	Limited  int `json:"limited"`
}

// Share returns count as a fraction of Total, or 0 for an empty collection.
func (p PressingBreakdown) Share(count int) float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(count) / float64(p.Total)
}

func Pressings(items []domain.CollectionItem) PressingBreakdown {
	p := PressingBreakdown{Total: len(items)}
	for _, item := range items {
		if item.IsOriginal {
			p.Original++
		}
		if item.IsReissue {
			p.Reissue++
		}
		if item.IsLimited {
			p.Limited++
		}
	}
	return p
}

type MonthCount struct {
	Month      time.Time `json:"month"`
	Added      int       `json:"added"`
	Cumulative int       `json:"cumulative"`
}

// Growth buckets items by the month they were added. Every month between the
// first and last bucket is present, empty ones with zero additions.
func Growth(items []domain.CollectionItem) []MonthCount {
	counts := make(map[time.Time]int)
	var first, last time.Time
	for _, item := range items {
		if item.Added == nil {
			continue
		}
		m := monthOf(*item.Added)
		counts[m]++
		if first.IsZero() || m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
	}
	if len(counts) == 0 {
		return []MonthCount{}
	}

	var out []MonthCount
	total := 0
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		total += counts[m]
		out = append(out, MonthCount{Month: m, Added: counts[m], Cumulative: total})
	}
	return out
}

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type Spend struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type SpendingSummary struct {
	Total        float64 `json:"total"`
	Count        int     `json:"count"`
	Average      float64 `json:"average"`
	Max          float64 `json:"max"`
	TopSellers   []Spend `json:"top_sellers"`
	TopCountries []Spend `json:"top_countries"`
}

// Spending sums the parsed price paid. Items without a price are skipped.
func Spending(items []domain.CollectionItem, n int) SpendingSummary {
	var s SpendingSummary
	sellers := make(map[string]*Spend)
	countries := make(map[string]*Spend)

	for _, item := range items {
		if item.PricePaid == nil {
			continue
		}
		price := *item.PricePaid
		s.Total += price
		s.Count++
		if price > s.Max {
			s.Max = price
		}
		addSpend(sellers, item.Seller, price)
		addSpend(countries, item.BandCountry, price)
	}
	if s.Count > 0 {
		s.Average = s.Total / float64(s.Count)
	}

	s.TopSellers = rankSpend(sellers, n)
	s.TopCountries = rankSpend(countries, n)
	return s
}

func addSpend(m map[string]*Spend, name *string, price float64) {
	if name == nil || *name == "" {
		return
	}
	sp, ok := m[*name]
	if !ok {
		sp = &Spend{Name: *name}
		m[*name] = sp
	}
	sp.Total += price
	sp.Count++
}

func rankSpend(m map[string]*Spend, n int) []Spend {
	out := make([]Spend, 0, len(m))
	for _, sp := range m {
		out = append(out, *sp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
