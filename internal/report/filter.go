package report

import (
	"sort"

	"crate_ledger/internal/domain"
)

// All is the filter value that matches every item.
const All = "All"

// Filter narrows a collection to one genre and/or style. Empty or All means
// no constraint on that dimension.
type Filter struct {
	Genre string `json:"genre,omitempty"`
	Style string `json:"style,omitempty"`
}

func (f Filter) active(value string) bool {
	return value != "" && value != All
}

// Match reports whether item carries the filtered genre and style as whole
// list entries.
func (f Filter) Match(item domain.CollectionItem) bool {
	if f.active(f.Genre) && !contains(domain.SplitList(item.Genres), f.Genre) {
		return false
	}
	if f.active(f.Style) && !contains(domain.SplitList(item.Styles), f.Style) {
		return false
	}
	return true
}

// Apply returns the matching items in their original order.
func (f Filter) Apply(items []domain.CollectionItem) []domain.CollectionItem {
	if !f.active(f.Genre) && !f.active(f.Style) {
		return items
	}
	out := make([]domain.CollectionItem, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

// FilterOptions lists the distinct values a Filter can take.
type FilterOptions struct {
	Genres []string `json:"genres"`
	Styles []string `json:"styles"`
}

func Options(items []domain.CollectionItem) FilterOptions {
	genres := make(map[string]struct{})
	styles := make(map[string]struct{})
	for _, item := range items {
		for _, g := range domain.SplitList(item.Genres) {
			genres[g] = struct{}{}
		}
		for _, s := range domain.SplitList(item.Styles) {
			styles[s] = struct{}{}
		}
	}
	return FilterOptions{
		Genres: sortedKeys(genres),
		Styles: sortedKeys(styles),
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
