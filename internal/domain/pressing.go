package domain

import "strings"

// Pressing holds the pressing-type flags derived from format descriptions.
type Pressing struct {
	Original bool
	Reissue  bool
	Limited  bool
}

// ClassifyPressing matches descriptions case-insensitively. An item with no
// reissue or repress marker counts as an original.
func ClassifyPressing(descriptions []string) Pressing {
	var p Pressing
	for _, d := range descriptions {
		lower := strings.ToLower(d)
		if strings.Contains(lower, "repress") || strings.Contains(lower, "reissue") {
			p.Reissue = true
		}
		if strings.Contains(lower, "limited edition") {
			p.Limited = true
		}
	}
	p.Original = !p.Reissue
	return p
}

// SplitList reverses the comma join of a flattened field.
func SplitList(value *string) []string {
	if value == nil || *value == "" {
		return nil
	}
	parts := strings.Split(*value, ListSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList flattens names, returning nil when there is nothing to join.
func JoinList(names []string) *string {
	var kept []string
	for _, n := range names {
		if n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	joined := strings.Join(kept, ListSeparator)
	return &joined
}
