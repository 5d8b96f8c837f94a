package discogs

import (
	"strconv"
	"strings"
	"time"

	"crate_ledger/internal/domain"
)

// Normalize flattens a raw listing entry and its instance notes into a
// CollectionItem. It performs no I/O.
func Normalize(raw Release, notes []Note, ids domain.FieldIDs) domain.CollectionItem {
	bi := raw.BasicInformation

	releaseID := bi.ID
	if releaseID == 0 {
		releaseID = raw.ID
	}

	descriptions := formatDescriptions(bi.Formats)
	pressing := domain.ClassifyPressing(descriptions)

	values := make(map[int]string, len(notes))
	for _, n := range notes {
		if n.FieldID != 0 {
			values[n.FieldID] = n.Value
		}
	}

	return domain.CollectionItem{
		ReleaseID:          releaseID,
		InstanceID:         raw.InstanceID,
		FolderID:           raw.FolderID,
		Title:              bi.Title,
		Year:               bi.Year,
		Artists:            domain.JoinList(entityNames(bi.Artists)),
		Labels:             domain.JoinList(entityNames(bi.Labels)),
		Formats:            domain.JoinList(formatNames(bi.Formats)),
		FormatDescriptions: domain.JoinList(descriptions),
		Genres:             domain.JoinList(bi.Genres),
		Styles:             domain.JoinList(bi.Styles),
		CoverURL:           optional(bi.CoverImage),
		ThumbURL:           optional(bi.Thumb),
		Added:              parseAdded(raw.DateAdded),
		Rating:             raw.Rating,
		IsOriginal:         pressing.Original,
		IsReissue:          pressing.Reissue,
		IsLimited:          pressing.Limited,
		PricePaid:          ParsePrice(values[ids.PricePaid]),
		Seller:             optional(values[ids.Seller]),
		BandCountry:        optional(values[ids.BandCountry]),
	}
}

func entityNames(entities []Entity) []string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return names
}

func formatNames(formats []Format) []string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, f.Name)
	}
	return names
}

// formatDescriptions collects each format's descriptions followed by its
// free text.
func formatDescriptions(formats []Format) []string {
	var out []string
	for _, f := range formats {
		out = append(out, f.Descriptions...)
		if f.Text != "" {
			out = append(out, f.Text)
		}
	}
	return out
}

func parseAdded(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// ParsePrice reads a free-form amount such as "€25,50" or "USD 1,200.00".
// With both separators present the rightmost one is the decimal point. A
// separator that appears once and is followed by exactly three digits groups
// thousands, whether it is "." or ",", unless the whole part is zero. Trailing dashes and separators, as in
// "25.-", are dropped.
func ParsePrice(value string) *float64 {
	var b strings.Builder
	for _, r := range value {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s := strings.TrimRight(b.String(), ".,-")
	if s == "" {
		return nil
	}

	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		s = normalizeSeparator(s, ",")
	case strings.Contains(s, "."):
		s = normalizeSeparator(s, ".")
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &amount
}

// normalizeSeparator rewrites s, which uses sep as its only separator, into
// a form strconv.ParseFloat accepts.
func normalizeSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	i := strings.Index(s, sep)
	whole := strings.TrimPrefix(s[:i], "-")
	if len(s)-i-1 == 3 && whole != "" && whole != "0" {
		return strings.Replace(s, sep, "", 1)
	}
	return strings.Replace(s, sep, ".", 1)
}
