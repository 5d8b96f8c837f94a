package domain

import "time"

// CollectionItem is one owned copy of a release, flattened for tabular storage.
type CollectionItem struct {
	ReleaseID          int64      `db:"release_id" json:"release_id"`
	InstanceID         int64      `db:"instance_id" json:"instance_id"`
	FolderID           int        `db:"folder_id" json:"folder_id"`
	Title              string     `db:"title" json:"title"`
	Year               int        `db:"year" json:"year"`
	Artists            *string    `db:"artists" json:"artists"`
	Labels             *string    `db:"labels" json:"labels"`
	Formats            *string    `db:"formats" json:"formats"`
	FormatDescriptions *string    `db:"format_descriptions" json:"format_descriptions"`
	Genres             *string    `db:"genres" json:"genres"`
	Styles             *string    `db:"styles" json:"styles"`
	CoverURL           *string    `db:"cover_url" json:"cover_url"`
	ThumbURL           *string    `db:"thumb_url" json:"thumb_url"`
	Added              *time.Time `db:"added" json:"added"`
	Rating             int        `db:"rating" json:"rating"`
	IsOriginal         bool       `db:"is_original" json:"is_original"`
	IsReissue          bool       `db:"is_reissue" json:"is_reissue"`
	IsLimited          bool       `db:"is_limited" json:"is_limited"`

	// Custom fields, resolved per account.
	PricePaid   *float64 `db:"PricePaid" json:"PricePaid"`
	Seller      *string  `db:"Seller" json:"Seller"`
	BandCountry *string  `db:"BandCountry" json:"BandCountry"`
}

// FieldMap maps custom field names to their numeric ids for one account.
type FieldMap map[string]int

// FieldIDs holds the resolved ids of the custom fields the catalog tracks.
type FieldIDs struct {
	PricePaid   int
	Seller      int
	BandCountry int
}

// DefaultFieldIDs are used when a name cannot be resolved against the account.
var DefaultFieldIDs = FieldIDs{PricePaid: 4, Seller: 5, BandCountry: 6}

// FieldNames are the custom field names looked up in a FieldMap.
type FieldNames struct {
	PricePaid   string
	Seller      string
	BandCountry string
}

var DefaultFieldNames = FieldNames{
	PricePaid:   "PricePaid",
	Seller:      "Seller",
	BandCountry: "BandCountry",
}

// Resolve picks ids by name, falling back per field.
func (m FieldMap) Resolve(names FieldNames, fallback FieldIDs) FieldIDs {
	ids := fallback
	if id, ok := m[names.PricePaid]; ok {
		ids.PricePaid = id
	}
	if id, ok := m[names.Seller]; ok {
		ids.Seller = id
	}
	if id, ok := m[names.BandCountry]; ok {
		ids.BandCountry = id
	}
	return ids
}

// InstanceSet returns the instance ids present in items. Rows without an
// instance id (0) are left out.
func InstanceSet(items []CollectionItem) map[int64]struct{} {
	set := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.InstanceID == 0 {
			continue
		}
		set[item.InstanceID] = struct{}{}
	}
	return set
}
