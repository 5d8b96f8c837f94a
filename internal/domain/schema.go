package domain

// Column names of the persisted collection table. Writers and readers of the
// cache share this list so they never drift apart.
const (
	ColReleaseID          = "release_id"
	ColInstanceID         = "instance_id"
	ColFolderID           = "folder_id"
	ColTitle              = "title"
	ColYear               = "year"
	ColArtists            = "artists"
	ColLabels             = "labels"
	ColFormats            = "formats"
	ColFormatDescriptions = "format_descriptions"
	ColGenres             = "genres"
	ColStyles             = "styles"
	ColCoverURL           = "cover_url"
	ColThumbURL           = "thumb_url"
	ColAdded              = "added"
	ColRating             = "rating"
	ColIsOriginal         = "is_original"
	ColIsReissue          = "is_reissue"
	ColIsLimited          = "is_limited"
	ColPricePaid          = "PricePaid"
	ColSeller             = "Seller"
	ColBandCountry        = "BandCountry"
)

// Columns is the ordered cache schema.
var Columns = []string{
	ColReleaseID,
	ColInstanceID,
	ColFolderID,
	ColTitle,
	ColYear,
	ColArtists,
	ColLabels,
	ColFormats,
	ColFormatDescriptions,
	ColGenres,
	ColStyles,
	ColCoverURL,
	ColThumbURL,
	ColAdded,
	ColRating,
	ColIsOriginal,
	ColIsReissue,
	ColIsLimited,
	ColPricePaid,
	ColSeller,
	ColBandCountry,
}

// ListSeparator joins flattened list fields.
const ListSeparator = ", "
