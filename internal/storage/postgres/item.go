package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"crate_ledger/internal/domain"
)

type ItemStore struct {
	db    *sqlx.DB
	terms *TermStore
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db, terms: NewTermStore(db)}
}

const upsertItemQuery = `
	INSERT INTO collection_items (
		instance_id, release_id, folder_id, title, year, artists, labels,
		formats, format_descriptions, genres, styles, cover_url, thumb_url,
		added, rating, is_original, is_reissue, is_limited,
		price_paid, seller, band_country
	) VALUES (
		:instance_id, :release_id, :folder_id, :title, :year, :artists, :labels,
		:formats, :format_descriptions, :genres, :styles, :cover_url, :thumb_url,
		:added, :rating, :is_original, :is_reissue, :is_limited,
		:PricePaid, :Seller, :BandCountry
	)
	ON CONFLICT (instance_id) DO UPDATE SET
		release_id = EXCLUDED.release_id,
		folder_id = EXCLUDED.folder_id,
		title = EXCLUDED.title,
		year = EXCLUDED.year,
		artists = EXCLUDED.artists,
		labels = EXCLUDED.labels,
		formats = EXCLUDED.formats,
		format_descriptions = EXCLUDED.format_descriptions,
		genres = EXCLUDED.genres,
		styles = EXCLUDED.styles,
		cover_url = EXCLUDED.cover_url,
		thumb_url = EXCLUDED.thumb_url,
		added = EXCLUDED.added,
		rating = EXCLUDED.rating,
		is_original = EXCLUDED.is_original,
		is_reissue = EXCLUDED.is_reissue,
		is_limited = EXCLUDED.is_limited,
		price_paid = EXCLUDED.price_paid,
		seller = EXCLUDED.seller,
		band_country = EXCLUDED.band_country,
		updated_at = NOW()`

// UpsertBatch writes items keyed by instance id and refreshes their genre and
// style links. It joins the transaction carried by ctx, if any.
func (s *ItemStore) UpsertBatch(ctx context.Context, items []domain.CollectionItem) error {
	exec := GetExecutor(ctx, s.db)

	for i := range items {
		item := &items[i]
		if _, err := sqlx.NamedExecContext(ctx, exec, upsertItemQuery, item); err != nil {
			return fmt.Errorf("upsert instance %d: %w", item.InstanceID, err)
		}

		terms := make([]Term, 0)
		for _, g := range domain.SplitList(item.Genres) {
			terms = append(terms, Term{Kind: TermGenre, Name: g})
		}
		for _, st := range domain.SplitList(item.Styles) {
			terms = append(terms, Term{Kind: TermStyle, Name: st})
		}
		if err := s.terms.LinkToInstance(ctx, item.InstanceID, terms); err != nil {
			return fmt.Errorf("link terms for instance %d: %w", item.InstanceID, err)
		}
	}
	return nil
}

// Count returns the number of mirrored instances.
func (s *ItemStore) Count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &n, "SELECT COUNT(*) FROM collection_items")
	return n, err
}
