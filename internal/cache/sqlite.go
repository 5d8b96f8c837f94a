package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"crate_ledger/internal/domain"
)

const (
	sqliteDriver = "sqlite"
	sqliteTable  = "collection_items"
)

func init() {
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

var sqliteTypes = map[string]string{
	domain.ColReleaseID:          "INTEGER NOT NULL",
	domain.ColInstanceID:         "INTEGER NOT NULL PRIMARY KEY",
	domain.ColFolderID:           "INTEGER NOT NULL DEFAULT 0",
	domain.ColTitle:              "TEXT NOT NULL DEFAULT ''",
	domain.ColYear:               "INTEGER NOT NULL DEFAULT 0",
	domain.ColArtists:            "TEXT",
	domain.ColLabels:             "TEXT",
	domain.ColFormats:            "TEXT",
	domain.ColFormatDescriptions: "TEXT",
	domain.ColGenres:             "TEXT",
	domain.ColStyles:             "TEXT",
	domain.ColCoverURL:           "TEXT",
	domain.ColThumbURL:           "TEXT",
	domain.ColAdded:              "TEXT",
	domain.ColRating:             "INTEGER NOT NULL DEFAULT 0",
	domain.ColIsOriginal:         "INTEGER NOT NULL DEFAULT 1",
	domain.ColIsReissue:          "INTEGER NOT NULL DEFAULT 0",
	domain.ColIsLimited:          "INTEGER NOT NULL DEFAULT 0",
	domain.ColPricePaid:          "REAL",
	domain.ColSeller:             "TEXT",
	domain.ColBandCountry:        "TEXT",
}

// sqliteRow mirrors domain.CollectionItem with SQLite-friendly nullable types.
type sqliteRow struct {
	Position           int64           `db:"position"`
	ReleaseID          int64           `db:"release_id"`
	InstanceID         int64           `db:"instance_id"`
	FolderID           int             `db:"folder_id"`
	Title              string          `db:"title"`
	Year               int             `db:"year"`
	Artists            sql.NullString  `db:"artists"`
	Labels             sql.NullString  `db:"labels"`
	Formats            sql.NullString  `db:"formats"`
	FormatDescriptions sql.NullString  `db:"format_descriptions"`
	Genres             sql.NullString  `db:"genres"`
	Styles             sql.NullString  `db:"styles"`
	CoverURL           sql.NullString  `db:"cover_url"`
	ThumbURL           sql.NullString  `db:"thumb_url"`
	Added              sql.NullString  `db:"added"`
	Rating             int             `db:"rating"`
	IsOriginal         bool            `db:"is_original"`
	IsReissue          bool            `db:"is_reissue"`
	IsLimited          bool            `db:"is_limited"`
	PricePaid          sql.NullFloat64 `db:"PricePaid"`
	Seller             sql.NullString  `db:"Seller"`
	BandCountry        sql.NullString  `db:"BandCountry"`
}

type sqliteFile struct {
	path string
}

func (f *sqliteFile) open() (*sqlx.DB, error) {
	db, err := sqlx.Open(sqliteDriver, f.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}
	return db, nil
}

func (f *sqliteFile) read(ctx context.Context) ([]domain.CollectionItem, error) {
	db, err := f.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT position, %s FROM %s ORDER BY position",
		strings.Join(domain.Columns, ", "), sqliteTable)

	var rows []sqliteRow
	if err := db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}

	items := make([]domain.CollectionItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

func (f *sqliteFile) write(ctx context.Context, items []domain.CollectionItem) error {
	db, err := f.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqliteTable); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertSQL())
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, rowFromItem(int64(i), item)); err != nil {
			return fmt.Errorf("insert instance %d: %w", item.InstanceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func createTableSQL() string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(sqliteTable)
	sb.WriteString(" (position INTEGER NOT NULL")
	for _, col := range domain.Columns {
		sb.WriteString(", ")
		sb.WriteString(col)
		sb.WriteString(" ")
		sb.WriteString(sqliteTypes[col])
	}
	sb.WriteString(")")
	return sb.String()
}

func insertSQL() string {
	names := make([]string, 0, len(domain.Columns)+1)
	params := make([]string, 0, len(domain.Columns)+1)
	names = append(names, "position")
	params = append(params, ":position")
	for _, col := range domain.Columns {
		names = append(names, col)
		params = append(params, ":"+col)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sqliteTable, strings.Join(names, ", "), strings.Join(params, ", "))
}

func rowFromItem(position int64, item domain.CollectionItem) sqliteRow {
	row := sqliteRow{
		Position:           position,
		ReleaseID:          item.ReleaseID,
		InstanceID:         item.InstanceID,
		FolderID:           item.FolderID,
		Title:              item.Title,
		Year:               item.Year,
		Artists:            nullString(item.Artists),
		Labels:             nullString(item.Labels),
		Formats:            nullString(item.Formats),
		FormatDescriptions: nullString(item.FormatDescriptions),
		Genres:             nullString(item.Genres),
		Styles:             nullString(item.Styles),
		CoverURL:           nullString(item.CoverURL),
		ThumbURL:           nullString(item.ThumbURL),
		Rating:             item.Rating,
		IsOriginal:         item.IsOriginal,
		IsReissue:          item.IsReissue,
		IsLimited:          item.IsLimited,
		Seller:             nullString(item.Seller),
		BandCountry:        nullString(item.BandCountry),
	}
	if item.Added != nil {
		row.Added = sql.NullString{String: item.Added.Format(time.RFC3339Nano), Valid: true}
	}
	if item.PricePaid != nil {
		row.PricePaid = sql.NullFloat64{Float64: *item.PricePaid, Valid: true}
	}
	return row
}

func (r sqliteRow) item() domain.CollectionItem {
	item := domain.CollectionItem{
		ReleaseID:          r.ReleaseID,
		InstanceID:         r.InstanceID,
		FolderID:           r.FolderID,
		Title:              r.Title,
		Year:               r.Year,
		Artists:            stringPtr(r.Artists),
		Labels:             stringPtr(r.Labels),
		Formats:            stringPtr(r.Formats),
		FormatDescriptions: stringPtr(r.FormatDescriptions),
		Genres:             stringPtr(r.Genres),
		Styles:             stringPtr(r.Styles),
		CoverURL:           stringPtr(r.CoverURL),
		ThumbURL:           stringPtr(r.ThumbURL),
		Rating:             r.Rating,
		IsOriginal:         r.IsOriginal,
		IsReissue:          r.IsReissue,
		IsLimited:          r.IsLimited,
		Seller:             stringPtr(r.Seller),
		BandCountry:        stringPtr(r.BandCountry),
	}
	if r.Added.Valid {
		item.Added = parseTime(r.Added.String)
	}
	if r.PricePaid.Valid {
		v := r.PricePaid.Float64
		item.PricePaid = &v
	}
	return item
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func parseTime(value string) *time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return &t
}
