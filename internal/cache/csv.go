package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"crate_ledger/internal/domain"
)

// csvFile is the plain-text fallback. Empty cells are nulls.
type csvFile struct {
	path string
}

func (f *csvFile) write(items []domain.CollectionItem) error {
	if f.path == "" {
		return errors.New("no fallback path configured")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(domain.Columns); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range items {
		if err := w.Write(encodeRecord(item)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write instance %d: %w", item.InstanceID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace fallback file: %w", err)
	}
	return nil
}

func (f *csvFile) read() ([]domain.CollectionItem, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []domain.CollectionItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if _, ok := index[domain.ColInstanceID]; !ok {
		return nil, fmt.Errorf("missing %s column", domain.ColInstanceID)
	}

	items := []domain.CollectionItem{}
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		item, err := decodeRecord(index, record)
		if err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func encodeRecord(item domain.CollectionItem) []string {
	values := map[string]string{
		domain.ColReleaseID:          strconv.FormatInt(item.ReleaseID, 10),
		domain.ColInstanceID:         strconv.FormatInt(item.InstanceID, 10),
		domain.ColFolderID:           strconv.Itoa(item.FolderID),
		domain.ColTitle:              item.Title,
		domain.ColYear:               strconv.Itoa(item.Year),
		domain.ColArtists:            deref(item.Artists),
		domain.ColLabels:             deref(item.Labels),
		domain.ColFormats:            deref(item.Formats),
		domain.ColFormatDescriptions: deref(item.FormatDescriptions),
		domain.ColGenres:             deref(item.Genres),
		domain.ColStyles:             deref(item.Styles),
		domain.ColCoverURL:           deref(item.CoverURL),
		domain.ColThumbURL:           deref(item.ThumbURL),
		domain.ColRating:             strconv.Itoa(item.Rating),
		domain.ColIsOriginal:         strconv.FormatBool(item.IsOriginal),
		domain.ColIsReissue:          strconv.FormatBool(item.IsReissue),
		domain.ColIsLimited:          strconv.FormatBool(item.IsLimited),
		domain.ColSeller:             deref(item.Seller),
		domain.ColBandCountry:        deref(item.BandCountry),
	}
	if item.Added != nil {
		values[domain.ColAdded] = item.Added.Format(time.RFC3339Nano)
	}
	if item.PricePaid != nil {
		values[domain.ColPricePaid] = strconv.FormatFloat(*item.PricePaid, 'f', -1, 64)
	}

	record := make([]string, len(domain.Columns))
	for i, col := range domain.Columns {
		record[i] = values[col]
	}
	return record
}

func decodeRecord(index map[string]int, record []string) (domain.CollectionItem, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var item domain.CollectionItem
	var err error

	if item.InstanceID, err = parseInt64(get(domain.ColInstanceID)); err != nil {
		return item, fmt.Errorf("%s: %w", domain.ColInstanceID, err)
	}
	if item.ReleaseID, err = parseInt64(get(domain.ColReleaseID)); err != nil {
		return item, fmt.Errorf("%s: %w", domain.ColReleaseID, err)
	}
	if item.FolderID, err = parseInt(get(domain.ColFolderID)); err != nil {
		return item, fmt.Errorf("%s: %w", domain.ColFolderID, err)
	}
	if item.Year, err = parseInt(get(domain.ColYear)); err != nil {
		return item, fmt.Errorf("%s: %w", domain.ColYear, err)
	}
	if item.Rating, err = parseInt(get(domain.ColRating)); err != nil {
		return item, fmt.Errorf("%s: %w", domain.ColRating, err)
	}

	item.Title = get(domain.ColTitle)
	item.Artists = optional(get(domain.ColArtists))
	item.Labels = optional(get(domain.ColLabels))
	item.Formats = optional(get(domain.ColFormats))
	item.FormatDescriptions = optional(get(domain.ColFormatDescriptions))
	item.Genres = optional(get(domain.ColGenres))
	item.Styles = optional(get(domain.ColStyles))
	item.CoverURL = optional(get(domain.ColCoverURL))
	item.ThumbURL = optional(get(domain.ColThumbURL))
	item.Seller = optional(get(domain.ColSeller))
	item.BandCountry = optional(get(domain.ColBandCountry))

	if v := get(domain.ColAdded); v != "" {
		item.Added = parseTime(v)
	}
	if v := get(domain.ColPricePaid); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return item, fmt.Errorf("%s: %w", domain.ColPricePaid, err)
		}
		item.PricePaid = &price
	}

	item.IsReissue = parseBool(get(domain.ColIsReissue), false)
	item.IsOriginal = parseBool(get(domain.ColIsOriginal), !item.IsReissue)
	item.IsLimited = parseBool(get(domain.ColIsLimited), false)

	return item, nil
}

func parseInt64(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
