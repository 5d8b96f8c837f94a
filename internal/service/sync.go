package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crate_ledger/internal/config"
	"crate_ledger/internal/domain"
	"crate_ledger/internal/source/discogs"
)

const (
	sortAdded      = "added"
	sortDescending = "desc"
)

// Settings groups the configuration a sync run reads.
type Settings struct {
	FolderID int
	Sync     config.SyncConfig
	Fields   config.FieldsConfig
}

type SyncService struct {
	source    Source
	cache     CacheStore
	mirror    ItemMirror
	syncState SyncStateStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	settings  Settings
}

// NewSyncService wires a synchronizer. mirror, syncState, txManager and
// publisher are optional and may be nil.
func NewSyncService(
	source Source,
	cache CacheStore,
	mirror ItemMirror,
	syncState SyncStateStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	settings Settings,
) *SyncService {
	return &SyncService{
		source:    source,
		cache:     cache,
		mirror:    mirror,
		syncState: syncState,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		settings:  settings,
	}
}

// Sync fetches instances added since the last run, newest first, and stops at
// the first instance already in the cache. New rows are prepended to the
// cached snapshot and persisted. A failed listing request aborts the run
// without touching the cache.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncResult, error) {
	return s.run(ctx, false)
}

// Refresh pages through the whole folder, ignoring the cache, and replaces
// the snapshot with what the listing returns. It is the only way to pick up
// edits to instances that are already cached, such as a changed rating.
func (s *SyncService) Refresh(ctx context.Context) (*domain.SyncResult, error) {
	return s.run(ctx, true)
}

func (s *SyncService) run(ctx context.Context, full bool) (*domain.SyncResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)

	scan := pageScan{
		perPage:  s.settings.Sync.PageSize,
		maxPages: s.settings.Sync.MaxPages,
	}
	if full {
		scan = pageScan{perPage: s.settings.Sync.FullPageSize}
	}

	logger.Info("starting sync",
		"source_name", s.source.Name(),
		"folder_id", s.settings.FolderID,
		"full", full,
		"page_size", scan.perPage,
		"max_pages", scan.maxPages,
	)

	cached, err := s.cache.Load(ctx)
	if err != nil {
		logger.Warn("failed to load cache, starting from empty", "error", err)
		cached = nil
	}
	known := domain.InstanceSet(cached)
	logger.Debug("loaded cache", "rows", len(cached))
	if !full {
		scan.known = known
	}

	ids := s.resolveFieldIDs(ctx, logger)

	stats := domain.SyncStats{SourceID: s.source.ID()}

	fetched, err := s.scanPages(ctx, logger, scan, ids, &stats)
	if err != nil {
		return nil, fmt.Errorf("fetch collection: %w", err)
	}

	result := &domain.SyncResult{RunID: runID}
	if full {
		result.Items = Merge(fetched, nil)
		for _, item := range result.Items {
			if _, ok := known[item.InstanceID]; !ok {
				result.New = append(result.New, item)
			}
		}
	} else {
		result.Items = Merge(fetched, cached)
		result.New = fetched
	}
	stats.New = len(result.New)

	if full || len(result.New) > 0 {
		if err := s.cache.Save(ctx, result.Items); err != nil {
			return nil, fmt.Errorf("save cache: %w", err)
		}
	}
	if len(result.New) > 0 {
		s.publish(ctx, logger, runID, result.New, &stats)
	}

	var mirrorErr error
	if s.mirror != nil {
		mirrorErr = s.mirrorItems(ctx, fetched, len(result.New), &stats)
		if mirrorErr != nil {
			stats.Errors++
		}
	}

	stats.Duration = time.Since(startTime)
	result.Stats = stats

	logger.Info("sync completed",
		"full", full,
		"new", stats.New,
		"pages", stats.Pages,
		"examined", stats.Examined,
		"cached", len(result.Items),
		"stop_reason", stats.StopReason,
		"mirrored", stats.Mirrored,
		"published", stats.Published,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	if mirrorErr != nil {
		return result, fmt.Errorf("mirror items: %w", mirrorErr)
	}
	return result, nil
}

func (s *SyncService) resolveFieldIDs(ctx context.Context, logger *slog.Logger) domain.FieldIDs {
	names := domain.FieldNames{
		PricePaid:   s.settings.Fields.PricePaid,
		Seller:      s.settings.Fields.Seller,
		BandCountry: s.settings.Fields.BandCountry,
	}
	fallback := domain.FieldIDs{
		PricePaid:   s.settings.Fields.PricePaidFallback,
		Seller:      s.settings.Fields.SellerFallback,
		BandCountry: s.settings.Fields.BandCountryFallback,
	}

	fields := s.source.FetchFieldDefinitions(ctx)
	if len(fields) == 0 {
		logger.Warn("no custom field definitions, using fallback ids",
			"price_paid", fallback.PricePaid,
			"seller", fallback.Seller,
			"band_country", fallback.BandCountry,
		)
	}

	ids := fields.Resolve(names, fallback)
	logger.Debug("resolved custom fields",
		"price_paid", ids.PricePaid,
		"seller", ids.Seller,
		"band_country", ids.BandCountry,
	)
	return ids
}

// pageScan bounds one pass over the newest-first listing. A nil known set
// never stops the scan early; a zero maxPages reads until the listing ends.
type pageScan struct {
	known    map[int64]struct{}
	perPage  int
	maxPages int
}

// scanPages pages through the newest-first listing until it reaches a known
// instance, runs out of pages, or hits the page bound.
func (s *SyncService) scanPages(
	ctx context.Context,
	logger *slog.Logger,
	scan pageScan,
	ids domain.FieldIDs,
	stats *domain.SyncStats,
) ([]domain.CollectionItem, error) {
	var fresh []domain.CollectionItem
	seen := make(map[int64]struct{})

	for page := 1; scan.maxPages <= 0 || page <= scan.maxPages; page++ {
		if page > 1 {
			if err := s.source.Pause(ctx, s.settings.Sync.PageDelay); err != nil {
				return nil, err
			}
		}

		resp, err := s.source.FetchPage(ctx, discogs.PageQuery{
			FolderID:  s.settings.FolderID,
			Page:      page,
			PerPage:   scan.perPage,
			Sort:      sortAdded,
			SortOrder: sortDescending,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		stats.Pages++

		if len(resp.Releases) == 0 {
			stats.StopReason = domain.StopExhausted
			return fresh, nil
		}

		for _, raw := range resp.Releases {
			stats.Examined++

			// Without an instance id an entry can neither be matched against
			// the cache nor stored under its own key.
			if raw.InstanceID == 0 {
				logger.Warn("skipping listing entry without instance id", "release_id", raw.ID, "page", page)
				continue
			}
			if _, ok := scan.known[raw.InstanceID]; ok {
				logger.Debug("reached cached instance", "instance_id", raw.InstanceID, "page", page)
				stats.StopReason = domain.StopKnownInstance
				return fresh, nil
			}
			// The listing can shift between page requests when items are added
			// mid-run, repeating an instance already taken from a prior page.
			if _, ok := seen[raw.InstanceID]; ok {
				continue
			}
			seen[raw.InstanceID] = struct{}{}

			releaseID := raw.BasicInformation.ID
			if releaseID == 0 {
				releaseID = raw.ID
			}
			notes := s.source.FetchInstanceFields(ctx, s.settings.FolderID, releaseID, raw.InstanceID)
			item := discogs.Normalize(raw, notes, ids)
			fresh = append(fresh, item)

			logger.Debug("fetched instance",
				"instance_id", item.InstanceID,
				"release_id", item.ReleaseID,
				"title", item.Title,
			)
		}

		if resp.Pagination.Pages > 0 && page >= resp.Pagination.Pages {
			stats.StopReason = domain.StopExhausted
			return fresh, nil
		}
	}

	stats.StopReason = domain.StopMaxPages
	return fresh, nil
}

// Merge prepends fresh rows to cached ones, keeping the first row seen for
// each instance id. Rows without an instance id have no key and are all kept.
func Merge(fresh, cached []domain.CollectionItem) []domain.CollectionItem {
	merged := make([]domain.CollectionItem, 0, len(fresh)+len(cached))
	seen := make(map[int64]struct{}, len(fresh)+len(cached))

	for _, rows := range [][]domain.CollectionItem{fresh, cached} {
		for _, item := range rows {
			if item.InstanceID == 0 {
				merged = append(merged, item)
				continue
			}
			if _, ok := seen[item.InstanceID]; ok {
				continue
			}
			seen[item.InstanceID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

func (s *SyncService) publish(ctx context.Context, logger *slog.Logger, runID string, items []domain.CollectionItem, stats *domain.SyncStats) {
	if s.publisher == nil {
		return
	}
	for i := range items {
		if err := s.publisher.Publish(ctx, &items[i], runID); err != nil {
			logger.Warn("failed to publish item",
				"instance_id", items[i].InstanceID,
				"error", err,
			)
			stats.Errors++
			continue
		}
		stats.Published++
	}
}

// mirrorItems upserts items and records added new instances in the sync state.
func (s *SyncService) mirrorItems(ctx context.Context, items []domain.CollectionItem, added int, stats *domain.SyncStats) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if len(items) > 0 {
			if err := s.mirror.UpsertBatch(txCtx, items); err != nil {
				return fmt.Errorf("upsert items: %w", err)
			}
		}
		return s.updateSyncState(txCtx, items, added)
	})
	if err != nil {
		return err
	}
	stats.Mirrored = len(items)
	return nil
}

func (s *SyncService) updateSyncState(ctx context.Context, items []domain.CollectionItem, added int) error {
	state, err := s.syncState.Get(ctx, s.source.ID())
	if err != nil {
		return fmt.Errorf("get sync state: %w", err)
	}

	state.SourceID = s.source.ID()
	state.LastSyncedAt = time.Now()
	if len(items) > 0 {
		state.LastInstanceID = items[0].InstanceID
	}
	state.TotalSynced += int64(added)

	if err := s.syncState.Update(ctx, state); err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	return nil
}
