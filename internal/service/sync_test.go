package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"crate_ledger/internal/config"
	"crate_ledger/internal/domain"
	"crate_ledger/internal/service/mocks"
	"crate_ledger/internal/source/discogs"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source    *mocks.MockSource
	cache     *mocks.MockCacheStore
	mirror    *mocks.MockItemMirror
	syncState *mocks.MockSyncStateStore
	txManager *mocks.MockTransactionManager
	publisher *mocks.MockPublisher

	service  *SyncService
	settings Settings
	logger   *slog.Logger
	ctx      context.Context
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()

	s.source = mocks.NewMockSource(s.ctrl)
	s.cache = mocks.NewMockCacheStore(s.ctrl)
	s.mirror = mocks.NewMockItemMirror(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.settings = Settings{
		FolderID: 0,
		Sync: config.SyncConfig{
			PageSize:     2,
			MaxPages:     3,
			FullPageSize: 2,
			PageDelay:    200 * time.Millisecond,
		},
		Fields: config.FieldsConfig{
			PricePaid:           "PricePaid",
			Seller:              "Seller",
			BandCountry:         "BandCountry",
			PricePaidFallback:   4,
			SellerFallback:      5,
			BandCountryFallback: 6,
		},
	}

	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	s.source.EXPECT().ID().Return("discogs:digger").AnyTimes()
	s.source.EXPECT().Name().Return("Test Source").AnyTimes()

	s.service = NewSyncService(s.source, s.cache, nil, nil, nil, nil, s.logger, s.settings)
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func release(instanceID int64) discogs.Release {
	return discogs.Release{
		ID:         instanceID * 10,
		InstanceID: instanceID,
		DateAdded:  "2024-01-02T03:04:05Z",
		BasicInformation: discogs.BasicInformation{
			ID:     instanceID * 10,
			Title:  fmt.Sprintf("Release %d", instanceID),
			Year:   1990,
			Styles: []string{"Dub"},
		},
	}
}

func cachedItem(instanceID int64) domain.CollectionItem {
	return domain.CollectionItem{
		ReleaseID:  instanceID * 10,
		InstanceID: instanceID,
		Title:      fmt.Sprintf("Release %d", instanceID),
		IsOriginal: true,
	}
}

func pageOf(pages int, instanceIDs ...int64) *discogs.Page {
	p := &discogs.Page{Pagination: discogs.Pagination{Pages: pages}}
	for _, id := range instanceIDs {
		p.Releases = append(p.Releases, release(id))
	}
	return p
}

func (s *SyncServiceTestSuite) query(page int) discogs.PageQuery {
	return discogs.PageQuery{
		FolderID:  s.settings.FolderID,
		Page:      page,
		PerPage:   s.settings.Sync.PageSize,
		Sort:      "added",
		SortOrder: "desc",
	}
}

func (s *SyncServiceTestSuite) fullQuery(page int) discogs.PageQuery {
	q := s.query(page)
	q.PerPage = s.settings.Sync.FullPageSize
	return q
}

func (s *SyncServiceTestSuite) expectPages(pages ...*discogs.Page) {
	for i, p := range pages {
		s.source.EXPECT().FetchPage(gomock.Any(), s.query(i+1)).Return(p, nil)
	}
	if len(pages) > 1 {
		s.source.EXPECT().Pause(gomock.Any(), s.settings.Sync.PageDelay).Return(nil).Times(len(pages) - 1)
	}
}

func (s *SyncServiceTestSuite) expectInstanceFields(instanceIDs ...int64) {
	for _, id := range instanceIDs {
		s.source.EXPECT().FetchInstanceFields(gomock.Any(), 0, id*10, id).Return(nil)
	}
}

func (s *SyncServiceTestSuite) captureSave(saved *[]domain.CollectionItem) {
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []domain.CollectionItem) error {
			*saved = items
			return nil
		},
	)
}

func instanceIDs(items []domain.CollectionItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.InstanceID
	}
	return ids
}

func (s *SyncServiceTestSuite) TestSync_EmptyCacheFetchesUpToMaxPages() {
	s.cache.EXPECT().Load(gomock.Any()).Return([]domain.CollectionItem{}, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(10, 9, 8), pageOf(10, 7, 6), pageOf(10, 5, 4))
	s.expectInstanceFields(9, 8, 7, 6, 5, 4)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{9, 8, 7, 6, 5, 4}, instanceIDs(result.New))
	s.Equal([]int64{9, 8, 7, 6, 5, 4}, instanceIDs(result.Items))
	s.Equal(result.Items, saved)
	s.Equal(3, result.Stats.Pages)
	s.Equal(6, result.Stats.New)
	s.Equal(domain.StopMaxPages, result.Stats.StopReason)
	s.NotEmpty(result.RunID)
}

func (s *SyncServiceTestSuite) TestSync_StopsAtFirstKnownInstance() {
	cached := []domain.CollectionItem{cachedItem(3), cachedItem(2), cachedItem(1)}
	s.cache.EXPECT().Load(gomock.Any()).Return(cached, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(5, 6, 5), pageOf(5, 4, 3))
	s.expectInstanceFields(6, 5, 4)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{6, 5, 4}, instanceIDs(result.New))
	s.Equal([]int64{6, 5, 4, 3, 2, 1}, instanceIDs(saved))
	s.Equal(cached, saved[3:])
	s.Equal(domain.StopKnownInstance, result.Stats.StopReason)
	s.Equal(2, result.Stats.Pages)
	s.Equal(4, result.Stats.Examined)
}

func (s *SyncServiceTestSuite) TestSync_NoNewItemsLeavesCacheUntouched() {
	cached := []domain.CollectionItem{cachedItem(2), cachedItem(1)}
	s.cache.EXPECT().Load(gomock.Any()).Return(cached, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 2, 1))

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Empty(result.New)
	s.Equal(cached, result.Items)
	s.Equal(domain.StopKnownInstance, result.Stats.StopReason)
}

func (s *SyncServiceTestSuite) TestSync_ExhaustedListing() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 2, 1))
	s.expectInstanceFields(2, 1)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{2, 1}, instanceIDs(saved))
	s.Equal(domain.StopExhausted, result.Stats.StopReason)
	s.Equal(1, result.Stats.Pages)
}

func (s *SyncServiceTestSuite) TestSync_EmptyPageStops() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(0))

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Empty(result.New)
	s.Empty(result.Items)
	s.Equal(domain.StopExhausted, result.Stats.StopReason)
}

func (s *SyncServiceTestSuite) TestSync_SkipsInstanceRepeatedAcrossPages() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(2, 5, 4), pageOf(2, 4, 3))
	s.expectInstanceFields(5, 4, 3)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{5, 4, 3}, instanceIDs(result.New))
	s.Equal([]int64{5, 4, 3}, instanceIDs(saved))
}

func (s *SyncServiceTestSuite) TestSync_CacheLoadFailureStartsEmpty() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, errors.New("corrupt"))
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 1))
	s.expectInstanceFields(1)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{1}, instanceIDs(saved))
	s.Len(result.New, 1)
}

func (s *SyncServiceTestSuite) TestSync_ListingErrorIsFatal() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.source.EXPECT().FetchPage(gomock.Any(), s.query(1)).Return(pageOf(5, 9, 8), nil)
	s.source.EXPECT().Pause(gomock.Any(), s.settings.Sync.PageDelay).Return(nil)
	s.source.EXPECT().FetchPage(gomock.Any(), s.query(2)).Return(nil, &discogs.StatusError{StatusCode: 500})
	s.expectInstanceFields(9, 8)

	result, err := s.service.Sync(s.ctx)

	s.Require().Error(err)
	s.Nil(result)
	s.Contains(err.Error(), "fetch page 2")

	var statusErr *discogs.StatusError
	s.True(errors.As(err, &statusErr))
}

func (s *SyncServiceTestSuite) TestSync_MissingCustomFieldsStillAddsRecord() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 7))
	s.source.EXPECT().FetchInstanceFields(gomock.Any(), 0, int64(70), int64(7)).Return(nil)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Require().Len(result.New, 1)
	item := result.New[0]
	s.Equal(int64(7), item.InstanceID)
	s.Nil(item.PricePaid)
	s.Nil(item.Seller)
	s.Nil(item.BandCountry)
}

func (s *SyncServiceTestSuite) TestSync_ResolvesCustomFieldsByName() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{"PricePaid": 21, "Seller": 22})
	s.expectPages(pageOf(1, 7))
	s.source.EXPECT().FetchInstanceFields(gomock.Any(), 0, int64(70), int64(7)).Return([]discogs.Note{
		{FieldID: 21, Value: "18.00"},
		{FieldID: 22, Value: "Honest Jon's"},
		{FieldID: 6, Value: "JAM"},
		{FieldID: 4, Value: "999"},
	})
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	item := result.New[0]
	s.Require().NotNil(item.PricePaid)
	s.InDelta(18.0, *item.PricePaid, 0.001)
	s.Equal("Honest Jon's", *item.Seller)
	s.Equal("JAM", *item.BandCountry)
}

func (s *SyncServiceTestSuite) TestSync_SaveFailure() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 1))
	s.expectInstanceFields(1)
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	result, err := s.service.Sync(s.ctx)

	s.Require().Error(err)
	s.Nil(result)
	s.Contains(err.Error(), "save cache")
}

func (s *SyncServiceTestSuite) TestSync_MirrorsAndPublishes() {
	service := NewSyncService(s.source, s.cache, s.mirror, s.syncState, s.txManager, s.publisher, s.logger, s.settings)

	s.cache.EXPECT().Load(gomock.Any()).Return([]domain.CollectionItem{cachedItem(1)}, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 3, 2, 1))
	s.expectInstanceFields(3, 2)
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.mirror.EXPECT().UpsertBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []domain.CollectionItem) error {
			s.Equal([]int64{3, 2}, instanceIDs(items))
			return nil
		},
	)
	s.syncState.EXPECT().Get(gomock.Any(), "discogs:digger").Return(&domain.SyncState{SourceID: "discogs:digger", TotalSynced: 1}, nil)
	s.syncState.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal(int64(3), state.LastInstanceID)
			s.Equal(int64(3), state.TotalSynced)
			s.False(state.LastSyncedAt.IsZero())
			return nil
		},
	)

	result, err := service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal(2, result.Stats.Published)
	s.Equal(2, result.Stats.Mirrored)
	s.Equal(0, result.Stats.Errors)
}

func (s *SyncServiceTestSuite) TestSync_PublishFailureIsCounted() {
	service := NewSyncService(s.source, s.cache, nil, nil, nil, s.publisher, s.logger, s.settings)

	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 2, 1))
	s.expectInstanceFields(2, 1)
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal(1, result.Stats.Published)
	s.Equal(1, result.Stats.Errors)
}

func (s *SyncServiceTestSuite) TestSync_MirrorFailureKeepsResult() {
	service := NewSyncService(s.source, s.cache, s.mirror, s.syncState, s.txManager, nil, s.logger, s.settings)

	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.expectPages(pageOf(1, 1))
	s.expectInstanceFields(1)
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.mirror.EXPECT().UpsertBatch(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	result, err := service.Sync(s.ctx)

	s.Require().Error(err)
	s.Contains(err.Error(), "mirror items")
	s.Require().NotNil(result)
	s.Len(result.New, 1)
	s.Equal(1, result.Stats.Errors)
	s.Equal(0, result.Stats.Mirrored)
}

func (s *SyncServiceTestSuite) TestSync_PauseCancelledAbortsRun() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.source.EXPECT().FetchPage(gomock.Any(), s.query(1)).Return(pageOf(5, 2), nil)
	s.expectInstanceFields(2)
	s.source.EXPECT().Pause(gomock.Any(), s.settings.Sync.PageDelay).Return(context.Canceled)

	result, err := s.service.Sync(s.ctx)

	s.Require().Error(err)
	s.Nil(result)
	s.ErrorIs(err, context.Canceled)
}

func (s *SyncServiceTestSuite) TestSync_EntryWithoutInstanceIDDoesNotStopRun() {
	cached := []domain.CollectionItem{cachedItem(4), {ReleaseID: 70, Title: "Imported without id"}}
	s.cache.EXPECT().Load(gomock.Any()).Return(cached, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})

	orphan := release(0)
	orphan.ID = 77
	page := pageOf(3, 5, 4)
	page.Releases = append([]discogs.Release{orphan}, page.Releases...)
	s.expectPages(page)
	s.expectInstanceFields(5)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Sync(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{5}, instanceIDs(result.New))
	s.Equal([]int64{5, 4, 0}, instanceIDs(saved))
	s.Equal(3, result.Stats.Examined)
	s.Equal(domain.StopKnownInstance, result.Stats.StopReason)
}

func (s *SyncServiceTestSuite) TestRefresh_ReplacesStaleCachedRows() {
	stale := cachedItem(1)
	stale.Rating = 2
	cached := []domain.CollectionItem{cachedItem(2), stale, cachedItem(9)}
	s.cache.EXPECT().Load(gomock.Any()).Return(cached, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})

	rerated := release(1)
	rerated.Rating = 5
	s.source.EXPECT().FetchPage(gomock.Any(), s.fullQuery(1)).Return(pageOf(2, 3, 2), nil)
	s.source.EXPECT().Pause(gomock.Any(), s.settings.Sync.PageDelay).Return(nil)
	s.source.EXPECT().FetchPage(gomock.Any(), s.fullQuery(2)).Return(&discogs.Page{
		Pagination: discogs.Pagination{Pages: 2},
		Releases:   []discogs.Release{rerated},
	}, nil)
	s.expectInstanceFields(3, 2, 1)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Refresh(s.ctx)

	s.Require().NoError(err)
	s.Equal([]int64{3, 2, 1}, instanceIDs(saved))
	s.Equal(result.Items, saved)
	s.Equal(5, saved[2].Rating)
	s.Equal([]int64{3}, instanceIDs(result.New))
	s.Equal(2, result.Stats.Pages)
	s.Equal(domain.StopExhausted, result.Stats.StopReason)
}

func (s *SyncServiceTestSuite) TestRefresh_IgnoresPageBound() {
	s.cache.EXPECT().Load(gomock.Any()).Return(nil, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})

	var pages []*discogs.Page
	var ids []int64
	for p := 0; p < s.settings.Sync.MaxPages+1; p++ {
		a, b := int64(100-2*p), int64(99-2*p)
		pages = append(pages, pageOf(s.settings.Sync.MaxPages+1, a, b))
		ids = append(ids, a, b)
	}
	for i, p := range pages {
		s.source.EXPECT().FetchPage(gomock.Any(), s.fullQuery(i+1)).Return(p, nil)
	}
	s.source.EXPECT().Pause(gomock.Any(), s.settings.Sync.PageDelay).Return(nil).Times(len(pages) - 1)
	s.expectInstanceFields(ids...)

	var saved []domain.CollectionItem
	s.captureSave(&saved)

	result, err := s.service.Refresh(s.ctx)

	s.Require().NoError(err)
	s.Equal(ids, instanceIDs(saved))
	s.Equal(len(pages), result.Stats.Pages)
}

func (s *SyncServiceTestSuite) TestRefresh_EmptyFolderClearsCache() {
	s.cache.EXPECT().Load(gomock.Any()).Return([]domain.CollectionItem{cachedItem(1)}, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.source.EXPECT().FetchPage(gomock.Any(), s.fullQuery(1)).Return(pageOf(0), nil)
	s.cache.EXPECT().Save(gomock.Any(), []domain.CollectionItem{}).Return(nil)

	result, err := s.service.Refresh(s.ctx)

	s.Require().NoError(err)
	s.Empty(result.Items)
	s.Empty(result.New)
}

func (s *SyncServiceTestSuite) TestRefresh_MirrorsEveryRowAndCountsOnlyNew() {
	service := NewSyncService(s.source, s.cache, s.mirror, s.syncState, s.txManager, nil, s.logger, s.settings)

	s.cache.EXPECT().Load(gomock.Any()).Return([]domain.CollectionItem{cachedItem(1)}, nil)
	s.source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{})
	s.source.EXPECT().FetchPage(gomock.Any(), s.fullQuery(1)).Return(pageOf(1, 2, 1), nil)
	s.expectInstanceFields(2, 1)
	s.cache.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.mirror.EXPECT().UpsertBatch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []domain.CollectionItem) error {
			s.Equal([]int64{2, 1}, instanceIDs(items))
			return nil
		},
	)
	s.syncState.EXPECT().Get(gomock.Any(), "discogs:digger").Return(&domain.SyncState{SourceID: "discogs:digger", TotalSynced: 1}, nil)
	s.syncState.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal(int64(2), state.LastInstanceID)
			s.Equal(int64(2), state.TotalSynced)
			return nil
		},
	)

	result, err := service.Refresh(s.ctx)

	s.Require().NoError(err)
	s.Equal(2, result.Stats.Mirrored)
	s.Equal(1, result.Stats.New)
}

func TestSync_StopsExactlyAtCachedPrefix(t *testing.T) {
	// For every cut point, a run adds exactly the listing prefix before the
	// first cached instance, and a second run over the result adds nothing.
	remote := []int64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	const perPage = 2
	totalPages := len(remote) / perPage
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for cut := 0; cut <= len(remote); cut++ {
		t.Run(fmt.Sprintf("cut_%d", cut), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			source := mocks.NewMockSource(ctrl)
			store := mocks.NewMockCacheStore(ctrl)

			source.EXPECT().ID().Return("discogs:digger").AnyTimes()
			source.EXPECT().Name().Return("Test Source").AnyTimes()
			source.EXPECT().FetchFieldDefinitions(gomock.Any()).Return(domain.FieldMap{}).AnyTimes()
			source.EXPECT().Pause(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
			source.EXPECT().FetchInstanceFields(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
			source.EXPECT().FetchPage(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, q discogs.PageQuery) (*discogs.Page, error) {
					start := (q.Page - 1) * q.PerPage
					if start >= len(remote) {
						return pageOf(totalPages), nil
					}
					end := min(start+q.PerPage, len(remote))
					return pageOf(totalPages, remote[start:end]...), nil
				},
			).AnyTimes()

			var cached []domain.CollectionItem
			for _, id := range remote[cut:] {
				cached = append(cached, cachedItem(id))
			}
			store.EXPECT().Load(gomock.Any()).Return(cached, nil)
			if cut > 0 {
				store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			}

			svc := NewSyncService(source, store, nil, nil, nil, nil, logger, Settings{
				Sync: config.SyncConfig{PageSize: perPage, MaxPages: 50},
			})

			result, err := svc.Sync(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, remote[:cut], instanceIDs(result.New))
			assert.Equal(t, remote, instanceIDs(result.Items))

			if cut == len(remote) {
				assert.Equal(t, domain.StopExhausted, result.Stats.StopReason)
				assert.Equal(t, totalPages, result.Stats.Pages)
			} else {
				assert.Equal(t, domain.StopKnownInstance, result.Stats.StopReason)
				assert.Equal(t, cut/perPage+1, result.Stats.Pages)
			}

			store.EXPECT().Load(gomock.Any()).Return(result.Items, nil)

			again, err := svc.Sync(context.Background())
			assert.NoError(t, err)
			assert.Empty(t, again.New)
			assert.Equal(t, remote, instanceIDs(again.Items))
			assert.Equal(t, 1, again.Stats.Pages)
		})
	}
}

func TestMerge_FreshRowsWinAndUnkeyedRowsSurvive(t *testing.T) {
	fresh := []domain.CollectionItem{cachedItem(3), cachedItem(2)}
	fresh[1].Rating = 5
	cached := []domain.CollectionItem{
		cachedItem(2),
		{ReleaseID: 70, Title: "Imported A"},
		cachedItem(1),
		{ReleaseID: 80, Title: "Imported B"},
	}

	merged := Merge(fresh, cached)

	assert.Equal(t, []int64{3, 2, 0, 1, 0}, instanceIDs(merged))
	assert.Equal(t, 5, merged[1].Rating)
	assert.Equal(t, int64(80), merged[4].ReleaseID)
}
