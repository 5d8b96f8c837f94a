package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"crate_ledger/internal/domain"
	"crate_ledger/internal/source/discogs"
)

type Source interface {
	ID() string
	Name() string
	FetchPage(ctx context.Context, q discogs.PageQuery) (*discogs.Page, error)
	FetchFieldDefinitions(ctx context.Context) domain.FieldMap
	FetchInstanceFields(ctx context.Context, folderID int, releaseID, instanceID int64) []discogs.Note
	Pause(ctx context.Context, d time.Duration) error
}

type CacheStore interface {
	Load(ctx context.Context) ([]domain.CollectionItem, error)
	Save(ctx context.Context, items []domain.CollectionItem) error
}

type ItemMirror interface {
	UpsertBatch(ctx context.Context, items []domain.CollectionItem) error
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, item *domain.CollectionItem, runID string) error
	Close() error
}
