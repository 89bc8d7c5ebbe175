package ports

import (
	"context"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

// LinkRepository defines storage operations for links.
// Uniqueness of identifiers is enforced by the storage layer itself.
type LinkRepository interface {
	Create(ctx context.Context, link *domain.Link) error // ErrDuplicateKey on collision
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Link, error)
	GetByID(ctx context.Context, id int64) (*domain.Link, error)
	ListByOwner(ctx context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, error)
	Delete(ctx context.Context, linkID int64, ownerID string) error // Cascades to clicks
	Dump(ctx context.Context) ([]domain.Link, error)                 // For migration
} // LinkRepository ends here

// ClickRepository persists the click log
type ClickRepository interface {
	RecordClick(ctx context.Context, click *domain.ClickEvent) error
	ListClicks(ctx context.Context, linkID int64) ([]domain.ClickEvent, error)
	CountClicksByOwner(ctx context.Context, ownerID string) (int, error)
}

// Repository is what a storage backend provides
type Repository interface {
	LinkRepository
	ClickRepository
	Close() error
}

// LinkCache is an optional read-through cache in front of GetByIdentifier.
// Invalidate leaves a short-lived tombstone that Fill never overwrites, so a
// resolve that read the row before a delete cannot put it back.
type LinkCache interface {
	Get(ctx context.Context, identifier string) (*domain.Link, error) // ErrNotFound on miss or tombstone
	Set(ctx context.Context, link *domain.Link) error                 // Unconditional, used on create
	Fill(ctx context.Context, link *domain.Link) error                // Only when the key is absent
	Invalidate(ctx context.Context, identifier string) error
}

// LinkService defines the owner-facing business operations
type LinkService interface {
	Create(ctx context.Context, ownerID string, in domain.CreateLinkInput) (*domain.Link, error)
	Get(ctx context.Context, ownerID string, id int64) (*domain.Link, error)
	List(ctx context.Context, ownerID string, filter domain.LinkFilter) (*domain.LinkList, error)
	Delete(ctx context.Context, ownerID string, id int64) error
	Stats(ctx context.Context, ownerID string, id int64) (*domain.LinkStats, error)
}

// Resolver is the redirect read path
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*domain.Link, error)
	ResolveAndTrack(ctx context.Context, identifier string, req domain.RequestContext) (string, error)
}

// ClickRecorder derives click metadata and persists the event
type ClickRecorder interface {
	Record(ctx context.Context, linkID int64, req domain.RequestContext) error
}

// ClickSink consumes click jobs off the redirect path: the recorder itself,
// or a broker publisher that forwards to a separate worker.
type ClickSink interface {
	Handle(ctx context.Context, job domain.ClickJob) error
}

// ClickDispatcher hands a click job off without blocking and without
// reporting failure to the caller.
type ClickDispatcher interface {
	Dispatch(job domain.ClickJob)
}

// GeoLocator maps a client IP to a location
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (domain.Location, error)
}

// AssetStore keeps binary blobs (QR images) and hands back a public URL
type AssetStore interface {
	Put(ctx context.Context, blob []byte) (string, error)
	Delete(ctx context.Context, ref string) error
}
