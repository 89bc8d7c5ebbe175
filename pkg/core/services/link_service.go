package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wadjakorntonsri/trimrr/pkg/core/analytics"
	"github.com/wadjakorntonsri/trimrr/pkg/core/codegen"
	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const invalidateAttempts = 3

type LinkService struct {
	repo   ports.Repository
	codes  *codegen.Generator
	cache  ports.LinkCache  // Optional
	assets ports.AssetStore // Optional
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*LinkService)

func WithCache(cache ports.LinkCache) Option {
	return func(s *LinkService) { s.cache = cache }
}

func WithAssets(assets ports.AssetStore) Option {
	return func(s *LinkService) { s.assets = assets }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *LinkService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewLinkService(repo ports.Repository, codes *codegen.Generator, opts ...Option) *LinkService {
	if codes == nil {
		codes = codegen.New(0, 0)
	}
	s := &LinkService{
		repo:   repo,
		codes:  codes,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, stores the optional QR blob and reserves an
// identifier through a single atomic insert.
func (s *LinkService) Create(ctx context.Context, ownerID string, in domain.CreateLinkInput) (*domain.Link, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	title := strings.TrimSpace(in.Title)
	if err := domain.ValidateTitle(title); err != nil {
		return nil, err
	}
	dest := strings.TrimSpace(in.DestinationURL)
	if err := domain.ValidateDestinationURL(dest); err != nil {
		return nil, err
	}
	if in.CustomAlias != "" {
		if err := codegen.ValidateAlias(in.CustomAlias); err != nil {
			return nil, err
		}
	}

	qrRef, err := s.storeQR(ctx, in.QRImage)
	if err != nil {
		return nil, err
	}

	link := &domain.Link{
		OwnerID:        ownerID,
		Title:          title,
		DestinationURL: dest,
		QRAssetRef:     qrRef,
		CreatedAt:      s.now().UTC(),
	}

	if in.CustomAlias != "" {
		err = s.codes.ReserveAlias(ctx, in.CustomAlias, func(ctx context.Context, alias string) error {
			link.CustomAlias = alias
			return s.repo.Create(ctx, link)
		})
	} else {
		_, err = s.codes.ReserveCode(ctx, func(ctx context.Context, code string) error {
			link.ShortCode = code
			return s.repo.Create(ctx, link)
		})
	}
	if err != nil {
		s.dropAsset(qrRef)
		return nil, fmt.Errorf("links create: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link); err != nil {
			s.logger.Warn("cache write-through failed", slog.String("identifier", link.Identifier()), slog.Any("err", err))
		}
	}

	s.logger.Info("link created",
		slog.Int64("id", link.ID),
		slog.String("identifier", link.Identifier()),
		slog.String("owner_id", ownerID),
	)

	return link, nil
}

// Get returns one link owned by ownerID.
func (s *LinkService) Get(ctx context.Context, ownerID string, id int64) (*domain.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("links get: %w", err)
	}
	if link.OwnerID != ownerID {
		return nil, domain.ErrUnauthorized
	}
	return link, nil
}

// List returns the owner's links matching filter, newest first, with the
// click total across all of the owner's links.
func (s *LinkService) List(ctx context.Context, ownerID string, filter domain.LinkFilter) (*domain.LinkList, error) {
	filter.Title = strings.TrimSpace(filter.Title)

	links, err := s.repo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("links list: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}

	total, err := s.repo.CountClicksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("links list: count clicks: %w", err)
	}

	return &domain.LinkList{Links: links, TotalClicks: total}, nil
}

// Delete removes the link and its clicks. Ownership is checked by the store
// inside the same transaction as the delete. With a cache, the identifier is
// invalidated before the delete, so an unreachable cache aborts it, and again
// after the commit to catch a resolve that read the row in between.
func (s *LinkService) Delete(ctx context.Context, ownerID string, id int64) error {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("links delete: %w", err)
	}
	if link.OwnerID != ownerID {
		return domain.ErrUnauthorized
	}

	if err := s.invalidate(ctx, link.Identifier()); err != nil {
		return fmt.Errorf("links delete: %w", err)
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return fmt.Errorf("links delete: %w", err)
	}

	if err := s.invalidate(ctx, link.Identifier()); err != nil {
		s.logger.Error("link deleted but cache still holds it",
			slog.String("identifier", link.Identifier()), slog.Any("err", err))
		return fmt.Errorf("links delete: %w", err)
	}
	s.dropAsset(link.QRAssetRef)

	s.logger.Info("link deleted", slog.Int64("id", id), slog.String("owner_id", ownerID))
	return nil
}

// invalidate tries the cache up to invalidateAttempts times.
func (s *LinkService) invalidate(ctx context.Context, identifier string) error {
	if s.cache == nil {
		return nil
	}

	var err error
	for attempt := 0; attempt < invalidateAttempts; attempt++ {
		if err = s.cache.Invalidate(ctx, identifier); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("invalidate cache %q: %w", identifier, err)
}

// Stats aggregates the click log of one link.
func (s *LinkService) Stats(ctx context.Context, ownerID string, id int64) (*domain.LinkStats, error) {
	link, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ListClicks(ctx, link.ID)
	if err != nil {
		return nil, fmt.Errorf("links stats: %w", err)
	}

	stats := analytics.Summarize(link.ID, events)
	return &stats, nil
}

func (s *LinkService) storeQR(ctx context.Context, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if s.assets == nil {
		return "", domain.NewValidationError("qr", domain.ErrInvalidAsset)
	}

	ref, err := s.assets.Put(ctx, blob)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return "", err
		}
		return "", fmt.Errorf("links create: store qr: %w: %w", domain.ErrExternalLookup, err)
	}
	return ref, nil
}

// dropAsset is best effort; an orphaned file is harmless.
func (s *LinkService) dropAsset(ref string) {
	if ref == "" || s.assets == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.assets.Delete(ctx, ref); err != nil {
		s.logger.Warn("qr asset cleanup failed", slog.String("ref", ref), slog.Any("err", err))
	}
}
