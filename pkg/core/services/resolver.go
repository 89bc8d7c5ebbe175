package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wadjakorntonsri/trimrr/pkg/core/codegen"
	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

// Resolver is the redirect read path: cache, then store, then a detached
// click job.
type Resolver struct {
	repo       ports.LinkRepository
	cache      ports.LinkCache       // Optional
	dispatcher ports.ClickDispatcher // Optional
	logger     *slog.Logger
	now        func() time.Time
}

func NewResolver(repo ports.LinkRepository, cache ports.LinkCache, dispatcher ports.ClickDispatcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		repo:       repo,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Resolve finds the link an identifier points to. Cache errors fall through
// to the store.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*domain.Link, error) {
	if !codegen.IsWellFormed(identifier) {
		return nil, domain.ErrNotFound
	}

	if r.cache != nil {
		link, err := r.cache.Get(ctx, identifier)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("cache read failed", slog.String("identifier", identifier), slog.Any("err", err))
		}
	}

	link, err := r.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", identifier, err)
	}

	if r.cache != nil {
		if err := r.cache.Fill(ctx, link); err != nil {
			r.logger.Warn("cache fill failed", slog.String("identifier", identifier), slog.Any("err", err))
		}
	}

	return link, nil
}

// ResolveAndTrack resolves and hands a click job to the dispatcher. It never
// waits on click persistence.
func (r *Resolver) ResolveAndTrack(ctx context.Context, identifier string, req domain.RequestContext) (string, error) {
	link, err := r.Resolve(ctx, identifier)
	if err != nil {
		return "", err
	}

	if req.OccurredAt.IsZero() {
		req.OccurredAt = r.now()
	}
	if r.dispatcher != nil {
		r.dispatcher.Dispatch(domain.ClickJob{LinkID: link.ID, Request: req})
	}

	return link.DestinationURL, nil
}
