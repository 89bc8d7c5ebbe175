// Package clicks derives click metadata and moves click jobs off the
// redirect path.
package clicks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const DefaultGeoTimeout = 1500 * time.Millisecond

// clientIDLength is the number of hex chars kept from the hashed IP
const clientIDLength = 16

// Recorder turns a request context into a ClickEvent and persists it.
type Recorder struct {
	repo       ports.ClickRepository
	geo        ports.GeoLocator
	logger     *slog.Logger
	geoTimeout time.Duration
	salt       string
	now        func() time.Time
}

type RecorderOption func(*Recorder)

// WithGeoTimeout bounds every geo lookup.
func WithGeoTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.geoTimeout = d
		}
	}
}

// WithSalt sets the salt mixed into the client id hash.
func WithSalt(salt string) RecorderOption {
	return func(r *Recorder) { r.salt = salt }
}

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder builds a Recorder. geo may be nil, every event then has no location.
func NewRecorder(repo ports.ClickRepository, geo ports.GeoLocator, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:       repo,
		geo:        geo,
		logger:     slog.Default(),
		geoTimeout: DefaultGeoTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record classifies the device, looks up the location and stores the event.
// A failed geo lookup never fails the record.
func (r *Recorder) Record(ctx context.Context, linkID int64, req domain.RequestContext) error {
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = r.now()
	}

	event := &domain.ClickEvent{
		LinkID:       linkID,
		OccurredAt:   occurredAt.UTC(),
		Device:       ClassifyDevice(req.UserAgent),
		Location:     r.locate(ctx, req.ClientIP),
		RawUserAgent: req.UserAgent,
		ClientID:     ClientID(r.salt, req.ClientIP),
		Referer:      req.Referer,
	}

	if err := r.repo.RecordClick(ctx, event); err != nil {
		return fmt.Errorf("clicks record: %w", err)
	}
	return nil
}

// Handle makes the Recorder usable as a dispatcher sink.
func (r *Recorder) Handle(ctx context.Context, job domain.ClickJob) error {
	return r.Record(ctx, job.LinkID, job.Request)
}

func (r *Recorder) locate(ctx context.Context, ip string) *domain.Location {
	if r.geo == nil || ip == "" {
		return nil
	}

	geoCtx, cancel := context.WithTimeout(ctx, r.geoTimeout)
	defer cancel()

	loc, err := r.geo.Lookup(geoCtx, ip)
	if err != nil {
		r.logger.Debug("geo lookup failed", slog.String("ip", ip), slog.Any("err", err))
		return nil
	}
	if loc.City == "" && loc.Country == "" {
		return nil
	}
	return &loc
}

// ClientID reduces an IP to a stable pseudonymous id.
func ClientID(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])[:clientIDLength]
}
