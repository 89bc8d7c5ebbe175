package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/trimrr/pkg/core/codegen"
	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/core/services"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const owner = "user-1"

func newService(repo *memRepo, opts ...services.Option) *services.LinkService {
	opts = append([]services.Option{services.WithLogger(discard)}, opts...)
	return services.NewLinkService(repo, codegen.New(7, 5), opts...)
}

func TestLinkService_CreateGeneratedCode(t *testing.T) {
	repo := newMemRepo()
	cache := newMemCache()
	svc := newService(repo, services.WithCache(cache))

	link, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{
		Title:          "  Docs  ",
		DestinationURL: "https://example.com/docs",
	})
	require.NoError(t, err)
	require.NotZero(t, link.ID)
	require.Equal(t, "Docs", link.Title)
	require.Len(t, link.ShortCode, 7)
	require.Empty(t, link.CustomAlias)
	require.Equal(t, owner, link.OwnerID)
	require.Equal(t, "UTC", link.CreatedAt.Location().String())
	require.True(t, cache.has(link.ShortCode))

	stored, err := repo.GetByIdentifier(context.Background(), link.ShortCode)
	require.NoError(t, err)
	require.Equal(t, link.ID, stored.ID)
}

func TestLinkService_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    domain.CreateLinkInput
		field string
	}{
		{
			name:  "bad/empty title",
			in:    domain.CreateLinkInput{DestinationURL: "https://example.com"},
			field: "title",
		},
		{
			name:  "bad/ftp destination",
			in:    domain.CreateLinkInput{Title: "x", DestinationURL: "ftp://example.com/file"},
			field: "destination_url",
		},
		{
			name:  "bad/relative destination",
			in:    domain.CreateLinkInput{Title: "x", DestinationURL: "/just/a/path"},
			field: "destination_url",
		},
		{
			name:  "bad/reserved alias",
			in:    domain.CreateLinkInput{Title: "x", DestinationURL: "https://example.com", CustomAlias: "api"},
			field: "custom_alias",
		},
		{
			name:  "bad/alias charset",
			in:    domain.CreateLinkInput{Title: "x", DestinationURL: "https://example.com", CustomAlias: "no spaces"},
			field: "custom_alias",
		},
		{
			name:  "bad/qr without asset store",
			in:    domain.CreateLinkInput{Title: "x", DestinationURL: "https://example.com", QRImage: []byte{1}},
			field: "qr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := newService(repo)

			_, err := svc.Create(context.Background(), owner, tt.in)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tt.field, verr.Field)

			links, _ := repo.Dump(context.Background())
			require.Empty(t, links)
		})
	}
}

func TestLinkService_CreateRequiresOwner(t *testing.T) {
	svc := newService(newMemRepo())

	_, err := svc.Create(context.Background(), "", domain.CreateLinkInput{Title: "x", DestinationURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestLinkService_CreateRetriesCodeCollisions(t *testing.T) {
	repo := newMemRepo()
	var mu sync.Mutex
	calls := 0
	repo.createHook = func(string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= 2 {
			return domain.ErrDuplicateKey
		}
		return nil
	}
	svc := newService(repo)

	link, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{Title: "x", DestinationURL: "https://example.com"})
	require.NoError(t, err)
	require.Len(t, link.ShortCode, 7)
	require.Equal(t, 3, calls)
}

func TestLinkService_CreateCodeSpaceExhausted(t *testing.T) {
	repo := newMemRepo()
	repo.createHook = func(string) error { return domain.ErrDuplicateKey }
	svc := newService(repo)

	_, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{Title: "x", DestinationURL: "https://example.com"})
	require.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)
}

func TestLinkService_AliasRace(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		taken     int
	)
	start := make(chan struct{})

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{
				Title:          "Sale",
				DestinationURL: "https://shop.example.com/sale",
				CustomAlias:    "sale2024",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrAliasTaken) && errors.Is(err, domain.ErrDuplicateKey):
				taken++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, n-1, taken)

	links, err := repo.Dump(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "sale2024", links[0].CustomAlias)
}

func TestLinkService_AliasDoesNotCollideWithCode(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	first, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{Title: "a", DestinationURL: "https://example.com/a"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "user-2", domain.CreateLinkInput{
		Title:          "b",
		DestinationURL: "https://example.com/b",
		CustomAlias:    first.ShortCode,
	})
	require.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestLinkService_QRAsset(t *testing.T) {
	t.Run("ok/stored", func(t *testing.T) {
		assets := newMemAssets()
		svc := newService(newMemRepo(), services.WithAssets(assets))

		link, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{
			Title: "qr", DestinationURL: "https://example.com", QRImage: []byte("png"),
		})
		require.NoError(t, err)
		require.NotEmpty(t, link.QRAssetRef)
		require.Contains(t, assets.stored, link.QRAssetRef)
	})

	t.Run("bad/store unavailable", func(t *testing.T) {
		assets := newMemAssets()
		assets.putErr = errors.New("disk full")
		repo := newMemRepo()
		svc := newService(repo, services.WithAssets(assets))

		_, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{
			Title: "qr", DestinationURL: "https://example.com", QRImage: []byte("png"),
		})
		require.ErrorIs(t, err, domain.ErrExternalLookup)
		require.NotErrorIs(t, err, domain.ErrValidation)

		links, _ := repo.Dump(context.Background())
		require.Empty(t, links)
	})

	t.Run("bad/rejected blob", func(t *testing.T) {
		assets := newMemAssets()
		assets.putErr = domain.NewValidationError("qr", domain.ErrInvalidAsset)
		svc := newService(newMemRepo(), services.WithAssets(assets))

		_, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{
			Title: "qr", DestinationURL: "https://example.com", QRImage: []byte("exe"),
		})
		require.ErrorIs(t, err, domain.ErrInvalidAsset)
	})

	t.Run("ok/asset released when alias is taken", func(t *testing.T) {
		assets := newMemAssets()
		svc := newService(newMemRepo(), services.WithAssets(assets))

		_, err := svc.Create(context.Background(), owner, domain.CreateLinkInput{
			Title: "first", DestinationURL: "https://example.com", CustomAlias: "promo",
		})
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), owner, domain.CreateLinkInput{
			Title: "second", DestinationURL: "https://example.com", CustomAlias: "promo", QRImage: []byte("png"),
		})
		require.ErrorIs(t, err, domain.ErrAliasTaken)
		require.Empty(t, assets.stored)
		require.Len(t, assets.deleted, 1)
	})
}

func TestLinkService_GetAndList(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	a, err := svc.Create(ctx, owner, domain.CreateLinkInput{Title: "a", DestinationURL: "https://example.com/a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, owner, domain.CreateLinkInput{Title: "b", DestinationURL: "https://example.com/b"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "someone-else", domain.CreateLinkInput{Title: "c", DestinationURL: "https://example.com/c"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = svc.Get(ctx, "someone-else", a.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Get(ctx, owner, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	list, err := svc.List(ctx, owner, domain.LinkFilter{})
	require.NoError(t, err)
	require.Len(t, list.Links, 2)
	require.Equal(t, b.ID, list.Links[0].ID)
	require.Equal(t, a.ID, list.Links[1].ID)

	empty, err := svc.List(ctx, "nobody", domain.LinkFilter{})
	require.NoError(t, err)
	require.NotNil(t, empty.Links)
	require.Empty(t, empty.Links)
	require.Zero(t, empty.TotalClicks)
}

func TestLinkService_ListDashboard(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)

	sale, err := svc.Create(ctx, owner, domain.CreateLinkInput{Title: "Spring SALE", DestinationURL: "https://example.com/s"})
	require.NoError(t, err)
	blog, err := svc.Create(ctx, owner, domain.CreateLinkInput{Title: "Blog", DestinationURL: "https://example.com/b"})
	require.NoError(t, err)
	foreign, err := svc.Create(ctx, "someone-else", domain.CreateLinkInput{Title: "sale", DestinationURL: "https://example.com/f"})
	require.NoError(t, err)

	for _, id := range []int64{sale.ID, sale.ID, blog.ID, foreign.ID} {
		require.NoError(t, repo.RecordClick(ctx, &domain.ClickEvent{LinkID: id, OccurredAt: time.Now()}))
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []int64
	}{
		{name: "ok/no filter", query: "", wantIDs: []int64{blog.ID, sale.ID}},
		{name: "ok/case insensitive", query: "sale", wantIDs: []int64{sale.ID}},
		{name: "ok/surrounding space ignored", query: "  BLOG ", wantIDs: []int64{blog.ID}},
		{name: "ok/no match", query: "winter", wantIDs: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := svc.List(ctx, owner, domain.LinkFilter{Title: tt.query})
			require.NoError(t, err)

			ids := make([]int64, 0, len(list.Links))
			for _, l := range list.Links {
				ids = append(ids, l.ID)
			}
			require.Equal(t, tt.wantIDs, ids)

			// The total is owner wide, not limited to the filtered links
			require.Equal(t, 3, list.TotalClicks)
		})
	}
}

func TestLinkService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	cache := newMemCache()
	assets := newMemAssets()
	svc := newService(repo, services.WithCache(cache), services.WithAssets(assets))
	resolver := services.NewResolver(repo, cache, nil, discard)

	link, err := svc.Create(ctx, owner, domain.CreateLinkInput{
		Title: "gone", DestinationURL: "https://example.com/gone", CustomAlias: "gone-soon", QRImage: []byte("png"),
	})
	require.NoError(t, err)
	require.NoError(t, repo.RecordClick(ctx, &domain.ClickEvent{LinkID: link.ID, Device: domain.DeviceDesktop}))

	t.Run("bad/not owner", func(t *testing.T) {
		err := svc.Delete(ctx, "intruder", link.ID)
		require.ErrorIs(t, err, domain.ErrUnauthorized)

		_, err = resolver.Resolve(ctx, "gone-soon")
		require.NoError(t, err)
	})

	t.Run("bad/unknown id", func(t *testing.T) {
		require.ErrorIs(t, svc.Delete(ctx, owner, 12345), domain.ErrNotFound)
	})

	t.Run("ok/final", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, owner, link.ID))

		_, err := resolver.Resolve(ctx, "gone-soon")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.False(t, cache.has("gone-soon"))

		events, err := repo.ListClicks(ctx, link.ID)
		require.NoError(t, err)
		require.Empty(t, events)

		require.Equal(t, []string{link.QRAssetRef}, assets.deleted)

		require.ErrorIs(t, svc.Delete(ctx, owner, link.ID), domain.ErrNotFound)
	})
}

func TestLinkService_Stats(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := newService(repo)

	link, err := svc.Create(ctx, owner, domain.CreateLinkInput{Title: "s", DestinationURL: "https://example.com/s"})
	require.NoError(t, err)

	for _, d := range []domain.DeviceCategory{domain.DeviceMobile, domain.DeviceMobile, domain.DeviceDesktop} {
		require.NoError(t, repo.RecordClick(ctx, &domain.ClickEvent{LinkID: link.ID, Device: d}))
	}

	stats, err := svc.Stats(ctx, owner, link.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalClicks)
	require.Equal(t, []domain.Group{
		{Label: "mobile", Count: 2, Percentage: 66.7},
		{Label: "desktop", Count: 1, Percentage: 33.3},
	}, stats.Devices)

	_, err = svc.Stats(ctx, "other", link.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
