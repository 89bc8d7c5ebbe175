package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

const (
	testSecret  = "test-secret"
	testOwner   = "owner@example.com"
	testBaseURL = "https://trim.example"
)

type fakeLinks struct {
	mu       sync.Mutex
	err      error
	link     *domain.Link
	links    []domain.Link
	stats    *domain.LinkStats

	totalClicks int
	gotOwner    string
	gotID       int64
	gotInput    domain.CreateLinkInput
	gotFilter   domain.LinkFilter
}

func (f *fakeLinks) Create(_ context.Context, ownerID string, in domain.CreateLinkInput) (*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOwner, f.gotInput = ownerID, in
	if f.err != nil {
		return nil, f.err
	}
	return f.link, nil
}

func (f *fakeLinks) Get(_ context.Context, ownerID string, id int64) (*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOwner, f.gotID = ownerID, id
	if f.err != nil {
		return nil, f.err
	}
	return f.link, nil
}

func (f *fakeLinks) List(_ context.Context, ownerID string, filter domain.LinkFilter) (*domain.LinkList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOwner, f.gotFilter = ownerID, filter
	if f.err != nil {
		return nil, f.err
	}
	links := f.links
	if links == nil {
		links = []domain.Link{}
	}
	return &domain.LinkList{Links: links, TotalClicks: f.totalClicks}, nil
}

func (f *fakeLinks) Delete(_ context.Context, ownerID string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOwner, f.gotID = ownerID, id
	return f.err
}

func (f *fakeLinks) Stats(_ context.Context, ownerID string, id int64) (*domain.LinkStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOwner, f.gotID = ownerID, id
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

type fakeResolver struct {
	mu      sync.Mutex
	targets map[string]string
	err     error
	gotReq  domain.RequestContext
}

func (f *fakeResolver) Resolve(_ context.Context, identifier string) (*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dest, ok := f.targets[identifier]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Link{CustomAlias: identifier, DestinationURL: dest}, nil
}

func (f *fakeResolver) ResolveAndTrack(ctx context.Context, identifier string, req domain.RequestContext) (string, error) {
	f.mu.Lock()
	f.gotReq = req
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}

	link, err := f.Resolve(ctx, identifier)
	if err != nil {
		return "", err
	}
	return link.DestinationURL, nil
}

func newTestEngine(links *fakeLinks, resolver *fakeResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := NewEngine(RecoveryPlugin(), RequestIDPlugin())
	RegisterRoutes(r, RouterDeps{
		Links:     links,
		Resolver:  resolver,
		BaseURL:   testBaseURL,
		JWTSecret: testSecret,
	})
	return r
}

func testToken(t *testing.T, subject string) string {
	t.Helper()

	signed, _, err := IssueToken([]byte(testSecret), subject, time.Now())
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken(t, testOwner))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
