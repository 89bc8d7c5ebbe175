package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

// memRepo keeps identifier uniqueness under one lock, the way a UNIQUE
// constraint does.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	links   map[int64]domain.Link
	byIdent map[string]int64
	clicks  []domain.ClickEvent

	createHook  func(identifier string) error
	afterLookup func() // Runs after GetByIdentifier has read, outside the lock
	lookups     int
}

func newMemRepo() *memRepo {
	return &memRepo{links: map[int64]domain.Link{}, byIdent: map[string]int64{}}
}

func (m *memRepo) Create(_ context.Context, link *domain.Link) error {
	if m.createHook != nil {
		if err := m.createHook(link.Identifier()); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byIdent[link.Identifier()]; ok {
		return domain.ErrDuplicateKey
	}
	m.nextID++
	link.ID = m.nextID
	m.links[link.ID] = *link
	m.byIdent[link.Identifier()] = link.ID
	return nil
}

func (m *memRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.Link, error) {
	m.mu.Lock()
	m.lookups++
	id, ok := m.byIdent[identifier]
	l := m.links[id]
	m.mu.Unlock()

	if m.afterLookup != nil {
		m.afterLookup()
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (m *memRepo) ListByOwner(_ context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Link
	for _, l := range m.links {
		if l.OwnerID == ownerID && strings.Contains(strings.ToLower(l.Title), strings.ToLower(filter.Title)) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) Delete(_ context.Context, linkID int64, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[linkID]
	if !ok {
		return domain.ErrNotFound
	}
	if l.OwnerID != ownerID {
		return domain.ErrUnauthorized
	}
	delete(m.links, linkID)
	delete(m.byIdent, l.Identifier())
	kept := m.clicks[:0]
	for _, c := range m.clicks {
		if c.LinkID != linkID {
			kept = append(kept, c)
		}
	}
	m.clicks = kept
	return nil
}

func (m *memRepo) Dump(_ context.Context) ([]domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Link, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l)
	}
	return out, nil
}

func (m *memRepo) RecordClick(_ context.Context, click *domain.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[click.LinkID]; !ok {
		return domain.ErrNotFound
	}
	click.ID = int64(len(m.clicks) + 1)
	m.clicks = append(m.clicks, *click)
	return nil
}

func (m *memRepo) CountClicksByOwner(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.clicks {
		if m.links[c.LinkID].OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ListClicks(_ context.Context, linkID int64) ([]domain.ClickEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ClickEvent
	for _, c := range m.clicks {
		if c.LinkID == linkID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

type memCache struct {
	mu         sync.Mutex
	items      map[string]domain.Link
	tombstones map[string]bool
	err        error // Get, Set and Fill
	invErr     func(call int) error // Invalidate, by 1-based call number
	invCalls   int
}

func newMemCache() *memCache {
	return &memCache{items: map[string]domain.Link{}, tombstones: map[string]bool{}}
}

func (c *memCache) Get(_ context.Context, identifier string) (*domain.Link, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.items[identifier]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (c *memCache) Set(_ context.Context, link *domain.Link) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tombstones, link.Identifier())
	c.items[link.Identifier()] = *link
	return nil
}

func (c *memCache) Fill(_ context.Context, link *domain.Link) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := link.Identifier()
	if _, ok := c.items[id]; ok || c.tombstones[id] {
		return nil
	}
	c.items[id] = *link
	return nil
}

func (c *memCache) Invalidate(_ context.Context, identifier string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invCalls++
	if c.invErr != nil {
		if err := c.invErr(c.invCalls); err != nil {
			return err
		}
	}
	delete(c.items, identifier)
	c.tombstones[identifier] = true
	return nil
}

func (c *memCache) has(identifier string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[identifier]
	return ok
}

type memAssets struct {
	mu      sync.Mutex
	stored  map[string][]byte
	putErr  error
	deleted []string
}

func newMemAssets() *memAssets { return &memAssets{stored: map[string][]byte{}} }

func (a *memAssets) Put(_ context.Context, blob []byte) (string, error) {
	if a.putErr != nil {
		return "", a.putErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	ref := "https://sho.rt/assets/qr-" + string(rune('a'+len(a.stored))) + ".png"
	a.stored[ref] = blob
	return ref, nil
}

func (a *memAssets) Delete(_ context.Context, ref string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.stored[ref]; !ok {
		return errors.New("no such asset")
	}
	delete(a.stored, ref)
	a.deleted = append(a.deleted, ref)
	return nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []domain.ClickJob
}

func (d *recordingDispatcher) Dispatch(job domain.ClickJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *recordingDispatcher) dispatched() []domain.ClickJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.ClickJob(nil), d.jobs...)
}
