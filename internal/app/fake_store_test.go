package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

// fakeStore is an in-memory catalog and ledger. WithTx serializes whole
// transactions, which is the guarantee the real stores give per listing.
type fakeStore struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	listings map[string]domain.Listing
	requests map[string]domain.Request
	failWith error
}

func newFakeStore(listings []domain.Listing, requests []domain.Request) *fakeStore {
	f := &fakeStore{
		listings: make(map[string]domain.Listing),
		requests: make(map[string]domain.Request),
	}
	for _, l := range listings {
		f.listings[l.ID] = l
	}
	for _, r := range requests {
		f.requests[r.ID] = r
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) listing(id string) domain.Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listings[id]
}

func (f *fakeStore) request(id string) domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id]
}

func (f *fakeStore) CreateListing(_ context.Context, listing domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.listings[listing.ID] = listing
	return nil
}

func (f *fakeStore) GetListing(_ context.Context, id string) (domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return domain.Listing{}, f.failWith
	}
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, nil
}

func (f *fakeStore) GetListingForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	return f.GetListing(ctx, id)
}

func (f *fakeStore) GetListingsByIDs(_ context.Context, ids []string) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, id := range ids {
		if l, ok := f.listings[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateListing(_ context.Context, listing domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[listing.ID]; !ok {
		return domain.ErrListingNotFound
	}
	f.listings[listing.ID] = listing
	return nil
}

func (f *fakeStore) UpdateListingQuantityAndStatus(_ context.Context, id string, quantity int, status domain.ListingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	l, ok := f.listings[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.Quantity = quantity
	l.Status = status
	f.listings[id] = l
	return nil
}

func (f *fakeStore) DeleteListing(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(f.listings, id)
	return nil
}

func (f *fakeStore) ListListings(_ context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, l := range f.listings {
		if q.Status != "" && l.Status != q.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.OrderByQuantityDesc {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeStore) ListListingsByOwner(_ context.Context, email string) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for _, l := range f.listings {
		if l.OwnerEmail == email {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) FindRequest(_ context.Context, listingID, email string, statuses ...domain.RequestStatus) (*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, r := range f.requests {
		if r.ListingID != listingID || r.RequesterEmail != email {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, r.Status) {
			continue
		}
		found := r
		return &found, nil
	}
	return nil, nil
}

func containsStatus(statuses []domain.RequestStatus, s domain.RequestStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (f *fakeStore) SumPendingQuantity(_ context.Context, listingID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, r := range f.requests {
		if r.ListingID == listingID && r.Status == domain.RequestStatusPending {
			total += r.QuantityRequested
		}
	}
	return total, nil
}

func (f *fakeStore) InsertRequest(_ context.Context, req domain.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = req
	return nil
}

func (f *fakeStore) GetRequest(_ context.Context, id string) (domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return r, nil
}

func (f *fakeStore) GetRequestForUpdate(ctx context.Context, id string) (domain.Request, error) {
	return f.GetRequest(ctx, id)
}

func (f *fakeStore) SetRequestStatus(_ context.Context, id string, status domain.RequestStatus, decidedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	r.Status = status
	r.DecidedAt = &decidedAt
	f.requests[id] = r
	return nil
}

func (f *fakeStore) BulkRejectPending(_ context.Context, listingID, excludeID string, decidedAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, r := range f.requests {
		if r.ListingID != listingID || r.Status != domain.RequestStatusPending || id == excludeID {
			continue
		}
		r.Status = domain.RequestStatusRejected
		r.DecidedAt = &decidedAt
		f.requests[id] = r
		n++
	}
	return n, nil
}

func (f *fakeStore) ListByRequester(_ context.Context, email string) ([]domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Request
	for _, r := range f.requests {
		if r.RequesterEmail == email {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByListingIDs(_ context.Context, ids []string) ([]domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Request
	for _, r := range f.requests {
		if want[r.ListingID] {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
