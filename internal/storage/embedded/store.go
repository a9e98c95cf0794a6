// Package embedded is a single-node store on Pebble. Each unit of work
// writes to an indexed batch that commits atomically, and per-key locks
// held until commit serialize work on the same listing.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

var errClosed = errors.New("embedded store closed")

type Store struct {
	db     *pebble.DB
	locks  *lockTable
	closed atomic.Bool
}

type Option func(*pebble.Options)

// WithFS swaps the filesystem, e.g. vfs.NewMem() in tests.
func WithFS(fs vfs.FS) Option {
	return func(o *pebble.Options) {
		o.FS = fs
	}
}

func Open(dir string, opts ...Option) (*Store, error) {
	po := &pebble.Options{}
	for _, opt := range opts {
		opt(po)
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Store{db: db, locks: newLockTable()}, nil
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return errClosed
	}
	_, _, err := s.get(s.db, []byte("ping"))
	return err
}

type txKey struct{}

type tx struct {
	batch *pebble.Batch
	held  map[string]struct{}
}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTx runs fn against one indexed batch and commits it if fn succeeds.
// Locks taken inside fn are released after the commit.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	if s.closed.Load() {
		return errClosed
	}

	t := &tx{batch: s.db.NewIndexedBatch(), held: make(map[string]struct{})}
	defer func() {
		for key := range t.held {
			s.locks.release(key)
		}
	}()
	defer t.batch.Close()

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) lock(ctx context.Context, key string) error {
	t := txFromContext(ctx)
	if t == nil {
		return nil
	}
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	return nil
}

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func (s *Store) reader(ctx context.Context) (reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t := txFromContext(ctx); t != nil {
		return t.batch, nil
	}
	if s.closed.Load() {
		return nil, errClosed
	}
	return s.db, nil
}

// write applies fn to the batch of the current unit of work, or to a
// batch of its own that is committed immediately.
func (s *Store) write(ctx context.Context, fn func(b *pebble.Batch) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t := txFromContext(ctx); t != nil {
		return fn(t.batch)
	}
	if s.closed.Load() {
		return errClosed
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// recoverClosed turns pebble's use-after-close panic into errClosed. A
// Close can land between the closed check and the read it guards.
func (s *Store) recoverClosed(err *error) {
	v := recover()
	if v == nil {
		return
	}
	if e, ok := v.(error); (ok && errors.Is(e, pebble.ErrClosed)) || s.closed.Load() {
		*err = errClosed
		return
	}
	panic(v)
}

func (s *Store) get(r reader, key []byte) (val []byte, ok bool, err error) {
	defer s.recoverClosed(&err)
	raw, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if errors.Is(err, pebble.ErrClosed) {
		return nil, false, errClosed
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), raw...), true, nil
}

func (s *Store) scanPrefix(r reader, prefix []byte, fn func(key, value []byte) error) (err error) {
	defer s.recoverClosed(&err)
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if errors.Is(err, pebble.ErrClosed) {
		return errClosed
	}
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// indexedIDs collects the ids stored after prefix in an index.
func (s *Store) indexedIDs(r reader, prefix []byte) ([]string, error) {
	var ids []string
	err := s.scanPrefix(r, prefix, func(key, _ []byte) error {
		ids = append(ids, suffixAfter(key, prefix))
		return nil
	})
	return ids, err
}

// Listings.

func (s *Store) loadListing(r reader, id string) (domain.Listing, error) {
	val, ok, err := s.get(r, listingKey(id))
	if err != nil {
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return decodeListing(val)
}

func (s *Store) CreateListing(ctx context.Context, l domain.Listing) error {
	val, err := encodeListing(l)
	if err != nil {
		return err
	}
	return s.write(ctx, func(b *pebble.Batch) error {
		if err := b.Set(listingKey(l.ID), val, nil); err != nil {
			return err
		}
		return b.Set(ownerIndexKey(l.OwnerEmail, l.ID), nil, nil)
	})
}

func (s *Store) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return domain.Listing{}, err
	}
	return s.loadListing(r, id)
}

// GetListingForUpdate locks the listing for the rest of the unit of work.
// The lock is taken even when the listing does not exist.
func (s *Store) GetListingForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	if err := s.lock(ctx, listingLockKey(id)); err != nil {
		return domain.Listing{}, err
	}
	return s.GetListing(ctx, id)
}

func (s *Store) GetListingsByIDs(ctx context.Context, ids []string) ([]domain.Listing, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	listings := []domain.Listing{}
	for _, id := range ids {
		l, err := s.loadListing(r, id)
		if errors.Is(err, domain.ErrListingNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func (s *Store) UpdateListing(ctx context.Context, l domain.Listing) error {
	r, err := s.reader(ctx)
	if err != nil {
		return err
	}
	current, err := s.loadListing(r, l.ID)
	if err != nil {
		return err
	}
	val, err := encodeListing(l)
	if err != nil {
		return err
	}
	return s.write(ctx, func(b *pebble.Batch) error {
		if current.OwnerEmail != l.OwnerEmail {
			if err := b.Delete(ownerIndexKey(current.OwnerEmail, l.ID), nil); err != nil {
				return err
			}
			if err := b.Set(ownerIndexKey(l.OwnerEmail, l.ID), nil, nil); err != nil {
				return err
			}
		}
		return b.Set(listingKey(l.ID), val, nil)
	})
}

func (s *Store) UpdateListingQuantityAndStatus(ctx context.Context, id string, quantity int, status domain.ListingStatus) error {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	l.Quantity = quantity
	l.Status = status
	return s.UpdateListing(ctx, l)
}

func (s *Store) DeleteListing(ctx context.Context, id string) error {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	return s.write(ctx, func(b *pebble.Batch) error {
		if err := b.Delete(listingKey(id), nil); err != nil {
			return err
		}
		return b.Delete(ownerIndexKey(l.OwnerEmail, id), nil)
	})
}

func (s *Store) ListListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	listings := []domain.Listing{}
	err = s.scanPrefix(r, []byte(listingPrefix), func(_, value []byte) error {
		l, err := decodeListing(value)
		if err != nil {
			return err
		}
		if q.Status == "" || l.Status == q.Status {
			listings = append(listings, l)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}

	sort.SliceStable(listings, func(i, j int) bool {
		if q.OrderByQuantityDesc && listings[i].Quantity != listings[j].Quantity {
			return listings[i].Quantity > listings[j].Quantity
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	if q.Limit > 0 && len(listings) > q.Limit {
		listings = listings[:q.Limit]
	}
	return listings, nil
}

func (s *Store) ListListingsByOwner(ctx context.Context, ownerEmail string) ([]domain.Listing, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.indexedIDs(r, ownerIndexPrefixFor(ownerEmail))
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	listings, err := s.GetListingsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings, nil
}

// Requests.

func (s *Store) loadRequest(r reader, id string) (domain.Request, error) {
	val, ok, err := s.get(r, requestKey(id))
	if err != nil {
		return domain.Request{}, fmt.Errorf("get request: %w", err)
	}
	if !ok {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return decodeRequest(val)
}

func (s *Store) requestsForListing(r reader, listingID string) ([]domain.Request, error) {
	ids, err := s.indexedIDs(r, listingIndexPrefixFor(listingID))
	if err != nil {
		return nil, fmt.Errorf("scan listing requests: %w", err)
	}
	requests := make([]domain.Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.loadRequest(r, id)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func hasStatus(statuses []domain.RequestStatus, status domain.RequestStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Store) FindRequest(ctx context.Context, listingID, email string, statuses ...domain.RequestStatus) (*domain.Request, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.requestsForListing(r, listingID)
	if err != nil {
		return nil, err
	}
	var found *domain.Request
	for i := range requests {
		req := requests[i]
		if req.RequesterEmail != email || !hasStatus(statuses, req.Status) {
			continue
		}
		if found == nil || req.CreatedAt.After(found.CreatedAt) {
			found = &req
		}
	}
	return found, nil
}

func (s *Store) SumPendingQuantity(ctx context.Context, listingID string) (int, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return 0, err
	}
	requests, err := s.requestsForListing(r, listingID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, req := range requests {
		if req.Status == domain.RequestStatusPending {
			total += req.QuantityRequested
		}
	}
	return total, nil
}

// InsertRequest refuses a second open request for the same listing and requester.
func (s *Store) InsertRequest(ctx context.Context, req domain.Request) error {
	open, err := s.FindRequest(ctx, req.ListingID, req.RequesterEmail,
		domain.RequestStatusPending, domain.RequestStatusAccepted)
	if err != nil {
		return err
	}
	if open != nil {
		return domain.ErrDuplicateRequest
	}
	val, err := encodeRequest(req)
	if err != nil {
		return err
	}
	return s.write(ctx, func(b *pebble.Batch) error {
		if err := b.Set(requestKey(req.ID), val, nil); err != nil {
			return err
		}
		if err := b.Set(listingIndexKey(req.ListingID, req.ID), nil, nil); err != nil {
			return err
		}
		return b.Set(requesterIndexKey(req.RequesterEmail, req.ID), nil, nil)
	})
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return domain.Request{}, err
	}
	return s.loadRequest(r, id)
}

func (s *Store) GetRequestForUpdate(ctx context.Context, id string) (domain.Request, error) {
	if err := s.lock(ctx, requestLockKey(id)); err != nil {
		return domain.Request{}, err
	}
	return s.GetRequest(ctx, id)
}

func (s *Store) putRequest(b *pebble.Batch, req domain.Request) error {
	val, err := encodeRequest(req)
	if err != nil {
		return err
	}
	return b.Set(requestKey(req.ID), val, nil)
}

func (s *Store) SetRequestStatus(ctx context.Context, id string, status domain.RequestStatus, decidedAt time.Time) error {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	req.Status = status
	req.DecidedAt = &decidedAt
	return s.write(ctx, func(b *pebble.Batch) error {
		return s.putRequest(b, req)
	})
}

func (s *Store) BulkRejectPending(ctx context.Context, listingID, excludeID string, decidedAt time.Time) (int, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return 0, err
	}
	requests, err := s.requestsForListing(r, listingID)
	if err != nil {
		return 0, err
	}
	n := 0
	err = s.write(ctx, func(b *pebble.Batch) error {
		for _, req := range requests {
			if req.Status != domain.RequestStatusPending || req.ID == excludeID {
				continue
			}
			req.Status = domain.RequestStatusRejected
			req.DecidedAt = &decidedAt
			if err := s.putRequest(b, req); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func newestFirst(requests []domain.Request) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}

func (s *Store) ListByRequester(ctx context.Context, email string) ([]domain.Request, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.indexedIDs(r, requesterIndexPrefixFor(email))
	if err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	requests := make([]domain.Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.loadRequest(r, id)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	newestFirst(requests)
	return requests, nil
}

func (s *Store) ListByListingIDs(ctx context.Context, listingIDs []string) ([]domain.Request, error) {
	r, err := s.reader(ctx)
	if err != nil {
		return nil, err
	}
	requests := []domain.Request{}
	for _, id := range listingIDs {
		forListing, err := s.requestsForListing(r, id)
		if err != nil {
			return nil, err
		}
		requests = append(requests, forListing...)
	}
	newestFirst(requests)
	return requests, nil
}
