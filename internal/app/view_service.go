package app

import (
	"context"
	"sort"
	"strings"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

type ViewRepository interface {
	GetListingsByIDs(ctx context.Context, ids []string) ([]domain.Listing, error)
	ListListingsByOwner(ctx context.Context, ownerEmail string) ([]domain.Listing, error)
	ListByRequester(ctx context.Context, requesterEmail string) ([]domain.Request, error)
	ListByListingIDs(ctx context.Context, listingIDs []string) ([]domain.Request, error)
}

// ViewService joins requests with listing snapshots for read views. It never writes.
type ViewService struct {
	repo ViewRepository
	settings
}

func NewViewService(repo ViewRepository, opts ...Option) *ViewService {
	return &ViewService{
		repo:     repo,
		settings: newSettings(opts),
	}
}

// RequestsForRequester returns every request made by email, newest first.
func (s *ViewService) RequestsForRequester(ctx context.Context, email string) (views []domain.RequestView, err error) {
	ctx, span := s.tracer.Start(ctx, "views.requester")
	defer func() { finishSpan(span, err) }()

	if strings.TrimSpace(email) == "" {
		return nil, domain.ErrEmailRequired
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	requests, err := s.repo.ListByRequester(storeCtx, email)
	if err != nil {
		return nil, classify(err)
	}
	listings, err := s.repo.GetListingsByIDs(storeCtx, listingIDsOf(requests))
	if err != nil {
		return nil, classify(err)
	}

	views = join(requests, listings)
	span.SetAttributes(attribute.Int("views.count", len(views)))
	return views, nil
}

// RequestsForOwner returns the requests made against listings owned by email, newest first.
func (s *ViewService) RequestsForOwner(ctx context.Context, email string) (views []domain.RequestView, err error) {
	ctx, span := s.tracer.Start(ctx, "views.owner")
	defer func() { finishSpan(span, err) }()

	if strings.TrimSpace(email) == "" {
		return nil, domain.ErrEmailRequired
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	listings, err := s.repo.ListListingsByOwner(storeCtx, email)
	if err != nil {
		return nil, classify(err)
	}
	if len(listings) == 0 {
		return []domain.RequestView{}, nil
	}

	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	requests, err := s.repo.ListByListingIDs(storeCtx, ids)
	if err != nil {
		return nil, classify(err)
	}

	views = join(requests, listings)
	span.SetAttributes(
		attribute.Int("views.count", len(views)),
		attribute.Int("views.listings", len(listings)),
	)
	return views, nil
}

func listingIDsOf(requests []domain.Request) []string {
	seen := make(map[string]struct{}, len(requests))
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		if _, ok := seen[r.ListingID]; ok {
			continue
		}
		seen[r.ListingID] = struct{}{}
		ids = append(ids, r.ListingID)
	}
	return ids
}

// join pairs each request with its listing, using a placeholder for
// listings that can no longer be resolved.
func join(requests []domain.Request, listings []domain.Listing) []domain.RequestView {
	byID := make(map[string]domain.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}

	views := make([]domain.RequestView, 0, len(requests))
	for _, r := range requests {
		snap := domain.PlaceholderSnapshot(r.ListingID)
		if l, ok := byID[r.ListingID]; ok {
			snap = domain.SnapshotOf(l)
		}
		views = append(views, domain.RequestView{Request: r, Listing: snap})
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Request.CreatedAt.After(views[j].Request.CreatedAt)
	})
	return views
}

