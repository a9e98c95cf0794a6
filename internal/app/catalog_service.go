package app

import (
	"context"
	"strings"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/clock"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"go.uber.org/zap"
)

type CatalogRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateListing(ctx context.Context, listing domain.Listing) error
	GetListing(ctx context.Context, listingID string) (domain.Listing, error)
	GetListingForUpdate(ctx context.Context, listingID string) (domain.Listing, error)
	UpdateListing(ctx context.Context, listing domain.Listing) error
	DeleteListing(ctx context.Context, listingID string) error
	ListListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error)
	ListListingsByOwner(ctx context.Context, ownerEmail string) ([]domain.Listing, error)
	BulkRejectPending(ctx context.Context, listingID, excludeRequestID string, decidedAt time.Time) (int, error)
}

// CatalogService is the plain listing CRUD surface.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
	settings
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock, opts ...Option) *CatalogService {
	return &CatalogService{
		repo:     repo,
		clock:    clk,
		settings: newSettings(opts),
	}
}

type CreateListingInput struct {
	Name           string
	ImageURL       string
	Quantity       int
	PickupLocation string
	ExpiresAt      time.Time
	Notes          string
	OwnerName      string
	OwnerEmail     string
	OwnerImageURL  string
}

func (in CreateListingInput) validate() error {
	var fields []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", in.Name},
		{"imageUrl", in.ImageURL},
		{"pickupLocation", in.PickupLocation},
		{"ownerName", in.OwnerName},
		{"ownerEmail", in.OwnerEmail},
	} {
		if strings.TrimSpace(f.value) == "" {
			fields = append(fields, f.name)
		}
	}
	if in.Quantity <= 0 {
		fields = append(fields, "quantity")
	}
	if in.ExpiresAt.IsZero() {
		fields = append(fields, "expiresAt")
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (s *CatalogService) CreateListing(ctx context.Context, in CreateListingInput) (domain.Listing, error) {
	if err := in.validate(); err != nil {
		return domain.Listing{}, err
	}
	listing := domain.Listing{
		ID:             newID(),
		Name:           in.Name,
		ImageURL:       in.ImageURL,
		Quantity:       in.Quantity,
		PickupLocation: in.PickupLocation,
		ExpiresAt:      in.ExpiresAt.UTC(),
		Notes:          in.Notes,
		OwnerName:      in.OwnerName,
		OwnerEmail:     in.OwnerEmail,
		OwnerImageURL:  in.OwnerImageURL,
		Status:         domain.ListingStatusAvailable,
		CreatedAt:      s.clock.Now(),
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.repo.CreateListing(storeCtx, listing); err != nil {
		return domain.Listing{}, classify(err)
	}
	s.logger.Info("listing created", zap.String("listing_id", listing.ID), zap.Int("quantity", listing.Quantity))
	return listing, nil
}

func (s *CatalogService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	listing, err := s.repo.GetListing(storeCtx, id)
	if err != nil {
		return domain.Listing{}, classify(err)
	}
	return listing, nil
}

func (s *CatalogService) ListListings(ctx context.Context) ([]domain.Listing, error) {
	return s.list(ctx, domain.ListingQuery{})
}

func (s *CatalogService) ListAvailable(ctx context.Context) ([]domain.Listing, error) {
	return s.list(ctx, domain.ListingQuery{Status: domain.ListingStatusAvailable})
}

// TopListings returns the listings with the most portions left.
func (s *CatalogService) TopListings(ctx context.Context) ([]domain.Listing, error) {
	return s.list(ctx, domain.ListingQuery{OrderByQuantityDesc: true, Limit: s.topListings})
}

func (s *CatalogService) ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Listing, error) {
	if strings.TrimSpace(ownerEmail) == "" {
		return nil, domain.ErrEmailRequired
	}
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	listings, err := s.repo.ListListingsByOwner(storeCtx, ownerEmail)
	if err != nil {
		return nil, classify(err)
	}
	return listings, nil
}

func (s *CatalogService) list(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	listings, err := s.repo.ListListings(storeCtx, q)
	if err != nil {
		return nil, classify(err)
	}
	return listings, nil
}

// UpdateListingInput is a partial update; nil fields are left unchanged.
type UpdateListingInput struct {
	Name           *string
	ImageURL       *string
	Quantity       *int
	PickupLocation *string
	ExpiresAt      *time.Time
	Notes          *string
}

// UpdateListing applies a partial update under the listing lock. Changing the
// quantity recomputes the status, and dropping it to zero rejects every
// pending request on the listing.
func (s *CatalogService) UpdateListing(ctx context.Context, id string, in UpdateListingInput) (domain.Listing, error) {
	if in.Quantity != nil && *in.Quantity < 0 {
		return domain.Listing{}, domain.ErrInvalidQuantity
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	now := s.clock.Now()
	var updated domain.Listing
	cascaded := 0
	err := s.repo.WithTx(storeCtx, func(txCtx context.Context) error {
		listing, err := s.repo.GetListingForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			listing.Name = *in.Name
		}
		if in.ImageURL != nil {
			listing.ImageURL = *in.ImageURL
		}
		if in.PickupLocation != nil {
			listing.PickupLocation = *in.PickupLocation
		}
		if in.ExpiresAt != nil {
			listing.ExpiresAt = in.ExpiresAt.UTC()
		}
		if in.Notes != nil {
			listing.Notes = *in.Notes
		}
		if in.Quantity != nil {
			listing.Quantity = *in.Quantity
			listing.Status = domain.StatusForQuantity(listing.Quantity)
		}
		if err := s.repo.UpdateListing(txCtx, listing); err != nil {
			return err
		}
		if listing.Quantity == 0 {
			n, err := s.repo.BulkRejectPending(txCtx, listing.ID, "", now)
			if err != nil {
				return err
			}
			cascaded = n
		}
		updated = listing
		return nil
	})
	if err != nil {
		return domain.Listing{}, classify(err)
	}

	s.logger.Info("listing updated",
		zap.String("listing_id", updated.ID),
		zap.Int("quantity", updated.Quantity),
		zap.Int("cascaded", cascaded),
	)
	if cascaded > 0 {
		s.publish(ctx, domain.Event{
			Type:       domain.EventListingDonated,
			ListingID:  updated.ID,
			Cascaded:   cascaded,
			OccurredAt: now,
		})
	}
	return updated, nil
}

// DeleteListing removes the listing. Requests that referenced it are kept.
func (s *CatalogService) DeleteListing(ctx context.Context, id string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()
	err := s.repo.WithTx(storeCtx, func(txCtx context.Context) error {
		if _, err := s.repo.GetListingForUpdate(txCtx, id); err != nil {
			return err
		}
		return s.repo.DeleteListing(txCtx, id)
	})
	if err != nil {
		return classify(err)
	}
	s.logger.Info("listing deleted", zap.String("listing_id", id))
	return nil
}
