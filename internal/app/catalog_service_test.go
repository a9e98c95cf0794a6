package app

import (
	"context"
	"testing"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/clock"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"github.com/stretchr/testify/require"
)

func createInput(qty int) CreateListingInput {
	return CreateListingInput{
		Name:           "Biryani",
		ImageURL:       "https://img.example/biryani.jpg",
		Quantity:       qty,
		PickupLocation: "Mirpur 10",
		ExpiresAt:      testNow.Add(24 * time.Hour),
		OwnerName:      "Donor",
		OwnerEmail:     "donor@example.com",
	}
}

func TestCatalogService_CreateListing(t *testing.T) {
	t.Parallel()

	store := newFakeStore(nil, nil)
	svc := NewCatalogService(store, clock.NewFixed(testNow))

	listing, err := svc.CreateListing(context.Background(), createInput(12))
	require.NoError(t, err)
	require.NotEmpty(t, listing.ID)
	require.Equal(t, domain.ListingStatusAvailable, listing.Status)
	require.Equal(t, testNow, listing.CreatedAt)
	require.Equal(t, listing, store.listing(listing.ID))

	_, err = svc.CreateListing(context.Background(), CreateListingInput{Quantity: 0})
	require.ErrorIs(t, err, domain.ErrValidation)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "quantity")
	require.Contains(t, vErr.Fields, "expiresAt")
}

func TestCatalogService_Queries(t *testing.T) {
	t.Parallel()

	donated := testListing("l0", 0)
	small := testListing("l1", 2)
	big := testListing("l2", 9)
	big.OwnerEmail = "other@example.com"
	store := newFakeStore([]domain.Listing{donated, small, big}, nil)
	svc := NewCatalogService(store, clock.NewFixed(testNow), WithTopListings(1))
	ctx := context.Background()

	all, err := svc.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	available, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 2)
	for _, l := range available {
		require.Equal(t, domain.ListingStatusAvailable, l.Status)
	}

	top, err := svc.TopListings(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "l2", top[0].ID)

	mine, err := svc.ListByOwner(ctx, "donor@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 2)

	_, err = svc.ListByOwner(ctx, "")
	require.ErrorIs(t, err, domain.ErrEmailRequired)

	_, err = svc.GetListing(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestCatalogService_UpdateListing(t *testing.T) {
	t.Parallel()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		store := newFakeStore([]domain.Listing{testListing("l1", 4)}, nil)
		svc := NewCatalogService(store, clock.NewFixed(testNow))

		notes := "bring a box"
		updated, err := svc.UpdateListing(context.Background(), "l1", UpdateListingInput{Notes: &notes})
		require.NoError(t, err)
		require.Equal(t, notes, updated.Notes)
		require.Equal(t, 4, updated.Quantity)
		require.Equal(t, "Rice l1", store.listing("l1").Name)
	})

	t.Run("zero quantity donates and rejects pending", func(t *testing.T) {
		pub := &recordingPublisher{}
		store := newFakeStore(
			[]domain.Listing{testListing("l1", 4)},
			[]domain.Request{
				testRequest("r1", "l1", "a@example.com", 2, domain.RequestStatusPending),
				testRequest("r2", "l1", "b@example.com", 1, domain.RequestStatusAccepted),
			},
		)
		svc := NewCatalogService(store, clock.NewFixed(testNow), WithPublisher(pub))

		zero := 0
		updated, err := svc.UpdateListing(context.Background(), "l1", UpdateListingInput{Quantity: &zero})
		require.NoError(t, err)
		require.Equal(t, domain.ListingStatusDonated, updated.Status)
		require.Equal(t, domain.RequestStatusRejected, store.request("r1").Status)
		require.Equal(t, domain.RequestStatusAccepted, store.request("r2").Status)
		require.Equal(t, []domain.EventType{domain.EventListingDonated}, pub.types())
	})

	t.Run("raising quantity reopens listing", func(t *testing.T) {
		store := newFakeStore([]domain.Listing{testListing("l1", 0)}, nil)
		svc := NewCatalogService(store, clock.NewFixed(testNow))

		three := 3
		updated, err := svc.UpdateListing(context.Background(), "l1", UpdateListingInput{Quantity: &three})
		require.NoError(t, err)
		require.Equal(t, domain.ListingStatusAvailable, updated.Status)
	})

	t.Run("negative quantity", func(t *testing.T) {
		svc := NewCatalogService(newFakeStore([]domain.Listing{testListing("l1", 4)}, nil), clock.NewFixed(testNow))
		neg := -1
		_, err := svc.UpdateListing(context.Background(), "l1", UpdateListingInput{Quantity: &neg})
		require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("missing listing", func(t *testing.T) {
		svc := NewCatalogService(newFakeStore(nil, nil), clock.NewFixed(testNow))
		name := "x"
		_, err := svc.UpdateListing(context.Background(), "nope", UpdateListingInput{Name: &name})
		require.ErrorIs(t, err, domain.ErrListingNotFound)
	})
}

func TestCatalogService_DeleteListing(t *testing.T) {
	t.Parallel()

	store := newFakeStore(
		[]domain.Listing{testListing("l1", 4)},
		[]domain.Request{testRequest("r1", "l1", "a@example.com", 2, domain.RequestStatusPending)},
	)
	svc := NewCatalogService(store, clock.NewFixed(testNow))

	require.NoError(t, svc.DeleteListing(context.Background(), "l1"))
	require.ErrorIs(t, svc.DeleteListing(context.Background(), "l1"), domain.ErrListingNotFound)
	require.Equal(t, "r1", store.request("r1").ID, "requests outlive their listing")

	views, err := NewViewService(store).RequestsForRequester(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, views[0].Listing.Missing)
}
