package domain

import "time"

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusDonated   ListingStatus = "donated"
)

// Listing is a donor-posted food item. Quantity is the number of portions
// still allocatable; Status is Donated exactly when Quantity is zero.
type Listing struct {
	ID             string
	Name           string
	ImageURL       string
	Quantity       int
	PickupLocation string
	ExpiresAt      time.Time
	Notes          string
	OwnerName      string
	OwnerEmail     string
	OwnerImageURL  string
	Status         ListingStatus
	CreatedAt      time.Time
}

// StatusForQuantity derives the listing status from its remaining quantity.
func StatusForQuantity(quantity int) ListingStatus {
	if quantity <= 0 {
		return ListingStatusDonated
	}
	return ListingStatusAvailable
}
