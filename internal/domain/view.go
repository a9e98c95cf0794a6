package domain

// ListingSnapshot is the part of a listing shown next to a request.
type ListingSnapshot struct {
	ID             string
	Name           string
	ImageURL       string
	Quantity       int
	Status         ListingStatus
	PickupLocation string
	OwnerName      string
	OwnerEmail     string
	Missing        bool
}

// SnapshotOf copies the display fields of a listing.
func SnapshotOf(l Listing) ListingSnapshot {
	return ListingSnapshot{
		ID:             l.ID,
		Name:           l.Name,
		ImageURL:       l.ImageURL,
		Quantity:       l.Quantity,
		Status:         l.Status,
		PickupLocation: l.PickupLocation,
		OwnerName:      l.OwnerName,
		OwnerEmail:     l.OwnerEmail,
	}
}

// PlaceholderSnapshot stands in for a listing that can no longer be resolved.
func PlaceholderSnapshot(listingID string) ListingSnapshot {
	return ListingSnapshot{
		ID:      listingID,
		Name:    listingID,
		Missing: true,
	}
}

// RequestView joins a request with the listing it refers to.
type RequestView struct {
	Request Request
	Listing ListingSnapshot
}
