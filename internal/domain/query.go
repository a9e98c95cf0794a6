package domain

// ListingQuery filters and orders catalog listings.
type ListingQuery struct {
	Status              ListingStatus
	OrderByQuantityDesc bool
	Limit               int
}
