package domain

import "time"

type EventType string

const (
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestAccepted  EventType = "request.accepted"
	EventRequestRejected  EventType = "request.rejected"
	EventListingDonated   EventType = "listing.donated"
)

// Event describes a committed change in the allocation workflow.
type Event struct {
	Type              EventType
	ListingID         string
	RequestID         string
	RequesterEmail    string
	QuantityRequested int
	// Remaining is the listing quantity after the change.
	Remaining int
	// Cascaded counts pending requests rejected because the listing ran out.
	Cascaded   int
	OccurredAt time.Time
}
