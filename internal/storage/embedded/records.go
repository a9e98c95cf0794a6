package embedded

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

type listingRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ImageURL       string    `json:"imageUrl"`
	Quantity       int       `json:"quantity"`
	PickupLocation string    `json:"pickupLocation"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Notes          string    `json:"notes,omitempty"`
	OwnerName      string    `json:"ownerName"`
	OwnerEmail     string    `json:"ownerEmail"`
	OwnerImageURL  string    `json:"ownerImageUrl,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type requestRecord struct {
	ID                string     `json:"id"`
	ListingID         string     `json:"listingId"`
	RequesterEmail    string     `json:"requesterEmail"`
	RequesterName     string     `json:"requesterName,omitempty"`
	RequesterPhotoURL string     `json:"requesterPhotoUrl,omitempty"`
	Location          string     `json:"location"`
	Reason            string     `json:"reason"`
	ContactInfo       string     `json:"contactInfo"`
	QuantityRequested int        `json:"quantityRequested"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
	DecidedAt         *time.Time `json:"decidedAt,omitempty"`
}

func encodeListing(l domain.Listing) ([]byte, error) {
	b, err := json.Marshal(listingRecord{
		ID:             l.ID,
		Name:           l.Name,
		ImageURL:       l.ImageURL,
		Quantity:       l.Quantity,
		PickupLocation: l.PickupLocation,
		ExpiresAt:      l.ExpiresAt,
		Notes:          l.Notes,
		OwnerName:      l.OwnerName,
		OwnerEmail:     l.OwnerEmail,
		OwnerImageURL:  l.OwnerImageURL,
		Status:         string(l.Status),
		CreatedAt:      l.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	return b, nil
}

func decodeListing(b []byte) (domain.Listing, error) {
	var r listingRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	return domain.Listing{
		ID:             r.ID,
		Name:           r.Name,
		ImageURL:       r.ImageURL,
		Quantity:       r.Quantity,
		PickupLocation: r.PickupLocation,
		ExpiresAt:      r.ExpiresAt,
		Notes:          r.Notes,
		OwnerName:      r.OwnerName,
		OwnerEmail:     r.OwnerEmail,
		OwnerImageURL:  r.OwnerImageURL,
		Status:         domain.ListingStatus(r.Status),
		CreatedAt:      r.CreatedAt,
	}, nil
}

func encodeRequest(req domain.Request) ([]byte, error) {
	b, err := json.Marshal(requestRecord{
		ID:                req.ID,
		ListingID:         req.ListingID,
		RequesterEmail:    req.RequesterEmail,
		RequesterName:     req.RequesterName,
		RequesterPhotoURL: req.RequesterPhotoURL,
		Location:          req.Location,
		Reason:            req.Reason,
		ContactInfo:       req.ContactInfo,
		QuantityRequested: req.QuantityRequested,
		Status:            string(req.Status),
		CreatedAt:         req.CreatedAt,
		DecidedAt:         req.DecidedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return b, nil
}

func decodeRequest(b []byte) (domain.Request, error) {
	var r requestRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return domain.Request{
		ID:                r.ID,
		ListingID:         r.ListingID,
		RequesterEmail:    r.RequesterEmail,
		RequesterName:     r.RequesterName,
		RequesterPhotoURL: r.RequesterPhotoURL,
		Location:          r.Location,
		Reason:            r.Reason,
		ContactInfo:       r.ContactInfo,
		QuantityRequested: r.QuantityRequested,
		Status:            domain.RequestStatus(r.Status),
		CreatedAt:         r.CreatedAt,
		DecidedAt:         r.DecidedAt,
	}, nil
}
