package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		*n = flexInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

type listingResponse struct {
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

func toListingResponse(l domain.Listing) listingResponse {
	return listingResponse{
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
	}
}

func toListingResponses(listings []domain.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	return out
}

type snapshotResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ImageURL       string `json:"imageUrl"`
	Quantity       int    `json:"quantity"`
	Status         string `json:"status,omitempty"`
	PickupLocation string `json:"pickupLocation,omitempty"`
	OwnerName      string `json:"ownerName,omitempty"`
	OwnerEmail     string `json:"ownerEmail,omitempty"`
	Missing        bool   `json:"missing,omitempty"`
}

type requestViewResponse struct {
	ID                string           `json:"id"`
	ListingID         string           `json:"listingId"`
	RequesterEmail    string           `json:"requesterEmail"`
	RequesterName     string           `json:"requesterName,omitempty"`
	RequesterPhotoURL string           `json:"requesterPhotoUrl,omitempty"`
	Location          string           `json:"location"`
	Reason            string           `json:"reason"`
	ContactInfo       string           `json:"contactInfo"`
	QuantityRequested int              `json:"quantityRequested"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"createdAt"`
	DecidedAt         *time.Time       `json:"decidedAt,omitempty"`
	Listing           snapshotResponse `json:"listing"`
}

func toRequestViewResponses(views []domain.RequestView) []requestViewResponse {
	out := make([]requestViewResponse, 0, len(views))
	for _, v := range views {
		r, l := v.Request, v.Listing
		out = append(out, requestViewResponse{
			ID:                r.ID,
			ListingID:         r.ListingID,
			RequesterEmail:    r.RequesterEmail,
			RequesterName:     r.RequesterName,
			RequesterPhotoURL: r.RequesterPhotoURL,
			Location:          r.Location,
			Reason:            r.Reason,
			ContactInfo:       r.ContactInfo,
			QuantityRequested: r.QuantityRequested,
			Status:            string(r.Status),
			CreatedAt:         r.CreatedAt,
			DecidedAt:         r.DecidedAt,
			Listing: snapshotResponse{
				ID:             l.ID,
				Name:           l.Name,
				ImageURL:       l.ImageURL,
				Quantity:       l.Quantity,
				Status:         string(l.Status),
				PickupLocation: l.PickupLocation,
				OwnerName:      l.OwnerName,
				OwnerEmail:     l.OwnerEmail,
				Missing:        l.Missing,
			},
		})
	}
	return out
}
