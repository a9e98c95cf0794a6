package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/app"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

// ListingCatalog is the listing CRUD surface used by the handlers.
type ListingCatalog interface {
	CreateListing(ctx context.Context, in app.CreateListingInput) (domain.Listing, error)
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	ListListings(ctx context.Context) ([]domain.Listing, error)
	ListAvailable(ctx context.Context) ([]domain.Listing, error)
	TopListings(ctx context.Context) ([]domain.Listing, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Listing, error)
	UpdateListing(ctx context.Context, id string, in app.UpdateListingInput) (domain.Listing, error)
	DeleteListing(ctx context.Context, id string) error
}

type createListingBody struct {
	Name           string  `json:"name"`
	ImageURL       string  `json:"imageUrl"`
	Quantity       flexInt `json:"quantity"`
	PickupLocation string  `json:"pickupLocation"`
	ExpiresAt      string  `json:"expiresAt"`
	Notes          string  `json:"notes"`
	OwnerName      string  `json:"ownerName"`
	OwnerEmail     string  `json:"ownerEmail"`
	OwnerImageURL  string  `json:"ownerImageUrl"`
}

type updateListingBody struct {
	Name           *string  `json:"name"`
	ImageURL       *string  `json:"imageUrl"`
	Quantity       *flexInt `json:"quantity"`
	PickupLocation *string  `json:"pickupLocation"`
	ExpiresAt      *string  `json:"expiresAt"`
	Notes          *string  `json:"notes"`
}

// HandleListings serves GET and POST /listings.
func HandleListings(svc ListingCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			serveListings(w, r, svc.ListListings)
		case http.MethodPost:
			var body createListingBody
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			var expiresAt time.Time
			if body.ExpiresAt != "" {
				parsed, err := parseDate(body.ExpiresAt)
				if err != nil {
					writeError(w, http.StatusBadRequest, codeInvalidExpiresAt, "invalid expiresAt format")
					return
				}
				expiresAt = parsed
			}

			listing, err := svc.CreateListing(r.Context(), app.CreateListingInput{
				Name:           body.Name,
				ImageURL:       body.ImageURL,
				Quantity:       int(body.Quantity),
				PickupLocation: body.PickupLocation,
				ExpiresAt:      expiresAt,
				Notes:          body.Notes,
				OwnerName:      body.OwnerName,
				OwnerEmail:     strings.TrimSpace(body.OwnerEmail),
				OwnerImageURL:  body.OwnerImageURL,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toListingResponse(listing))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleListingItem serves the /listings/ subtree: the available, top and
// mine collections, and GET, PATCH and DELETE on /listings/{id}.
func HandleListingItem(svc ListingCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segment, ok := parseItemPath(r.URL.Path, "/listings/")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch segment {
		case "available":
			serveListings(w, r, svc.ListAvailable)
			return
		case "top":
			serveListings(w, r, svc.TopListings)
			return
		case "mine":
			serveListings(w, r, func(ctx context.Context) ([]domain.Listing, error) {
				return svc.ListByOwner(ctx, strings.TrimSpace(r.URL.Query().Get("email")))
			})
			return
		}

		switch r.Method {
		case http.MethodGet:
			listing, err := svc.GetListing(r.Context(), segment)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toListingResponse(listing))
		case http.MethodPatch:
			in, ok := decodeListingPatch(w, r)
			if !ok {
				return
			}
			listing, err := svc.UpdateListing(r.Context(), segment, in)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toListingResponse(listing))
		case http.MethodDelete:
			if err := svc.DeleteListing(r.Context(), segment); err != nil {
				writeDomainError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func serveListings(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]domain.Listing, error)) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	listings, err := list(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(listings))
}

func decodeListingPatch(w http.ResponseWriter, r *http.Request) (app.UpdateListingInput, bool) {
	var body updateListingBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return app.UpdateListingInput{}, false
	}
	in := app.UpdateListingInput{
		Name:           body.Name,
		ImageURL:       body.ImageURL,
		PickupLocation: body.PickupLocation,
		Notes:          body.Notes,
	}
	if body.Quantity != nil {
		q := int(*body.Quantity)
		in.Quantity = &q
	}
	if body.ExpiresAt != nil {
		parsed, err := parseDate(*body.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidExpiresAt, "invalid expiresAt format")
			return app.UpdateListingInput{}, false
		}
		in.ExpiresAt = &parsed
	}
	return in, true
}
