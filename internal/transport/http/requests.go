package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/app"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

// RequestSubmitter is the minimal interface needed to submit a request.
type RequestSubmitter interface {
	Submit(ctx context.Context, in app.SubmitRequestInput) (domain.Request, error)
}

// RequestDecider is the minimal interface needed to decide a request.
type RequestDecider interface {
	Decide(ctx context.Context, in app.DecideInput) (app.DecisionResult, error)
}

// RequestViewer lists requests joined with their listings.
type RequestViewer interface {
	RequestsForRequester(ctx context.Context, email string) ([]domain.RequestView, error)
	RequestsForOwner(ctx context.Context, email string) ([]domain.RequestView, error)
}

type submitRequestBody struct {
	ListingID         string  `json:"listingId"`
	RequesterEmail    string  `json:"requesterEmail"`
	RequesterName     string  `json:"requesterName"`
	RequesterPhotoURL string  `json:"requesterPhotoUrl"`
	Location          string  `json:"location"`
	Reason            string  `json:"reason"`
	ContactInfo       string  `json:"contactInfo"`
	QuantityRequested flexInt `json:"quantityRequested"`
}

type submitRequestResponse struct {
	RequestID string `json:"requestId"`
}

// HandleSubmitRequest serves POST /requests.
func HandleSubmitRequest(svc RequestSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var body submitRequestBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		req, err := svc.Submit(r.Context(), app.SubmitRequestInput{
			ListingID:         strings.TrimSpace(body.ListingID),
			RequesterEmail:    strings.TrimSpace(body.RequesterEmail),
			RequesterName:     body.RequesterName,
			RequesterPhotoURL: body.RequesterPhotoURL,
			Location:          body.Location,
			Reason:            body.Reason,
			ContactInfo:       body.ContactInfo,
			QuantityRequested: int(body.QuantityRequested),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, submitRequestResponse{RequestID: req.ID})
	}
}

type decideRequestBody struct {
	Status string `json:"status"`
}

// HandleRequestItem serves the /requests/ subtree: GET /requests/mine,
// GET /requests/owner and PATCH /requests/{id}.
func HandleRequestItem(decider RequestDecider, viewer RequestViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segment, ok := parseItemPath(r.URL.Path, "/requests/")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch segment {
		case "mine":
			serveViews(w, r, viewer.RequestsForRequester)
		case "owner":
			serveViews(w, r, viewer.RequestsForOwner)
		default:
			serveDecision(w, r, decider, segment)
		}
	}
}

// HandleDecideRequest serves PATCH /decide-request/{id}.
func HandleDecideRequest(decider RequestDecider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseItemPath(r.URL.Path, "/decide-request/")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		serveDecision(w, r, decider, id)
	}
}

func HandleRequesterViews(viewer RequestViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveViews(w, r, viewer.RequestsForRequester)
	}
}

func HandleOwnerViews(viewer RequestViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveViews(w, r, viewer.RequestsForOwner)
	}
}

func serveViews(w http.ResponseWriter, r *http.Request, list func(context.Context, string) ([]domain.RequestView, error)) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	views, err := list(r.Context(), strings.TrimSpace(r.URL.Query().Get("email")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestViewResponses(views))
}

func serveDecision(w http.ResponseWriter, r *http.Request, decider RequestDecider, requestID string) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var body decideRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Status) == "" {
		writeErrorResponse(w, http.StatusBadRequest, errorResponse{
			Error:  "status is required",
			Code:   codeMissingRequiredField,
			Fields: []string{"status"},
		})
		return
	}
	status, err := domain.ParseDecision(body.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := decider.Decide(r.Context(), app.DecideInput{RequestID: requestID, Status: status}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// parseItemPath returns the single path segment after prefix.
func parseItemPath(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
