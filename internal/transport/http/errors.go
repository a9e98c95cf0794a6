package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidExpiresAt     = "invalid_expires_at"
	codeInvalidStatus        = "invalid_status"
	codeInvalidQuantity      = "invalid_quantity"
	codeEmailRequired        = "email_required"
	codeListingNotFound      = "listing_not_found"
	codeRequestNotFound      = "request_not_found"
	codeDuplicateRequest     = "duplicate_request"
	codeCapacityExceeded     = "capacity_exceeded"
	codeForbidden            = "forbidden"
	codeServiceUnavailable   = "service_unavailable"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	Available *int     `json:"available,omitempty"`
	Fields    []string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors onto the HTTP error envelope.
// Store failures and anything unrecognised become a 500 without details.
func writeDomainError(w http.ResponseWriter, err error) {
	var capErr *domain.CapacityError
	var valErr *domain.ValidationError
	switch {
	case errors.As(err, &valErr):
		writeErrorResponse(w, http.StatusBadRequest, errorResponse{
			Error:  "missing required fields",
			Code:   codeMissingRequiredField,
			Fields: valErr.Fields,
		})
	case errors.As(err, &capErr):
		available := capErr.Available
		writeErrorResponse(w, http.StatusBadRequest, errorResponse{
			Error:     capErr.Error(),
			Code:      codeCapacityExceeded,
			Available: &available,
		})
	case errors.Is(err, domain.ErrDuplicateRequest):
		writeError(w, http.StatusBadRequest, codeDuplicateRequest, "you have already requested this listing")
	case errors.Is(err, domain.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, codeInvalidStatus, "status must be accepted or rejected")
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrEmailRequired):
		writeError(w, http.StatusBadRequest, codeEmailRequired, "email is required")
	case errors.Is(err, domain.ErrListingNotFound):
		writeError(w, http.StatusNotFound, codeListingNotFound, "listing not found")
	case errors.Is(err, domain.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, codeRequestNotFound, "request not found")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
