package domain

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// Terminal reports whether no further decision can change the status.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusRejected
}

// ParseDecision accepts "Accepted"/"Rejected" in any case.
func ParseDecision(s string) (RequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RequestStatusAccepted):
		return RequestStatusAccepted, nil
	case string(RequestStatusRejected):
		return RequestStatusRejected, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Request is a recipient's claim on part of a listing. Requests are never
// deleted; Accepted and Rejected are terminal.
type Request struct {
	ID                string
	ListingID         string
	RequesterEmail    string
	RequesterName     string
	RequesterPhotoURL string
	Location          string
	Reason            string
	ContactInfo       string
	QuantityRequested int
	Status            RequestStatus
	CreatedAt         time.Time
	DecidedAt         *time.Time
}
