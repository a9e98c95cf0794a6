package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/app"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

type stubSubmitter struct {
	got app.SubmitRequestInput
	err error
}

func (s *stubSubmitter) Submit(_ context.Context, in app.SubmitRequestInput) (domain.Request, error) {
	s.got = in
	if s.err != nil {
		return domain.Request{}, s.err
	}
	return domain.Request{ID: "req-123", ListingID: in.ListingID, Status: domain.RequestStatusPending}, nil
}

type stubDecider struct {
	got app.DecideInput
	err error
}

func (s *stubDecider) Decide(_ context.Context, in app.DecideInput) (app.DecisionResult, error) {
	s.got = in
	if s.err != nil {
		return app.DecisionResult{}, s.err
	}
	return app.DecisionResult{Request: domain.Request{ID: in.RequestID, Status: in.Status}, Changed: true}, nil
}

type stubViewer struct {
	views    []domain.RequestView
	err      error
	gotEmail string
	gotOwner bool
}

func (s *stubViewer) RequestsForRequester(_ context.Context, email string) ([]domain.RequestView, error) {
	s.gotEmail = email
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	return s.views, s.err
}

func (s *stubViewer) RequestsForOwner(_ context.Context, email string) ([]domain.RequestView, error) {
	s.gotEmail = email
	s.gotOwner = true
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	return s.views, s.err
}

func TestHandleSubmitRequest(t *testing.T) {
	t.Parallel()

	const validBody = `{"listingId":"l1","requesterEmail":"r@example.com","location":"Dhaka","reason":"family","contactInfo":"017","quantityRequested":2}`

	tests := []struct {
		name           string
		method         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           validBody,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"requestId":"req-123"`,
		},
		{
			name:           "quantity as string",
			body:           `{"listingId":"l1","requesterEmail":"r@example.com","location":"Dhaka","reason":"family","contactInfo":"017","quantityRequested":"2"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid json",
			body:           `{"listingId":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
			expectedCode:   codeMethodNotAllowed,
		},
		{
			name:           "missing fields",
			body:           validBody,
			serviceErr:     &domain.ValidationError{Fields: []string{"location"}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeMissingRequiredField,
			expectedSubstr: `"fields":["location"]`,
		},
		{
			name:           "duplicate",
			body:           validBody,
			serviceErr:     domain.ErrDuplicateRequest,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeDuplicateRequest,
		},
		{
			name:           "listing not found",
			body:           validBody,
			serviceErr:     domain.ErrListingNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   codeListingNotFound,
		},
		{
			name:           "capacity exceeded",
			body:           validBody,
			serviceErr:     &domain.CapacityError{Available: 1},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeCapacityExceeded,
			expectedSubstr: `"available":1`,
		},
		{
			name:           "capacity exhausted reports zero",
			body:           validBody,
			serviceErr:     &domain.CapacityError{Available: 0},
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"available":0`,
		},
		{
			name:           "store unavailable",
			body:           validBody,
			serviceErr:     domain.ErrStoreUnavailable,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   codeInternalError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			method := tt.method
			if method == "" {
				method = http.MethodPost
			}
			svc := &stubSubmitter{err: tt.serviceErr}
			req := httptest.NewRequest(method, "/requests", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			HandleSubmitRequest(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			body := rec.Body.String()
			if tt.expectedSubstr != "" && !strings.Contains(body, tt.expectedSubstr) {
				t.Fatalf("expected body to contain %q, got %q", tt.expectedSubstr, body)
			}
			if tt.expectedCode != "" {
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Code != tt.expectedCode {
					t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
				}
			}
		})
	}
}

func TestHandleSubmitRequest_PassesInput(t *testing.T) {
	t.Parallel()

	svc := &stubSubmitter{}
	body := `{"listingId":" l1 ","requesterEmail":"r@example.com","requesterName":"Rafi","requesterPhotoUrl":"http://img","location":"Dhaka","reason":"family","contactInfo":"017","quantityRequested":3}`
	req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(body))
	rec := httptest.NewRecorder()

	HandleSubmitRequest(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	want := app.SubmitRequestInput{
		ListingID:         "l1",
		RequesterEmail:    "r@example.com",
		RequesterName:     "Rafi",
		RequesterPhotoURL: "http://img",
		Location:          "Dhaka",
		Reason:            "family",
		ContactInfo:       "017",
		QuantityRequested: 3,
	}
	if svc.got != want {
		t.Fatalf("expected input %+v, got %+v", want, svc.got)
	}
}

func TestHandleRequestItem_Decide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedCode   string
		expectedState  domain.RequestStatus
	}{
		{
			name:           "accept",
			path:           "/requests/req-1",
			body:           `{"status":"Accepted"}`,
			expectedStatus: http.StatusOK,
			expectedState:  domain.RequestStatusAccepted,
		},
		{
			name:           "reject lower case",
			path:           "/requests/req-1",
			body:           `{"status":"rejected"}`,
			expectedStatus: http.StatusOK,
			expectedState:  domain.RequestStatusRejected,
		},
		{
			name:           "missing status",
			path:           "/requests/req-1",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeMissingRequiredField,
		},
		{
			name:           "unknown status",
			path:           "/requests/req-1",
			body:           `{"status":"Pending"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidStatus,
		},
		{
			name:           "request not found",
			path:           "/requests/req-1",
			body:           `{"status":"Accepted"}`,
			serviceErr:     domain.ErrRequestNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   codeRequestNotFound,
		},
		{
			name:           "strict capacity",
			path:           "/requests/req-1",
			body:           `{"status":"Accepted"}`,
			serviceErr:     &domain.CapacityError{Available: 1},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeCapacityExceeded,
		},
		{
			name:           "nested path",
			path:           "/requests/req-1/extra",
			body:           `{"status":"Accepted"}`,
			expectedStatus: http.StatusNotFound,
			expectedCode:   codeNotFound,
		},
		{
			name:           "wrong method",
			method:         http.MethodPost,
			path:           "/requests/req-1",
			body:           `{"status":"Accepted"}`,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			method := tt.method
			if method == "" {
				method = http.MethodPatch
			}
			decider := &stubDecider{err: tt.serviceErr}
			req := httptest.NewRequest(method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			HandleRequestItem(decider, &stubViewer{}).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedCode != "" {
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Code != tt.expectedCode {
					t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
				}
			}
			if tt.expectedState != "" {
				if decider.got.RequestID != "req-1" || decider.got.Status != tt.expectedState {
					t.Fatalf("unexpected decide input %+v", decider.got)
				}
				if strings.TrimSpace(rec.Body.String()) != "{}" {
					t.Fatalf("expected empty object body, got %q", rec.Body.String())
				}
			}
		})
	}
}

func TestHandleRequestItem_Views(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	views := []domain.RequestView{
		{
			Request: domain.Request{
				ID:                "req-1",
				ListingID:         "l1",
				RequesterEmail:    "r@example.com",
				QuantityRequested: 2,
				Status:            domain.RequestStatusPending,
				CreatedAt:         created,
			},
			Listing: domain.ListingSnapshot{ID: "l1", Name: "Rice", Quantity: 4, Status: domain.ListingStatusAvailable},
		},
		{
			Request: domain.Request{ID: "req-2", ListingID: "gone", Status: domain.RequestStatusRejected, CreatedAt: created},
			Listing: domain.PlaceholderSnapshot("gone"),
		},
	}

	t.Run("requester view", func(t *testing.T) {
		t.Parallel()

		viewer := &stubViewer{views: views}
		req := httptest.NewRequest(http.MethodGet, "/requests/mine?email=r@example.com", nil)
		rec := httptest.NewRecorder()

		HandleRequestItem(&stubDecider{}, viewer).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if viewer.gotOwner || viewer.gotEmail != "r@example.com" {
			t.Fatalf("expected requester lookup for r@example.com, got owner=%v email=%q", viewer.gotOwner, viewer.gotEmail)
		}
		var resp []requestViewResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(resp) != 2 {
			t.Fatalf("expected 2 views, got %d", len(resp))
		}
		if resp[0].Listing.Name != "Rice" || resp[0].QuantityRequested != 2 {
			t.Fatalf("unexpected first view %+v", resp[0])
		}
		if !resp[1].Listing.Missing || resp[1].Listing.Name != "gone" {
			t.Fatalf("expected placeholder listing, got %+v", resp[1].Listing)
		}
	})

	t.Run("owner view", func(t *testing.T) {
		t.Parallel()

		viewer := &stubViewer{views: views[:1]}
		req := httptest.NewRequest(http.MethodGet, "/requests/owner?email=donor@example.com", nil)
		rec := httptest.NewRecorder()

		HandleRequestItem(&stubDecider{}, viewer).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !viewer.gotOwner || viewer.gotEmail != "donor@example.com" {
			t.Fatalf("expected owner lookup, got owner=%v email=%q", viewer.gotOwner, viewer.gotEmail)
		}
	})

	t.Run("empty result is an array", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/requests/mine?email=nobody@example.com", nil)
		rec := httptest.NewRecorder()

		HandleRequestItem(&stubDecider{}, &stubViewer{}).ServeHTTP(rec, req)

		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Fatalf("expected empty array, got %q", rec.Body.String())
		}
	})

	t.Run("email required", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/requests/owner", nil)
		rec := httptest.NewRecorder()

		HandleRequestItem(&stubDecider{}, &stubViewer{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()

		viewer := &stubViewer{err: errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp"))}
		req := httptest.NewRequest(http.MethodGet, "/requests/mine?email=r@example.com", nil)
		rec := httptest.NewRecorder()

		HandleRequestItem(&stubDecider{}, viewer).ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "dial tcp") {
			t.Fatalf("internal error leaked into body: %q", rec.Body.String())
		}
	})
}
