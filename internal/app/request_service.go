package app

import (
	"context"
	"strings"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/clock"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AdmissionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetListingForUpdate(ctx context.Context, listingID string) (domain.Listing, error)
	FindRequest(ctx context.Context, listingID, requesterEmail string, statuses ...domain.RequestStatus) (*domain.Request, error)
	SumPendingQuantity(ctx context.Context, listingID string) (int, error)
	InsertRequest(ctx context.Context, req domain.Request) error
}

// RequestService admits new requests against a listing.
type RequestService struct {
	repo  AdmissionRepository
	clock clock.Clock
	settings
}

func NewRequestService(repo AdmissionRepository, clk clock.Clock, opts ...Option) *RequestService {
	return &RequestService{
		repo:     repo,
		clock:    clk,
		settings: newSettings(opts),
	}
}

type SubmitRequestInput struct {
	ListingID         string
	RequesterEmail    string
	RequesterName     string
	RequesterPhotoURL string
	Location          string
	Reason            string
	ContactInfo       string
	QuantityRequested int
}

func (in SubmitRequestInput) validate() error {
	var fields []string
	required := []struct {
		name  string
		value string
	}{
		{"listingId", in.ListingID},
		{"requesterEmail", in.RequesterEmail},
		{"location", in.Location},
		{"reason", in.Reason},
		{"contactInfo", in.ContactInfo},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields = append(fields, f.name)
		}
	}
	if in.QuantityRequested <= 0 {
		fields = append(fields, "quantityRequested")
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// blockingStatuses are the request states that prevent the same requester
// from asking for the same listing again.
func (s *RequestService) blockingStatuses() []domain.RequestStatus {
	if s.allowResubmit {
		return []domain.RequestStatus{domain.RequestStatusPending, domain.RequestStatusAccepted}
	}
	return []domain.RequestStatus{domain.RequestStatusPending, domain.RequestStatusAccepted, domain.RequestStatusRejected}
}

func (s *RequestService) ensureNoDuplicate(ctx context.Context, in SubmitRequestInput) error {
	existing, err := s.repo.FindRequest(ctx, in.ListingID, in.RequesterEmail, s.blockingStatuses()...)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrDuplicateRequest
	}
	return nil
}

// Submit records a pending request if the requester has no open request for
// the listing and the listing still has room for it. The capacity check and
// the insert run while the listing row is locked.
func (s *RequestService) Submit(ctx context.Context, in SubmitRequestInput) (result domain.Request, err error) {
	ctx, span := s.tracer.Start(ctx, "request.submit", trace.WithAttributes(
		attribute.String("listing.id", in.ListingID),
		attribute.Int("request.quantity", in.QuantityRequested),
	))
	defer func() { finishSpan(span, err) }()

	if err := in.validate(); err != nil {
		return domain.Request{}, err
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	now := s.clock.Now()
	err = s.repo.WithTx(storeCtx, func(txCtx context.Context) error {
		if err := s.ensureNoDuplicate(txCtx, in); err != nil {
			return err
		}

		listing, err := s.repo.GetListingForUpdate(txCtx, in.ListingID)
		if err != nil {
			return err
		}

		// Re-check under the listing lock: a submit for the same pair may have
		// committed between the first check and the lock.
		if err := s.ensureNoDuplicate(txCtx, in); err != nil {
			return err
		}

		committed, err := s.repo.SumPendingQuantity(txCtx, listing.ID)
		if err != nil {
			return err
		}
		available := listing.Quantity - committed
		if available < 0 {
			available = 0
		}
		if in.QuantityRequested > available {
			return &domain.CapacityError{Available: available}
		}

		req := domain.Request{
			ID:                newID(),
			ListingID:         listing.ID,
			RequesterEmail:    in.RequesterEmail,
			RequesterName:     in.RequesterName,
			RequesterPhotoURL: in.RequesterPhotoURL,
			Location:          in.Location,
			Reason:            in.Reason,
			ContactInfo:       in.ContactInfo,
			QuantityRequested: in.QuantityRequested,
			Status:            domain.RequestStatusPending,
			CreatedAt:         now,
		}
		if err := s.repo.InsertRequest(txCtx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		err = classify(err)
		s.logSubmitFailure(in, err)
		return domain.Request{}, err
	}

	span.SetAttributes(attribute.String("request.id", result.ID))
	s.logger.Info("request submitted",
		zap.String("request_id", result.ID),
		zap.String("listing_id", result.ListingID),
		zap.Int("quantity", result.QuantityRequested),
	)
	s.publish(ctx, domain.Event{
		Type:              domain.EventRequestSubmitted,
		ListingID:         result.ListingID,
		RequestID:         result.ID,
		RequesterEmail:    result.RequesterEmail,
		QuantityRequested: result.QuantityRequested,
		OccurredAt:        now,
	})
	return result, nil
}

func (s *RequestService) logSubmitFailure(in SubmitRequestInput, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("listing_id", in.ListingID),
		zap.Int("quantity", in.QuantityRequested),
	}
	if isStoreFailure(err) {
		s.logger.Error("submit request failed", fields...)
		return
	}
	s.logger.Info("submit request refused", fields...)
}
