package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/clock"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type DecisionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetRequest(ctx context.Context, requestID string) (domain.Request, error)
	GetRequestForUpdate(ctx context.Context, requestID string) (domain.Request, error)
	GetListingForUpdate(ctx context.Context, listingID string) (domain.Listing, error)
	UpdateListingQuantityAndStatus(ctx context.Context, listingID string, quantity int, status domain.ListingStatus) error
	SetRequestStatus(ctx context.Context, requestID string, status domain.RequestStatus, decidedAt time.Time) error
	BulkRejectPending(ctx context.Context, listingID, excludeRequestID string, decidedAt time.Time) (int, error)
}

// DecisionService applies an owner's accept/reject decision to a pending request.
type DecisionService struct {
	repo  DecisionRepository
	clock clock.Clock
	settings
}

func NewDecisionService(repo DecisionRepository, clk clock.Clock, opts ...Option) *DecisionService {
	return &DecisionService{
		repo:     repo,
		clock:    clk,
		settings: newSettings(opts),
	}
}

type DecideInput struct {
	RequestID string
	Status    domain.RequestStatus
}

type DecisionResult struct {
	Request domain.Request
	// Listing is set when an accept changed the listing.
	Listing *domain.Listing
	// Cascaded counts the sibling requests rejected by exhaustion.
	Cascaded int
	// Changed is false when the request was already terminal.
	Changed bool
}

// Decide moves a pending request to Accepted or Rejected. Deciding on a
// request that is already terminal succeeds without touching anything.
func (s *DecisionService) Decide(ctx context.Context, in DecideInput) (result DecisionResult, err error) {
	ctx, span := s.tracer.Start(ctx, "request.decide", trace.WithAttributes(
		attribute.String("request.id", in.RequestID),
		attribute.String("request.decision", string(in.Status)),
	))
	defer func() { finishSpan(span, err) }()

	if strings.TrimSpace(in.RequestID) == "" {
		return DecisionResult{}, &domain.ValidationError{Fields: []string{"id"}}
	}
	if !in.Status.Terminal() {
		return DecisionResult{}, domain.ErrInvalidStatus
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	now := s.clock.Now()
	err = s.repo.WithTx(storeCtx, func(txCtx context.Context) error {
		req, err := s.repo.GetRequest(txCtx, in.RequestID)
		if err != nil {
			return err
		}

		// Lock the listing before re-reading the request so decisions and
		// admissions on the same listing take locks in the same order.
		listing, err := s.repo.GetListingForUpdate(txCtx, req.ListingID)
		listingMissing := errors.Is(err, domain.ErrListingNotFound)
		if err != nil && !listingMissing {
			return err
		}

		req, err = s.repo.GetRequestForUpdate(txCtx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			result = DecisionResult{Request: req}
			return nil
		}

		if in.Status == domain.RequestStatusRejected {
			if err := s.repo.SetRequestStatus(txCtx, req.ID, domain.RequestStatusRejected, now); err != nil {
				return err
			}
			req.Status = domain.RequestStatusRejected
			req.DecidedAt = &now
			result = DecisionResult{Request: req, Changed: true}
			return nil
		}

		if listingMissing {
			return domain.ErrListingNotFound
		}
		res, err := s.accept(txCtx, listing, req, now)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		err = classify(err)
		s.logDecideFailure(in, err)
		return DecisionResult{}, err
	}

	span.SetAttributes(
		attribute.Bool("request.changed", result.Changed),
		attribute.Int("listing.cascaded", result.Cascaded),
	)
	if result.Changed {
		s.logger.Info("request decided",
			zap.String("request_id", result.Request.ID),
			zap.String("listing_id", result.Request.ListingID),
			zap.String("status", string(result.Request.Status)),
			zap.Int("cascaded", result.Cascaded),
		)
		s.publish(ctx, decisionEvents(result, now)...)
	}
	return result, nil
}

func (s *DecisionService) accept(ctx context.Context, listing domain.Listing, req domain.Request, now time.Time) (DecisionResult, error) {
	remaining, err := s.acceptPolicy.Remaining(listing, req)
	if err != nil {
		return DecisionResult{}, err
	}
	status := domain.StatusForQuantity(remaining)
	if err := s.repo.UpdateListingQuantityAndStatus(ctx, listing.ID, remaining, status); err != nil {
		return DecisionResult{}, err
	}
	if err := s.repo.SetRequestStatus(ctx, req.ID, domain.RequestStatusAccepted, now); err != nil {
		return DecisionResult{}, err
	}

	cascaded := 0
	if remaining == 0 {
		cascaded, err = s.repo.BulkRejectPending(ctx, listing.ID, req.ID, now)
		if err != nil {
			return DecisionResult{}, err
		}
	}

	listing.Quantity = remaining
	listing.Status = status
	req.Status = domain.RequestStatusAccepted
	req.DecidedAt = &now
	return DecisionResult{
		Request:  req,
		Listing:  &listing,
		Cascaded: cascaded,
		Changed:  true,
	}, nil
}

func decisionEvents(result DecisionResult, now time.Time) []domain.Event {
	req := result.Request
	base := domain.Event{
		ListingID:         req.ListingID,
		RequestID:         req.ID,
		RequesterEmail:    req.RequesterEmail,
		QuantityRequested: req.QuantityRequested,
		OccurredAt:        now,
	}
	if req.Status == domain.RequestStatusRejected {
		base.Type = domain.EventRequestRejected
		return []domain.Event{base}
	}

	base.Type = domain.EventRequestAccepted
	base.Remaining = result.Listing.Quantity
	events := []domain.Event{base}
	if result.Listing.Status == domain.ListingStatusDonated {
		events = append(events, domain.Event{
			Type:       domain.EventListingDonated,
			ListingID:  req.ListingID,
			RequestID:  req.ID,
			Cascaded:   result.Cascaded,
			OccurredAt: now,
		})
	}
	return events
}

func (s *DecisionService) logDecideFailure(in DecideInput, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("request_id", in.RequestID),
		zap.String("status", string(in.Status)),
	}
	if isStoreFailure(err) {
		s.logger.Error("decide request failed", fields...)
		return
	}
	s.logger.Info("decide request refused", fields...)
}
