package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName          = "github.com/jubayer-ahmed-ratul/plateshare-server/internal/app"
	DefaultStoreTimeout = 5 * time.Second
	DefaultTopListings  = 6
)

// EventPublisher receives lifecycle events after the change has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) error { return nil }

type settings struct {
	logger        *zap.Logger
	tracer        trace.Tracer
	publisher     EventPublisher
	storeTimeout  time.Duration
	acceptPolicy  AcceptPolicy
	allowResubmit bool
	topListings   int
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:        zap.NewNop(),
		tracer:        otel.Tracer(tracerName),
		publisher:     noopPublisher{},
		storeTimeout:  DefaultStoreTimeout,
		acceptPolicy:  ClampToZero,
		allowResubmit: true,
		topListings:   DefaultTopListings,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures the services in this package.
type Option func(*settings)

// WithLogger sets the structured logger used for domain outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithPublisher sets where lifecycle events are sent.
func WithPublisher(p EventPublisher) Option {
	return func(s *settings) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithStoreTimeout bounds every unit of work against the store.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithAcceptPolicy replaces the clamp-to-zero accept behavior.
func WithAcceptPolicy(p AcceptPolicy) Option {
	return func(s *settings) {
		if p != nil {
			s.acceptPolicy = p
		}
	}
}

// WithResubmitAfterRejection controls whether a rejected requester may ask again.
func WithResubmitAfterRejection(allow bool) Option {
	return func(s *settings) {
		s.allowResubmit = allow
	}
}

// WithTopListings sets how many listings TopListings returns.
func WithTopListings(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.topListings = n
		}
	}
}

func (s settings) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s settings) publish(ctx context.Context, events ...domain.Event) {
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("publish event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("listing_id", event.ListingID),
				zap.String("request_id", event.RequestID),
			)
		}
	}
}

var domainErrors = []error{
	domain.ErrValidation,
	domain.ErrInvalidQuantity,
	domain.ErrInvalidStatus,
	domain.ErrListingNotFound,
	domain.ErrRequestNotFound,
	domain.ErrDuplicateRequest,
	domain.ErrCapacityExceeded,
	domain.ErrStoreUnavailable,
	domain.ErrEmailRequired,
}

// classify passes domain errors through and reports everything else,
// including store timeouts, as ErrStoreUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func isStoreFailure(err error) bool {
	return errors.Is(err, domain.ErrStoreUnavailable)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
