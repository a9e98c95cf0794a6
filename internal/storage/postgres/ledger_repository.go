package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

const requestColumns = `id, listing_id, requester_email, requester_name, requester_photo_url,
	location, reason, contact_info, quantity_requested, status, created_at, decided_at`

// LedgerRepository stores requests and their decisions.
type LedgerRepository struct {
	conn
}

func NewLedgerRepository(c conn) *LedgerRepository {
	return &LedgerRepository{conn: c}
}

func scanRequest(row pgx.Row) (domain.Request, error) {
	var r domain.Request
	err := row.Scan(
		&r.ID, &r.ListingID, &r.RequesterEmail, &r.RequesterName, &r.RequesterPhotoURL,
		&r.Location, &r.Reason, &r.ContactInfo, &r.QuantityRequested, &r.Status, &r.CreatedAt, &r.DecidedAt,
	)
	return r, err
}

func collectRequests(rows pgx.Rows) ([]domain.Request, error) {
	defer rows.Close()
	requests := []domain.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate requests: %w", rows.Err())
	}
	return requests, nil
}

func statusStrings(statuses []domain.RequestStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// FindRequest returns the requester's request for the listing whose status
// is one of statuses, or nil when there is none.
func (r *LedgerRepository) FindRequest(ctx context.Context, listingID, email string, statuses ...domain.RequestStatus) (*domain.Request, error) {
	if !validID(listingID) {
		return nil, nil
	}
	query := `SELECT ` + requestColumns + ` FROM requests WHERE listing_id = $1 AND requester_email = $2`
	args := []any{listingID, email}
	if len(statuses) > 0 {
		query += ` AND status = ANY($3)`
		args = append(args, statusStrings(statuses))
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	req, err := scanRequest(r.queryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return &req, nil
}

func (r *LedgerRepository) SumPendingQuantity(ctx context.Context, listingID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(quantity_requested), 0)
FROM requests
WHERE listing_id = $1 AND status = 'pending'`

	if !validID(listingID) {
		return 0, nil
	}
	var total int
	if err := r.queryRow(ctx, query, listingID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum pending: %w", err)
	}
	return total, nil
}

func (r *LedgerRepository) InsertRequest(ctx context.Context, req domain.Request) error {
	const stmt = `
INSERT INTO requests (id, listing_id, requester_email, requester_name, requester_photo_url,
	location, reason, contact_info, quantity_requested, status, created_at, decided_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.exec(ctx, stmt,
		req.ID, req.ListingID, req.RequesterEmail, req.RequesterName, req.RequesterPhotoURL,
		req.Location, req.Reason, req.ContactInfo, req.QuantityRequested, req.Status, req.CreatedAt, req.DecidedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRequest
		}
		if isInvalidUUID(err) {
			return domain.ErrListingNotFound
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	return r.getRequest(ctx, id, false)
}

func (r *LedgerRepository) GetRequestForUpdate(ctx context.Context, id string) (domain.Request, error) {
	return r.getRequest(ctx, id, true)
}

func (r *LedgerRepository) getRequest(ctx context.Context, id string, forUpdate bool) (domain.Request, error) {
	if !validID(id) {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	req, err := scanRequest(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Request{}, domain.ErrRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (r *LedgerRepository) SetRequestStatus(ctx context.Context, id string, status domain.RequestStatus, decidedAt time.Time) error {
	if !validID(id) {
		return domain.ErrRequestNotFound
	}
	tag, err := r.exec(ctx, `UPDATE requests SET status = $2, decided_at = $3 WHERE id = $1`, id, status, decidedAt)
	if err != nil {
		return fmt.Errorf("set request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

// BulkRejectPending rejects every pending request on the listing except
// excludeID and returns how many were changed. An empty excludeID excludes nothing.
func (r *LedgerRepository) BulkRejectPending(ctx context.Context, listingID, excludeID string, decidedAt time.Time) (int, error) {
	if !validID(listingID) {
		return 0, nil
	}
	query := `UPDATE requests SET status = 'rejected', decided_at = $2 WHERE listing_id = $1 AND status = 'pending'`
	args := []any{listingID, decidedAt}
	if excludeID != "" {
		query += ` AND id <> $3`
		args = append(args, excludeID)
	}
	tag, err := r.exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk reject pending: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *LedgerRepository) ListByRequester(ctx context.Context, email string) ([]domain.Request, error) {
	rows, err := r.query(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE requester_email = $1 ORDER BY created_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	return collectRequests(rows)
}

func (r *LedgerRepository) ListByListingIDs(ctx context.Context, listingIDs []string) ([]domain.Request, error) {
	valid := make([]string, 0, len(listingIDs))
	for _, id := range listingIDs {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []domain.Request{}, nil
	}
	rows, err := r.query(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE listing_id = ANY($1::uuid[]) ORDER BY created_at DESC`,
		valid,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests by listings: %w", err)
	}
	return collectRequests(rows)
}
