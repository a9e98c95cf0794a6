package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jubayer-ahmed-ratul/plateshare-server/internal/domain"
)

const listingColumns = `id, name, image_url, quantity, pickup_location, expires_at, notes,
	owner_name, owner_email, owner_image_url, status, created_at`

// CatalogRepository stores listings.
type CatalogRepository struct {
	conn
}

func NewCatalogRepository(c conn) *CatalogRepository {
	return &CatalogRepository{conn: c}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.Name, &l.ImageURL, &l.Quantity, &l.PickupLocation, &l.ExpiresAt, &l.Notes,
		&l.OwnerName, &l.OwnerEmail, &l.OwnerImageURL, &l.Status, &l.CreatedAt,
	)
	return l, err
}

func collectListings(rows pgx.Rows, what string) ([]domain.Listing, error) {
	defer rows.Close()
	listings := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		listings = append(listings, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, rows.Err())
	}
	return listings, nil
}

func (r *CatalogRepository) CreateListing(ctx context.Context, l domain.Listing) error {
	const stmt = `
INSERT INTO listings (id, name, image_url, quantity, pickup_location, expires_at, notes,
	owner_name, owner_email, owner_image_url, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.exec(ctx, stmt,
		l.ID, l.Name, l.ImageURL, l.Quantity, l.PickupLocation, l.ExpiresAt, l.Notes,
		l.OwnerName, l.OwnerEmail, l.OwnerImageURL, l.Status, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	return r.getListing(ctx, id, false)
}

// GetListingForUpdate reads the listing and holds its row lock until the
// surrounding transaction ends.
func (r *CatalogRepository) GetListingForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	return r.getListing(ctx, id, true)
}

func (r *CatalogRepository) getListing(ctx context.Context, id string, forUpdate bool) (domain.Listing, error) {
	if !validID(id) {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	l, err := scanListing(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *CatalogRepository) GetListingsByIDs(ctx context.Context, ids []string) ([]domain.Listing, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []domain.Listing{}, nil
	}
	rows, err := r.query(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, fmt.Errorf("get listings by ids: %w", err)
	}
	return collectListings(rows, "listing")
}

func (r *CatalogRepository) UpdateListing(ctx context.Context, l domain.Listing) error {
	const stmt = `
UPDATE listings
SET name = $2, image_url = $3, quantity = $4, pickup_location = $5, expires_at = $6,
	notes = $7, status = $8
WHERE id = $1`

	if !validID(l.ID) {
		return domain.ErrListingNotFound
	}
	tag, err := r.exec(ctx, stmt, l.ID, l.Name, l.ImageURL, l.Quantity, l.PickupLocation, l.ExpiresAt, l.Notes, l.Status)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *CatalogRepository) UpdateListingQuantityAndStatus(ctx context.Context, id string, quantity int, status domain.ListingStatus) error {
	if !validID(id) {
		return domain.ErrListingNotFound
	}
	tag, err := r.exec(ctx, `UPDATE listings SET quantity = $2, status = $3 WHERE id = $1`, id, quantity, status)
	if err != nil {
		return fmt.Errorf("update listing quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *CatalogRepository) DeleteListing(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrListingNotFound
	}
	tag, err := r.exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *CatalogRepository) ListListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + listingColumns + ` FROM listings`)
	if q.Status != "" {
		args = append(args, q.Status)
		fmt.Fprintf(&sb, ` WHERE status = $%d`, len(args))
	}
	if q.OrderByQuantityDesc {
		sb.WriteString(` ORDER BY quantity DESC, created_at DESC`)
	} else {
		sb.WriteString(` ORDER BY created_at DESC`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := r.query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return collectListings(rows, "listing")
}

func (r *CatalogRepository) ListListingsByOwner(ctx context.Context, ownerEmail string) ([]domain.Listing, error) {
	rows, err := r.query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_email = $1 ORDER BY created_at DESC`,
		ownerEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	return collectListings(rows, "listing")
}
