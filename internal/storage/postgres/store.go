package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres backend. Listing and request statements share the
// transaction carried in the context, and GetListingForUpdate takes the row
// lock that serializes admissions and decisions per listing.
type Store struct {
	*CatalogRepository
	*LedgerRepository
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	c := conn{pool: pool}
	return &Store{
		CatalogRepository: NewCatalogRepository(c),
		LedgerRepository:  NewLedgerRepository(c),
		pool:              pool,
	}
}

// WithTx runs fn in a transaction, or inside the one already in ctx.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.pool, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
