package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/libs/outbox"
	"github.com/velvetchat/velvet-api/services/billing-service/internal/credits"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, ob *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: ob}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Grant applies a purchase: merges the credits, closes out the checkout
// session row, and records the domain event, all in one transaction.
func (r *Repository) Grant(ctx context.Context, sessionID, userID, creatorCode string, d credits.Delta, completedAt time.Time, evt outbox.Event) (credits.Balance, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return credits.Balance{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := r.GrantCredits(ctx, tx, userID, creatorCode, d)
	if err != nil {
		return credits.Balance{}, err
	}
	if err := r.MarkCheckoutSessionCompleted(ctx, tx, sessionID, completedAt); err != nil {
		return credits.Balance{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return credits.Balance{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return credits.Balance{}, err
	}
	return b, nil
}

// GrantCredits merges the delta into the user's balance for one creator in a
// single statement and returns the post-grant balance. The upsert keeps
// concurrent grants from losing increments to a read-modify-write race, and
// rows under other creator codes are untouched.
func (r *Repository) GrantCredits(ctx context.Context, tx pgx.Tx, userID, creatorCode string, d credits.Delta) (credits.Balance, error) {
	var b credits.Balance
	err := tx.QueryRow(ctx, `
		INSERT INTO credit_balances (user_id, creator_code, chocolates, roses, champagne, hearts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, creator_code)
		DO UPDATE SET chocolates = credit_balances.chocolates + EXCLUDED.chocolates,
		              roses = credit_balances.roses + EXCLUDED.roses,
		              champagne = credit_balances.champagne + EXCLUDED.champagne,
		              hearts = credit_balances.hearts + EXCLUDED.hearts,
		              updated_at = now()
		RETURNING chocolates, roses, champagne, hearts
	`, userID, creatorCode, d.Chocolates, d.Roses, d.Champagne, d.Hearts).Scan(&b.Chocolates, &b.Roses, &b.Champagne, &b.Hearts)
	return b, err
}

func (r *Repository) Balance(ctx context.Context, userID, creatorCode string) (credits.Balance, bool, error) {
	var b credits.Balance
	err := r.pool.QueryRow(ctx, `
		SELECT chocolates, roses, champagne, hearts
		FROM credit_balances
		WHERE user_id = $1 AND creator_code = $2
	`, userID, creatorCode).Scan(&b.Chocolates, &b.Roses, &b.Champagne, &b.Hearts)
	if errors.Is(err, pgx.ErrNoRows) {
		return credits.Balance{}, false, nil
	}
	if err != nil {
		return credits.Balance{}, false, err
	}
	return b, true, nil
}

type CheckoutSession struct {
	StripeSessionID string
	UserID          string
	CreatorCode     string
	PackageID       string
	Status          string
	URL             string
}

func (r *Repository) UpsertCheckoutSession(ctx context.Context, s CheckoutSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO checkout_sessions (stripe_session_id, user_id, creator_code, package_id, status, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (stripe_session_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
	`, s.StripeSessionID, s.UserID, s.CreatorCode, s.PackageID, s.Status, s.URL)
	return err
}

func (r *Repository) MarkCheckoutSessionCompleted(ctx context.Context, tx pgx.Tx, sessionID string, completedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE checkout_sessions
		SET status = 'completed', completed_at = $2, updated_at = now()
		WHERE stripe_session_id = $1
	`, sessionID, completedAt)
	return err
}
