package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/velvetchat/velvet-api/libs/db"
)

type Notification struct {
	BookingID string
	UserID    string
	Channel   string
	Recipient string
	Subject   string
	Status    string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, user_id, channel, recipient, subject, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.BookingID, n.UserID, n.Channel, n.Recipient, n.Subject, n.Status)
	return err
}

// UserEmail resolves the delivery address for a user id.
func (r *Repository) UserEmail(ctx context.Context, userID string) (string, bool, error) {
	var email string
	err := r.pool.QueryRow(ctx, `
		SELECT email FROM users WHERE id = $1
	`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return email, true, nil
}
