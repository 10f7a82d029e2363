package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/services/chat-service/internal/model"
)

type MessageRepository struct {
	pool *db.Pool
}

func NewMessageRepository(pool *db.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// ListRecent returns the newest messages of the conversation in
// chronological order, capped at limit.
func (r *MessageRepository) ListRecent(ctx context.Context, userID, creatorCode string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, creator_code, body, sender, read, created_at
		FROM (
			SELECT id, user_id, creator_code, body, sender, read, created_at
			FROM messages
			WHERE user_id = $1 AND creator_code = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`, userID, creatorCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.CreatorCode, &m.Body, &m.Sender, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepository) Insert(ctx context.Context, m *model.Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (user_id, creator_code, body, sender, read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.UserID, m.CreatorCode, m.Body, m.Sender, m.Read).Scan(&m.ID, &m.CreatedAt)
}

// Persona resolves a creator code to the persona the reply generator speaks
// as. The bool is false for unknown codes.
func (r *MessageRepository) Persona(ctx context.Context, creatorCode string) (model.Persona, bool, error) {
	var p model.Persona
	err := r.pool.QueryRow(ctx, `
		SELECT name, COALESCE(age, 0)
		FROM creators
		WHERE code = $1
	`, creatorCode).Scan(&p.Name, &p.Age)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Persona{}, false, nil
	}
	if err != nil {
		return model.Persona{}, false, err
	}
	return p, true, nil
}
