package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/services/chat-service/internal/model"
)

type MediaRepository struct {
	pool *db.Pool
}

func NewMediaRepository(pool *db.Pool) *MediaRepository {
	return &MediaRepository{pool: pool}
}

// RandomLocked picks a random media item the user has not unlocked yet.
// When everything is already unlocked it falls back to a random unlocked
// item and reports alreadyUnlocked. The first bool is false when the
// creator has no media at all.
func (r *MediaRepository) RandomLocked(ctx context.Context, creatorCode, userID, mediaType string) (model.Media, bool, bool, error) {
	m, err := r.randomItem(ctx, creatorCode, userID, mediaType, true)
	if err == nil {
		return m, true, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Media{}, false, false, err
	}

	m, err = r.randomItem(ctx, creatorCode, userID, mediaType, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Media{}, false, false, nil
	}
	if err != nil {
		return model.Media{}, false, false, err
	}
	return m, true, true, nil
}

func (r *MediaRepository) randomItem(ctx context.Context, creatorCode, userID, mediaType string, lockedOnly bool) (model.Media, error) {
	var m model.Media
	var row pgx.Row
	if lockedOnly {
		row = r.pool.QueryRow(ctx, `
			SELECT id, creator_code, type, url, COALESCE(caption, ''), created_at
			FROM media
			WHERE creator_code = $1
				AND ($2 = '' OR type = $2)
				AND id NOT IN (
					SELECT media_id FROM unlocked_media
					WHERE user_id = $3 AND creator_code = $1
				)
			ORDER BY random()
			LIMIT 1
		`, creatorCode, mediaType, userID)
	} else {
		row = r.pool.QueryRow(ctx, `
			SELECT id, creator_code, type, url, COALESCE(caption, ''), created_at
			FROM media
			WHERE creator_code = $1
				AND ($2 = '' OR type = $2)
			ORDER BY random()
			LIMIT 1
		`, creatorCode, mediaType)
	}
	if err := row.Scan(&m.ID, &m.CreatorCode, &m.Type, &m.URL, &m.Caption, &m.CreatedAt); err != nil {
		return model.Media{}, err
	}
	return m, nil
}

func (r *MediaRepository) List(ctx context.Context, creatorCode string) ([]model.Media, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, creator_code, type, url, COALESCE(caption, ''), created_at
		FROM media
		WHERE creator_code = $1
		ORDER BY created_at DESC
	`, creatorCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Media
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.CreatorCode, &m.Type, &m.URL, &m.Caption, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *MediaRepository) Insert(ctx context.Context, m *model.Media) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO media (creator_code, type, url, caption)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.CreatorCode, m.Type, m.URL, m.Caption).Scan(&m.ID, &m.CreatedAt)
}

func (r *MediaRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Unlock records that the user unlocked the media item. Repeat unlocks are
// no-ops.
func (r *MediaRepository) Unlock(ctx context.Context, userID, creatorCode, mediaID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO unlocked_media (user_id, creator_code, media_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, media_id) DO NOTHING
	`, userID, creatorCode, mediaID)
	return err
}
