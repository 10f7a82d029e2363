package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/services/booking-service/internal/schedule"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// Template loads the creator's weekly availability. The bool is false when
// the creator has never saved a template.
func (r *AvailabilityRepository) Template(ctx context.Context, creatorCode string) ([]schedule.TemplateSlot, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT slots
		FROM availability_templates
		WHERE creator_code = $1
	`, creatorCode).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var slots []schedule.TemplateSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, err
	}
	return slots, true, nil
}

// Save replaces the creator's weekly template wholesale.
func (r *AvailabilityRepository) Save(ctx context.Context, creatorCode string, slots []schedule.TemplateSlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO availability_templates (creator_code, slots)
		VALUES ($1, $2)
		ON CONFLICT (creator_code)
		DO UPDATE SET slots = EXCLUDED.slots, updated_at = now()
	`, creatorCode, raw)
	return err
}

// CreatorName resolves a creator code to the creator's display name. The
// bool is false when no creator carries that code.
func (r *AvailabilityRepository) CreatorName(ctx context.Context, creatorCode string) (string, bool, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT name
		FROM creators
		WHERE code = $1
	`, creatorCode).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
