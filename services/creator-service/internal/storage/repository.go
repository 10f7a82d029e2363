package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/velvetchat/velvet-api/libs/db"
	"github.com/velvetchat/velvet-api/services/creator-service/internal/model"
)

// ErrCodeTaken is returned when a generated creator code collides with an
// existing one. Callers retry with a fresh code.
var ErrCodeTaken = errors.New("creator code already in use")

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateCreator(ctx context.Context, c *model.Creator) error {
	c.ID = uuid.NewString()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO creators (id, name, code, age, location, bio, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, c.ID, c.Name, c.Code, c.Age, c.Location, c.Bio, c.Status).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

func (r *Repository) ListCreators(ctx context.Context) ([]model.Creator, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, code, COALESCE(age, 0), COALESCE(location, ''), COALESCE(bio, ''), status, created_at
		FROM creators
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creators []model.Creator
	for rows.Next() {
		var c model.Creator
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Age, &c.Location, &c.Bio, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		creators = append(creators, c)
	}
	return creators, rows.Err()
}

func (r *Repository) GetCreatorByCode(ctx context.Context, code string) (model.Creator, bool, error) {
	var c model.Creator
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, code, COALESCE(age, 0), COALESCE(location, ''), COALESCE(bio, ''), status, created_at
		FROM creators
		WHERE code = $1
	`, code).Scan(&c.ID, &c.Name, &c.Code, &c.Age, &c.Location, &c.Bio, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Creator{}, false, nil
	}
	if err != nil {
		return model.Creator{}, false, err
	}
	return c, true, nil
}

type CreatorUpdate struct {
	Age      *int
	Location *string
	Bio      *string
	Status   *string
}

func (r *Repository) UpdateCreator(ctx context.Context, id string, u CreatorUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE creators
		SET age = COALESCE($2, age),
		    location = COALESCE($3, location),
		    bio = COALESCE($4, bio),
		    status = COALESCE($5, status),
		    updated_at = now()
		WHERE id = $1
	`, id, u.Age, u.Location, u.Bio, u.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) DeleteCreator(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM creators WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUsers joins user accounts with the credit balances billing maintains.
// Users who never purchased read as zero balances.
func (r *Repository) ListUsers(ctx context.Context) ([]model.UserAccount, error) {
	// Balances are stored per (user, creator); the admin listing shows
	// each user's totals across creators.
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, COALESCE(u.creator_code, ''), u.is_admin,
		       COALESCE(b.chocolates, 0), COALESCE(b.roses, 0), COALESCE(b.champagne, 0), COALESCE(b.hearts, 0),
		       COALESCE(u.total_spent_pence, 0), u.created_at
		FROM users u
		LEFT JOIN (
			SELECT user_id,
			       SUM(chocolates) AS chocolates, SUM(roses) AS roses,
			       SUM(champagne) AS champagne, SUM(hearts) AS hearts
			FROM credit_balances
			GROUP BY user_id
		) b ON b.user_id = u.id
		ORDER BY u.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.UserAccount
	for rows.Next() {
		var u model.UserAccount
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatorCode, &u.IsAdmin,
			&u.Chocolates, &u.Roses, &u.Champagne, &u.Hearts,
			&u.TotalSpent, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type AdminUser struct {
	ID           string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

func (r *Repository) AdminByEmail(ctx context.Context, email string) (AdminUser, bool, error) {
	var u AdminUser
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, COALESCE(password_hash, ''), is_admin
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdminUser{}, false, nil
	}
	if err != nil {
		return AdminUser{}, false, err
	}
	return u, true, nil
}
