package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vigil-backend/internal/model"
)

// ProfileRepository handles profile data access.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `id, full_name, role, extension_percent, created_at, updated_at`

// GetByID retrieves a profile by its UUID.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.Role, &p.ExtensionPercent, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *model.Profile) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO profiles (full_name, role, extension_percent)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		p.FullName, p.Role, p.ExtensionPercent,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// ListByRole retrieves all profiles with the given role, ordered by name.
func (r *ProfileRepository) ListByRole(ctx context.Context, role model.ProfileRole) ([]model.Profile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE role = $1 ORDER BY full_name`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Role, &p.ExtensionPercent, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetExtensionPercent updates a student's personal extension grant.
func (r *ProfileRepository) SetExtensionPercent(ctx context.Context, id uuid.UUID, percent int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE profiles SET extension_percent = $1, updated_at = NOW()
		 WHERE id = $2 AND role = $3`,
		percent, id, model.RoleStudent)
	return err
}
