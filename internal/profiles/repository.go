package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	GetAstroProfile(ctx context.Context, userID uuid.UUID) (*AstroProfile, error)
	// Update upserts the profile and the astro profile in one transaction.
	Update(ctx context.Context, userID uuid.UUID, email string, req *UpdateRequest) (*Profile, *AstroProfile, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const (
	profileColumns = `id, email, full_name, has_paid, paid_at, created_at, updated_at`
	astroColumns   = `user_id, birth_date::text, birth_time, birth_place, gender, created_at, updated_at`
)

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.HasPaid, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func scanAstro(row pgx.Row) (*AstroProfile, error) {
	a := &AstroProfile{}
	if err := row.Scan(&a.UserID, &a.BirthDate, &a.BirthTime, &a.BirthPlace, &a.Gender, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) GetAstroProfile(ctx context.Context, userID uuid.UUID) (*AstroProfile, error) {
	a, err := scanAstro(r.pool.QueryRow(ctx,
		`SELECT `+astroColumns+` FROM astro_profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying astro profile: %w", err)
	}
	return a, nil
}

func (r *postgresRepository) Update(ctx context.Context, userID uuid.UUID, email string, req *UpdateRequest) (*Profile, *AstroProfile, error) {
	var (
		profile *Profile
		astro   *AstroProfile
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		profile, err = scanProfile(tx.QueryRow(ctx,
			`INSERT INTO profiles (id, email, full_name) VALUES ($1, NULLIF($2, ''), $3)
			 ON CONFLICT (id) DO UPDATE
			 SET email = COALESCE(EXCLUDED.email, profiles.email),
			     full_name = COALESCE(EXCLUDED.full_name, profiles.full_name),
			     updated_at = NOW()
			 RETURNING `+profileColumns,
			userID, email, req.FullName))
		if err != nil {
			return fmt.Errorf("upserting profile: %w", err)
		}

		astro, err = scanAstro(tx.QueryRow(ctx,
			`INSERT INTO astro_profiles (user_id, birth_date, birth_time, birth_place, gender)
			 VALUES ($1, $2::date, $3, $4, $5)
			 ON CONFLICT (user_id) DO UPDATE
			 SET birth_date = EXCLUDED.birth_date, birth_time = EXCLUDED.birth_time,
			     birth_place = EXCLUDED.birth_place, gender = EXCLUDED.gender, updated_at = NOW()
			 RETURNING `+astroColumns,
			userID, req.BirthDate, req.BirthTime, req.BirthPlace, req.Gender))
		if err != nil {
			return fmt.Errorf("upserting astro profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return profile, astro, nil
}
