package palm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type Repository interface {
	// Latest returns the newest row for the user, or nil.
	Latest(ctx context.Context, userID uuid.UUID) (*Profile, error)
	// MarkProcessing moves a failed row back to processing or inserts a new
	// processing row. ErrActiveReading means a non-terminal row already exists.
	MarkProcessing(ctx context.Context, userID uuid.UUID, questionnaire json.RawMessage, imageURL *string) (*Profile, error)
	Complete(ctx context.Context, id uuid.UUID, analysis json.RawMessage) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const profileColumns = `id, user_id, status, questionnaire, palm_image_url, analysis, error_message, created_at, updated_at, completed_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(&p.ID, &p.UserID, &p.Status, &p.Questionnaire, &p.PalmImageURL,
		&p.Analysis, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) Latest(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM palm_profiles
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest palm profile: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) MarkProcessing(ctx context.Context, userID uuid.UUID, questionnaire json.RawMessage, imageURL *string) (*Profile, error) {
	retry := `UPDATE palm_profiles
		SET status = 'processing', questionnaire = $2, palm_image_url = $3,
		    analysis = NULL, error_message = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = (SELECT id FROM palm_profiles WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1)
		  AND status = 'failed'
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, retry, userID, questionnaire, imageURL))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		if isUniqueViolation(err) {
			return nil, ErrActiveReading
		}
		return nil, fmt.Errorf("resubmitting failed palm profile: %w", err)
	}

	// At most one processing/completed row per user (partial unique index).
	insert := `INSERT INTO palm_profiles (id, user_id, status, questionnaire, palm_image_url)
		VALUES ($1, $2, 'processing', $3, $4)
		RETURNING ` + profileColumns

	p, err = scanProfile(r.pool.QueryRow(ctx, insert, uuid.New(), userID, questionnaire, imageURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrActiveReading
		}
		return nil, fmt.Errorf("inserting palm profile: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) Complete(ctx context.Context, id uuid.UUID, analysis json.RawMessage) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE palm_profiles
		 SET status = 'completed', analysis = $2, error_message = NULL, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id, analysis)
	if err != nil {
		return fmt.Errorf("completing palm profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("completing palm profile %s: row is no longer processing", id)
	}
	return nil
}

func (r *postgresRepository) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE palm_profiles
		 SET status = 'failed', error_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id, reason)
	if err != nil {
		return fmt.Errorf("failing palm profile: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
