package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository interface {
	// Get returns the user's transcript, or nil.
	Get(ctx context.Context, userID uuid.UUID) (*Session, error)
	// Save overwrites the user's transcript.
	Save(ctx context.Context, userID uuid.UUID, messages []Message) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type LimitRepository interface {
	// GetOrCreate returns the counter row for the day, creating it with the
	// given limit when absent.
	GetOrCreate(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (*MessageLimit, error)
	// IncrementIfBelow adds one to the counter only while it is below the
	// row's limit and reports whether it did.
	IncrementIfBelow(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
}

type postgresSessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &postgresSessionRepository{pool: pool}
}

func (r *postgresSessionRepository) Get(ctx context.Context, userID uuid.UUID) (*Session, error) {
	query := `SELECT id, user_id, messages, created_at, updated_at FROM chat_sessions WHERE user_id = $1`

	s := &Session{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.ID, &s.UserID, &s.Messages, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying chat session: %w", err)
	}
	return s, nil
}

func (r *postgresSessionRepository) Save(ctx context.Context, userID uuid.UUID, messages []Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, messages)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET messages = EXCLUDED.messages, updated_at = NOW()`,
		uuid.New(), userID, messages)
	if err != nil {
		return fmt.Errorf("saving chat session: %w", err)
	}
	return nil
}

func (r *postgresSessionRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting chat session: %w", err)
	}
	return nil
}

type postgresLimitRepository struct {
	pool *pgxpool.Pool
}

func NewLimitRepository(pool *pgxpool.Pool) LimitRepository {
	return &postgresLimitRepository{pool: pool}
}

func (r *postgresLimitRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (*MessageLimit, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_message_limits (user_id, date, message_count, daily_limit)
		 VALUES ($1, $2, 0, $3)
		 ON CONFLICT (user_id, date) DO NOTHING`, userID, day, limit)
	if err != nil {
		return nil, fmt.Errorf("ensuring message limit: %w", err)
	}

	var l MessageLimit
	err = r.pool.QueryRow(ctx,
		`SELECT user_id, date, message_count, daily_limit
		 FROM user_message_limits WHERE user_id = $1 AND date = $2`, userID, day,
	).Scan(&l.UserID, &l.Date, &l.MessageCount, &l.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching message limit: %w", err)
	}
	return &l, nil
}

func (r *postgresLimitRepository) IncrementIfBelow(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_message_limits
		 SET message_count = message_count + 1, updated_at = NOW()
		 WHERE user_id = $1 AND date = $2 AND message_count < daily_limit`, userID, day)
	if err != nil {
		return false, fmt.Errorf("incrementing message count: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
