package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Quota enforces the per-user daily message limit. Days are UTC calendar days.
type Quota struct {
	repo  LimitRepository
	limit int
	now   func() time.Time
}

func NewQuota(repo LimitRepository, dailyLimit int) *Quota {
	return &Quota{repo: repo, limit: dailyLimit, now: time.Now}
}

func (q *Quota) today() time.Time {
	return q.now().UTC().Truncate(24 * time.Hour)
}

// Status reads (creating if needed) today's counter.
func (q *Quota) Status(ctx context.Context, userID uuid.UUID) (*LimitStatus, error) {
	row, err := q.repo.GetOrCreate(ctx, userID, q.today(), q.limit)
	if err != nil {
		return nil, fmt.Errorf("getting message limit: %w", err)
	}
	return statusOf(row), nil
}

// Consume records one sent message. A false result means a concurrent request
// used the last slot first.
func (q *Quota) Consume(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := q.repo.IncrementIfBelow(ctx, userID, q.today())
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Warn("quota: message counted past daily limit", "user_id", userID)
	}
	return ok, nil
}

func statusOf(row *MessageLimit) *LimitStatus {
	remaining := row.DailyLimit - row.MessageCount
	if remaining < 0 {
		remaining = 0
	}
	return &LimitStatus{
		CurrentCount:   row.MessageCount,
		DailyLimit:     row.DailyLimit,
		Remaining:      remaining,
		CanSendMessage: row.MessageCount < row.DailyLimit,
	}
}
