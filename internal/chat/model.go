package chat

import (
	"time"

	"github.com/google/uuid"
)

const ActionNewChat = "new_chat"

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session matches the chat_sessions table: one transcript per user.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageLimit matches the user_message_limits table: one row per user per day.
type MessageLimit struct {
	UserID       uuid.UUID `json:"userId"`
	Date         time.Time `json:"date"`
	MessageCount int       `json:"messageCount"`
	DailyLimit   int       `json:"dailyLimit"`
}

type CompletionRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
	Action  string `json:"action" validate:"omitempty,oneof=new_chat"`
}

type CompletionResponse struct {
	AIMessage   string    `json:"ai_message"`
	AllMessages []Message `json:"all_messages"`
	Success     bool      `json:"success"`
}

type LimitStatus struct {
	CurrentCount   int  `json:"currentCount"`
	DailyLimit     int  `json:"dailyLimit"`
	Remaining      int  `json:"remaining"`
	CanSendMessage bool `json:"canSendMessage"`
}

// LimitError is returned when the daily quota is exhausted.
type LimitError struct {
	Status LimitStatus
}

func (e *LimitError) Error() string {
	return "daily message limit reached"
}
