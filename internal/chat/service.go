package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurapalm/aura/internal/llm"
	"github.com/aurapalm/aura/internal/metrics"
)

const (
	maxReplyTokens    = 500
	completionTimeout = 30 * time.Second
)

// AnalysisSource supplies the user's completed palm reading for context.
type AnalysisSource interface {
	LatestCompletedAnalysis(ctx context.Context, userID uuid.UUID) (map[string]any, error)
}

type Service struct {
	sessions     SessionRepository
	quota        *Quota
	completer    llm.Completer
	analyses     AnalysisSource
	historyTurns int
	now          func() time.Time
}

func NewService(sessions SessionRepository, quota *Quota, completer llm.Completer, analyses AnalysisSource, historyTurns int) *Service {
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &Service{
		sessions:     sessions,
		quota:        quota,
		completer:    completer,
		analyses:     analyses,
		historyTurns: historyTurns,
		now:          time.Now,
	}
}

func (s *Service) LimitStatus(ctx context.Context, userID uuid.UUID) (*LimitStatus, error) {
	return s.quota.Status(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return []Message{}, nil
	}
	return session.Messages, nil
}

// Complete sends one user message and returns the assistant reply with the
// updated transcript.
func (s *Service) Complete(ctx context.Context, userID uuid.UUID, req *CompletionRequest) (*CompletionResponse, error) {
	status, err := s.quota.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !status.CanSendMessage {
		metrics.ChatCompletionsTotal.WithLabelValues("limited").Inc()
		return nil, &LimitError{Status: *status}
	}

	var history []Message
	if req.Action == ActionNewChat {
		if err := s.sessions.Delete(ctx, userID); err != nil {
			slog.Warn("clearing chat history", "error", err, "user_id", userID)
		}
	} else {
		session, err := s.sessions.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			history = session.Messages
		}
	}

	var analysis map[string]any
	if s.analyses != nil {
		analysis, err = s.analyses.LatestCompletedAnalysis(ctx, userID)
		if err != nil {
			slog.Warn("loading palm context for chat", "error", err, "user_id", userID)
			analysis = nil
		}
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt(analysis)}}
	for _, m := range lastN(history, s.historyTurns) {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})

	cctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()
	reply, err := s.completer.Complete(cctx, llm.Request{
		Purpose:     "chat",
		Messages:    messages,
		MaxTokens:   maxReplyTokens,
		Temperature: 0.7,
	})
	if err != nil {
		metrics.ChatCompletionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generating chat reply: %w", err)
	}

	now := s.now().UTC()
	all := make([]Message, 0, len(history)+2)
	all = append(all, history...)
	all = append(all,
		Message{Role: llm.RoleUser, Content: req.Message, Timestamp: now},
		Message{Role: llm.RoleAssistant, Content: reply, Timestamp: now},
	)

	if err := s.sessions.Save(ctx, userID, all); err != nil {
		return nil, err
	}
	if _, err := s.quota.Consume(ctx, userID); err != nil {
		slog.Error("incrementing message count", "error", err, "user_id", userID)
	}

	metrics.ChatCompletionsTotal.WithLabelValues("success").Inc()
	return &CompletionResponse{AIMessage: reply, AllMessages: all, Success: true}, nil
}

func lastN(msgs []Message, n int) []Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
