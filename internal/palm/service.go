package palm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurapalm/aura/internal/llm"
	"github.com/aurapalm/aura/internal/metrics"
	inats "github.com/aurapalm/aura/internal/nats"
)

const maxCompletionTokens = 3000

type Service struct {
	repo      Repository
	completer llm.Completer
	events    inats.EventPublisher
	timeout   time.Duration
	now       func() time.Time
}

func NewService(repo Repository, completer llm.Completer, events inats.EventPublisher, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		repo:      repo,
		completer: completer,
		events:    events,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Generate runs one reading: processing marker, completion, parse, validate,
// persist. The returned map is the assembled reading.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req *GenerateRequest) (map[string]any, error) {
	latest, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		switch latest.Status {
		case StatusProcessing:
			metrics.PalmReadingsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrInProgress
		case StatusCompleted:
			metrics.PalmReadingsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrAlreadyCompleted
		}
	}

	questionnaire, err := json.Marshal(req.PalmProfile)
	if err != nil {
		return nil, fmt.Errorf("marshaling questionnaire: %w", err)
	}
	var imageURL *string
	if req.PalmImageURL != "" {
		imageURL = &req.PalmImageURL
	}

	profile, err := s.repo.MarkProcessing(ctx, userID, questionnaire, imageURL)
	if err != nil {
		if errors.Is(err, ErrActiveReading) {
			metrics.PalmReadingsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrInProgress
		}
		return nil, err
	}

	// The processing row must reach a terminal state even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	start := s.now()

	reading, err := s.analyze(ctx, req)
	if err != nil {
		s.fail(ctx, profile, err)
		return nil, err
	}

	reading["metadata"] = map[string]any{
		"generatedAt":     s.now().UTC().Format(time.RFC3339),
		"model":           s.completer.Model(),
		"templateVersion": TemplateVersion,
		"palmImageUrl":    req.PalmImageURL,
		"processingMs":    s.now().Sub(start).Milliseconds(),
	}

	data, err := json.Marshal(reading)
	if err != nil {
		s.fail(ctx, profile, err)
		return nil, fmt.Errorf("marshaling reading: %w", err)
	}
	if err := s.repo.Complete(ctx, profile.ID, data); err != nil {
		s.fail(ctx, profile, err)
		return nil, err
	}

	metrics.PalmReadingsTotal.WithLabelValues("completed").Inc()
	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventPalmCompleted, userID, "palm_profile", profile.ID.String(),
		map[string]any{"processingMs": s.now().Sub(start).Milliseconds()}))
	return reading, nil
}

func (s *Service) analyze(ctx context.Context, req *GenerateRequest) (map[string]any, error) {
	messages, err := BuildMessages(req.PalmProfile, req.PalmImageURL)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.completer.Complete(cctx, llm.Request{
		Purpose:     "palm",
		Messages:    messages,
		MaxTokens:   maxCompletionTokens,
		Temperature: 0.8,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("generating palm reading: %w", err)
	}

	reading, err := ParseAnalysis(text)
	if err != nil {
		slog.Warn("parsing palm completion", "error", err, "length", len(text))
		return nil, &AnalysisError{
			Reason:        "failed to parse palm reading",
			MissingFields: MissingFields(Template, nil),
		}
	}

	if missing := MissingFields(Template, reading); len(missing) > 0 {
		return nil, &AnalysisError{Reason: "palm reading is incomplete", MissingFields: missing}
	}
	return reading, nil
}

func (s *Service) fail(ctx context.Context, profile *Profile, cause error) {
	metrics.PalmReadingsTotal.WithLabelValues("failed").Inc()
	if err := s.repo.Fail(ctx, profile.ID, cause.Error()); err != nil {
		slog.Error("marking palm profile failed", "error", err, "palm_profile_id", profile.ID)
	}

	details := map[string]any{"reason": cause.Error()}
	var ae *AnalysisError
	if errors.As(cause, &ae) {
		details["missingFields"] = ae.MissingFields
	}
	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventPalmFailed, profile.UserID, "palm_profile", profile.ID.String(), details))
}

// Reading returns the user's latest reading state.
func (s *Service) Reading(ctx context.Context, userID uuid.UUID) (*ReadingResponse, error) {
	latest, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &ReadingResponse{Status: StatusNotStarted}, nil
	}
	resp := &ReadingResponse{
		Status:      latest.Status,
		CreatedAt:   &latest.CreatedAt,
		CompletedAt: latest.CompletedAt,
	}
	if latest.Status == StatusCompleted {
		resp.Analysis = latest.Analysis
	}
	return resp, nil
}

// Status returns the latest reading status, not_started when there is none.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	latest, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return StatusNotStarted, nil
	}
	return latest.Status, nil
}

// LatestCompletedAnalysis returns the decoded analysis of a completed reading,
// or nil when the user has none.
func (s *Service) LatestCompletedAnalysis(ctx context.Context, userID uuid.UUID) (map[string]any, error) {
	latest, err := s.repo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.Status != StatusCompleted || len(latest.Analysis) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(latest.Analysis, &out); err != nil {
		return nil, fmt.Errorf("decoding palm analysis: %w", err)
	}
	return out, nil
}
