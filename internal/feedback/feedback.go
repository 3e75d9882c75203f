package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aurapalm/aura/internal/api"
	"github.com/aurapalm/aura/internal/auth"
	inats "github.com/aurapalm/aura/internal/nats"
)

const StatusPending = "pending"

type Feedback struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Rating    *int      `json:"rating"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type SubmitRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=200"`
	Message  string `json:"message" validate:"required,min=1,max=5000"`
	Category string `json:"category" validate:"required,oneof=general bug feature palm_reading chat payment other"`
	Rating   *int   `json:"rating" validate:"omitempty,min=1,max=5"`
}

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, f *Feedback) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO feedback (id, user_id, title, message, category, rating, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		f.ID, f.UserID, f.Title, f.Message, f.Category, f.Rating, f.Status,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

type Service struct {
	repo   Repository
	events inats.EventPublisher
}

func NewService(repo Repository, events inats.EventPublisher) *Service {
	if events == nil {
		events = inats.NopPublisher{}
	}
	return &Service{repo: repo, events: events}
}

func (s *Service) Submit(ctx context.Context, userID uuid.UUID, req *SubmitRequest) (*Feedback, error) {
	f := &Feedback{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    strings.TrimSpace(req.Title),
		Message:  strings.TrimSpace(req.Message),
		Category: req.Category,
		Rating:   req.Rating,
		Status:   StatusPending,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}

	details := map[string]any{"category": f.Category}
	if f.Rating != nil {
		details["rating"] = *f.Rating
	}
	inats.PublishQuietly(ctx, s.events, inats.NewEvent(inats.EventFeedbackSubmitted, userID, "feedback", f.ID.String(), details))
	return f, nil
}

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// Submit handles POST submit-feedback.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		api.HandleError(w, api.NewValidationError("title and message are required"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	f, err := h.svc.Submit(r.Context(), userID, &req)
	if err != nil {
		slog.Error("submitting feedback", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrPersistence)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"success": true, "feedback": f})
}
