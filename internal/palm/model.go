package palm

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Profile matches the palm_profiles table schema.
type Profile struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	Status        Status          `json:"status"`
	Questionnaire json.RawMessage `json:"palmProfile"`
	PalmImageURL  *string         `json:"palmImageUrl,omitempty"`
	Analysis      json.RawMessage `json:"analysis,omitempty"`
	ErrorMessage  *string         `json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

type GenerateRequest struct {
	PalmProfile  map[string]any `json:"palmProfile" validate:"required"`
	PalmImageURL string         `json:"palmImageUrl" validate:"omitempty,url,max=2048"`
}

// ReadingResponse is returned by get-palm-reading.
type ReadingResponse struct {
	Status      Status          `json:"status"`
	Analysis    json.RawMessage `json:"analysis,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

var (
	ErrInProgress       = errors.New("palm reading already in progress")
	ErrAlreadyCompleted = errors.New("palm reading already completed")
	// ErrActiveReading is returned by the repository when the processing
	// marker could not be written because another non-terminal row exists.
	ErrActiveReading = errors.New("active palm reading exists")
)

// AnalysisError reports a completion whose payload could not be used.
type AnalysisError struct {
	Reason        string
	MissingFields []string
}

func (e *AnalysisError) Error() string {
	if len(e.MissingFields) == 0 {
		return e.Reason
	}
	return e.Reason + ": missing " + strings.Join(e.MissingFields, ", ")
}
