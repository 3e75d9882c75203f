package palm

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapalm/aura/internal/auth"
	inats "github.com/aurapalm/aura/internal/nats"
)

func authedRequest(method, target string, body any, userID uuid.UUID) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	claims := &auth.Claims{Email: "user@example.com"}
	claims.Subject = userID.String()
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestHandlerGenerate_Success(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, &stubCompleter{text: validCompletion(t)}, inats.NopPublisher{}))
	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/functions/v1/generate-palm-reading", sampleRequest(), uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "personality")
	assert.Contains(t, body, "metadata")
}

func TestHandlerGenerate_Conflict(t *testing.T) {
	repo := &memRepo{}
	userID := uuid.New()
	repo.rows = append(repo.rows, &Profile{ID: uuid.New(), UserID: userID, Status: StatusProcessing, CreatedAt: time.Now()})
	h := NewHandler(newTestService(repo, &stubCompleter{}, inats.NopPublisher{}))

	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/", sampleRequest(), userID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "in progress")
}

func TestHandlerGenerate_MissingFields(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, &stubCompleter{text: `{"overallReading":"x"}`}, inats.NopPublisher{}))
	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/", sampleRequest(), uuid.New()))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Error         string   `json:"error"`
		MissingFields []string `json:"missingFields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, []string{"lifeAreas", "luckyElements", "palmLines", "personality"}, body.MissingFields)
}

func TestHandlerGenerate_ValidationErrors(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, &stubCompleter{}, inats.NopPublisher{}))

	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/", map[string]any{}, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/", map[string]any{"palmProfile": map[string]any{"a": 1}, "palmImageUrl": "not a url"}, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGenerate_Unauthenticated(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, &stubCompleter{}, inats.NopPublisher{}))
	rec := httptest.NewRecorder()
	h.Generate(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerGet_NotStarted(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, &stubCompleter{}, inats.NopPublisher{}))
	rec := httptest.NewRecorder()
	h.Get(rec, authedRequest(http.MethodGet, "/", nil, uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"not_started"}`, rec.Body.String())
}
