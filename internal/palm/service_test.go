package palm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapalm/aura/internal/llm"
	inats "github.com/aurapalm/aura/internal/nats"
)

// memRepo mimics the partial unique index: one processing/completed row per user.
type memRepo struct {
	mu   sync.Mutex
	rows []*Profile
}

func (m *memRepo) latest(userID uuid.UUID) *Profile {
	var out *Profile
	for _, p := range m.rows {
		if p.UserID == userID {
			out = p
		}
	}
	return out
}

func (m *memRepo) Latest(_ context.Context, userID uuid.UUID) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.latest(userID)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) MarkProcessing(_ context.Context, userID uuid.UUID, q json.RawMessage, img *string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.latest(userID); p != nil {
		switch p.Status {
		case StatusFailed:
			p.Status = StatusProcessing
			p.Questionnaire = q
			p.PalmImageURL = img
			p.ErrorMessage = nil
			cp := *p
			return &cp, nil
		case StatusProcessing, StatusCompleted:
			return nil, ErrActiveReading
		}
	}
	p := &Profile{ID: uuid.New(), UserID: userID, Status: StatusProcessing, Questionnaire: q, PalmImageURL: img, CreatedAt: time.Now()}
	m.rows = append(m.rows, p)
	cp := *p
	return &cp, nil
}

func (m *memRepo) find(id uuid.UUID) *Profile {
	for _, p := range m.rows {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memRepo) Complete(_ context.Context, id uuid.UUID, analysis json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil || p.Status != StatusProcessing {
		return errors.New("not processing")
	}
	now := time.Now()
	p.Status = StatusCompleted
	p.Analysis = analysis
	p.CompletedAt = &now
	return nil
}

func (m *memRepo) Fail(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.find(id); p != nil && p.Status == StatusProcessing {
		p.Status = StatusFailed
		p.ErrorMessage = &reason
	}
	return nil
}

type stubCompleter struct {
	text  string
	err   error
	calls int
	block chan struct{}
}

func (s *stubCompleter) Complete(ctx context.Context, _ llm.Request) (string, error) {
	s.calls++
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *stubCompleter) Model() string { return "test-model" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []inats.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e inats.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func validCompletion(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(completeReading(t))
	require.NoError(t, err)
	return string(data)
}

func newTestService(repo Repository, c llm.Completer, pub inats.EventPublisher) *Service {
	return NewService(repo, c, pub, time.Second)
}

func sampleRequest() *GenerateRequest {
	return &GenerateRequest{
		PalmProfile:  map[string]any{"dominantHand": "right", "handShape": "earth"},
		PalmImageURL: "https://cdn.example.com/palm.jpg",
	}
}

func TestGenerate_Success(t *testing.T) {
	repo := &memRepo{}
	pub := &recordingPublisher{}
	svc := newTestService(repo, &stubCompleter{text: validCompletion(t)}, pub)
	userID := uuid.New()

	reading, err := svc.Generate(context.Background(), userID, sampleRequest())
	require.NoError(t, err)

	meta, ok := reading["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "test-model", meta["model"])
	assert.Equal(t, TemplateVersion, meta["templateVersion"])
	assert.Equal(t, "https://cdn.example.com/palm.jpg", meta["palmImageUrl"])

	latest, _ := repo.Latest(context.Background(), userID)
	require.NotNil(t, latest)
	assert.Equal(t, StatusCompleted, latest.Status)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(latest.Analysis, &stored))
	assert.Contains(t, stored, "metadata")
	assert.Equal(t, []string{inats.EventPalmCompleted}, pub.types())
}

func TestGenerate_ConflictWhileProcessing(t *testing.T) {
	repo := &memRepo{}
	userID := uuid.New()
	existing := &Profile{ID: uuid.New(), UserID: userID, Status: StatusProcessing, CreatedAt: time.Now()}
	repo.rows = append(repo.rows, existing)
	completer := &stubCompleter{text: validCompletion(t)}
	svc := newTestService(repo, completer, inats.NopPublisher{})

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	assert.ErrorIs(t, err, ErrInProgress)
	assert.Len(t, repo.rows, 1)
	assert.Equal(t, StatusProcessing, repo.rows[0].Status)
	assert.Zero(t, completer.calls)
}

func TestGenerate_ConflictWhenCompleted(t *testing.T) {
	repo := &memRepo{}
	userID := uuid.New()
	repo.rows = append(repo.rows, &Profile{ID: uuid.New(), UserID: userID, Status: StatusCompleted, Analysis: json.RawMessage(`{"a":1}`)})
	svc := newTestService(repo, &stubCompleter{text: validCompletion(t)}, inats.NopPublisher{})

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.JSONEq(t, `{"a":1}`, string(repo.rows[0].Analysis))
}

func TestGenerate_LostRaceIsConflict(t *testing.T) {
	repo := &memRepo{}
	block := make(chan struct{})
	completer := &stubCompleter{text: validCompletion(t), block: block}
	svc := newTestService(repo, completer, inats.NopPublisher{})
	userID := uuid.New()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), userID, sampleRequest())
		done <- err
	}()

	require.Eventually(t, func() bool {
		p, _ := repo.Latest(context.Background(), userID)
		return p != nil && p.Status == StatusProcessing
	}, time.Second, 5*time.Millisecond)

	_, err := repo.MarkProcessing(context.Background(), userID, nil, nil)
	assert.ErrorIs(t, err, ErrActiveReading)

	close(block)
	require.NoError(t, <-done)
	assert.Len(t, repo.rows, 1)
}

func TestGenerate_MissingFieldsMarksFailed(t *testing.T) {
	repo := &memRepo{}
	pub := &recordingPublisher{}
	svc := newTestService(repo, &stubCompleter{text: `{"personality":{"summary":"x"},"overallReading":"y"}`}, pub)
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.MissingFields, "personality.traits")
	assert.Contains(t, ae.MissingFields, "lifeAreas")
	assert.NotContains(t, ae.MissingFields, "overallReading")

	latest, _ := repo.Latest(context.Background(), userID)
	assert.Equal(t, StatusFailed, latest.Status)
	assert.Equal(t, []string{inats.EventPalmFailed}, pub.types())
}

func TestGenerate_UnparseableMarksFailed(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo, &stubCompleter{text: "sorry, no reading"}, inats.NopPublisher{})
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	var ae *AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.MissingFields, len(Template))

	latest, _ := repo.Latest(context.Background(), userID)
	assert.Equal(t, StatusFailed, latest.Status)
}

func TestGenerate_UpstreamErrorMarksFailed(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo, &stubCompleter{err: errors.New("503")}, inats.NopPublisher{})
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	require.Error(t, err)
	var ae *AnalysisError
	assert.False(t, errors.As(err, &ae))

	latest, _ := repo.Latest(context.Background(), userID)
	assert.Equal(t, StatusFailed, latest.Status)
}

func TestGenerate_TimeoutMarksFailed(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, &stubCompleter{block: make(chan struct{})}, inats.NopPublisher{}, 20*time.Millisecond)
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	latest, _ := repo.Latest(context.Background(), userID)
	assert.Equal(t, StatusFailed, latest.Status)
}

func TestGenerate_ResubmitAfterFailure(t *testing.T) {
	repo := &memRepo{}
	userID := uuid.New()
	failed := &Profile{ID: uuid.New(), UserID: userID, Status: StatusFailed, CreatedAt: time.Now()}
	repo.rows = append(repo.rows, failed)
	svc := newTestService(repo, &stubCompleter{text: validCompletion(t)}, inats.NopPublisher{})

	_, err := svc.Generate(context.Background(), userID, sampleRequest())
	require.NoError(t, err)
	assert.Len(t, repo.rows, 1)
	assert.Equal(t, StatusCompleted, repo.rows[0].Status)
}

func TestReadingAndStatus(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo, &stubCompleter{text: validCompletion(t)}, inats.NopPublisher{})
	userID := uuid.New()
	ctx := context.Background()

	status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, status)

	analysis, err := svc.LatestCompletedAnalysis(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, analysis)

	_, err = svc.Generate(ctx, userID, sampleRequest())
	require.NoError(t, err)

	reading, err := svc.Reading(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, reading.Status)
	assert.NotEmpty(t, reading.Analysis)

	analysis, err = svc.LatestCompletedAnalysis(ctx, userID)
	require.NoError(t, err)
	assert.Contains(t, analysis, "personality")
}
