package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurapalm/aura/internal/llm"
)

type limitKey struct {
	user uuid.UUID
	day  time.Time
}

type memLimits struct {
	mu   sync.Mutex
	rows map[limitKey]*MessageLimit
	err  error
}

func newMemLimits() *memLimits {
	return &memLimits{rows: map[limitKey]*MessageLimit{}}
}

func (m *memLimits) GetOrCreate(_ context.Context, userID uuid.UUID, day time.Time, limit int) (*MessageLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	k := limitKey{userID, day}
	row, ok := m.rows[k]
	if !ok {
		row = &MessageLimit{UserID: userID, Date: day, DailyLimit: limit}
		m.rows[k] = row
	}
	cp := *row
	return &cp, nil
}

func (m *memLimits) IncrementIfBelow(_ context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[limitKey{userID, day}]
	if !ok || row.MessageCount >= row.DailyLimit {
		return false, nil
	}
	row.MessageCount++
	return true, nil
}

func (m *memLimits) set(userID uuid.UUID, day time.Time, count, limit int) {
	m.rows[limitKey{userID, day}] = &MessageLimit{UserID: userID, Date: day, MessageCount: count, DailyLimit: limit}
}

func (m *memLimits) count(userID uuid.UUID, day time.Time) int {
	if row, ok := m.rows[limitKey{userID, day}]; ok {
		return row.MessageCount
	}
	return 0
}

type memSessions struct {
	data      map[uuid.UUID][]Message
	deleteErr error
	deletes   int
}

func newMemSessions() *memSessions {
	return &memSessions{data: map[uuid.UUID][]Message{}}
}

func (m *memSessions) Get(_ context.Context, userID uuid.UUID) (*Session, error) {
	msgs, ok := m.data[userID]
	if !ok {
		return nil, nil
	}
	return &Session{UserID: userID, Messages: msgs}, nil
}

func (m *memSessions) Save(_ context.Context, userID uuid.UUID, msgs []Message) error {
	m.data[userID] = msgs
	return nil
}

func (m *memSessions) Delete(_ context.Context, userID uuid.UUID) error {
	m.deletes++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, userID)
	return nil
}

type captureCompleter struct {
	reply string
	err   error
	last  llm.Request
	calls int
}

func (c *captureCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.calls++
	c.last = req
	return c.reply, c.err
}

func (c *captureCompleter) Model() string { return "test-model" }

type stubAnalyses struct {
	analysis map[string]any
	err      error
}

func (s stubAnalyses) LatestCompletedAnalysis(context.Context, uuid.UUID) (map[string]any, error) {
	return s.analysis, s.err
}

var fixedNow = time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)
var fixedDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	limits    *memLimits
	sessions  *memSessions
	completer *captureCompleter
}

func newFixture(analyses AnalysisSource) *fixture {
	limits := newMemLimits()
	sessions := newMemSessions()
	completer := &captureCompleter{reply: "Your heart line is strong."}
	quota := NewQuota(limits, 10)
	quota.now = func() time.Time { return fixedNow }
	svc := NewService(sessions, quota, completer, analyses, 10)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, limits: limits, sessions: sessions, completer: completer}
}

func TestComplete_Success(t *testing.T) {
	f := newFixture(nil)
	userID := uuid.New()

	resp, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "What about love?"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Your heart line is strong.", resp.AIMessage)
	require.Len(t, resp.AllMessages, 2)
	assert.Equal(t, llm.RoleUser, resp.AllMessages[0].Role)
	assert.Equal(t, llm.RoleAssistant, resp.AllMessages[1].Role)
	assert.Len(t, f.sessions.data[userID], 2)
	assert.Equal(t, 1, f.limits.count(userID, fixedDay))
}

func TestComplete_QuotaExceeded(t *testing.T) {
	f := newFixture(nil)
	userID := uuid.New()
	f.limits.set(userID, fixedDay, 10, 10)

	_, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "hello"})
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 10, le.Status.CurrentCount)
	assert.Equal(t, 10, le.Status.DailyLimit)
	assert.False(t, le.Status.CanSendMessage)
	assert.Zero(t, f.completer.calls)
	assert.Equal(t, 10, f.limits.count(userID, fixedDay))
}

func TestComplete_IncrementsExactlyOnce(t *testing.T) {
	for _, start := range []int{0, 5, 9} {
		f := newFixture(nil)
		userID := uuid.New()
		f.limits.set(userID, fixedDay, start, 10)

		_, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, start+1, f.limits.count(userID, fixedDay), "start=%d", start)
	}
}

func TestComplete_UpstreamErrorDoesNotCount(t *testing.T) {
	f := newFixture(nil)
	f.completer.err = errors.New("timeout")
	userID := uuid.New()

	_, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, 0, f.limits.count(userID, fixedDay))
	assert.Empty(t, f.sessions.data[userID])
}

func TestComplete_HistoryWindow(t *testing.T) {
	f := newFixture(nil)
	userID := uuid.New()
	var history []Message
	for i := 0; i < 14; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		history = append(history, Message{Role: role, Content: string(rune('a' + i))})
	}
	f.sessions.data[userID] = history

	resp, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "latest"})
	require.NoError(t, err)

	// system + last 10 + new user message
	require.Len(t, f.completer.last.Messages, 12)
	assert.Equal(t, llm.RoleSystem, f.completer.last.Messages[0].Role)
	assert.Equal(t, "e", f.completer.last.Messages[1].Content)
	assert.Equal(t, "latest", f.completer.last.Messages[11].Content)
	assert.Len(t, resp.AllMessages, 16)
}

func TestComplete_NewChatClearsHistory(t *testing.T) {
	f := newFixture(nil)
	userID := uuid.New()
	f.sessions.data[userID] = []Message{{Role: llm.RoleUser, Content: "old"}}

	resp, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "fresh", Action: ActionNewChat})
	require.NoError(t, err)
	assert.Equal(t, 1, f.sessions.deletes)
	assert.Len(t, resp.AllMessages, 2)
	assert.Len(t, f.completer.last.Messages, 2)
}

func TestComplete_NewChatDeleteFailureIsNotFatal(t *testing.T) {
	f := newFixture(nil)
	f.sessions.deleteErr = errors.New("db hiccup")
	userID := uuid.New()

	resp, err := f.svc.Complete(context.Background(), userID, &CompletionRequest{Message: "fresh", Action: ActionNewChat})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestComplete_UsesPalmContext(t *testing.T) {
	f := newFixture(stubAnalyses{analysis: map[string]any{
		"personality": map[string]any{"summary": "Curious and steady.", "traits": []any{"loyal", "patient"}},
	}})

	_, err := f.svc.Complete(context.Background(), uuid.New(), &CompletionRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Contains(t, f.completer.last.Messages[0].Content, "Curious and steady.")
	assert.Contains(t, f.completer.last.Messages[0].Content, "loyal, patient")
}

func TestComplete_PalmContextErrorIgnored(t *testing.T) {
	f := newFixture(stubAnalyses{err: errors.New("db")})
	_, err := f.svc.Complete(context.Background(), uuid.New(), &CompletionRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, persona, f.completer.last.Messages[0].Content)
}

func TestQuotaStatus(t *testing.T) {
	f := newFixture(nil)
	userID := uuid.New()
	f.limits.set(userID, fixedDay, 3, 10)

	status, err := f.svc.LimitStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, LimitStatus{CurrentCount: 3, DailyLimit: 10, Remaining: 7, CanSendMessage: true}, *status)
}

func TestQuotaConsume_AtLimit(t *testing.T) {
	f := newFixture(nil)
	userID := uuid.New()
	f.limits.set(userID, fixedDay, 10, 10)

	ok, err := f.svc.quota.Consume(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 10, f.limits.count(userID, fixedDay))
}

func TestStatusOf_NeverNegative(t *testing.T) {
	s := statusOf(&MessageLimit{MessageCount: 12, DailyLimit: 10})
	assert.Equal(t, 0, s.Remaining)
	assert.False(t, s.CanSendMessage)
}

func TestHistory_Empty(t *testing.T) {
	f := newFixture(nil)
	msgs, err := f.svc.History(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}
