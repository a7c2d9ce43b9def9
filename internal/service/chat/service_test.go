package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/model/persona"
	chatservice "github.com/escuta-ai/escuta/backend/internal/service/chat"
	"github.com/escuta-ai/escuta/backend/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingReplier struct {
	reply     string
	err       error
	histories [][]chat.Message
	queries   []string
}

func (r *recordingReplier) GenerateReply(_ context.Context, _ persona.Persona, history []chat.Message, userMessage string) (string, error) {
	r.histories = append(r.histories, history)
	r.queries = append(r.queries, userMessage)
	return r.reply, r.err
}

func setup(t *testing.T, replier *recordingReplier) (*chatservice.Service, *memory.Store, *fakeClock) {
	t.Helper()
	clock := newClock()
	st := memory.New()
	svc := chatservice.NewService(st, replier, persona.NewStaticSource(persona.Default()),
		chatservice.Config{TrialSeconds: 300, MaxMessageChars: 50},
		chatservice.WithClock(clock.Now))
	return svc, st, clock
}

func TestCreateSessionStartsFullBudget(t *testing.T) {
	svc, _, clock := setup(t, &recordingReplier{})

	session, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Equal(t, 300, session.RemainingTime)
	require.Equal(t, 300, session.Duration)
	require.True(t, session.IsActive)
	require.True(t, session.StartTime.Equal(clock.Now()))
	require.Nil(t, session.EndTime)
}

func TestCreateSessionIDsAreUnique(t *testing.T) {
	svc, _, _ := setup(t, &recordingReplier{})
	a, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	b, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestGetSessionRecomputesAndPersists(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := setup(t, &recordingReplier{})

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	clock.Advance(10*time.Second + 400*time.Millisecond)
	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 290, got.RemainingTime)
	require.True(t, got.IsActive)

	stored, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 290, stored.RemainingTime)
}

func TestGetSessionExpires(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := setup(t, &recordingReplier{})

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.RemainingTime)
	require.False(t, got.IsActive)
	require.NotNil(t, got.EndTime)
	require.True(t, got.EndTime.Equal(session.StartTime.Add(5*time.Minute)))
}

func TestGetSessionNotFound(t *testing.T) {
	svc, _, _ := setup(t, &recordingReplier{})
	_, err := svc.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}

func TestSendMessageRelaysConversation(t *testing.T) {
	ctx := context.Background()
	replier := &recordingReplier{reply: "Estou aqui."}
	svc, st, clock := setup(t, replier)

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	first, err := svc.SendMessage(ctx, session.ID, "  Oi, estou triste  ")
	require.NoError(t, err)
	require.Equal(t, "Oi, estou triste", first.UserMessage.Content)
	require.Equal(t, chat.RoleUser, first.UserMessage.Role)
	require.Equal(t, "Estou aqui.", first.AssistantMessage.Content)
	require.Equal(t, chat.RoleAssistant, first.AssistantMessage.Role)
	require.Equal(t, 295, first.RemainingTime)
	require.Empty(t, replier.histories[0], "the new message must not be duplicated in history")

	clock.Advance(5 * time.Second)
	second, err := svc.SendMessage(ctx, session.ID, "Obrigado")
	require.NoError(t, err)
	require.Equal(t, 290, second.RemainingTime)
	require.Len(t, replier.histories[1], 2)
	require.Equal(t, "Oi, estou triste", replier.histories[1][0].Content)
	require.Equal(t, "Obrigado", replier.queries[1])

	msgs, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	stored, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 290, stored.RemainingTime)
}

func TestSendMessageRejectsExpiredSession(t *testing.T) {
	ctx := context.Background()
	replier := &recordingReplier{reply: "nunca"}
	svc, st, clock := setup(t, replier)

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	clock.Advance(300 * time.Second)
	_, err = svc.SendMessage(ctx, session.ID, "ainda dá?")
	require.ErrorIs(t, err, chatservice.ErrSessionExpired)
	require.Empty(t, replier.queries)

	msgs, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)

	stored, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
}

func TestSendMessageValidatesContent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, &recordingReplier{reply: "ok"})
	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, session.ID, "   ")
	require.ErrorIs(t, err, chatservice.ErrInvalidContent)

	_, err = svc.SendMessage(ctx, session.ID, strings.Repeat("á", 51))
	require.ErrorIs(t, err, chatservice.ErrInvalidContent)

	_, err = svc.SendMessage(ctx, session.ID, strings.Repeat("á", 50))
	require.NoError(t, err)
}

func TestSendMessageUnknownSession(t *testing.T) {
	svc, _, _ := setup(t, &recordingReplier{reply: "ok"})
	_, err := svc.SendMessage(context.Background(), "missing", "oi")
	require.ErrorIs(t, err, chatservice.ErrSessionNotFound)
}

func TestSendMessageKeepsUserTurnWhenModelFails(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream down")
	svc, st, _ := setup(t, &recordingReplier{err: boom})

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, session.ID, "oi")
	require.ErrorIs(t, err, boom)

	msgs, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, chat.RoleUser, msgs[0].Role)
}

func TestExpireStaleClosesOnlyFinishedSessions(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := setup(t, &recordingReplier{})

	old, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	fresh, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	closed, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	got, err := st.GetSession(ctx, old.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	got, err = st.GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	closed, err = svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Zero(t, closed)
}

func TestSnapshotDoesNotPersist(t *testing.T) {
	svc, st, clock := setup(t, &recordingReplier{reply: "oi"})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	clock.Advance(400 * time.Second)
	snap := svc.Snapshot(session)
	require.False(t, snap.IsActive)
	require.Equal(t, 0, snap.RemainingTime)

	stored, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
	require.Equal(t, 300, stored.RemainingTime)
}
