// Package storetest holds the behaviour every store driver must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/store"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

func newSession(id string) chat.Session {
	return chat.Session{
		ID:            id,
		StartTime:     base,
		IsActive:      true,
		RemainingTime: chat.DefaultTrialSeconds,
		Duration:      chat.DefaultTrialSeconds,
	}
}

// Run exercises the store contract against the driver produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, open(t)) })
	t.Run("DuplicateSession", func(t *testing.T) { testDuplicate(t, open(t)) })
	t.Run("MissingSession", func(t *testing.T) { testMissing(t, open(t)) })
	t.Run("UpdateSession", func(t *testing.T) { testUpdate(t, open(t)) })
	t.Run("AppendAndList", func(t *testing.T) { testAppendAndList(t, open(t)) })
	t.Run("MessagesIsolatedPerSession", func(t *testing.T) { testIsolation(t, open(t)) })
	t.Run("ListActiveSessions", func(t *testing.T) { testListActive(t, open(t)) })
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	created, err := s.CreateSession(ctx, newSession("abc"))
	require.NoError(t, err)

	got, err := s.GetSession(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.True(t, got.StartTime.Equal(base), "start time %v", got.StartTime)
	require.Nil(t, got.EndTime)
	require.True(t, got.IsActive)
	require.Equal(t, chat.DefaultTrialSeconds, got.RemainingTime)
	require.Equal(t, chat.DefaultTrialSeconds, got.Duration)
}

func testDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.CreateSession(ctx, newSession("dup"))
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, newSession("dup"))
	require.ErrorIs(t, err, store.ErrSessionExists)
}

func testMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetSession(ctx, "nope")
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	_, err = s.UpdateSession(ctx, "nope", chat.SessionUpdate{})
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	_, err = s.AppendMessage(ctx, chat.Message{SessionID: "nope", Role: chat.RoleUser, Content: "oi"})
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	_, err = s.ListMessages(ctx, "nope")
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func testUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.CreateSession(ctx, newSession("upd"))
	require.NoError(t, err)

	end := base.Add(5 * time.Minute)
	updated, err := s.UpdateSession(ctx, "upd", chat.SessionUpdate{RemainingTime: 0, IsActive: false, EndTime: &end})
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	got, err := s.GetSession(ctx, "upd")
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, 0, got.RemainingTime)
	require.NotNil(t, got.EndTime)
	require.True(t, got.EndTime.Equal(end))
	require.True(t, got.StartTime.Equal(base), "update must not touch start time")

	_, err = s.UpdateSession(ctx, "upd", chat.SessionUpdate{RemainingTime: 12, IsActive: true})
	require.NoError(t, err)
	got, err = s.GetSession(ctx, "upd")
	require.NoError(t, err)
	require.Nil(t, got.EndTime)
	require.Equal(t, 12, got.RemainingTime)
}

func testAppendAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.CreateSession(ctx, newSession("log"))
	require.NoError(t, err)

	empty, err := s.ListMessages(ctx, "log")
	require.NoError(t, err)
	require.Empty(t, empty)

	var want []chat.Message
	var lastID int64
	for i := 0; i < 5; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		msg, err := s.AppendMessage(ctx, chat.Message{
			SessionID: "log",
			Role:      role,
			Content:   fmt.Sprintf("turn %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		require.Greater(t, msg.ID, lastID, "message ids must increase")
		lastID = msg.ID
		want = append(want, msg)
	}

	got, err := s.ListMessages(ctx, "log")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("messages mismatch (-want +got):\n%s", diff)
	}
}

func testIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	// "a/b" shares a textual prefix with "a"; ids are opaque strings.
	for _, id := range []string{"a", "b", "a/b"} {
		_, err := s.CreateSession(ctx, newSession(id))
		require.NoError(t, err)
	}

	_, err := s.AppendMessage(ctx, chat.Message{SessionID: "a", Role: chat.RoleUser, Content: "só a", Timestamp: base})
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, chat.Message{SessionID: "a/b", Role: chat.RoleUser, Content: "só a/b", Timestamp: base})
	require.NoError(t, err)

	a, err := s.ListMessages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	require.Equal(t, "a", a[0].SessionID)

	nested, err := s.ListMessages(ctx, "a/b")
	require.NoError(t, err)
	require.Len(t, nested, 1)
	require.Equal(t, "a/b", nested[0].SessionID)

	b, err := s.ListMessages(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, b)
}

func testListActive(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, id := range []string{"live", "dead"} {
		_, err := s.CreateSession(ctx, newSession(id))
		require.NoError(t, err)
	}
	end := base.Add(5 * time.Minute)
	_, err := s.UpdateSession(ctx, "dead", chat.SessionUpdate{IsActive: false, EndTime: &end})
	require.NoError(t, err)

	active, err := s.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "live", active[0].ID)
}
