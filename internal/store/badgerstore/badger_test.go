package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/store"
	"github.com/escuta-ai/escuta/backend/internal/store/storetest"
)

func TestBadgerStoreInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestBadgerStoreIDsIncreaseAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	_, err = first.CreateSession(ctx, chat.Session{ID: "s", StartTime: time.Now(), IsActive: true, Duration: 300})
	require.NoError(t, err)
	m1, err := first.AppendMessage(ctx, chat.Message{SessionID: "s", Role: chat.RoleUser, Content: "um", Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer second.Close()

	m2, err := second.AppendMessage(ctx, chat.Message{SessionID: "s", Role: chat.RoleAssistant, Content: "dois", Timestamp: time.Now()})
	require.NoError(t, err)
	require.Greater(t, m2.ID, m1.ID)

	msgs, err := second.ListMessages(ctx, "s")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "um", msgs[0].Content)
	require.Equal(t, "dois", msgs[1].Content)
}
