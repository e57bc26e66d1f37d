package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecbitlyfe/bitlyfe/internal/classifier"
	"github.com/tecbitlyfe/bitlyfe/internal/dispatch"
	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/persona"
	"github.com/tecbitlyfe/bitlyfe/internal/recall"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

type fakeDispatcher struct {
	reply string
	err   error
	last  dispatch.Request
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req dispatch.Request) (*dispatch.Result, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &dispatch.Result{
		Response: f.reply,
		Provider: "fake",
		Model:    "fake-1",
		Elapsed:  250 * time.Millisecond,
		Attempts: 1,
	}, nil
}

func newTestService(t *testing.T, disp Dispatcher) (*Service, *store.SQLiteStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := persona.NewRegistry(st, "default", logger)
	require.NoError(t, reg.Seed(context.Background()))
	asm := recall.NewAssembler(st, reg, recall.Options{Memories: 5, Turns: 3, TokenBudget: 2000, CompanionName: "Bit"}, logger)

	svc := NewService(st, asm, disp, reg,
		classifier.NewEmotion(logger), classifier.NewTopic(logger),
		Options{DefaultUser: "default_user", CompanionName: "Bit"}, logger)
	return svc, st
}

func TestChat_StoresExchangeAndTags(t *testing.T) {
	ctx := context.Background()
	disp := &fakeDispatcher{reply: "Cats are the best!"}
	svc, st := newTestService(t, disp)

	reply, err := svc.Chat(ctx, Request{UserID: "alice", Message: "I love cats", IncludeContext: true})
	require.NoError(t, err)

	assert.Equal(t, "Cats are the best!", reply.Response)
	assert.Equal(t, "fake", reply.Provider)
	assert.Equal(t, classifier.EmotionLove, reply.Emotion)
	assert.Equal(t, "animals", reply.Topic)
	assert.Equal(t, "hearts", reply.AvatarState)
	assert.InDelta(t, 0.25, reply.ResponseTime, 0.001)
	assert.NotEmpty(t, reply.ConversationID)

	convs, err := st.RecentConversations(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, models.ContextTypeAugmented, convs[0].ContextType)
	assert.Equal(t, "fake", convs[0].ProviderUsed)

	mem, err := st.GetMemory(ctx, reply.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, models.MemoryTypeConversation, mem.Type)
	assert.Equal(t, "I love cats", mem.Content)
	assert.ElementsMatch(t, []string{"love", "animals"}, mem.Tags)

	profile, err := st.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Bit", profile.AICompanionName)
}

func TestChat_SecondTurnSeesFirst(t *testing.T) {
	ctx := context.Background()
	disp := &fakeDispatcher{reply: "noted"}
	svc, _ := newTestService(t, disp)

	_, err := svc.Chat(ctx, Request{UserID: "alice", Message: "I love cats", IncludeContext: true})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, Request{UserID: "alice", Message: "what do I like?", IncludeContext: true})
	require.NoError(t, err)

	assert.Contains(t, disp.last.Prompt, "<memory>I love cats</memory>")
	assert.Contains(t, disp.last.Prompt, "<user>I love cats</user>")
	assert.Contains(t, disp.last.System, "Bit")
}

func TestChat_PlainSkipsContext(t *testing.T) {
	ctx := context.Background()
	disp := &fakeDispatcher{reply: "hi"}
	svc, st := newTestService(t, disp)

	_, err := svc.Chat(ctx, Request{UserID: "alice", Message: "I love cats", IncludeContext: true})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, Request{UserID: "alice", Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hello", disp.last.Prompt)
	convs, err := st.RecentConversations(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, models.ContextTypePlain, convs[0].ContextType)
}

func TestChat_DispatchFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	disp := &fakeDispatcher{err: &dispatch.AllProvidersFailedError{}}
	svc, st := newTestService(t, disp)

	_, err := svc.Chat(ctx, Request{UserID: "alice", Message: "hello", IncludeContext: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrAllProvidersFailed))

	convs, err := st.RecentConversations(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, convs)
	stats, err := st.MemoryStats(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalMemories)
}

func TestChat_Validation(t *testing.T) {
	svc, _ := newTestService(t, &fakeDispatcher{reply: "x"})
	_, err := svc.Chat(context.Background(), Request{UserID: "alice", Message: "   "})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestChat_DefaultUser(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &fakeDispatcher{reply: "x"})
	_, err := svc.Chat(ctx, Request{Message: "hello"})
	require.NoError(t, err)
	_, err = st.GetProfile(ctx, "default_user")
	assert.NoError(t, err)
}

func TestChat_CharacterBias(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeDispatcher{reply: "x"})
	reply, err := svc.Chat(ctx, Request{UserID: "alice", Message: "hello there", Character: "nova"})
	require.NoError(t, err)
	assert.Equal(t, classifier.EmotionExcited, reply.Emotion)
}

func TestChat_ProviderPassedThrough(t *testing.T) {
	disp := &fakeDispatcher{reply: "x"}
	svc, _ := newTestService(t, disp)
	_, err := svc.Chat(context.Background(), Request{UserID: "alice", Message: "hi", Provider: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "claude", disp.last.Preferred)
}

func TestCompleteQuest_LevelsUp(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &fakeDispatcher{})

	res, err := svc.CompleteQuest(ctx, "alice", "Beat the boss", 600)
	require.NoError(t, err)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, 1, res.Profile.Level)

	res, err = svc.CompleteQuest(ctx, "alice", "Win the tournament", 500)
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, int64(1100), res.Profile.TotalXP)
	assert.Equal(t, 2, res.Profile.Level)

	mem, err := st.GetMemory(ctx, res.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, models.MemoryTypeQuest, mem.Type)
	assert.Contains(t, mem.Content, "Win the tournament")
}

func TestCompleteQuest_Validation(t *testing.T) {
	svc, _ := newTestService(t, &fakeDispatcher{})
	ctx := context.Background()

	_, err := svc.CompleteQuest(ctx, "alice", "", 10)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = svc.CompleteQuest(ctx, "alice", "x", 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = svc.CompleteQuest(ctx, "alice", "x", maxQuestXP+1)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestHistory_NewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeDispatcher{reply: "ok"})
	for _, m := range []string{"one", "two"} {
		_, err := svc.Chat(ctx, Request{UserID: "alice", Message: m})
		require.NoError(t, err)
	}
	h, err := svc.History(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, "two", h[0].UserInput)
}
