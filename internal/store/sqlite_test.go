package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bitlyfe.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func importance(v float64) *float64 { return &v }

func TestCreateMemory_NoDedup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "same", Type: models.MemoryTypeFact})
	require.NoError(t, err)
	id2, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "same", Type: models.MemoryTypeFact})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	mems, err := s.ListMemories(ctx, MemoryFilter{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, mems, 2)
}

func TestCreateMemory_Defaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMemory(ctx, CreateMemoryParams{
		UserID:   "u1",
		Content:  "likes tea",
		Tags:     []string{" Drinks", "drinks", "TEA", ""},
		Metadata: map[string]any{"source": "test"},
	})
	require.NoError(t, err)

	mem, err := s.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.MemoryTypeFact, mem.Type)
	assert.InDelta(t, models.DefaultImportance, mem.Importance, 1e-9)
	assert.Equal(t, []string{"drinks", "tea"}, mem.Tags)
	assert.Equal(t, "test", mem.Metadata["source"])
	assert.Equal(t, int64(0), mem.AccessCount)
	assert.False(t, mem.CreatedAt.IsZero())
}

func TestCreateMemory_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name string
		p    CreateMemoryParams
	}{
		{"missing user", CreateMemoryParams{Content: "x"}},
		{"missing content", CreateMemoryParams{UserID: "u1"}},
		{"importance above one", CreateMemoryParams{UserID: "u1", Content: "x", Importance: importance(1.2)}},
		{"importance below zero", CreateMemoryParams{UserID: "u1", Content: "x", Importance: importance(-0.1)}},
		{"unknown type", CreateMemoryParams{UserID: "u1", Content: "x", Type: "dream"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateMemory(ctx, tt.p)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestGetMemories_ImportanceOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 9; i++ {
		_, err := s.CreateMemory(ctx, CreateMemoryParams{
			UserID: "u1", Content: fmt.Sprintf("low %d", i), Importance: importance(0.1),
		})
		require.NoError(t, err)
	}
	highID, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "high", Importance: importance(0.9)})
	require.NoError(t, err)

	mems, err := s.GetMemories(ctx, MemoryFilter{UserID: "u1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, mems, 3)
	assert.Equal(t, highID, mems[0].ID)
	for i := 1; i < len(mems); i++ {
		prev, cur := mems[i-1], mems[i]
		if prev.Importance == cur.Importance {
			assert.False(t, prev.LastAccessed.Before(cur.LastAccessed))
		} else {
			assert.Greater(t, prev.Importance, cur.Importance)
		}
	}
}

func TestGetMemories_BumpsAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "note"})
	require.NoError(t, err)
	before, err := s.GetMemory(ctx, id)
	require.NoError(t, err)

	mems, err := s.GetMemories(ctx, MemoryFilter{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, int64(1), mems[0].AccessCount)

	_, err = s.GetMemories(ctx, MemoryFilter{UserID: "u1", Limit: 5})
	require.NoError(t, err)

	after, err := s.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.AccessCount)
	assert.False(t, after.LastAccessed.Before(before.LastAccessed))
}

func TestListMemories_DoesNotBump(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "note"})
	require.NoError(t, err)
	_, err = s.ListMemories(ctx, MemoryFilter{UserID: "u1"})
	require.NoError(t, err)

	mem, err := s.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), mem.AccessCount)
}

func TestGetMemories_TypeFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "a", Type: models.MemoryTypeFact})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "b", Type: models.MemoryTypePreference})
	require.NoError(t, err)

	pref := models.MemoryTypePreference
	mems, err := s.GetMemories(ctx, MemoryFilter{UserID: "u1", Type: &pref, Limit: 10})
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "b", mems[0].Content)
}

func TestGetMemories_UnknownUserIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mems, err := s.GetMemories(ctx, MemoryFilter{UserID: "nonexistent-user", Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, mems)
	assert.Empty(t, mems)

	mems, err = s.GetMemories(ctx, MemoryFilter{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, mems)

	found, err := s.SearchMemories(ctx, "", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchMemories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateMemory(ctx, CreateMemoryParams{
		UserID: "u1", Content: "I love cats", Type: models.MemoryTypePreference, Importance: importance(0.7),
	})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "dogs are fine"})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, CreateMemoryParams{UserID: "u2", Content: "cats everywhere"})
	require.NoError(t, err)

	found, err := s.SearchMemories(ctx, "u1", "cats", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)
	assert.Equal(t, "I love cats", found[0].Content)

	upper, err := s.SearchMemories(ctx, "u1", "CATS", 10)
	require.NoError(t, err)
	assert.Len(t, upper, 1)
}

func TestSearchMemories_MatchesTagsAndEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "went hiking", Tags: []string{"Outdoors"}})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "100% sure"})
	require.NoError(t, err)

	byTag, err := s.SearchMemories(ctx, "u1", "outdoors", 10)
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	pct, err := s.SearchMemories(ctx, "u1", "%", 10)
	require.NoError(t, err)
	require.Len(t, pct, 1)
	assert.Equal(t, "100% sure", pct[0].Content)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "a", Importance: importance(0.2)})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, CreateMemoryParams{UserID: "u1", Content: "b", Type: models.MemoryTypeQuest, Importance: importance(0.6)})
	require.NoError(t, err)
	_, err = s.AddConversation(ctx, models.Conversation{UserID: "u1", UserInput: "hi", AIResponse: "hello", ProviderUsed: "fake"})
	require.NoError(t, err)

	stats, err := s.MemoryStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMemories)
	assert.Equal(t, int64(1), stats.ByType["fact"])
	assert.Equal(t, int64(1), stats.ByType["quest"])
	assert.InDelta(t, 0.4, stats.AverageImportance, 1e-9)
	assert.Equal(t, int64(1), stats.TotalConversations)
}

func TestPruneMemories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.CreateMemory(ctx, CreateMemoryParams{
			UserID: "u1", Content: fmt.Sprintf("m%d", i), Importance: importance(float64(i) / 10),
		})
		require.NoError(t, err)
	}

	n, err := s.PruneMemories(ctx, "u1", 2, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	all, err := s.ListMemories(ctx, MemoryFilter{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 5, "dry run must not delete")

	n, err = s.PruneMemories(ctx, "u1", 2, false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	kept, err := s.ListMemories(ctx, MemoryFilter{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "m4", kept[0].Content)
	assert.Equal(t, "m3", kept[1].Content)

	users, err := s.MemoryUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.AddConversation(ctx, models.Conversation{
			UserID: "u1", UserInput: fmt.Sprintf("q%d", i), AIResponse: "a", ProviderUsed: "fake",
		})
		require.NoError(t, err)
	}

	recent, err := s.RecentConversations(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].UserInput)
	assert.Equal(t, "q1", recent[1].UserInput)

	none, err := s.RecentConversations(ctx, "ghost", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestShare_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sc, err := s.CreateShare(ctx, CreateShareParams{UserID: "u1", ContentType: "story", Content: "Once upon a time"})
	require.NoError(t, err)
	assert.Equal(t, ShareCode(sc.ID, sc.Content), sc.ShareCode)
	assert.Len(t, sc.ShareCode, shareCodeLen)

	for want := int64(1); want <= 3; want++ {
		got, err := s.LookupShare(ctx, sc.ShareCode)
		require.NoError(t, err)
		assert.Equal(t, "Once upon a time", got.Content)
		assert.Equal(t, want, got.ViewCount)
	}

	_, err = s.LookupShare(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShare_ConcurrentLookupsDoNotLoseViews(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sc, err := s.CreateShare(ctx, CreateShareParams{UserID: "u1", Content: "popular"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, lookupErr := s.LookupShare(ctx, sc.ShareCode)
			assert.NoError(t, lookupErr)
		}()
	}
	wg.Wait()

	got, err := s.LookupShare(ctx, sc.ShareCode)
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), got.ViewCount)
}

func TestListPublicShares(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateShare(ctx, CreateShareParams{UserID: "u1", Content: "private"})
	require.NoError(t, err)
	pub, err := s.CreateShare(ctx, CreateShareParams{UserID: "u1", Content: "public", IsPublic: true})
	require.NoError(t, err)

	list, err := s.ListPublicShares(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pub.ID, list[0].ID)
}

func TestPersonalities(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"default", "casual"} {
		require.NoError(t, s.UpsertPersonality(ctx, models.Personality{
			ID:     id,
			Name:   id,
			Traits: map[string]float64{"warmth": 0.5},
		}))
	}

	list, err := s.ListPersonalities(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "casual", list[0].ID)

	_, err = s.ActivePersonalityID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetActivePersonality(ctx, "u1", "casual"))
	active, err := s.ActivePersonalityID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "casual", active)

	err = s.SetActivePersonality(ctx, "u1", "pirate")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetPersonality(ctx, "pirate")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.GetPersonality(ctx, "default")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Traits["warmth"], 1e-9)
}

func TestProfiles_LazyCreateAndXP(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.EnsureProfile(ctx, "u1", "Bit")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "Bit", p.AICompanionName)

	again, err := s.EnsureProfile(ctx, "u1", "Other")
	require.NoError(t, err)
	assert.Equal(t, "Bit", again.AICompanionName, "existing profile must not be overwritten")

	p, err = s.AddXP(ctx, "u1", 999)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)

	p, err = s.AddXP(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.TotalXP)
	assert.Equal(t, 2, p.Level)

	p, err = s.AddXP(ctx, "u1", 2500)
	require.NoError(t, err)
	assert.Equal(t, models.LevelForXP(3500), p.Level)

	_, err = s.AddXP(ctx, "u1", -5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.AddXP(ctx, "ghost", 5)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetCompanionName(ctx, "u1", "Nova"))
	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Nova", p.AICompanionName)
}
