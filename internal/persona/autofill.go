package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"

	"github.com/tecbitlyfe/bitlyfe/internal/classifier"
	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

const (
	autofillScanLimit = 200
	maxInterests      = 5
	minInterestLen    = 3
)

var english = stopwords.MustGet("en")

// emotionPersonality suggests a personality for a dominant emotion.
var emotionPersonality = map[string]string{
	classifier.EmotionHappy:   "casual",
	classifier.EmotionExcited: "casual",
	classifier.EmotionCurious: "mentor",
	classifier.EmotionAnxious: "mentor",
	classifier.EmotionLove:    "storyteller",
}

// Suggestion is the result of inspecting a user's memories.
type Suggestion struct {
	UserID               string   `json:"user_id"`
	Interests            []string `json:"interests"`
	DominantEmotion      string   `json:"dominant_emotion"`
	SuggestedPersonality string   `json:"suggested_personality"`
	Applied              bool     `json:"applied"`
	MemoriesScanned      int      `json:"memories_scanned"`
}

// Autofill derives interests and a personality from the user's memories.
// With apply set, the suggested personality becomes the active one.
// Memory access stats are not touched.
func (r *Registry) Autofill(ctx context.Context, userID string, apply bool) (*Suggestion, error) {
	mems, err := r.st.ListMemories(ctx, store.MemoryFilter{UserID: userID, Limit: autofillScanLimit})
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	emotions := make(map[string]bool)
	for _, l := range classifier.EmotionTable().Labels {
		emotions[l.Name] = true
	}

	terms := make(map[string]int)
	emotionCounts := make(map[string]int)
	for i := range mems {
		m := &mems[i]
		if m.Type == models.MemoryTypePreference || m.Type == models.MemoryTypeFact {
			for _, w := range interestTerms(m.Content) {
				terms[w]++
			}
		}
		for _, tag := range m.Tags {
			if emotions[tag] && tag != classifier.EmotionNeutral {
				emotionCounts[tag]++
			}
		}
	}

	s := &Suggestion{
		UserID:               userID,
		Interests:            topN(terms, maxInterests),
		DominantEmotion:      classifier.EmotionNeutral,
		SuggestedPersonality: r.defaultID,
		MemoriesScanned:      len(mems),
	}
	if top := topN(emotionCounts, 1); len(top) == 1 {
		s.DominantEmotion = top[0]
		if id, ok := emotionPersonality[top[0]]; ok {
			s.SuggestedPersonality = id
		}
	}

	if apply {
		if err := r.SetActive(ctx, userID, s.SuggestedPersonality); err != nil {
			return nil, err
		}
		s.Applied = true
	}
	return s, nil
}

func interestTerms(content string) []string {
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	out := words[:0]
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len(w) < minInterestLen || english.Contains(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// topN returns the n most frequent keys, ties broken alphabetically.
func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
