package classifier

import "log/slog"

// Emotion labels.
const (
	EmotionHappy   = "happy"
	EmotionExcited = "excited"
	EmotionLove    = "love"
	EmotionSad     = "sad"
	EmotionAngry   = "angry"
	EmotionAnxious = "anxious"
	EmotionCurious = "curious"
	EmotionNeutral = "neutral"
)

// TopicGeneral is the topic fallback label.
const TopicGeneral = "general"

func kw(weight float64, terms ...string) []Keyword {
	out := make([]Keyword, len(terms))
	for i, t := range terms {
		out[i] = Keyword{Term: t, Weight: weight}
	}
	return out
}

func join(groups ...[]Keyword) []Keyword {
	var out []Keyword
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// EmotionTable is the built-in emotion definition. Label order is the tie-break order.
func EmotionTable() Table {
	return Table{
		Name: "emotion",
		Labels: []Label{
			{Name: EmotionHappy, Keywords: join(
				kw(1.0, "happy", "glad", "great", "awesome", "wonderful", "yay"),
				kw(0.5, "good", "nice", "fun", "smile", "laugh", "lol"),
			)},
			{Name: EmotionExcited, Keywords: join(
				kw(1.0, "excited", "can't wait", "amazing", "incredible", "thrilled"),
				kw(0.5, "wow", "omg", "epic", "hyped"),
			)},
			{Name: EmotionLove, Keywords: join(
				kw(1.0, "love", "adore", "in love"),
				kw(0.5, "cute", "sweet", "favorite", "heart"),
			)},
			{Name: EmotionSad, Keywords: join(
				kw(1.0, "sad", "depressed", "lonely", "cry", "crying", "miss"),
				kw(0.5, "tired", "down", "sorry", "lost", "hurt"),
			)},
			{Name: EmotionAngry, Keywords: join(
				kw(1.0, "angry", "mad", "furious", "hate", "annoyed"),
				kw(0.5, "unfair", "stupid", "ugh", "frustrated"),
			)},
			{Name: EmotionAnxious, Keywords: join(
				kw(1.0, "anxious", "worried", "nervous", "scared", "afraid", "stressed"),
				kw(0.5, "exam", "deadline", "panic", "overwhelmed"),
			)},
			{Name: EmotionCurious, Keywords: join(
				kw(1.0, "curious", "wonder", "why", "how does", "what if"),
				kw(0.5, "learn", "explain", "question", "interesting"),
			)},
			{Name: EmotionNeutral},
		},
		Fallback: EmotionNeutral,
		Bias: map[string]map[string]float64{
			"bit":    {EmotionHappy: 0.2, EmotionCurious: 0.1},
			"nova":   {EmotionExcited: 0.3},
			"sage":   {EmotionCurious: 0.3},
			"echo":   {EmotionSad: 0.1, EmotionAnxious: 0.1},
			"blaze":  {EmotionExcited: 0.2, EmotionAngry: 0.1},
			"willow": {EmotionLove: 0.2, EmotionHappy: 0.1},
		},
	}
}

// TopicTable is the built-in topic definition.
func TopicTable() Table {
	return Table{
		Name: "topic",
		Labels: []Label{
			{Name: "gaming", Keywords: join(
				kw(1.0, "game", "games", "gaming", "minecraft", "level up", "boss fight", "quest"),
				kw(0.5, "play", "playing", "console", "controller"),
			)},
			{Name: "music", Keywords: join(
				kw(1.0, "music", "song", "songs", "album", "concert", "guitar", "piano"),
				kw(0.5, "listen", "band", "sing", "playlist"),
			)},
			{Name: "technology", Keywords: join(
				kw(1.0, "code", "coding", "programming", "computer", "software", "ai", "robot"),
				kw(0.5, "app", "phone", "internet", "website"),
			)},
			{Name: "art", Keywords: join(
				kw(1.0, "draw", "drawing", "paint", "painting", "art", "sketch"),
				kw(0.5, "color", "design", "creative"),
			)},
			{Name: "animals", Keywords: join(
				kw(1.0, "cat", "cats", "dog", "dogs", "pet", "pets", "puppy", "kitten"),
				kw(0.5, "animal", "animals", "bird", "fish"),
			)},
			{Name: "food", Keywords: join(
				kw(1.0, "food", "eat", "cook", "cooking", "pizza", "recipe"),
				kw(0.5, "hungry", "dinner", "lunch", "breakfast", "snack"),
			)},
			{Name: "school", Keywords: join(
				kw(1.0, "school", "homework", "exam", "teacher", "class", "study"),
				kw(0.5, "grade", "test", "learn"),
			)},
			{Name: "work", Keywords: join(
				kw(1.0, "work", "job", "boss", "office", "meeting", "project"),
				kw(0.5, "deadline", "career", "coworker"),
			)},
			{Name: "health", Keywords: join(
				kw(1.0, "sick", "doctor", "exercise", "workout", "sleep", "health"),
				kw(0.5, "tired", "run", "gym"),
			)},
			{Name: "relationships", Keywords: join(
				kw(1.0, "friend", "friends", "family", "mom", "dad", "girlfriend", "boyfriend"),
				kw(0.5, "sister", "brother", "date"),
			)},
			{Name: TopicGeneral},
		},
		Fallback: TopicGeneral,
	}
}

// NewEmotion compiles the built-in emotion table.
func NewEmotion(logger *slog.Logger) *Classifier {
	c, err := New(EmotionTable(), logger)
	if err != nil {
		panic(err) // static table
	}
	return c
}

// NewTopic compiles the built-in topic table.
func NewTopic(logger *slog.Logger) *Classifier {
	c, err := New(TopicTable(), logger)
	if err != nil {
		panic(err) // static table
	}
	return c
}

var avatarStates = map[string]string{
	EmotionHappy:   "smiling",
	EmotionExcited: "bouncing",
	EmotionLove:    "hearts",
	EmotionSad:     "comforting",
	EmotionAngry:   "calming",
	EmotionAnxious: "reassuring",
	EmotionCurious: "thinking",
	EmotionNeutral: "idle",
}

// AvatarState maps an emotion label to the companion's cosmetic expression.
func AvatarState(emotion string) string {
	if s, ok := avatarStates[emotion]; ok {
		return s
	}
	return avatarStates[EmotionNeutral]
}
