// Package classifier tags text with an emotion or topic label using weighted
// keyword tables. It is a lookup table, not a model: the same text always
// yields the same scores.
package classifier

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/ahocorasick"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

// Keyword is one weighted term. Multi-word terms are allowed.
type Keyword struct {
	Term   string
	Weight float64
}

// Label is a candidate output with its keywords. Declaration order breaks ties.
type Label struct {
	Name     string
	Keywords []Keyword
}

// Table is a complete classifier definition.
type Table struct {
	Name     string
	Labels   []Label
	Fallback string                        // primary label when every score is zero
	Bias     map[string]map[string]float64 // character -> label -> additive bias
}

// owner links an automaton pattern back to a label keyword.
type owner struct {
	label  int
	weight float64
}

// Classifier scores text against one Table.
type Classifier struct {
	table     Table
	index     map[string]int
	patterns  []string
	owners    [][]owner
	automaton *ahocorasick.Automaton
	logger    *slog.Logger
}

// New compiles a Table into a Classifier.
func New(table Table, logger *slog.Logger) (*Classifier, error) {
	if len(table.Labels) == 0 {
		return nil, fmt.Errorf("classifier %s: no labels", table.Name)
	}
	c := &Classifier{
		table:  table,
		index:  make(map[string]int, len(table.Labels)),
		logger: logger,
	}
	for i, l := range table.Labels {
		if _, dup := c.index[l.Name]; dup {
			return nil, fmt.Errorf("classifier %s: label %q declared twice", table.Name, l.Name)
		}
		c.index[l.Name] = i
	}
	if _, ok := c.index[table.Fallback]; !ok {
		return nil, fmt.Errorf("classifier %s: fallback %q is not a label", table.Name, table.Fallback)
	}
	for character, biases := range table.Bias {
		for label := range biases {
			if _, ok := c.index[label]; !ok {
				return nil, fmt.Errorf("classifier %s: bias for %s names unknown label %q", table.Name, character, label)
			}
		}
	}

	patternIndex := make(map[string]int)
	for li, l := range table.Labels {
		for _, kw := range l.Keywords {
			term := strings.ToLower(strings.TrimSpace(kw.Term))
			if term == "" {
				continue
			}
			idx, ok := patternIndex[term]
			if !ok {
				idx = len(c.patterns)
				patternIndex[term] = idx
				c.patterns = append(c.patterns, term)
				c.owners = append(c.owners, nil)
			}
			c.owners[idx] = append(c.owners[idx], owner{label: li, weight: kw.Weight})
		}
	}

	if len(c.patterns) > 0 {
		automaton, err := ahocorasick.NewBuilder().
			AddStrings(c.patterns).
			SetMatchKind(ahocorasick.LeftmostLongest).
			SetPrefilter(true).
			Build()
		if err != nil {
			return nil, fmt.Errorf("classifier %s: building automaton: %w", table.Name, err)
		}
		c.automaton = automaton
	}
	return c, nil
}

// Labels returns label names in declaration order.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.table.Labels))
	for i, l := range c.table.Labels {
		out[i] = l.Name
	}
	return out
}

// Classify scores text with no character bias.
func (c *Classifier) Classify(text string) models.Classification {
	return c.ClassifyFor(text, "")
}

// ClassifyFor scores text and adds the character's bias table, if any.
func (c *Classifier) ClassifyFor(text, character string) models.Classification {
	raw := make([]float64, len(c.table.Labels))

	for _, p := range c.matches(strings.ToLower(text)) {
		for _, o := range c.owners[p] {
			raw[o.label] += o.weight
		}
	}

	for label, b := range c.table.Bias[strings.ToLower(character)] {
		raw[c.index[label]] += b
	}

	maxScore := 0.0
	for _, s := range raw {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 1.0 {
		for i := range raw {
			raw[i] /= maxScore
		}
	}

	primary := c.table.Fallback
	if maxScore > 0 {
		best := -1
		for i, s := range raw {
			if best < 0 || s > raw[best] {
				best = i
			}
		}
		primary = c.table.Labels[best].Name
	}

	scores := make(map[string]float64, len(raw))
	for i, l := range c.table.Labels {
		scores[l.Name] = raw[i]
	}
	c.logger.Debug("classified text", "table", c.table.Name, "label", primary, "character", character)
	return models.Classification{PrimaryLabel: primary, Scores: scores}
}

// matches returns each pattern found as a whole word, once.
func (c *Classifier) matches(lower string) []int {
	if c.automaton == nil || lower == "" {
		return nil
	}
	haystack := []byte(lower)
	seen := make(map[int]bool)
	var out []int
	for _, m := range c.automaton.FindAllOverlapping(haystack) {
		if seen[m.PatternID] || !wholeWord(haystack, m.Start, m.End) {
			continue
		}
		seen[m.PatternID] = true
		out = append(out, m.PatternID)
	}
	return out
}

// wholeWord reports whether haystack[start:end] is bounded by non-word runes.
func wholeWord(haystack []byte, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRune(haystack[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(haystack) {
		r, _ := utf8.DecodeRune(haystack[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}
