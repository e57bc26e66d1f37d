// Package recall assembles the memory-augmented prompt sent to providers.
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/persona"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
	"github.com/tecbitlyfe/bitlyfe/pkg/tokenizer"
	"github.com/tecbitlyfe/bitlyfe/pkg/xmlutil"
)

// Section headers, in prompt order.
const (
	HeaderContext      = "Context:"
	HeaderConversation = "Recent conversation:"
	HeaderPersona      = "Persona traits:"
	HeaderMessage      = "User message:"
)

// itemOverhead is charged per packed item for markup and newlines.
const itemOverhead = 4

// Options controls how much context is pulled in.
type Options struct {
	Memories      int    // top-N memories by importance, then recency
	Turns         int    // last K conversation turns
	TokenBudget   int    // total prompt budget; the message itself is never cut
	CompanionName string // label for companion turns
}

// Assembly is an assembled prompt plus what went into it.
type Assembly struct {
	Prompt   string
	Memories int
	Turns    int
	Persona  *models.Personality
	Tokens   int
}

// Assembler builds augmented prompts. It only reads from the store.
type Assembler struct {
	st       store.Store
	personas *persona.Registry
	opts     Options
	logger   *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(st store.Store, personas *persona.Registry, opts Options, logger *slog.Logger) *Assembler {
	if opts.CompanionName == "" {
		opts.CompanionName = "Companion"
	}
	return &Assembler{st: st, personas: personas, opts: opts, logger: logger}
}

// Assemble returns message unchanged when includeContext is false. Otherwise it
// prepends memories, recent turns and persona traits, dropping the least
// important memories and the oldest turns first when over budget.
func (a *Assembler) Assemble(ctx context.Context, userID, message string, includeContext bool) (*Assembly, error) {
	if !includeContext {
		return &Assembly{Prompt: message, Tokens: tokenizer.EstimateTokens(message)}, nil
	}

	p, err := a.personas.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("active personality: %w", err)
	}

	var mems []models.Memory
	if a.opts.Memories > 0 {
		mems, err = a.st.ListMemories(ctx, store.MemoryFilter{UserID: userID, Limit: a.opts.Memories})
		if err != nil {
			return nil, fmt.Errorf("listing memories: %w", err)
		}
	}

	var turns []models.Conversation
	if a.opts.Turns > 0 {
		turns, err = a.st.RecentConversations(ctx, userID, a.opts.Turns)
		if err != nil {
			return nil, fmt.Errorf("listing conversations: %w", err)
		}
	}

	remaining := a.opts.TokenBudget - tokenizer.EstimateTokens(message) -
		tokenizer.EstimateTokens(HeaderMessage)

	personaLine := formatPersona(p)
	personaCost := tokenizer.EstimateTokens(personaLine) + tokenizer.EstimateTokens(HeaderPersona) + itemOverhead
	includePersona := personaCost <= remaining
	if includePersona {
		remaining -= personaCost
	}

	memLines := make([]string, len(mems))
	for i := range mems {
		memLines[i] = xmlutil.Wrap("memory", mems[i].Content)
	}
	nMem := fitSection(memLines, HeaderContext, &remaining)
	memLines = memLines[:nMem]

	// turns are newest first, so packing keeps the newest.
	turnLines := make([]string, len(turns))
	for i := range turns {
		turnLines[i] = xmlutil.Wrap("user", turns[i].UserInput) + "\n" +
			xmlutil.Wrap(strings.ToLower(a.opts.CompanionName), turns[i].AIResponse)
	}
	nTurns := fitSection(turnLines, HeaderConversation, &remaining)
	turnLines = turnLines[:nTurns]
	for i, j := 0, len(turnLines)-1; i < j; i, j = i+1, j-1 {
		turnLines[i], turnLines[j] = turnLines[j], turnLines[i]
	}

	var b strings.Builder
	writeSection(&b, HeaderContext, memLines)
	writeSection(&b, HeaderConversation, turnLines)
	if includePersona {
		writeSection(&b, HeaderPersona, []string{personaLine})
	}
	b.WriteString(HeaderMessage + "\n")
	b.WriteString(message)

	prompt := b.String()
	if dropped := len(mems) - nMem + len(turns) - nTurns; dropped > 0 {
		a.logger.Debug("context trimmed to token budget", "user_id", userID, "dropped", dropped)
	}
	return &Assembly{
		Prompt:   prompt,
		Memories: nMem,
		Turns:    nTurns,
		Persona:  p,
		Tokens:   tokenizer.EstimateTokens(prompt),
	}, nil
}

// fitSection packs lines into the remaining budget, paying for the header
// only when at least one line fits.
func fitSection(lines []string, header string, remaining *int) int {
	if len(lines) == 0 {
		return 0
	}
	headerCost := tokenizer.EstimateTokens(header)
	if *remaining <= headerCost {
		return 0
	}
	n := tokenizer.FitCount(lines, *remaining-headerCost, itemOverhead)
	if n == 0 {
		return 0
	}
	used := headerCost
	for _, l := range lines[:n] {
		used += tokenizer.EstimateTokens(l) + itemOverhead
	}
	*remaining -= used
	return n
}

func writeSection(b *strings.Builder, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(header + "\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	b.WriteString("\n")
}

// formatPersona renders name, style and traits sorted by name.
func formatPersona(p *models.Personality) string {
	names := make([]string, 0, len(p.Traits))
	for k := range p.Traits {
		names = append(names, k)
	}
	sort.Strings(names)
	traits := make([]string, len(names))
	for i, k := range names {
		traits[i] = fmt.Sprintf("%s=%.2f", k, p.Traits[k])
	}
	s := "name=" + xmlutil.Escape(p.Name)
	if p.CommunicationStyle != "" {
		s += "; style=" + xmlutil.Escape(p.CommunicationStyle)
	}
	if len(traits) > 0 {
		s += "; " + strings.Join(traits, ", ")
	}
	return s
}
