// Package persona manages companion personalities and each user's active choice.
package persona

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

//go:embed builtin.yaml
var builtinYAML []byte

// ErrDefaultMissing means the configured default personality is not registered.
// It is a configuration error, not a per-request failure.
var ErrDefaultMissing = errors.New("default personality missing")

// Registry reads and writes personalities through the store.
type Registry struct {
	st        store.Store
	defaultID string
	logger    *slog.Logger
}

// NewRegistry creates a Registry whose fallback personality is defaultID.
func NewRegistry(st store.Store, defaultID string, logger *slog.Logger) *Registry {
	return &Registry{st: st, defaultID: defaultID, logger: logger}
}

// DefaultID returns the fallback personality ID.
func (r *Registry) DefaultID() string { return r.defaultID }

// Builtins parses the embedded personality set.
func Builtins() ([]models.Personality, error) {
	var ps []models.Personality
	if err := yaml.Unmarshal(builtinYAML, &ps); err != nil {
		return nil, fmt.Errorf("parsing builtin personalities: %w", err)
	}
	return ps, nil
}

// Seed upserts the built-in personalities and verifies the default exists.
func (r *Registry) Seed(ctx context.Context) error {
	ps, err := Builtins()
	if err != nil {
		return err
	}
	for i := range ps {
		if err := r.Register(ctx, ps[i]); err != nil {
			return fmt.Errorf("seeding %s: %w", ps[i].ID, err)
		}
	}
	r.logger.Debug("builtin personalities seeded", "count", len(ps))
	return r.CheckDefault(ctx)
}

// CheckDefault returns ErrDefaultMissing if the default personality is absent.
func (r *Registry) CheckDefault(ctx context.Context) error {
	if _, err := r.st.GetPersonality(ctx, r.defaultID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrDefaultMissing, r.defaultID)
		}
		return err
	}
	return nil
}

// List returns every registered personality.
func (r *Registry) List(ctx context.Context) ([]models.Personality, error) {
	return r.st.ListPersonalities(ctx)
}

// Get returns a personality by ID; a missing ID wraps store.ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*models.Personality, error) {
	return r.st.GetPersonality(ctx, id)
}

// Register validates and stores a personality, replacing any with the same ID.
func (r *Registry) Register(ctx context.Context, p models.Personality) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: personality id and name are required", store.ErrInvalidInput)
	}
	for trait, v := range p.Traits {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: trait %s of %s is %.2f, want [0,1]", store.ErrInvalidInput, trait, p.ID, v)
		}
	}
	return r.st.UpsertPersonality(ctx, p)
}

// SetActive points userID at personalityID.
func (r *Registry) SetActive(ctx context.Context, userID, personalityID string) error {
	if err := r.st.SetActivePersonality(ctx, userID, personalityID); err != nil {
		return err
	}
	r.logger.Info("active personality changed", "user_id", userID, "personality", personalityID)
	return nil
}

// GetActive returns the user's personality, or the default when none was chosen.
func (r *Registry) GetActive(ctx context.Context, userID string) (*models.Personality, error) {
	id, err := r.st.ActivePersonalityID(ctx, userID)
	switch {
	case err == nil:
		p, getErr := r.st.GetPersonality(ctx, id)
		if getErr == nil {
			return p, nil
		}
		if !errors.Is(getErr, store.ErrNotFound) {
			return nil, getErr
		}
		r.logger.Warn("active personality vanished, using default", "user_id", userID, "personality", id)
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}

	p, err := r.st.GetPersonality(ctx, r.defaultID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrDefaultMissing, r.defaultID)
		}
		return nil, err
	}
	return p, nil
}
