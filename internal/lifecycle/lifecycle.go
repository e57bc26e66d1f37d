package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tecbitlyfe/bitlyfe/internal/metrics"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

// UserReport is the prune outcome for one user.
type UserReport struct {
	UserID  string `json:"user_id"`
	Removed int    `json:"removed"`
}

// Report summarizes the results of a lifecycle run.
type Report struct {
	DryRun  bool         `json:"dry_run"`
	Keep    int          `json:"keep"`
	Removed int          `json:"removed"`
	Users   []UserReport `json:"users"`
}

// Manager handles memory lifecycle operations.
type Manager struct {
	store      store.Store
	maxPerUser int
	logger     *slog.Logger
}

// NewManager creates a new lifecycle manager. maxPerUser <= 0 disables pruning.
func NewManager(st store.Store, maxPerUser int, logger *slog.Logger) *Manager {
	return &Manager{
		store:      st,
		maxPerUser: maxPerUser,
		logger:     logger,
	}
}

// Run trims every user (or just userID, when set) to the highest ranked
// maxPerUser memories. Nothing is deleted when dryRun is true.
func (m *Manager) Run(ctx context.Context, userID string, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun, Keep: m.maxPerUser}
	if m.maxPerUser <= 0 {
		m.logger.Info("pruning disabled", "max_per_user", m.maxPerUser)
		return report, nil
	}

	users := []string{userID}
	if userID == "" {
		var err error
		users, err = m.store.MemoryUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing memory users: %w", err)
		}
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := m.store.PruneMemories(ctx, u, m.maxPerUser, dryRun)
		if err != nil {
			m.logger.Error("pruning memories", "user_id", u, "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		report.Users = append(report.Users, UserReport{UserID: u, Removed: n})
		report.Removed += n
		if !dryRun {
			metrics.MemoriesPruned.Add(int64(n))
		}
		m.logger.Info("pruned memories", "user_id", u, "removed", n, "dry_run", dryRun)
	}
	return report, nil
}
