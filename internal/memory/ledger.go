// Package memory is an in-process ledger with the same semantics as the
// PostgreSQL repository. It backs development mode and tests; nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecowise-backend/internal/domain"
)

// userState is one account plus its history, guarded by its own mutex so
// submissions for different users never contend.
type userState struct {
	mu      sync.Mutex
	account domain.UserAccount
	history []domain.HistoryRecord
}

// Ledger is an in-memory user ledger.
type Ledger struct {
	mu    sync.RWMutex
	users map[string]*userState
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{users: make(map[string]*userState)}
}

// state returns the per-user state, creating the account lazily with zero
// stats on first access.
func (l *Ledger) state(username string) *userState {
	l.mu.RLock()
	st, ok := l.users[username]
	l.mu.RUnlock()
	if ok {
		return st
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.users[username]; ok {
		return st
	}
	st = &userState{
		account: domain.UserAccount{
			Username:  username,
			Level:     domain.LevelFriend,
			CreatedAt: time.Now().UTC(),
		},
	}
	l.users[username] = st
	return st
}

// GetAccount retrieves a user account without creating one.
func (l *Ledger) GetAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	l.mu.RLock()
	st, ok := l.users[username]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	account := st.account
	return &account, nil
}

// EnsureAccount retrieves a user account, creating it on first lookup.
func (l *Ledger) EnsureAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	st := l.state(username)
	st.mu.Lock()
	defer st.mu.Unlock()
	account := st.account
	return &account, nil
}

// ApplySubmission accumulates a submission into the account, recomputes the
// level from the new total and appends the history record, all under the
// user's lock.
func (l *Ledger) ApplySubmission(ctx context.Context, username string, sub domain.Submission) (*domain.UserAccount, error) {
	st := l.state(username)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.account.EcoPoints += sub.Points
	st.account.ItemsRecycled += sub.Items
	st.account.CarbonSavedKg += sub.CarbonKg
	st.account.Level = domain.LevelFor(st.account.EcoPoints)

	st.history = append(st.history, domain.HistoryRecord{
		Username:        username,
		Filename:        sub.Filename,
		ProcessedAt:     time.Now().UTC(),
		PointsEarned:    sub.Points,
		CarbonSavedKg:   sub.CarbonKg,
		ObjectsDetected: sub.Items,
		StoredPath:      sub.StoredPath,
	})

	account := st.account
	return &account, nil
}

// ListTopAccounts returns leaderboard entries ordered by eco points
// descending, ties broken by username ascending. The stored level is
// returned verbatim.
func (l *Ledger) ListTopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	l.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(l.users))
	for _, st := range l.users {
		st.mu.Lock()
		entries = append(entries, domain.LeaderboardEntry{
			Username:  st.account.Username,
			EcoPoints: st.account.EcoPoints,
			Level:     st.account.Level,
		})
		st.mu.Unlock()
	}
	l.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EcoPoints != entries[j].EcoPoints {
			return entries[i].EcoPoints > entries[j].EcoPoints
		}
		return entries[i].Username < entries[j].Username
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = int64(i + 1)
	}
	return entries, nil
}

// ListHistory returns a user's submissions, newest first.
func (l *Ledger) ListHistory(ctx context.Context, username string, limit int) ([]domain.HistoryRecord, error) {
	l.mu.RLock()
	st, ok := l.users[username]
	l.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	records := make([]domain.HistoryRecord, 0, len(st.history))
	for i := len(st.history) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, st.history[i])
	}
	return records, nil
}

// AllScores returns every user's eco points.
func (l *Ledger) AllScores(ctx context.Context) (map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	scores := make(map[string]int, len(l.users))
	for username, st := range l.users {
		st.mu.Lock()
		scores[username] = st.account.EcoPoints
		st.mu.Unlock()
	}
	return scores, nil
}
