package service

import (
	"context"

	"github.com/ecowise-backend/internal/domain"
)

// Ledger is the durable per-user accumulator of points, items and carbon
// plus append-only history. Implemented by postgres.Repository and
// memory.Ledger.
//
// ApplySubmission must be atomic per username: the stat increments, the
// level recomputation from the new total and the history append commit
// together or not at all, and concurrent submissions for one user must not
// interleave. Submissions for different users may proceed in parallel.
type Ledger interface {
	GetAccount(ctx context.Context, username string) (*domain.UserAccount, error)
	EnsureAccount(ctx context.Context, username string) (*domain.UserAccount, error)
	ApplySubmission(ctx context.Context, username string, sub domain.Submission) (*domain.UserAccount, error)
	ListTopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	ListHistory(ctx context.Context, username string, limit int) ([]domain.HistoryRecord, error)
	AllScores(ctx context.Context) (map[string]int, error)
}

// CenterStore serves recycling center lookups.
type CenterStore interface {
	ListCenters(ctx context.Context) ([]domain.RecyclingCenter, error)
	GetCenter(ctx context.Context, id int) (*domain.RecyclingCenter, error)
}

// LeaderboardCache is the hot-path rank store. Implemented by redis.Cache;
// a nil cache degrades every read to the ledger.
type LeaderboardCache interface {
	SetScore(ctx context.Context, username string, points int) error
	GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
	GetRank(ctx context.Context, username string) (*domain.LeaderboardEntry, error)
	GetCount(ctx context.Context) (int64, error)
}
