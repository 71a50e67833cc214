package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
)

// historyDefaultLimit bounds user history reads when the caller does not
// ask for a specific page size.
const historyDefaultLimit = 50

// UserProfile is an account plus its current leaderboard rank. Rank is
// zero when the rank store has not seen the user yet.
type UserProfile struct {
	domain.UserAccount
	Rank int64 `json:"rank,omitempty"`
}

// LeaderboardService provides read-side business logic: rankings, user
// profiles, history and recycling centers.
type LeaderboardService struct {
	cache   LeaderboardCache
	ledger  Ledger
	centers CenterStore
	config  *config.LeaderboardConfig
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	cache LeaderboardCache,
	ledger Ledger,
	centers CenterStore,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		cache:   cache,
		ledger:  ledger,
		centers: centers,
		config:  cfg,
		logger:  logger,
	}
}

// TopN returns at most n leaderboard entries ordered by eco points
// descending, ties broken by username ascending. A non-positive limit
// returns an empty list; limits above the configured maximum are clamped.
func (s *LeaderboardService) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}

	if s.cache != nil {
		entries, err := s.cache.GetTopN(ctx, n)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("leaderboard cache read failed, falling back to ledger", "error", err)
	}

	entries, err := s.ledger.ListTopAccounts(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("listing top accounts: %w", err)
	}
	return entries, nil
}

// GetUser returns a user profile, creating the account on first lookup.
func (s *LeaderboardService) GetUser(ctx context.Context, username string) (*UserProfile, error) {
	if username == "" {
		return nil, domain.ErrInvalidRequest
	}

	account, err := s.ledger.EnsureAccount(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ensuring account: %w", err)
	}

	profile := &UserProfile{UserAccount: *account}
	if s.cache != nil {
		entry, err := s.cache.GetRank(ctx, username)
		if err == nil {
			profile.Rank = entry.Rank
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Warn("failed to read rank from cache", "username", username, "error", err)
		}
	}
	return profile, nil
}

// GetHistory returns a user's most recent submissions.
func (s *LeaderboardService) GetHistory(ctx context.Context, username string, limit int) ([]domain.HistoryRecord, error) {
	if username == "" {
		return nil, domain.ErrInvalidRequest
	}
	if limit <= 0 || limit > historyDefaultLimit {
		limit = historyDefaultLimit
	}

	records, err := s.ledger.ListHistory(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	return records, nil
}

// ListCenters returns all recycling centers.
func (s *LeaderboardService) ListCenters(ctx context.Context) ([]domain.RecyclingCenter, error) {
	centers, err := s.centers.ListCenters(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing centers: %w", err)
	}
	if centers == nil {
		centers = []domain.RecyclingCenter{}
	}
	return centers, nil
}

// GetDirections builds the fixed-template directions payload for a center.
func (s *LeaderboardService) GetDirections(ctx context.Context, centerID int) (*domain.Directions, error) {
	center, err := s.centers.GetCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}

	address := center.Address
	if address == "" {
		address = "the listed address"
	}
	return &domain.Directions{
		ID:         center.ID,
		Name:       center.Name,
		Directions: fmt.Sprintf("Head to %s.", address),
		Transport:  []string{},
		Landmarks:  []string{},
		Phone:      center.Phone,
	}, nil
}

// aggregator is implemented by ledgers that can compute system stats in
// one pass, like the SQL repository.
type aggregator interface {
	Stats(ctx context.Context) (*domain.SystemStats, error)
}

// Stats returns aggregate counts across users and centers.
func (s *LeaderboardService) Stats(ctx context.Context) (*domain.SystemStats, error) {
	if agg, ok := s.ledger.(aggregator); ok {
		return agg.Stats(ctx)
	}

	scores, err := s.ledger.AllScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting scores: %w", err)
	}

	stats := &domain.SystemStats{Users: int64(len(scores))}
	for _, points := range scores {
		stats.TotalPoints += int64(points)
	}

	centers, err := s.centers.ListCenters(ctx)
	if err != nil {
		s.logger.Warn("failed to count centers for stats", "error", err)
	} else {
		stats.Centers = int64(len(centers))
	}
	return stats, nil
}
