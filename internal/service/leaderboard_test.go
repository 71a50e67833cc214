package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
	"github.com/ecowise-backend/internal/memory"
)

// flakyCache fails every read so the ledger fallback path runs.
type flakyCache struct{}

func (flakyCache) SetScore(ctx context.Context, username string, points int) error {
	return errors.New("cache down")
}

func (flakyCache) GetTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	return nil, errors.New("cache down")
}

func (flakyCache) GetRank(ctx context.Context, username string) (*domain.LeaderboardEntry, error) {
	return nil, errors.New("cache down")
}

func (flakyCache) GetCount(ctx context.Context) (int64, error) {
	return 0, errors.New("cache down")
}

func newLeaderboardService(t *testing.T, cache LeaderboardCache, ledger Ledger) *LeaderboardService {
	t.Helper()
	return NewLeaderboardService(
		cache,
		ledger,
		memory.NewCenterStore(),
		&config.LeaderboardConfig{DefaultLimit: 20, MaxLimit: 100},
		testLogger(),
	)
}

func seedLedger(t *testing.T, ledger *memory.Ledger, scores map[string]int) {
	t.Helper()
	for username, points := range scores {
		_, err := ledger.ApplySubmission(context.Background(), username, domain.Submission{Points: points})
		require.NoError(t, err)
	}
}

func TestTopNOrdersAndRanks(t *testing.T) {
	ledger := memory.NewLedger()
	seedLedger(t, ledger, map[string]int{"alice": 120, "bob": 500, "carol": 80})
	svc := newLeaderboardService(t, nil, ledger)

	entries, err := svc.TopN(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "bob", entries[0].Username)
	assert.Equal(t, int64(1), entries[0].Rank)
	assert.Equal(t, "alice", entries[1].Username)
	assert.Equal(t, int64(2), entries[1].Rank)
}

func TestTopNLimits(t *testing.T) {
	ledger := memory.NewLedger()
	seedLedger(t, ledger, map[string]int{"alice": 10})
	svc := newLeaderboardService(t, nil, ledger)

	entries, err := svc.TopN(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = svc.TopN(context.Background(), -3)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A limit above the configured maximum is clamped, not rejected.
	entries, err = svc.TopN(context.Background(), 5000)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTopNFallsBackToLedger(t *testing.T) {
	ledger := memory.NewLedger()
	seedLedger(t, ledger, map[string]int{"alice": 10, "bob": 30})
	svc := newLeaderboardService(t, flakyCache{}, ledger)

	entries, err := svc.TopN(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].Username)
}

func TestGetUserCreatesOnFirstLookup(t *testing.T) {
	ledger := memory.NewLedger()
	svc := newLeaderboardService(t, nil, ledger)

	profile, err := svc.GetUser(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, "newcomer", profile.Username)
	assert.Zero(t, profile.EcoPoints)
	assert.Equal(t, domain.LevelFriend, profile.Level)

	_, err = svc.GetUser(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestGetHistoryClampsLimit(t *testing.T) {
	ledger := memory.NewLedger()
	svc := newLeaderboardService(t, nil, ledger)

	for i := 0; i < 60; i++ {
		_, err := ledger.ApplySubmission(context.Background(), "alice", domain.Submission{Points: 1, Filename: "x.jpg"})
		require.NoError(t, err)
	}

	records, err := svc.GetHistory(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Len(t, records, historyDefaultLimit)

	records, err = svc.GetHistory(context.Background(), "alice", 5)
	require.NoError(t, err)
	assert.Len(t, records, 5)

	// Unknown users get an empty history, not an error.
	records, err = svc.GetHistory(context.Background(), "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetDirections(t *testing.T) {
	svc := newLeaderboardService(t, nil, memory.NewLedger())

	centers, err := svc.ListCenters(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, centers)

	directions, err := svc.GetDirections(context.Background(), centers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, centers[0].Name, directions.Name)
	assert.Contains(t, directions.Directions, "Head to ")
	assert.NotNil(t, directions.Transport)
	assert.NotNil(t, directions.Landmarks)

	_, err = svc.GetDirections(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCenterNotFound))
}

func TestStats(t *testing.T) {
	ledger := memory.NewLedger()
	seedLedger(t, ledger, map[string]int{"alice": 100, "bob": 250})
	svc := newLeaderboardService(t, nil, ledger)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(350), stats.TotalPoints)
	assert.Equal(t, int64(2), stats.Centers)
}
