package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ecowise-backend/internal/detector"
	"github.com/ecowise-backend/internal/domain"
	"github.com/ecowise-backend/internal/normalizer"
	"github.com/ecowise-backend/internal/scoring"
	"github.com/ecowise-backend/internal/storage"
	"github.com/ecowise-backend/internal/websocket"
)

// broadcastLimit is how many leaderboard entries go out with each live
// update after an accepted submission.
const broadcastLimit = 10

// SubmissionOutcome is what one processed upload produced. Result is always
// present once scoring ran; StatsRecorded is false when the ledger write
// failed and the reward was computed but not accumulated.
type SubmissionOutcome struct {
	Result        *domain.SubmissionResult
	Account       *domain.UserAccount
	Filename      string
	StoredPath    string
	StatsRecorded bool
}

// SubmissionService runs the full pipeline for one uploaded image:
// store, detect, normalize, score, and atomically apply to the ledger.
type SubmissionService struct {
	uploads    *storage.Store
	detector   detector.Detector
	normalizer *normalizer.Normalizer
	scorer     *scoring.Engine
	ledger     Ledger
	cache      LeaderboardCache
	hub        *websocket.Hub
	logger     *slog.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	uploads *storage.Store,
	det detector.Detector,
	norm *normalizer.Normalizer,
	scorer *scoring.Engine,
	ledger Ledger,
	cache LeaderboardCache,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		uploads:    uploads,
		detector:   det,
		normalizer: norm,
		scorer:     scorer,
		ledger:     ledger,
		cache:      cache,
		logger:     logger,
	}
}

// SetHub attaches the WebSocket hub for live leaderboard broadcasts.
func (s *SubmissionService) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// ProcessUpload runs one submission end to end. Input validation fails
// fast; detector failures degrade to an empty detection list; only the
// ledger write failing yields ErrPersistence, and even then the computed
// result is returned so the caller can decide what to surface.
func (s *SubmissionService) ProcessUpload(ctx context.Context, username, filename string, file io.Reader) (*SubmissionOutcome, error) {
	if username == "" {
		username = domain.GuestUsername
	}

	storedPath, err := s.uploads.Save(filename, file)
	if err != nil {
		return nil, err
	}

	// Model inference is the slow step; it runs with no ledger lock held.
	raw, err := s.detector.Detect(ctx, storedPath)
	if err != nil {
		if domain.IsInputError(err) {
			return nil, err
		}
		// Backend trouble is not the user's problem: degrade to an
		// empty detection list and a zero reward.
		s.logger.Warn("detection backend failed, continuing with empty result",
			"username", username, "error", err,
		)
		raw = nil
	}

	detections := s.normalizer.Normalize(raw)
	result := s.scorer.Score(detections)

	outcome := &SubmissionOutcome{
		Result:     result,
		Filename:   filename,
		StoredPath: storedPath,
	}

	account, err := s.ledger.ApplySubmission(ctx, username, domain.Submission{
		Filename:   filename,
		StoredPath: storedPath,
		Points:     result.TotalPoints,
		Items:      result.ObjectsDetected(),
		CarbonKg:   result.TotalCarbonSavedKg,
	})
	if err != nil {
		s.logger.Error("ledger write failed, returning unrecorded result",
			"username", username, "error", err,
		)
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return outcome, err
	}

	outcome.Account = account
	outcome.StatsRecorded = true

	s.refreshLeaderboard(ctx, account)
	return outcome, nil
}

// ApplyEvents accumulates already-scored recycle events from the event
// bus. Per-event failures are logged and do not stop the batch.
func (s *SubmissionService) ApplyEvents(ctx context.Context, events []domain.RecycleEvent) error {
	for _, ev := range events {
		if ev.Username == "" {
			s.logger.Warn("skipping recycle event without username", "source", ev.Source)
			continue
		}
		filename := ev.Source
		if filename == "" {
			filename = "event"
		}
		account, err := s.ledger.ApplySubmission(ctx, ev.Username, domain.Submission{
			Filename: filename,
			Points:   ev.Points,
			Items:    ev.Items,
			CarbonKg: ev.CarbonKg,
		})
		if err != nil {
			s.logger.Error("failed to apply recycle event",
				"username", ev.Username, "error", err,
			)
			continue
		}
		s.refreshLeaderboard(ctx, account)
	}
	return nil
}

// refreshLeaderboard updates the cache and notifies live subscribers.
// Both are secondary to the committed ledger write and only log on error.
func (s *SubmissionService) refreshLeaderboard(ctx context.Context, account *domain.UserAccount) {
	if s.cache != nil {
		if err := s.cache.SetScore(ctx, account.Username, account.EcoPoints); err != nil {
			s.logger.Warn("failed to update leaderboard cache", "error", err)
		}
	}

	if s.hub == nil {
		return
	}
	entries, err := s.topEntries(ctx, broadcastLimit)
	if err != nil {
		s.logger.Warn("failed to load leaderboard for broadcast", "error", err)
		return
	}
	s.hub.BroadcastLeaderboard(entries)
}

// topEntries reads the leaderboard head from the cache, falling back to
// the ledger when the cache is absent or unavailable.
func (s *SubmissionService) topEntries(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if s.cache != nil {
		entries, err := s.cache.GetTopN(ctx, n)
		if err == nil {
			return entries, nil
		}
		s.logger.Warn("leaderboard cache read failed, falling back to ledger", "error", err)
	}
	return s.ledger.ListTopAccounts(ctx, n)
}
