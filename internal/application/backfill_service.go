package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain/detection"
	"github.com/phishfinder/backend/internal/ports"
)

// BackfillReport counts the work done by one backfill pass
type BackfillReport struct {
	ProfilesUpdated int
	RisksScored     int
	Failures        int
}

// BackfillConfig tunes a backfill pass
type BackfillConfig struct {
	BatchSize int
	// ProfileGrace leaves emails this recent to the request that stored them
	ProfileGrace time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
}

// BackfillService retries sender profile updates and scores unscored emails
type BackfillService struct {
	store    ports.Storage
	profiles *ProfileUpdater
	detector *detection.Detector
	cfg      BackfillConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewBackfillService creates a new backfill service
func NewBackfillService(store ports.Storage, profiles *ProfileUpdater, detector *detection.Detector, cfg BackfillConfig, logger *zap.Logger) *BackfillService {
	return &BackfillService{
		store:    store,
		profiles: profiles,
		detector: detector,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce processes one batch of each kind of pending work.
// Processing guarantees:
//   - Individual failures don't block the batch (logged and counted)
//   - Emails younger than ProfileGrace are skipped; their own request applies the profile
//   - An email stays pending until its update succeeds, and each failed attempt doubles
//     the wait before the next one
func (s *BackfillService) RunOnce(ctx context.Context) (BackfillReport, error) {
	var report BackfillReport

	pending, err := s.store.ClaimEmailsPendingProfile(ctx, ports.ProfileClaim{
		Now:       s.now().UTC(),
		Limit:     s.cfg.BatchSize,
		Grace:     s.cfg.ProfileGrace,
		RetryBase: s.cfg.RetryBase,
		RetryMax:  s.cfg.RetryMax,
	})
	if err != nil {
		return report, fmt.Errorf("failed to claim emails pending profile update: %w", err)
	}
	for i := range pending {
		if err := s.profiles.Apply(ctx, &pending[i]); err != nil {
			s.logger.Warn("Backfill profile update failed", zap.String("id", pending[i].ID), zap.Error(err))
			report.Failures++
			continue
		}
		report.ProfilesUpdated++
	}

	unscored, err := s.store.GetEmailsMissingRisk(ctx, s.cfg.BatchSize)
	if err != nil {
		return report, fmt.Errorf("failed to fetch unscored emails: %w", err)
	}
	for i := range unscored {
		risk := s.detector.Score(&unscored[i])
		if err := s.store.UpdateRiskAssessment(ctx, unscored[i].ID, risk); err != nil {
			s.logger.Warn("Backfill risk update failed", zap.String("id", unscored[i].ID), zap.Error(err))
			report.Failures++
			continue
		}
		report.RisksScored++
	}

	if report.ProfilesUpdated+report.RisksScored+report.Failures > 0 {
		s.logger.Info("Backfill pass complete",
			zap.Int("profiles_updated", report.ProfilesUpdated),
			zap.Int("risks_scored", report.RisksScored),
			zap.Int("failures", report.Failures))
	}
	return report, nil
}

// Run calls RunOnce every interval until ctx is cancelled
func (s *BackfillService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Backfill pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
