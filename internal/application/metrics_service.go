package application

import (
	"context"
	"fmt"
	"time"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

// DefaultTimeRange is used for unknown time ranges
const DefaultTimeRange = "7d"

var timeRanges = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
}

// MetricsService computes dashboard aggregates over stored emails
type MetricsService struct {
	store ports.MetricsRepository
	now   func() time.Time
}

// NewMetricsService creates a new metrics service
func NewMetricsService(store ports.MetricsRepository) *MetricsService {
	return &MetricsService{store: store, now: time.Now}
}

// NormalizeTimeRange returns timeRange if supported, otherwise DefaultTimeRange
func NormalizeTimeRange(timeRange string) string {
	if _, ok := timeRanges[timeRange]; ok {
		return timeRange
	}
	return DefaultTimeRange
}

// Get returns the summary for the window ending now and the window before it
func (s *MetricsService) Get(ctx context.Context, timeRange string) (*domain.MetricsSummary, error) {
	timeRange = NormalizeTimeRange(timeRange)
	window := time.Duration(timeRanges[timeRange]) * 24 * time.Hour

	end := s.now().UTC()
	start := end.Add(-window)
	previousStart := start.Add(-window)

	current, err := s.store.GetEmailStats(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute current stats: %w", err)
	}
	previous, err := s.store.GetEmailStats(ctx, previousStart, start)
	if err != nil {
		return nil, fmt.Errorf("failed to compute previous stats: %w", err)
	}
	daily, err := s.store.GetDailyStats(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily stats: %w", err)
	}

	return &domain.MetricsSummary{
		TimeRange:              timeRange,
		TotalEmails:            current.TotalEmails,
		PreviousTotalEmails:    previous.TotalEmails,
		FlaggedEmails:          current.FlaggedEmails,
		AverageRiskScore:       current.AverageRiskScore,
		SuspiciousURLs:         current.URLCount,
		PreviousSuspiciousURLs: previous.URLCount,
		DailyStats:             daily,
	}, nil
}
