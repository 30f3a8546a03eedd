package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/domain/detection"
	"github.com/phishfinder/backend/internal/ports"
	"github.com/phishfinder/backend/internal/telemetry"
)

// AnalysisService orchestrates the analysis pipeline for one email at a time
type AnalysisService struct {
	store    ports.Storage
	threats  ports.ThreatChecker
	auth     AuthenticationLookup
	detector *detection.Detector
	profiles *ProfileUpdater
	trusted  map[string]struct{}
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalysisService creates a new analysis service with dependency injection.
// trustedDomains are registrable domains never counted as external.
func NewAnalysisService(
	store ports.Storage,
	threats ports.ThreatChecker,
	auth AuthenticationLookup,
	detector *detection.Detector,
	profiles *ProfileUpdater,
	trustedDomains []string,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *AnalysisService {
	trusted := make(map[string]struct{}, len(trustedDomains))
	for _, d := range trustedDomains {
		trusted[detection.RootDomain(d)] = struct{}{}
	}
	return &AnalysisService{
		store:    store,
		threats:  threats,
		auth:     auth,
		detector: detector,
		profiles: profiles,
		trusted:  trusted,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Analyze runs the pipeline on a submission and persists the verdict.
//
// Error handling strategy:
//   - Invalid input and a missing threat API key abort before anything is stored
//   - Upstream failures (threat API, DNS) degrade their component and are flagged in the verdict
//   - A duplicate id is not an error: the stored record is returned unchanged without
//     re-running any lookups; concurrent submissions are settled by the insert
//   - A failed sender profile update is reported in the result and retried by the backfill job
func (s *AnalysisService) Analyze(ctx context.Context, sub domain.Submission) (*domain.AnalysisResult, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	existing, err := s.store.GetEmail(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing analysis: %w", err)
	}
	if existing != nil {
		return s.duplicate(existing), nil
	}

	record, err := s.analyze(ctx, sub)
	if err != nil {
		return nil, err
	}

	recordID, created, err := s.store.InsertEmail(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to store email analysis: %w", err)
	}

	if !created {
		existing, err := s.store.GetEmail(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing analysis: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("email %q: %w", sub.ID, domain.ErrNotFound)
		}
		return s.duplicate(existing), nil
	}

	record.RecordID = recordID
	s.metrics.EmailAnalyzed(record.Risk.RiskLevel)

	result := &domain.AnalysisResult{
		RecordID: recordID,
		ID:       sub.ID,
		Analysis: record,
		Profile:  domain.ProfileUpdate{Updated: true},
	}

	// The email itself is saved; the profile is retried later if this fails
	if err := s.profiles.Apply(ctx, record); err != nil {
		s.logger.Warn("Sender profile update failed",
			zap.String("id", sub.ID),
			zap.String("sender", record.Sender.Address),
			zap.Error(err))
		result.Profile = domain.ProfileUpdate{Updated: false, Error: err.Error()}
	} else {
		record.SenderProfileProcessed = true
	}

	if record.Risk.RiskLevel == domain.RiskHigh {
		s.logger.Warn("High risk email detected",
			zap.String("id", sub.ID),
			zap.String("sender", record.Sender.Address),
			zap.String("subject", record.Subject),
			zap.Int("score", record.Risk.Score),
			zap.Strings("reasons", record.Risk.Reasons))
	}

	return result, nil
}

func (s *AnalysisService) duplicate(existing *domain.EmailRecord) *domain.AnalysisResult {
	s.logger.Info("Email already analyzed", zap.String("id", existing.ID))
	return &domain.AnalysisResult{
		RecordID:  existing.RecordID,
		ID:        existing.ID,
		Duplicate: true,
		Analysis:  existing,
		Profile:   domain.ProfileUpdate{Updated: existing.SenderProfileProcessed},
	}
}

// GetEmail returns a stored analysis by id
func (s *AnalysisService) GetEmail(ctx context.Context, id string) (*domain.EmailRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	record, err := s.store.GetEmail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load email: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("email %q: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

func validateSubmission(sub domain.Submission) error {
	if strings.TrimSpace(sub.ID) == "" {
		return fmt.Errorf("%w: id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(sub.Content()) == "" {
		return fmt.Errorf("%w: body is required", domain.ErrInvalidInput)
	}
	return nil
}

// analyze builds the scored record without persisting it
func (s *AnalysisService) analyze(ctx context.Context, sub domain.Submission) (*domain.EmailRecord, error) {
	content := sub.Content()
	cleaned := detection.CleanBody(content)

	textView := sub.Body
	if textView == "" {
		textView = cleaned.CleanedText
	}

	var htmlURLs, textURLs []domain.ExtractedURL
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		htmlURLs = detection.ExtractURLs(cleaned.PreservedHTML, true)
	}()
	go func() {
		defer wg.Done()
		textURLs = detection.ExtractURLs(textView, false)
	}()
	wg.Wait()
	urls := detection.MergeURLs(htmlURLs, textURLs)

	mismatches := detection.DetectMismatches(cleaned.PreservedHTML, s.logger)

	check, err := s.threats.Check(ctx, detection.URLStrings(urls))
	if err != nil {
		if errors.Is(err, domain.ErrThreatAPINotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("threat check failed: %w", err)
	}
	if check.Failed {
		s.metrics.ThreatCheckFailed()
	}
	urls, flagged := ApplyVerdicts(urls, check.Verdicts)

	sender := normalizeSender(sub.Sender)
	authentication := domain.Authentication{Summary: "No sender domain"}
	if name, err := detection.ValidateDomain(sender.Domain); err == nil {
		authentication = detection.BuildAuthentication(s.auth.Resolve(ctx, name), sub.Headers)
	} else if sender.Domain != "" {
		s.logger.Debug("Skipping authentication for invalid sender domain", zap.String("domain", sender.Domain))
	}

	if sender.Organization == "" {
		sender.Organization = detection.ExtractOrganization(sender.Domain, cleaned.CleanedText)
	}

	patterns := detection.AnalyzePatterns(sub.Subject, cleaned.CleanedText)
	receiver := buildReceiver(sub)

	timestamp := sub.Timestamp
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	record := &domain.EmailRecord{
		ID:                 sub.ID,
		Sender:             sender,
		Receiver:           receiver,
		Subject:            sub.Subject,
		Body:               cleaned.CleanedText,
		Labels:             sub.Labels,
		ExtractedURLs:      urls,
		URLMismatches:      mismatches,
		SuspiciousPatterns: patterns,
		Authentication:     authentication,
		Flags: domain.Flags{
			SafeBrowsingFlag:      flagged,
			ThreatCheckFailed:     check.Failed,
			HasExternalURLs:       s.hasExternalURLs(urls, sender.Domain),
			HasMultipleRecipients: receiver.Count() > 1,
			HasSuspiciousPatterns: len(patterns) > 0,
			HasURLMismatches:      len(mismatches) > 0,
		},
		RequiresResponse: detection.RequiresResponse(sub.Subject, cleaned.CleanedText),
		TextMetrics:      detection.ComputeTextMetrics(content, cleaned.CleanedText, detection.ExtractReadableText(cleaned.PreservedHTML)),
		Timestamp:        timestamp.UTC(),
		ProcessedAt:      s.now().UTC(),
	}

	risk := s.detector.Score(record)
	record.Risk = &risk

	return record, nil
}

// ApplyVerdicts merges threat verdicts into extracted URLs and reports whether any URL was flagged.
// A URL already suspicious from extraction stays suspicious.
func ApplyVerdicts(urls []domain.ExtractedURL, verdicts []ports.ThreatVerdict) ([]domain.ExtractedURL, bool) {
	byURL := make(map[string]ports.ThreatVerdict, len(verdicts))
	for _, v := range verdicts {
		byURL[v.URL] = v
	}

	flagged := false
	out := make([]domain.ExtractedURL, len(urls))
	for i, u := range urls {
		out[i] = u
		if v, ok := byURL[u.URL]; ok && v.Suspicious {
			out[i].Suspicious = true
			out[i].ThreatType = v.ThreatType
			flagged = true
		}
	}
	return out, flagged
}

func (s *AnalysisService) hasExternalURLs(urls []domain.ExtractedURL, senderDomain string) bool {
	senderRoot := detection.RootDomain(senderDomain)
	for _, u := range urls {
		root := detection.RootDomain(detection.URLHost(u.URL))
		if root == "" || root == senderRoot {
			continue
		}
		if _, ok := s.trusted[root]; ok {
			continue
		}
		return true
	}
	return false
}

// normalizeSender accepts either a bare address or "Name <address>"
func normalizeSender(sender domain.Sender) domain.Sender {
	if parsed := detection.ParseRecipients(sender.Address); len(parsed) == 1 {
		sender.Address = parsed[0].Address
		if sender.DisplayName == "" {
			sender.DisplayName = parsed[0].DisplayName
		}
	}
	sender.Address = strings.ToLower(strings.TrimSpace(sender.Address))
	sender.Domain = strings.ToLower(strings.TrimSpace(sender.Domain))
	if sender.Domain == "" {
		sender.Domain = detection.ExtractDomain(sender.Address)
	}
	return sender
}

func buildReceiver(sub domain.Submission) domain.Receiver {
	receiver := domain.Receiver{
		To:  detection.ParseRecipients(sub.To),
		CC:  detection.ParseRecipients(sub.CC),
		BCC: detection.ParseRecipients(sub.BCC),
	}
	if len(receiver.To) > 0 {
		receiver.Address = receiver.To[0].Address
		receiver.Domain = receiver.To[0].Domain
	}
	return receiver
}
