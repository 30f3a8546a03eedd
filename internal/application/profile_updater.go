package application

import (
	"context"
	"fmt"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/domain/detection"
	"github.com/phishfinder/backend/internal/ports"
)

// ProfileUpdater folds an analyzed email into its sender profile
type ProfileUpdater struct {
	store        ports.Storage
	maxEntryBody int
}

// NewProfileUpdater creates an updater. Entry bodies are truncated to maxEntryBody runes.
func NewProfileUpdater(store ports.Storage, maxEntryBody int) *ProfileUpdater {
	return &ProfileUpdater{store: store, maxEntryBody: maxEntryBody}
}

// Apply upserts the sender profile, then marks the email processed.
// Profiles are updated at-least-once: if marking fails the email is
// picked up again by the backfill job.
func (u *ProfileUpdater) Apply(ctx context.Context, record *domain.EmailRecord) error {
	// Emails without a well-formed sender address have no profile to update
	if detection.ValidateEmail(record.Sender.Address) {
		entry := domain.NewEmailEntry(record, u.maxEntryBody)
		if err := u.store.UpsertSenderProfile(ctx, record, entry, domain.MetricsDelta(record)); err != nil {
			return fmt.Errorf("failed to upsert sender profile: %w", err)
		}
	}

	if err := u.store.MarkSenderProfileProcessed(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to mark sender profile processed: %w", err)
	}
	return nil
}
