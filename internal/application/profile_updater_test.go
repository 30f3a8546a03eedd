package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishfinder/backend/internal/adapters/storage"
	"github.com/phishfinder/backend/internal/domain"
)

func TestProfileUpdater_Apply(t *testing.T) {
	tests := []struct {
		name        string
		address     string
		wantProfile bool
	}{
		{"Well-formed address", "alerts@bank.example", true},
		{"Missing address", "", false},
		{"No domain suffix", "team@localhost", false},
		{"Display name left in", "Team <team@bank.example>", false},
		{"Not an address", "not-an-address", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			record := &domain.EmailRecord{ID: "msg-1", Sender: domain.Sender{Address: tt.address}}
			_, _, err := store.InsertEmail(ctx, record)
			require.NoError(t, err)

			require.NoError(t, NewProfileUpdater(store, 100).Apply(ctx, record))

			stored, err := store.GetEmail(ctx, "msg-1")
			require.NoError(t, err)
			assert.True(t, stored.SenderProfileProcessed)

			profile, err := store.GetSenderProfile(ctx, tt.address)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProfile, profile != nil)
		})
	}
}

func TestProfileUpdater_ApplyFailureLeavesEmailPending(t *testing.T) {
	ctx := context.Background()
	memory := storage.NewMemoryStore()
	store := profileFailingStore{memory}
	record := &domain.EmailRecord{ID: "msg-1", Sender: domain.Sender{Address: "alerts@bank.example"}}
	_, _, err := memory.InsertEmail(ctx, record)
	require.NoError(t, err)

	err = NewProfileUpdater(store, 100).Apply(ctx, record)
	assert.ErrorContains(t, err, "profile store unavailable")

	stored, err := memory.GetEmail(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, stored.SenderProfileProcessed)
}
