package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coretelegram "github.com/m3rciful/pricebot/core/telegram"
	"github.com/m3rciful/pricebot/core/telegram/state"
	"github.com/m3rciful/pricebot/internal/domain"
)

type fakeUsers struct {
	upserts []domain.User
}

func (f *fakeUsers) Upsert(_ context.Context, u domain.User) error {
	f.upserts = append(f.upserts, u)
	return nil
}

func TestRegisterBindsCallbacksOrFails(t *testing.T) {
	engine := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})
	a := NewAdapter(engine, state.NewMemoryManager(), &fakeUsers{})

	reg := coretelegram.NewRegistry()
	require.NoError(t, a.Register(reg))

	// the action keys are already taken, a second bind must not pass silently
	err := a.Register(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(EventLivePrice))
}
