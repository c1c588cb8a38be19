package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymstack/gymkit/pkg/notify"
)

func TestService_Handlers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handlers := env.svc.Handlers()
	require.Len(t, handlers, 4)

	names := make(map[string]bool, len(handlers))
	for _, h := range handlers {
		assert.NotEmpty(t, h.Name())
		names[h.Name()] = true
	}
	assert.Len(t, names, 4, "handler names must be distinct")
}

func TestService_StartHousekeeping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.svc.StartHousekeeping(ctx))

	var sweeps, cleanups int
	for _, p := range env.enqueuer.enqueued {
		switch p.(type) {
		case notify.SweepRetriesPayload:
			sweeps++
		case notify.CleanupPayload:
			cleanups++
		}
	}
	assert.Equal(t, 1, sweeps)
	assert.Equal(t, 1, cleanups)
}
