package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlinkhq/cardlink/app/models"
)

func TestExpireLapsedPlans(t *testing.T) {
	opts := Options{Prices: testPrices(), WhitelistEmails: []string{"vip@example.com"}}

	whitelisted := freeUser(1, "vip@example.com")
	whitelisted.Plan = "pro"
	backed := freeUser(2, "backed@example.com")
	backed.Plan = "pro"
	lapsed := freeUser(3, "lapsed@example.com")
	lapsed.Plan = "pro"
	neverPaid := freeUser(4, "unpaid@example.com")
	neverPaid.Plan = "business"
	free := freeUser(5, "free@example.com")

	env := newTestEnv(opts, whitelisted, backed, lapsed, neverPaid, free)
	approvedPayment(env, 2, "pro", testNow.Add(-time.Hour), testNow.Add(time.Hour))
	approvedPayment(env, 3, "pro", testNow.Add(-400*24*time.Hour), testNow.Add(-time.Hour))

	downgraded, err := env.svc.ExpireLapsedPlans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, downgraded)

	assert.Equal(t, "pro", env.users.planOf(1), "whitelisted users are never swept")
	assert.Equal(t, "pro", env.users.planOf(2), "live payments keep the plan")
	assert.Equal(t, "free", env.users.planOf(3))
	assert.Equal(t, "free", env.users.planOf(4))
	assert.Equal(t, "free", env.users.planOf(5))

	assert.Contains(t, env.cache.invalidated, uint(3))
	assert.Contains(t, env.cache.invalidated, uint(4))
}

func TestExpireLapsedPlansAgreesWithResolver(t *testing.T) {
	// The sweep and the lazy resolver downgrade must reach the same answer
	// for the same data.
	lapsed := freeUser(3, "lapsed@example.com")
	lapsed.Plan = "pro"
	env := newTestEnv(Options{Prices: testPrices()}, lapsed)
	approvedPayment(env, 3, "pro", testNow.Add(-400*24*time.Hour), testNow.Add(-time.Hour))

	ent, err := env.svc.ResolveEntitlement(context.Background(), 3)
	require.NoError(t, err)

	downgraded, err := env.svc.ExpireLapsedPlans(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "free", string(ent.Plan))
	assert.Equal(t, 0, downgraded, "resolver already wrote the downgrade")
	assert.Equal(t, "free", env.users.planOf(3))
}

func TestExpireLapsedPlansHonorsContextCancellation(t *testing.T) {
	lapsed := freeUser(3, "lapsed@example.com")
	lapsed.Plan = "pro"
	env := newTestEnv(Options{Prices: testPrices()}, lapsed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.svc.ExpireLapsedPlans(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "pro", env.users.planOf(3))
}

func TestExpireLapsedPlansModelHelpers(t *testing.T) {
	now := testNow
	live := models.Payment{Status: models.PaymentStatusApproved}
	assert.True(t, live.IsCurrent(now), "approved without expiry is current")

	future := now.Add(time.Hour)
	live.ExpiresAt = &future
	assert.True(t, live.IsCurrent(now))

	past := now.Add(-time.Hour)
	live.ExpiresAt = &past
	assert.False(t, live.IsCurrent(now))

	pending := models.Payment{Status: models.PaymentStatusPending, ExpiresAt: &future}
	assert.False(t, pending.IsCurrent(now))
}
