package matching_test

import (
	"strings"
	"testing"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/matching"
	"pairline/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestGate(store *MockStore) (*matching.Gate, time.Time) {
	gate := matching.NewGate(store, config.Default())
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	gate.Now = func() time.Time { return now }
	return gate, now
}

// allowAll wires a store where every gate check passes unless overridden.
func allowAll(store *MockStore) {
	store.On("LastTerminalBetween", mock.Anything).Return(time.Time{}, false, nil).Maybe()
	store.On("HasActiveProposalBetween", mock.Anything, mock.Anything).Return(false, nil).Maybe()
	store.On("CountActiveProposals", mock.Anything, mock.Anything).Return(0, nil).Maybe()
}

// TestGateAllows verifies a clean pair passes all checks.
func TestGateAllows(t *testing.T) {
	store := new(MockStore)
	allowAll(store)
	gate, _ := newTestGate(store)

	d, err := gate.Check("alice", "bob")
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

// TestGateSelfPair verifies A == B is denied before any store read.
func TestGateSelfPair(t *testing.T) {
	store := new(MockStore)
	gate, _ := newTestGate(store)

	d, err := gate.Check("alice", "alice")
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, strings.HasPrefix(d.Reason, matching.ReasonSelfPair))
	store.AssertNotCalled(t, "LastTerminalBetween", mock.Anything)
}

// TestGateCooldownBoundary: inside the 7-day window the pair is denied; at
// exactly the boundary it is allowed again.
func TestGateCooldownBoundary(t *testing.T) {
	pairKey := models.PairKeyFor("alice", "bob")

	// 6 days 23h ago: still cooling down.
	store := new(MockStore)
	gate, now := newTestGate(store)
	store.On("LastTerminalBetween", pairKey).
		Return(now.Add(-7*24*time.Hour+time.Hour), true, nil).Once()

	d, err := gate.Check("alice", "bob")
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, strings.HasPrefix(d.Reason, matching.ReasonCooldown))

	// Exactly 7 days ago: window elapsed, remaining checks run and pass.
	store = new(MockStore)
	gate, now = newTestGate(store)
	store.On("LastTerminalBetween", pairKey).
		Return(now.Add(-7*24*time.Hour), true, nil).Once()
	store.On("HasActiveProposalBetween", pairKey, mock.Anything).Return(false, nil).Once()
	store.On("CountActiveProposals", mock.Anything, mock.Anything).Return(0, nil).Twice()

	d, err = gate.Check("alice", "bob")
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	store.AssertExpectations(t)
}

// TestGateActiveDuplicate: an open proposal within 24h blocks the pair.
// Прийнята раніше пропозиція НЕ блокує: у сховищі вона не "активна".
func TestGateActiveDuplicate(t *testing.T) {
	store := new(MockStore)
	gate, now := newTestGate(store)
	pairKey := models.PairKeyFor("alice", "bob")

	store.On("LastTerminalBetween", pairKey).Return(time.Time{}, false, nil).Once()
	store.On("HasActiveProposalBetween", pairKey, now.Add(-24*time.Hour)).Return(true, nil).Once()

	d, err := gate.Check("alice", "bob")
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, strings.HasPrefix(d.Reason, matching.ReasonActiveDuplicate))
	store.AssertNotCalled(t, "CountActiveProposals", mock.Anything, mock.Anything)
}

// TestGateQuota: a party with 3 open proposals in the window is denied.
func TestGateQuota(t *testing.T) {
	store := new(MockStore)
	gate, _ := newTestGate(store)
	pairKey := models.PairKeyFor("alice", "bob")

	store.On("LastTerminalBetween", pairKey).Return(time.Time{}, false, nil).Once()
	store.On("HasActiveProposalBetween", pairKey, mock.Anything).Return(false, nil).Once()
	store.On("CountActiveProposals", "alice", mock.Anything).Return(0, nil).Once()
	store.On("CountActiveProposals", "bob", mock.Anything).Return(3, nil).Once()

	d, err := gate.Check("alice", "bob")
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, strings.HasPrefix(d.Reason, matching.ReasonQuota))
	assert.Contains(t, d.Reason, "bob")
}
