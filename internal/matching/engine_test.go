package matching_test

import (
	"errors"
	"testing"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/matching"
	"pairline/backend/internal/models"
	"pairline/backend/internal/proposal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestEngine(store *MockStore, creator *MockCreator) *matching.Engine {
	gate := matching.NewGate(store, config.Default())
	return matching.NewEngine(store, gate, creator, config.Default())
}

func similarUser(id string) models.User {
	return models.User{
		ID:     id,
		Bio:    "Weekend hiking trips, jazz concerts and experimental cooking projects.",
		Traits: []string{"hiking", "jazz", "cooking"},
	}
}

func expectLedger(store *MockStore) {
	store.On("CreateMatchRun", mock.AnythingOfType("*models.MatchRun")).Return(nil).Once()
	store.On("FinishMatchRun", mock.AnythingOfType("*models.MatchRun")).Return(nil).Once()
}

// TestRunPassCreatesProposals: two similar users and one stranger — exactly
// one proposal between the similar pair, the stranger stays unmatched.
func TestRunPassCreatesProposals(t *testing.T) {
	store := new(MockStore)
	creator := new(MockCreator)
	engine := newTestEngine(store, creator)

	stranger := models.User{
		ID:     "u3",
		Bio:    "Quiet library afternoons with medieval manuscripts.",
		Traits: []string{"calligraphy", "archives"},
	}

	expectLedger(store)
	store.On("GetMatchableUsers").Return([]models.User{
		similarUser("u1"), similarUser("u2"), stranger,
	}, nil).Once()
	allowAll(store)
	creator.On("CreateSystem", "u1", "u2", mock.AnythingOfType("scoring.Result")).
		Return(&models.MatchProposal{ID: "p1"}, nil).Once()

	run, err := engine.RunPass()
	assert.NoError(t, err)
	assert.Equal(t, 3, run.ProfilesProcessed)
	assert.Equal(t, 1, run.ProposalsCreated)
	assert.Equal(t, 0, run.Failed)
	assert.True(t, run.Completed())

	creator.AssertExpectations(t)
	creator.AssertNumberOfCalls(t, "CreateSystem", 1)
	store.AssertExpectations(t)
}

// TestRunPassTooFewUsers: fewer than 2 matchable users completes
// immediately with zero proposals — not an error.
func TestRunPassTooFewUsers(t *testing.T) {
	store := new(MockStore)
	creator := new(MockCreator)
	engine := newTestEngine(store, creator)

	expectLedger(store)
	store.On("GetMatchableUsers").Return([]models.User{similarUser("only")}, nil).Once()

	run, err := engine.RunPass()
	assert.NoError(t, err)
	assert.Equal(t, 1, run.ProfilesProcessed)
	assert.Equal(t, 0, run.ProposalsCreated)
	assert.True(t, run.Completed())
	creator.AssertNotCalled(t, "CreateSystem", mock.Anything, mock.Anything, mock.Anything)
}

// TestRunPassGateDenials: denied pairs are counted as skips with reasons in
// the ledger notes, and no proposal is created.
func TestRunPassGateDenials(t *testing.T) {
	store := new(MockStore)
	creator := new(MockCreator)
	engine := newTestEngine(store, creator)

	expectLedger(store)
	store.On("GetMatchableUsers").Return([]models.User{
		similarUser("u1"), similarUser("u2"),
	}, nil).Once()
	// Пара на кулдауні: обидва напрямки впираються в один pair_key.
	store.On("LastTerminalBetween", models.PairKeyFor("u1", "u2")).
		Return(engine.Now().Add(-24*time.Hour), true, nil)

	run, err := engine.RunPass()
	assert.NoError(t, err)
	assert.Equal(t, 0, run.ProposalsCreated)
	assert.Equal(t, 2, run.Skipped, "one skip per direction")
	assert.Contains(t, run.Notes, matching.ReasonCooldown)
	creator.AssertNotCalled(t, "CreateSystem", mock.Anything, mock.Anything, mock.Anything)
}

// TestRunPassContinuesAfterFailure: a failing proposal creation is recorded
// and the pass moves on to the remaining candidates.
func TestRunPassContinuesAfterFailure(t *testing.T) {
	store := new(MockStore)
	creator := new(MockCreator)
	engine := newTestEngine(store, creator)

	expectLedger(store)
	store.On("GetMatchableUsers").Return([]models.User{
		similarUser("u1"), similarUser("u2"),
	}, nil).Once()
	allowAll(store)

	// u1's attempt fails; u2's own iteration retries the pair and succeeds.
	creator.On("CreateSystem", "u1", "u2", mock.Anything).
		Return(nil, errors.New("store unavailable")).Once()
	creator.On("CreateSystem", "u2", "u1", mock.Anything).
		Return(&models.MatchProposal{ID: "p2"}, nil).Once()

	run, err := engine.RunPass()
	assert.NoError(t, err)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.ProposalsCreated)
	assert.Contains(t, run.Notes, "store unavailable")
	creator.AssertExpectations(t)
}

// TestRunPassDuplicateIsSkip: a concurrent pass winning the uniqueness
// constraint is a skip, not a failure.
func TestRunPassDuplicateIsSkip(t *testing.T) {
	store := new(MockStore)
	creator := new(MockCreator)
	engine := newTestEngine(store, creator)

	expectLedger(store)
	store.On("GetMatchableUsers").Return([]models.User{
		similarUser("u1"), similarUser("u2"),
	}, nil).Once()
	allowAll(store)
	creator.On("CreateSystem", "u1", "u2", mock.Anything).
		Return(nil, proposal.ErrDuplicatePair).Once()

	run, err := engine.RunPass()
	assert.NoError(t, err)
	assert.Equal(t, 0, run.Failed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 0, run.ProposalsCreated)
}

// TestRunPassTopCandidateLimit: with five equally similar users, each user
// proposes at most 3 pairs and no pair is proposed twice.
func TestRunPassTopCandidateLimit(t *testing.T) {
	store := new(MockStore)
	creator := new(MockCreator)
	engine := newTestEngine(store, creator)

	expectLedger(store)
	store.On("GetMatchableUsers").Return([]models.User{
		similarUser("u1"), similarUser("u2"), similarUser("u3"),
		similarUser("u4"), similarUser("u5"),
	}, nil).Once()
	allowAll(store)
	creator.On("CreateSystem", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.MatchProposal{}, nil)

	run, err := engine.RunPass()
	assert.NoError(t, err)

	// u1 stops at its top 3 (u2, u3, u4); the u1/u5 pair is never proposed.
	assert.Equal(t, 9, run.ProposalsCreated)
	creator.AssertNotCalled(t, "CreateSystem", "u1", "u5", mock.Anything)
	creator.AssertNotCalled(t, "CreateSystem", "u5", "u1", mock.Anything)
}
