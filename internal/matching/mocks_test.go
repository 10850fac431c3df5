package matching_test

import (
	"time"

	"pairline/backend/internal/models"
	"pairline/backend/internal/scoring"

	"github.com/stretchr/testify/mock"
)

// MockStore covers GateStore, EngineStore and SchedulerStore in one double,
// the way the storage service itself implements all three.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LastTerminalBetween(pairKey string) (time.Time, bool, error) {
	args := m.Called(pairKey)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *MockStore) HasActiveProposalBetween(pairKey string, since time.Time) (bool, error) {
	args := m.Called(pairKey, since)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CountActiveProposals(userID string, since time.Time) (int, error) {
	args := m.Called(userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) GetMatchableUsers() ([]models.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStore) CreateMatchRun(run *models.MatchRun) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockStore) FinishMatchRun(run *models.MatchRun) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockStore) LastCompletedRun() (*models.MatchRun, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchRun), args.Error(1)
}

func (m *MockStore) TryAcquirePassLock() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ReleasePassLock() error {
	args := m.Called()
	return args.Error(0)
}

// MockCreator records the proposals the engine asked for.
type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateSystem(partyA, partyB string, res scoring.Result) (*models.MatchProposal, error) {
	args := m.Called(partyA, partyB, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchProposal), args.Error(1)
}
