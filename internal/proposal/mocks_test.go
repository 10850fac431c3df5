package proposal_test

import (
	"sync"

	"pairline/backend/internal/models"
	"pairline/backend/internal/notify"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of the proposal.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetProposalByID(id string) (*models.MatchProposal, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchProposal), args.Error(1)
}

func (m *MockStore) CreateProposal(p *models.MatchProposal) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockStore) SetAcceptanceFlagA(id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SetAcceptanceFlagB(id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) PromoteToAccepted(id string) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) TerminateProposal(id string, status models.ProposalStatus) (bool, error) {
	args := m.Called(id, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) UserExists(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

// MockRooms is a testify mock of the proposal.RoomCreator interface.
type MockRooms struct {
	mock.Mock
}

func (m *MockRooms) EnsureRoom(proposalID, partyA, partyB string) (*models.ConversationRoom, bool, error) {
	args := m.Called(proposalID, partyA, partyB)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.ConversationRoom), args.Bool(1), args.Error(2)
}

// captureSender collects dispatched intents for assertions.
type captureSender struct {
	mu   sync.Mutex
	sent []notify.Intent
}

func (c *captureSender) Send(intent notify.Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, intent)
	return nil
}

// drain shuts the dispatcher down and returns everything it delivered.
func drain(d *notify.Dispatcher, c *captureSender) []notify.Intent {
	d.Stop()
	d.Run()
	return c.sent
}
