package room_test

import (
	"sync"
	"time"

	"pairline/backend/internal/models"
	"pairline/backend/internal/notify"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of the room.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRoomIfAbsent(r *models.ConversationRoom) (*models.ConversationRoom, bool, error) {
	args := m.Called(r)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.ConversationRoom), args.Bool(1), args.Error(2)
}

func (m *MockStore) GetRoomByID(roomID string) (*models.ConversationRoom, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationRoom), args.Error(1)
}

func (m *MockStore) SetFirstActivity(roomID string, at time.Time) (bool, error) {
	args := m.Called(roomID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CloseRoom(roomID, reason string, at time.Time) (bool, error) {
	args := m.Called(roomID, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetExpiredOpenRoomIDs(now time.Time) ([]string, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) SetParticipantJoined(roomID, userID string, at time.Time) (bool, error) {
	args := m.Called(roomID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SetParticipantCompleted(roomID, userID string, at time.Time) (bool, error) {
	args := m.Called(roomID, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetParticipants(roomID string) ([]models.RoomParticipant, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomParticipant), args.Error(1)
}

func (m *MockStore) SaveMessage(msg *models.RoomMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStore) GetRoomMessages(roomID string) ([]models.RoomMessage, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomMessage), args.Error(1)
}

func (m *MockStore) SetProposalRoomID(id, roomID string) error {
	args := m.Called(id, roomID)
	return args.Error(0)
}

func (m *MockStore) CompleteProposal(id string, at time.Time) (bool, error) {
	args := m.Called(id, at)
	return args.Bool(0), args.Error(1)
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

func drain(d *notify.Dispatcher, c *captureSender) []notify.Intent {
	d.Stop()
	d.Run()
	return c.sent
}
