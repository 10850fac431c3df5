// Package room manages the time-boxed conversation rooms created on dual
// acceptance. A room's countdown starts at its first activity and the room
// closes on timeout or mutual completion; closing is terminal.
package room

import (
	"errors"
	"log"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/models"
	"pairline/backend/internal/notify"
	"pairline/backend/internal/storage"
)

var (
	// ErrNotFound — кімнати не існує.
	ErrNotFound = errors.New("room not found")
	// ErrRoomClosed — the room is closed; no further mutation is possible.
	ErrRoomClosed = errors.New("conversation is closed")
	// ErrNotParticipant — the actor does not belong to the room.
	ErrNotParticipant = errors.New("user is not a participant of this room")
	// ErrEmptyMessage rejects blank message bodies.
	ErrEmptyMessage = errors.New("message body is empty")
)

// Store is the slice of the storage layer the room lifecycle needs.
type Store interface {
	CreateRoomIfAbsent(room *models.ConversationRoom) (*models.ConversationRoom, bool, error)
	GetRoomByID(roomID string) (*models.ConversationRoom, error)
	SetFirstActivity(roomID string, at time.Time) (bool, error)
	CloseRoom(roomID, reason string, at time.Time) (bool, error)
	GetExpiredOpenRoomIDs(now time.Time) ([]string, error)
	SetParticipantJoined(roomID, userID string, at time.Time) (bool, error)
	SetParticipantCompleted(roomID, userID string, at time.Time) (bool, error)
	GetParticipants(roomID string) ([]models.RoomParticipant, error)
	SaveMessage(msg *models.RoomMessage) error
	GetRoomMessages(roomID string) ([]models.RoomMessage, error)
	SetProposalRoomID(id, roomID string) error
	CompleteProposal(id string, at time.Time) (bool, error)
}

// Service is the conversation room lifecycle component.
type Service struct {
	Store      Store
	Dispatcher *notify.Dispatcher
	Cfg        config.Config

	// Now is injectable for tests.
	Now func() time.Time
}

// NewService creates the room lifecycle service.
func NewService(store Store, dispatcher *notify.Dispatcher, cfg config.Config) *Service {
	return &Service{
		Store:      store,
		Dispatcher: dispatcher,
		Cfg:        cfg,
		Now:        time.Now,
	}
}

// EnsureRoom creates the room for a proposal if absent. Idempotent: the
// uniqueness constraint on proposal_id decides the race, not a
// read-then-write check. Returns whether THIS call created the room.
func (s *Service) EnsureRoom(proposalID, partyA, partyB string) (*models.ConversationRoom, bool, error) {
	candidate := &models.ConversationRoom{
		ProposalID: proposalID,
		PartyA:     partyA,
		PartyB:     partyB,
		OpenedAt:   s.Now(),
		TTLSeconds: int(s.Cfg.RoomTTL.Seconds()),
	}

	room, created, err := s.Store.CreateRoomIfAbsent(candidate)
	if err != nil {
		return nil, false, err
	}
	if created {
		if err := s.Store.SetProposalRoomID(proposalID, room.RoomID); err != nil {
			log.Printf("ERROR: Failed to back-reference room %s on proposal %s: %v",
				room.RoomID, proposalID, err)
		}
		log.Printf("INFO: Room %s opened for proposal %s (%s, %s)",
			room.RoomID, proposalID, partyA, partyB)
	}
	return room, created, nil
}

// GetState is the cheap idempotent read the polling surface uses. Expiry is
// checked lazily on every read.
func (s *Service) GetState(roomID string) (*models.ConversationRoom, []models.RoomParticipant, []models.RoomMessage, error) {
	room, err := s.CheckExpiry(roomID)
	if err != nil {
		return nil, nil, nil, err
	}
	participants, err := s.Store.GetParticipants(roomID)
	if err != nil {
		return nil, nil, nil, err
	}
	messages, err := s.Store.GetRoomMessages(roomID)
	if err != nil {
		return nil, nil, nil, err
	}
	return room, participants, messages, nil
}

// RecordActivity marks a participant's join and starts the countdown if it
// has not started yet. No-op for repeat joins.
func (s *Service) RecordActivity(roomID, userID string) error {
	room, err := s.CheckExpiry(roomID)
	if err != nil {
		return err
	}
	if room.IsClosed {
		return ErrRoomClosed
	}
	if !room.HasParty(userID) {
		return ErrNotParticipant
	}

	now := s.Now()
	if _, err := s.Store.SetParticipantJoined(roomID, userID, now); err != nil {
		return err
	}
	_, err = s.Store.SetFirstActivity(roomID, now)
	return err
}

// SendMessage persists a message and publishes it. Перша активність у
// кімнаті запускає відлік TTL.
func (s *Service) SendMessage(roomID, senderID, body string) (*models.RoomMessage, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}

	room, err := s.CheckExpiry(roomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed {
		return nil, ErrRoomClosed
	}
	if !room.HasParty(senderID) {
		return nil, ErrNotParticipant
	}

	msg := &models.RoomMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  body,
		Type:     "text",
	}
	if err := s.Store.SaveMessage(msg); err != nil {
		return nil, err
	}

	if _, err := s.Store.SetFirstActivity(roomID, s.Now()); err != nil {
		log.Printf("ERROR: Failed to record first activity for room %s: %v", roomID, err)
	}

	s.Dispatcher.Enqueue(notify.Intent{
		Kind:   notify.KindChatMessage,
		RoomID: roomID,
		Body:   body,
	})
	return msg, nil
}

// CheckExpiry closes the room if its countdown has elapsed, then returns
// the current state. Called lazily on every read and by the sweeper.
func (s *Service) CheckExpiry(roomID string) (*models.ConversationRoom, error) {
	room, err := s.Store.GetRoomByID(roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !room.IsClosed && room.ExpiredAt(s.Now()) {
		if err := s.close(room, models.CloseReasonTimeout); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// MarkCompleted records one participant's "meeting done" declaration; the
// second declaration closes the room and completes the owning proposal.
// Повторне позначення тією самою стороною — no-op.
func (s *Service) MarkCompleted(roomID, userID string) (*models.ConversationRoom, error) {
	room, err := s.CheckExpiry(roomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed {
		return nil, ErrRoomClosed
	}
	if !room.HasParty(userID) {
		return nil, ErrNotParticipant
	}

	if _, err := s.Store.SetParticipantCompleted(roomID, userID, s.Now()); err != nil {
		return nil, err
	}

	participants, err := s.Store.GetParticipants(roomID)
	if err != nil {
		return nil, err
	}
	done := 0
	for _, p := range participants {
		if p.CompletedAt != nil {
			done++
		}
	}
	if len(participants) == 2 && done == 2 {
		if err := s.close(room, models.CloseReasonCompleted); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// Close closes a room for the given reason. Idempotent: closing an already
// closed room is a no-op, not an error.
func (s *Service) Close(roomID, reason string) error {
	room, err := s.Store.GetRoomByID(roomID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if room.IsClosed {
		return nil
	}
	return s.close(room, reason)
}

// close performs the terminal transition: conditional close, proposal
// propagation, notifications. Only the call that actually flipped is_closed
// does the follow-up work.
func (s *Service) close(room *models.ConversationRoom, reason string) error {
	now := s.Now()
	closed, err := s.Store.CloseRoom(room.RoomID, reason, now)
	if err != nil {
		return err
	}
	if !closed {
		// Хтось закрив кімнату паралельно — нічого не дублюємо.
		room.IsClosed = true
		return nil
	}

	room.IsClosed = true
	room.ClosedAt = &now
	room.CloseReason = reason

	if _, err := s.Store.CompleteProposal(room.ProposalID, now); err != nil {
		log.Printf("ERROR: Failed to complete proposal %s for closed room %s: %v",
			room.ProposalID, room.RoomID, err)
	}

	body := "Час розмови вичерпано. Кімнату закрито."
	if reason == models.CloseReasonCompleted {
		body = "Ви обоє завершили зустріч. Кімнату закрито."
	}
	s.Dispatcher.Enqueue(
		notify.Intent{Kind: notify.KindRoomClosed, Recipient: room.PartyA, RoomID: room.RoomID, ProposalID: room.ProposalID, Body: body},
		notify.Intent{Kind: notify.KindRoomClosed, Recipient: room.PartyB, RoomID: room.RoomID, ProposalID: room.ProposalID, Body: body},
	)
	log.Printf("INFO: Room %s closed (%s)", room.RoomID, reason)
	return nil
}

// RunSweeper запускає фонову Goroutine, що закриває прострочені кімнати,
// в яких ніхто не читає стан (lazy-перевірка їх не торкнеться).
func (s *Service) RunSweeper() {
	log.Println("Room sweeper started.")
	ticker := time.NewTicker(s.Cfg.SweepPeriod)
	defer ticker.Stop()

	for range ticker.C {
		s.SweepExpired()
	}
}

// SweepExpired closes every open room whose countdown has elapsed.
func (s *Service) SweepExpired() {
	roomIDs, err := s.Store.GetExpiredOpenRoomIDs(s.Now())
	if err != nil {
		return // уже залоговано в storage
	}
	for _, id := range roomIDs {
		if _, err := s.CheckExpiry(id); err != nil {
			log.Printf("ERROR: Sweep failed to close room %s: %v", id, err)
		}
	}
	if len(roomIDs) > 0 {
		log.Printf("INFO: Sweep closed %d expired room(s)", len(roomIDs))
	}
}
