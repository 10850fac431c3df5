// Package proposal is the authoritative lifecycle of a match proposal.
// Every status/flag change goes through this state machine; nothing else
// writes those columns. Transitions persist first and return notification
// intents after — side effects never gate state.
package proposal

import (
	"errors"
	"fmt"
	"log"
	"time"

	"pairline/backend/internal/models"
	"pairline/backend/internal/notify"
	"pairline/backend/internal/scoring"
	"pairline/backend/internal/storage"
)

// Respond actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

var (
	// ErrNotFound — пропозиції не існує.
	ErrNotFound = errors.New("proposal not found")
	// ErrSelfPair rejects a proposal between a user and themselves.
	ErrSelfPair = errors.New("cannot propose a user to themselves")
	// ErrInvalidAction rejects anything but accept/decline.
	ErrInvalidAction = errors.New("action must be accept or decline")
	// ErrNotParty — the actor is not one of the two parties.
	ErrNotParty = errors.New("actor is not a party to this proposal")
	// ErrTerminal — the proposal already reached a terminal state.
	ErrTerminal = errors.New("proposal already resolved")
	// ErrAlreadyAccepted — the acting party has already accepted.
	ErrAlreadyAccepted = errors.New("party already accepted this proposal")
	// ErrConflict — a concurrent call transitioned the proposal first.
	ErrConflict = errors.New("proposal was transitioned concurrently")
	// ErrDuplicatePair — an active proposal between the pair already exists.
	ErrDuplicatePair = errors.New("active proposal already exists for this pair")
)

// Store is the slice of the storage layer the state machine needs.
type Store interface {
	GetProposalByID(id string) (*models.MatchProposal, error)
	CreateProposal(p *models.MatchProposal) error
	SetAcceptanceFlagA(id string) (bool, error)
	SetAcceptanceFlagB(id string) (bool, error)
	PromoteToAccepted(id string) (bool, error)
	TerminateProposal(id string, status models.ProposalStatus) (bool, error)
	UserExists(userID string) (bool, error)
}

// RoomCreator is how dual acceptance reaches the room lifecycle.
type RoomCreator interface {
	EnsureRoom(proposalID, partyA, partyB string) (*models.ConversationRoom, bool, error)
}

// Service drives proposal transitions and emits side-effect intents.
type Service struct {
	Store      Store
	Rooms      RoomCreator
	Dispatcher *notify.Dispatcher

	// Now is injectable for tests.
	Now func() time.Time
}

// NewService creates the proposal state machine.
func NewService(store Store, rooms RoomCreator, dispatcher *notify.Dispatcher) *Service {
	return &Service{
		Store:      store,
		Rooms:      rooms,
		Dispatcher: dispatcher,
		Now:        time.Now,
	}
}

// CreateSystem creates an engine-originated proposal with scorer rationale.
func (s *Service) CreateSystem(partyA, partyB string, res scoring.Result) (*models.MatchProposal, error) {
	p := &models.MatchProposal{
		PartyA:         partyA,
		PartyB:         partyB,
		CreatorKind:    models.CreatorSystem,
		Status:         models.StatusProposed,
		Score:          res.Score,
		SharedTraits:   res.SharedTraits,
		SharedKeywords: res.SharedKeywords,
		Rationale:      "similarity",
	}
	if err := s.create(p); err != nil {
		return nil, err
	}

	s.Dispatcher.Enqueue(
		s.systemMessage(p, partyA, "Ми підібрали вам співрозмовника! Перегляньте пропозицію."),
		s.systemMessage(p, partyB, "Ми підібрали вам співрозмовника! Перегляньте пропозицію."),
	)
	return p, nil
}

// CreateManual creates a user-requested proposal. The creator is remembered
// so that a decline can notify them specifically.
func (s *Service) CreateManual(creatorID, partyA, partyB, message string) (*models.MatchProposal, error) {
	p := &models.MatchProposal{
		PartyA:      partyA,
		PartyB:      partyB,
		CreatorKind: models.CreatorUser,
		CreatorID:   creatorID,
		Status:      models.StatusProposed,
		Rationale:   "manual",
		Message:     message,
	}
	if err := s.create(p); err != nil {
		return nil, err
	}

	var intents []notify.Intent
	for _, party := range []string{partyA, partyB} {
		if party != creatorID {
			intents = append(intents, s.systemMessage(p, party,
				"Вам запропонували знайомство. Перегляньте пропозицію."))
		}
	}
	s.Dispatcher.Enqueue(intents...)
	return p, nil
}

// CreateExternal creates an externally suggested proposal where one or both
// parties may not be registered yet. Стан — звичайний "proposed" із
// прапорцем IsExternal, а не окремий статус.
func (s *Service) CreateExternal(partyA, partyB, message string) (*models.MatchProposal, error) {
	p := &models.MatchProposal{
		PartyA:      partyA,
		PartyB:      partyB,
		CreatorKind: models.CreatorExternal,
		IsExternal:  true,
		Status:      models.StatusProposed,
		Rationale:   "manual",
		Message:     message,
	}
	if err := s.create(p); err != nil {
		return nil, err
	}

	for _, party := range []string{partyA, partyB} {
		if exists, _ := s.Store.UserExists(party); exists {
			s.Dispatcher.Enqueue(s.systemMessage(p, party,
				"Вам запропонували знайомство. Перегляньте пропозицію."))
		}
	}
	return p, nil
}

func (s *Service) create(p *models.MatchProposal) error {
	if p.PartyA == "" || p.PartyB == "" {
		return fmt.Errorf("%w: both parties are required", ErrInvalidAction)
	}
	if p.PartyA == p.PartyB {
		return ErrSelfPair
	}
	err := s.Store.CreateProposal(p)
	if errors.Is(err, storage.ErrDuplicate) {
		return ErrDuplicatePair
	}
	return err
}

// Respond records one party's accept/decline and advances the lifecycle.
// Повторний виклик після того, як стан уже просунувся, повертає помилку
// передумови — жодних подвійних нотифікацій чи другої кімнати.
func (s *Service) Respond(proposalID, actor, action, reason string) (*models.MatchProposal, error) {
	if action != ActionAccept && action != ActionDecline {
		return nil, ErrInvalidAction
	}

	p, err := s.Store.GetProposalByID(proposalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !p.HasParty(actor) {
		return nil, ErrNotParty
	}
	if p.Status.Terminal() {
		return nil, ErrTerminal
	}
	if p.AcceptedBy(actor) {
		return nil, ErrAlreadyAccepted
	}

	if action == ActionDecline {
		return s.decline(p, actor, reason)
	}
	return s.accept(p, actor)
}

func (s *Service) decline(p *models.MatchProposal, actor, reason string) (*models.MatchProposal, error) {
	ok, err := s.Store.TerminateProposal(p.ID, models.StatusDeclined)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	p.Status = models.StatusDeclined

	other, _ := p.OtherParty(actor)
	body := "На жаль, співрозмовник відхилив пропозицію."
	if reason != "" {
		body += " Причина: " + reason
	}
	intents := []notify.Intent{s.systemMessage(p, other, body)}

	// Мануальну пропозицію відхилили — повідомляємо саме того, хто просив.
	if p.CreatorKind == models.CreatorUser && p.CreatorID != "" &&
		p.CreatorID != actor && p.CreatorID != other {
		intents = append(intents, s.systemMessage(p, p.CreatorID,
			"Запропоноване вами знайомство відхилено."))
	}
	s.Dispatcher.Enqueue(intents...)
	return p, nil
}

func (s *Service) accept(p *models.MatchProposal, actor string) (*models.MatchProposal, error) {
	setOwn := s.Store.SetAcceptanceFlagA
	setOther := s.Store.SetAcceptanceFlagB
	if actor == p.PartyB {
		setOwn, setOther = setOther, setOwn
	}

	ok, err := setOwn(p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Умовний UPDATE не пройшов: конкурентний виклик уже просунув стан.
		return nil, ErrConflict
	}

	// External suggestion: the counterpart's consent was collected by the
	// suggester outside the system. While the counterpart has no profile,
	// their flag is set within this same call.
	if p.IsExternal {
		other, _ := p.OtherParty(actor)
		if exists, lookupErr := s.Store.UserExists(other); lookupErr == nil && !exists {
			if _, err := setOther(p.ID); err != nil {
				return nil, err
			}
		}
	}

	// Re-read post-write: the dual-acceptance decision is made on persisted
	// flags, never on in-memory state.
	p, err = s.Store.GetProposalByID(p.ID)
	if err != nil {
		return nil, err
	}

	if !p.MutuallyAccepted() {
		other, _ := p.OtherParty(actor)
		s.Dispatcher.Enqueue(s.systemMessage(p, other,
			"Співрозмовник прийняв пропозицію. Тепер ваша черга!"))
		return p, nil
	}

	if _, err := s.Store.PromoteToAccepted(p.ID); err != nil {
		return nil, err
	}
	p.Status = models.StatusAccepted

	// Room creation is guarded by the proposal->room uniqueness constraint,
	// so racing accept calls still yield exactly one room — and only the
	// winning call sends the "both accepted" notifications.
	room, created, err := s.Rooms.EnsureRoom(p.ID, p.PartyA, p.PartyB)
	if err != nil {
		// Стан уже коректний; збій створення кімнати лише логуємо.
		log.Printf("ERROR: Failed to create room for proposal %s: %v", p.ID, err)
		return p, nil
	}
	p.RoomID = &room.RoomID

	if created {
		s.Dispatcher.Enqueue(
			notify.Intent{
				Kind: notify.KindRoomOpened, Recipient: p.PartyA,
				ProposalID: p.ID, RoomID: room.RoomID,
				Body: "Ви обоє прийняли пропозицію! Кімнату для розмови відкрито.",
			},
			notify.Intent{
				Kind: notify.KindRoomOpened, Recipient: p.PartyB,
				ProposalID: p.ID, RoomID: room.RoomID,
				Body: "Ви обоє прийняли пропозицію! Кімнату для розмови відкрито.",
			},
		)
	}
	return p, nil
}

// Cancel terminates a non-terminal proposal without a party response
// (ops tooling, withdrawn suggestions).
func (s *Service) Cancel(proposalID, reason string) (*models.MatchProposal, error) {
	p, err := s.Store.GetProposalByID(proposalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, ErrTerminal
	}

	ok, err := s.Store.TerminateProposal(p.ID, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	p.Status = models.StatusCancelled

	body := "Пропозицію знайомства скасовано."
	if reason != "" {
		body += " Причина: " + reason
	}
	s.Dispatcher.Enqueue(
		s.systemMessage(p, p.PartyA, body),
		s.systemMessage(p, p.PartyB, body),
	)
	return p, nil
}

func (s *Service) systemMessage(p *models.MatchProposal, recipient, body string) notify.Intent {
	return notify.Intent{
		Kind:       notify.KindSystemMessage,
		Recipient:  recipient,
		ProposalID: p.ID,
		Body:       body,
	}
}
