package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ProposalStatus is the lifecycle state of a match proposal.
type ProposalStatus string

const (
	StatusProposed    ProposalStatus = "proposed"
	StatusAcceptedByA ProposalStatus = "accepted_by_a"
	StatusAcceptedByB ProposalStatus = "accepted_by_b"
	StatusAccepted    ProposalStatus = "accepted"
	StatusDeclined    ProposalStatus = "declined"
	StatusCancelled   ProposalStatus = "cancelled"
	StatusCompleted   ProposalStatus = "completed"
)

// Terminal reports whether the status permits no further transitions.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether the status counts against quotas and
// duplicate-proposal checks. Зверніть увагу: "accepted" НЕ активний —
// прийнята пропозиція вважається вирішеною і не блокує нову.
func (s ProposalStatus) Active() bool {
	switch s {
	case StatusProposed, StatusAcceptedByA, StatusAcceptedByB:
		return true
	}
	return false
}

// Creator kinds for a proposal.
const (
	CreatorSystem   = "system"
	CreatorUser     = "user"
	CreatorExternal = "external"
)

// MatchProposal represents one candidate pairing and its lifecycle.
// Status is advanced only through the proposal state machine; the two
// acceptance booleans are the authoritative dual-acceptance signal.
type MatchProposal struct {
	ID string `gorm:"primaryKey" json:"id"` // UUID

	// Ordered party slots. The pair is conceptually unordered; the order
	// only fixes which acceptance flag belongs to whom.
	PartyA string `gorm:"index" json:"party_a"`
	PartyB string `gorm:"index" json:"party_b"`
	// PairKey is "min(id):max(id)" — one value per unordered pair, used by
	// the partial unique index that forbids two active proposals per pair.
	PairKey string `gorm:"index" json:"-"`

	CreatorKind string `json:"creator_kind"` // system, user, external
	CreatorID   string `json:"creator_id,omitempty"`
	// IsExternal marks suggestions where one or both parties were not yet
	// registered at creation time. Це прапорець, а не окремий статус.
	IsExternal bool `json:"is_external"`

	Status      ProposalStatus `gorm:"index" json:"status"`
	AcceptedByA bool           `json:"accepted_by_a"`
	AcceptedByB bool           `json:"accepted_by_b"`

	// Rationale: scorer evidence, informational only, never re-validated.
	Score          float64        `json:"score"`
	SharedTraits   pq.StringArray `gorm:"type:text[]" json:"shared_traits"`
	SharedKeywords pq.StringArray `gorm:"type:text[]" json:"shared_keywords"`
	Rationale      string         `json:"rationale"` // "similarity" або "manual"

	// Message is the intro text attached by a manual/external creator.
	Message string `gorm:"type:text" json:"message,omitempty"`

	// RoomID is set once, when dual acceptance creates the room.
	RoomID *string `json:"room_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PairKeyFor returns the canonical unordered-pair key for two user IDs.
func PairKeyFor(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// BeforeCreate generates the proposal ID and pair key if unset.
func (p *MatchProposal) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.PairKey == "" {
		p.PairKey = PairKeyFor(p.PartyA, p.PartyB)
	}
	return
}

// HasParty reports whether userID is one of the two parties.
func (p *MatchProposal) HasParty(userID string) bool {
	return p.PartyA == userID || p.PartyB == userID
}

// OtherParty returns the counterpart of userID, and whether userID is a party.
func (p *MatchProposal) OtherParty(userID string) (string, bool) {
	if p.PartyA == userID {
		return p.PartyB, true
	}
	if p.PartyB == userID {
		return p.PartyA, true
	}
	return "", false
}

// AcceptedBy reports whether the given party has already accepted.
func (p *MatchProposal) AcceptedBy(userID string) bool {
	if p.PartyA == userID {
		return p.AcceptedByA
	}
	if p.PartyB == userID {
		return p.AcceptedByB
	}
	return false
}

// MutuallyAccepted is the single authoritative dual-acceptance test.
// Callers must never compare the status string for this.
func (p *MatchProposal) MutuallyAccepted() bool {
	return p.AcceptedByA && p.AcceptedByB
}
