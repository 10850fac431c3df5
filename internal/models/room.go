package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room close reasons.
const (
	CloseReasonTimeout   = "timeout"
	CloseReasonCompleted = "completed"
	CloseReasonAdmin     = "admin"
)

// ConversationRoom is the time-boxed channel created 1:1 with a proposal on
// dual acceptance. The unique index on ProposalID is what makes concurrent
// room creation safe — not a read-then-write check.
type ConversationRoom struct {
	RoomID     string `gorm:"primaryKey" json:"room_id"` // UUID
	ProposalID string `gorm:"uniqueIndex" json:"proposal_id"`

	PartyA string `json:"party_a"`
	PartyB string `json:"party_b"`

	OpenedAt time.Time `json:"opened_at"`
	// FirstActivityAt запускає відлік TTL: перший вхід або перше повідомлення.
	FirstActivityAt *time.Time `json:"first_activity_at,omitempty"`
	TTLSeconds      int        `json:"ttl_seconds"`

	IsClosed    bool       `gorm:"index" json:"is_closed"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

// BeforeCreate generates the room ID if unset.
func (r *ConversationRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.RoomID == "" {
		r.RoomID = uuid.New().String()
	}
	return
}

// ExpiresAt returns the deadline, or nil while the countdown has not started.
func (r *ConversationRoom) ExpiresAt() *time.Time {
	if r.FirstActivityAt == nil {
		return nil
	}
	t := r.FirstActivityAt.Add(time.Duration(r.TTLSeconds) * time.Second)
	return &t
}

// ExpiredAt reports whether the room's countdown has elapsed at the given time.
func (r *ConversationRoom) ExpiredAt(now time.Time) bool {
	deadline := r.ExpiresAt()
	return deadline != nil && now.After(*deadline)
}

// HasParty reports whether userID belongs to the room.
func (r *ConversationRoom) HasParty(userID string) bool {
	return r.PartyA == userID || r.PartyB == userID
}

// RoomParticipant tracks one side of a room: when they joined and whether
// they declared the meeting done. Composite key (RoomID, UserID).
type RoomParticipant struct {
	RoomID      string     `gorm:"primaryKey" json:"room_id"`
	UserID      string     `gorm:"primaryKey" json:"user_id"`
	JoinedAt    *time.Time `json:"joined_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RoomMessage is a saved message in a conversation room.
// The embedded gorm.Model provides ID, CreatedAt, UpdatedAt, and DeletedAt.
type RoomMessage struct {
	gorm.Model

	// RoomID is the identifier of the room where the message was sent.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_msg" json:"room_id"`
	// SenderID is the user who sent the message; "system" for engine messages.
	SenderID string `gorm:"type:text;not null;index:idx_room_msg" json:"sender_id"`
	// Content is the message body.
	Content string `gorm:"type:text;not null" json:"content"`
	// Type indicates the kind of message (e.g. "text", "system").
	Type string `gorm:"type:text;not null" json:"type"`
}
