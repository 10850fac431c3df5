package models

// Event is the payload published to Redis for pollers and ops tooling.
// Доставка best-effort: втрата події ніколи не відкочує зміну стану.
type Event struct {
	Kind       string `json:"kind"` // "system_message", "room_opened", "room_closed", "message"
	ProposalID string `json:"proposal_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	Content    string `json:"content,omitempty"`
}
