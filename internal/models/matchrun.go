package models

import (
	"time"

	"gorm.io/gorm"
)

// MatchRun is the run-ledger row for one automatic matching pass. Крім
// спостережуваності, останній завершений запис визначає, коли дозволено
// наступний прохід.
type MatchRun struct {
	gorm.Model

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	ProfilesProcessed int `json:"profiles_processed"`
	ProposalsCreated  int `json:"proposals_created"`
	Skipped           int `json:"skipped"`
	Failed            int `json:"failed"`

	// Notes holds newline-separated skip reasons and error strings.
	Notes string `gorm:"type:text" json:"notes,omitempty"`
}

// Completed reports whether the pass ran to the end.
func (r *MatchRun) Completed() bool {
	return r.FinishedAt != nil
}
