// Package matching contains the eligibility gate, the automatic matching
// engine and its scheduler.
package matching

import (
	"fmt"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/models"
)

// Skip reasons produced by the gate. These are engine-internal filtering
// outcomes, never surfaced to end users.
const (
	ReasonSelfPair        = "self_pair"
	ReasonCooldown        = "cooldown"
	ReasonActiveDuplicate = "active_duplicate"
	ReasonQuota           = "quota"
)

// GateStore is the read-only slice of the storage layer the gate needs.
type GateStore interface {
	LastTerminalBetween(pairKey string) (time.Time, bool, error)
	HasActiveProposalBetween(pairKey string, since time.Time) (bool, error)
	CountActiveProposals(userID string, since time.Time) (int, error)
}

// Decision is the gate's verdict on one candidate pair.
type Decision struct {
	Allowed bool
	Reason  string // structured skip reason when denied
}

// Gate decides whether a new proposal may be created for a candidate pair.
// Усі перевірки read-only; самі обмеження в базі (частковий унікальний
// індекс) лишаються останньою лінією захисту під конкуренцією.
type Gate struct {
	Store GateStore
	Cfg   config.Config

	// Now is injectable for tests.
	Now func() time.Time
}

// NewGate creates an eligibility gate with the given parameters.
func NewGate(store GateStore, cfg config.Config) *Gate {
	return &Gate{Store: store, Cfg: cfg, Now: time.Now}
}

// Check runs all eligibility rules for the pair (a, b). All must pass.
func (g *Gate) Check(a, b string) (Decision, error) {
	if a == b {
		return deny(ReasonSelfPair, "candidate pair is the same user"), nil
	}

	now := g.Now()
	pairKey := models.PairKeyFor(a, b)

	// 1. Cooldown: a recent declined/cancelled proposal suppresses the pair.
	lastTerminal, found, err := g.Store.LastTerminalBetween(pairKey)
	if err != nil {
		return Decision{}, err
	}
	if found && now.Sub(lastTerminal) < g.Cfg.CooldownWindow {
		return deny(ReasonCooldown,
			fmt.Sprintf("pair rejected %s ago", now.Sub(lastTerminal).Round(time.Minute))), nil
	}

	// 2. No active duplicate within the window. "accepted" не блокує:
	// прийнята пропозиція — вирішена, і це навмисна асиметрія.
	activeSince := now.Add(-g.Cfg.ActiveWindow)
	hasActive, err := g.Store.HasActiveProposalBetween(pairKey, activeSince)
	if err != nil {
		return Decision{}, err
	}
	if hasActive {
		return deny(ReasonActiveDuplicate, "pair already has an open proposal"), nil
	}

	// 3. Per-user outstanding-proposal quota.
	for _, uid := range []string{a, b} {
		count, err := g.Store.CountActiveProposals(uid, activeSince)
		if err != nil {
			return Decision{}, err
		}
		if count >= g.Cfg.ProposalQuota {
			return deny(ReasonQuota,
				fmt.Sprintf("user %s has %d open proposals", uid, count)), nil
		}
	}

	return Decision{Allowed: true}, nil
}

func deny(reason, detail string) Decision {
	return Decision{Allowed: false, Reason: reason + ": " + detail}
}
