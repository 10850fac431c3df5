package matching

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/models"
	"pairline/backend/internal/proposal"
	"pairline/backend/internal/scoring"
)

// EngineStore is the slice of the storage layer the engine needs on top of
// the gate's reads.
type EngineStore interface {
	GetMatchableUsers() ([]models.User, error)
	CreateMatchRun(run *models.MatchRun) error
	FinishMatchRun(run *models.MatchRun) error
}

// ProposalCreator is how the engine asks the state machine for a new
// "proposed" record. Створення — завжди через state machine, ніколи повз.
type ProposalCreator interface {
	CreateSystem(partyA, partyB string, res scoring.Result) (*models.MatchProposal, error)
}

// Engine orchestrates one automatic matching pass: score all pairs, filter
// by threshold, rank, gate, create proposals, record the ledger row.
type Engine struct {
	Store     EngineStore
	Gate      *Gate
	Proposals ProposalCreator
	Cfg       config.Config

	// Now is injectable for tests.
	Now func() time.Time
}

// NewEngine creates the matching engine.
func NewEngine(store EngineStore, gate *Gate, proposals ProposalCreator, cfg config.Config) *Engine {
	return &Engine{
		Store:     store,
		Gate:      gate,
		Proposals: proposals,
		Cfg:       cfg,
		Now:       time.Now,
	}
}

// candidate is one scored pair during a pass.
type candidate struct {
	other models.User
	res   scoring.Result
}

// RunPass executes one full automatic matching pass and returns its ledger
// row. Збій однієї пропозиції не зриває прохід: він фіксується в журналі,
// а обробка йде далі.
func (e *Engine) RunPass() (*models.MatchRun, error) {
	run := &models.MatchRun{StartedAt: e.Now()}
	if err := e.Store.CreateMatchRun(run); err != nil {
		return nil, err
	}

	var notes []string
	finish := func() (*models.MatchRun, error) {
		now := e.Now()
		run.FinishedAt = &now
		run.Notes = strings.Join(notes, "\n")
		if err := e.Store.FinishMatchRun(run); err != nil {
			log.Printf("ERROR: Failed to persist match run %d: %v", run.ID, err)
			return run, err
		}
		log.Printf("INFO: Matching pass done: %d profiles, %d proposals, %d skipped, %d failed",
			run.ProfilesProcessed, run.ProposalsCreated, run.Skipped, run.Failed)
		return run, nil
	}

	users, err := e.Store.GetMatchableUsers()
	if err != nil {
		run.Failed++
		notes = append(notes, "load profiles: "+err.Error())
		finish()
		return run, err
	}

	run.ProfilesProcessed = len(users)
	if len(users) < 2 {
		// Нема з кого складати пари — успішний порожній прохід.
		return finish()
	}

	// Пари, вже запропоновані в межах цього проходу.
	proposedThisPass := make(map[string]bool)

	for _, u := range users {
		candidates := e.rankCandidates(u, users)

		created := 0
		for _, c := range candidates {
			if created >= e.Cfg.TopCandidates {
				break
			}
			pairKey := models.PairKeyFor(u.ID, c.other.ID)
			if proposedThisPass[pairKey] {
				continue
			}

			decision, err := e.Gate.Check(u.ID, c.other.ID)
			if err != nil {
				run.Failed++
				notes = append(notes, fmt.Sprintf("gate %s/%s: %v", u.ID, c.other.ID, err))
				continue
			}
			if !decision.Allowed {
				run.Skipped++
				notes = append(notes, fmt.Sprintf("skip %s/%s: %s", u.ID, c.other.ID, decision.Reason))
				continue
			}

			if _, err := e.Proposals.CreateSystem(u.ID, c.other.ID, c.res); err != nil {
				if errors.Is(err, proposal.ErrDuplicatePair) {
					// Конкурентний прохід встиг першим — це skip, не збій.
					proposedThisPass[pairKey] = true
					run.Skipped++
					notes = append(notes, fmt.Sprintf("skip %s/%s: concurrent duplicate", u.ID, c.other.ID))
					continue
				}
				run.Failed++
				notes = append(notes, fmt.Sprintf("create %s/%s: %v", u.ID, c.other.ID, err))
				continue
			}

			proposedThisPass[pairKey] = true
			run.ProposalsCreated++
			created++
		}
	}

	return finish()
}

// rankCandidates scores u against every other profile, keeps scores at or
// above the threshold and sorts them descending.
func (e *Engine) rankCandidates(u models.User, users []models.User) []candidate {
	var out []candidate
	for _, v := range users {
		if v.ID == u.ID {
			continue
		}
		res := scoring.Score(u.Traits, v.Traits, u.Bio, v.Bio)
		if res.Score < e.Cfg.ScoreThreshold {
			continue
		}
		out = append(out, candidate{other: v, res: res})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].res.Score > out[j].res.Score
	})
	return out
}
