package matching

import (
	"log"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/models"
)

// SchedulerStore adds the ledger read and the cross-process lock.
type SchedulerStore interface {
	LastCompletedRun() (*models.MatchRun, error)
	TryAcquirePassLock() (bool, error)
	ReleasePassLock() error
}

// Scheduler starts a matching pass when enough time has elapsed since the
// last COMPLETED pass. Інтервальна перевірка — на боці викликача, рушій
// сам себе не обмежує.
type Scheduler struct {
	Store  SchedulerStore
	Engine *Engine
	Cfg    config.Config

	// Now is injectable for tests.
	Now func() time.Time
}

// NewScheduler creates the pass scheduler.
func NewScheduler(store SchedulerStore, engine *Engine, cfg config.Config) *Scheduler {
	return &Scheduler{Store: store, Engine: engine, Cfg: cfg, Now: time.Now}
}

// Run запускає основну Goroutine планувальника.
func (s *Scheduler) Run() {
	log.Println("Match scheduler started.")
	ticker := time.NewTicker(s.Cfg.SchedulerTick)
	defer ticker.Stop()

	for range ticker.C {
		if err := s.MaybeRunPass(); err != nil {
			log.Printf("ERROR: Matching pass failed: %v", err)
		}
	}
}

// MaybeRunPass runs a pass if one is due and the lock can be taken.
func (s *Scheduler) MaybeRunPass() error {
	due, err := s.PassDue()
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	acquired, err := s.Store.TryAcquirePassLock()
	if err != nil {
		return err
	}
	if !acquired {
		// Інший процес уже виконує прохід.
		return nil
	}
	defer func() {
		if err := s.Store.ReleasePassLock(); err != nil {
			log.Printf("WARNING: Failed to release pass lock: %v", err)
		}
	}()

	_, err = s.Engine.RunPass()
	return err
}

// PassDue reports whether the interval since the last completed pass has
// elapsed. Незавершені проходи не відсувають розклад.
func (s *Scheduler) PassDue() (bool, error) {
	last, err := s.Store.LastCompletedRun()
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return s.Now().Sub(*last.FinishedAt) >= s.Cfg.AutoMatchInterval, nil
}
