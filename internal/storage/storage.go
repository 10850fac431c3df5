// Package storage is the persistence layer: PostgreSQL (via GORM) as the
// single source of truth, Redis for the pass lock and best-effort event
// publishing. Every state transition is a conditional UPDATE — a false
// return means someone else already transitioned the row.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"pairline/backend/internal/config"
	"pairline/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint rejected a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Service bundles the database and Redis handles.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Migrate створює таблиці та індекси, які GORM-теги виразити не можуть.
func (s *Service) Migrate() error {
	if err := s.DB.AutoMigrate(
		&models.User{},
		&models.MatchProposal{},
		&models.ConversationRoom{},
		&models.RoomParticipant{},
		&models.RoomMessage{},
		&models.MatchRun{},
	); err != nil {
		return err
	}

	// Partial unique index: at most one ACTIVE proposal per unordered pair.
	// This is what makes overlapping matching passes safe.
	return s.DB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_active_pair
		ON match_proposals (pair_key)
		WHERE status IN ('proposed', 'accepted_by_a', 'accepted_by_b')
	`).Error
}

// ---- Users (read-only from this module's point of view) ----

// GetUserByID повертає профіль користувача.
func (s *Service) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetMatchableUsers returns all profiles with a non-empty bio and at least
// one trait tag — the engine's candidate pool.
func (s *Service) GetMatchableUsers() ([]models.User, error) {
	var users []models.User
	err := s.DB.
		Where("bio <> ''").
		Where("traits IS NOT NULL AND array_length(traits, 1) > 0").
		Find(&users).Error
	if err != nil {
		log.Printf("ERROR: Failed to load matchable users: %v", err)
		return nil, err
	}
	return users, nil
}

// SaveUser зберігає користувача в PostgreSQL.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// UserExists reports whether a profile row exists for the given ID.
func (s *Service) UserExists(userID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

// TelegramIDFor returns the user's linked Telegram chat ID, or "" when the
// user is unknown or has no link.
func (s *Service) TelegramIDFor(userID string) (string, error) {
	user, err := s.GetUserByID(userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.TelegramID, nil
}

// ---- Proposals ----

// CreateProposal inserts a new proposal. Returns ErrDuplicate when the
// active-pair uniqueness index rejects it (an equivalent active proposal
// already exists).
func (s *Service) CreateProposal(p *models.MatchProposal) error {
	err := s.DB.Create(p).Error
	if isDuplicateErr(err) {
		return ErrDuplicate
	}
	return err
}

// GetProposalByID повертає пропозицію за її ID.
func (s *Service) GetProposalByID(id string) (*models.MatchProposal, error) {
	var p models.MatchProposal
	err := s.DB.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProposalsForUser returns all proposals where the user is a party,
// newest first.
func (s *Service) ListProposalsForUser(userID string) ([]models.MatchProposal, error) {
	var out []models.MatchProposal
	err := s.DB.
		Where("party_a = ? OR party_b = ?", userID, userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// LastTerminalBetween returns when the most recent declined/cancelled
// proposal between the pair was resolved, or (zero, false) if there is none.
// Це і є CooldownRecord: окремої таблиці немає.
func (s *Service) LastTerminalBetween(pairKey string) (time.Time, bool, error) {
	var p models.MatchProposal
	err := s.DB.
		Where("pair_key = ?", pairKey).
		Where("status IN ?", []string{string(models.StatusDeclined), string(models.StatusCancelled)}).
		Order("updated_at desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return p.UpdatedAt, true, nil
}

// HasActiveProposalBetween reports whether an active (proposed or
// half-accepted) proposal between the pair was created after `since`.
// A prior "accepted" proposal never blocks — accepted means resolved.
func (s *Service) HasActiveProposalBetween(pairKey string, since time.Time) (bool, error) {
	var count int64
	err := s.DB.Model(&models.MatchProposal{}).
		Where("pair_key = ?", pairKey).
		Where("status IN ?", activeStatuses()).
		Where("created_at > ?", since).
		Count(&count).Error
	return count > 0, err
}

// CountActiveProposals counts the user's active proposals created after `since`.
func (s *Service) CountActiveProposals(userID string, since time.Time) (int, error) {
	var count int64
	err := s.DB.Model(&models.MatchProposal{}).
		Where("party_a = ? OR party_b = ?", userID, userID).
		Where("status IN ?", activeStatuses()).
		Where("created_at > ?", since).
		Count(&count).Error
	return int(count), err
}

// SetAcceptanceFlagA records party A's acceptance, conditionally: the
// proposal must still be active and A must not have accepted before.
// A bare "proposed" status advances to the half-accepted marker.
func (s *Service) SetAcceptanceFlagA(id string) (bool, error) {
	res := s.DB.Model(&models.MatchProposal{}).
		Where("id = ?", id).
		Where("status IN ?", activeStatuses()).
		Where("accepted_by_a = ?", false).
		Updates(map[string]interface{}{
			"accepted_by_a": true,
			"status": gorm.Expr(
				"CASE WHEN status = 'proposed' THEN 'accepted_by_a' ELSE status END"),
		})
	return res.RowsAffected > 0, res.Error
}

// SetAcceptanceFlagB is the party-B mirror of SetAcceptanceFlagA.
func (s *Service) SetAcceptanceFlagB(id string) (bool, error) {
	res := s.DB.Model(&models.MatchProposal{}).
		Where("id = ?", id).
		Where("status IN ?", activeStatuses()).
		Where("accepted_by_b = ?", false).
		Updates(map[string]interface{}{
			"accepted_by_b": true,
			"status": gorm.Expr(
				"CASE WHEN status = 'proposed' THEN 'accepted_by_b' ELSE status END"),
		})
	return res.RowsAffected > 0, res.Error
}

// PromoteToAccepted flips status to "accepted" once BOTH flags are set.
// Re-evaluated post-write by each concurrent accept path; at most one call
// wins, and the room uniqueness constraint covers the rest.
func (s *Service) PromoteToAccepted(id string) (bool, error) {
	res := s.DB.Model(&models.MatchProposal{}).
		Where("id = ?", id).
		Where("accepted_by_a = ? AND accepted_by_b = ?", true, true).
		Where("status IN ?", activeStatuses()).
		Update("status", models.StatusAccepted)
	return res.RowsAffected > 0, res.Error
}

// TerminateProposal moves a non-terminal proposal to declined or cancelled.
func (s *Service) TerminateProposal(id string, status models.ProposalStatus) (bool, error) {
	if status != models.StatusDeclined && status != models.StatusCancelled {
		return false, errors.New("not a terminal rejection status")
	}
	res := s.DB.Model(&models.MatchProposal{}).
		Where("id = ?", id).
		Where("status NOT IN ?", terminalStatuses()).
		Update("status", status)
	return res.RowsAffected > 0, res.Error
}

// CompleteProposal marks a proposal completed (from the room lifecycle).
// Вже термінальна пропозиція не змінюється.
func (s *Service) CompleteProposal(id string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.MatchProposal{}).
		Where("id = ?", id).
		Where("status NOT IN ?", terminalStatuses()).
		Updates(map[string]interface{}{
			"status":       models.StatusCompleted,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// SetProposalRoomID records the room reference on the proposal once.
func (s *Service) SetProposalRoomID(id, roomID string) error {
	return s.DB.Model(&models.MatchProposal{}).
		Where("id = ?", id).
		Where("room_id IS NULL").
		Update("room_id", roomID).Error
}

// ---- Conversation rooms ----

// CreateRoomIfAbsent inserts the room and its two participant rows; if a
// room for the proposal already exists (unique index on proposal_id), the
// existing room is returned instead. Safe under concurrent dual-accept.
func (s *Service) CreateRoomIfAbsent(room *models.ConversationRoom) (*models.ConversationRoom, bool, error) {
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}},
		DoNothing: true,
	}).Create(room)
	if res.Error != nil {
		return nil, false, res.Error
	}

	created := res.RowsAffected > 0
	if !created {
		// Хтось встиг раніше — читаємо наявну кімнату.
		existing, err := s.GetRoomByProposalID(room.ProposalID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	for _, uid := range []string{room.PartyA, room.PartyB} {
		p := models.RoomParticipant{RoomID: room.RoomID, UserID: uid}
		if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
			return nil, false, err
		}
	}
	return room, true, nil
}

// GetRoomByID повертає кімнату за її ID.
func (s *Service) GetRoomByID(roomID string) (*models.ConversationRoom, error) {
	var room models.ConversationRoom
	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, err
	}
	return &room, nil
}

// GetRoomByProposalID returns the room owned by the given proposal.
func (s *Service) GetRoomByProposalID(proposalID string) (*models.ConversationRoom, error) {
	var room models.ConversationRoom
	err := s.DB.Where("proposal_id = ?", proposalID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// SetFirstActivity starts the room countdown, once. Returns false when the
// countdown was already running or the room is closed.
func (s *Service) SetFirstActivity(roomID string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.ConversationRoom{}).
		Where("room_id = ?", roomID).
		Where("first_activity_at IS NULL").
		Where("is_closed = ?", false).
		Update("first_activity_at", at)
	return res.RowsAffected > 0, res.Error
}

// CloseRoom закриває кімнату. Idempotent: повторне закриття — no-op,
// і true повертається лише тому викликові, який реально закрив.
func (s *Service) CloseRoom(roomID, reason string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.ConversationRoom{}).
		Where("room_id = ?", roomID).
		Where("is_closed = ?", false).
		Updates(map[string]interface{}{
			"is_closed":    true,
			"closed_at":    at,
			"close_reason": reason,
		})
	return res.RowsAffected > 0, res.Error
}

// GetExpiredOpenRoomIDs returns open rooms whose countdown has elapsed.
// Кімнати без першої активності не мають дедлайну і сюди не потрапляють.
func (s *Service) GetExpiredOpenRoomIDs(now time.Time) ([]string, error) {
	var roomIDs []string
	err := s.DB.Model(&models.ConversationRoom{}).
		Where("is_closed = ?", false).
		Where("first_activity_at IS NOT NULL").
		Where("first_activity_at + make_interval(secs => ttl_seconds) < ?", now).
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		log.Printf("ERROR: Failed to retrieve expired RoomIDs: %v", err)
		return nil, err
	}
	return roomIDs, nil
}

// SetParticipantJoined records the participant's first join, once.
func (s *Service) SetParticipantJoined(roomID, userID string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Where("joined_at IS NULL").
		Update("joined_at", at)
	return res.RowsAffected > 0, res.Error
}

// SetParticipantCompleted marks one side's "meeting done" declaration, once.
func (s *Service) SetParticipantCompleted(roomID, userID string, at time.Time) (bool, error) {
	res := s.DB.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Where("completed_at IS NULL").
		Update("completed_at", at)
	return res.RowsAffected > 0, res.Error
}

// GetParticipants returns both participant rows for a room.
func (s *Service) GetParticipants(roomID string) ([]models.RoomParticipant, error) {
	var out []models.RoomParticipant
	err := s.DB.Where("room_id = ?", roomID).Find(&out).Error
	return out, err
}

// SaveMessage зберігає повідомлення в PostgreSQL.
func (s *Service) SaveMessage(msg *models.RoomMessage) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	return nil
}

// GetRoomMessages отримує історію повідомлень для кімнати.
func (s *Service) GetRoomMessages(roomID string) ([]models.RoomMessage, error) {
	var history []models.RoomMessage
	if err := s.DB.Where("room_id = ?", roomID).Order("created_at asc").Find(&history).Error; err != nil {
		log.Printf("ERROR: Failed to get messages for room %s: %v", roomID, err)
		return nil, err
	}
	return history, nil
}

// ---- Run ledger ----

// CreateMatchRun opens a ledger row for a starting pass.
func (s *Service) CreateMatchRun(run *models.MatchRun) error {
	return s.DB.Create(run).Error
}

// FinishMatchRun persists the final counters of a pass.
func (s *Service) FinishMatchRun(run *models.MatchRun) error {
	return s.DB.Save(run).Error
}

// LastCompletedRun returns the most recent pass that ran to the end, or
// (nil, nil) when no pass has completed yet.
func (s *Service) LastCompletedRun() (*models.MatchRun, error) {
	var run models.MatchRun
	err := s.DB.
		Where("finished_at IS NOT NULL").
		Order("finished_at desc").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ---- Redis: pass lock + event publishing ----

// TryAcquirePassLock takes the cross-process matching lock via SETNX.
func (s *Service) TryAcquirePassLock() (bool, error) {
	if s.Redis == nil {
		return true, nil // Без Redis (admin CLI) блокування немає.
	}
	return s.Redis.SetNX(s.Ctx, config.PassLockKey, "1", config.PassLockTTL).Result()
}

// ReleasePassLock releases the matching lock.
func (s *Service) ReleasePassLock() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Del(s.Ctx, config.PassLockKey).Err()
}

// PublishEvent публікує подію в Redis Pub/Sub. Best-effort.
func (s *Service) PublishEvent(ev models.Event) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	channel := "events:proposal:" + ev.ProposalID
	if ev.RoomID != "" {
		channel = "events:room:" + ev.RoomID
	}
	return s.Redis.Publish(s.Ctx, channel, string(payload)).Err()
}

func activeStatuses() []string {
	return []string{
		string(models.StatusProposed),
		string(models.StatusAcceptedByA),
		string(models.StatusAcceptedByB),
	}
}

func terminalStatuses() []string {
	return []string{
		string(models.StatusDeclined),
		string(models.StatusCancelled),
		string(models.StatusCompleted),
	}
}

func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Драйвер без TranslateError повертає сирий текст Postgres.
	return strings.Contains(err.Error(), "duplicate key")
}
