package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // Необхідний для pq.StringArray
	"gorm.io/gorm"
)

// User представляє профіль користувача з боку рушія підбору пар.
// Профілі належать user-directory сервісу; цей модуль їх лише читає.
type User struct {
	ID          string         `gorm:"primaryKey" json:"id"` // UUID
	DisplayName string         `json:"display_name"`
	Bio         string         `gorm:"type:text" json:"bio"` // Вільний текст "про себе"
	Traits      pq.StringArray `gorm:"type:text[]" json:"traits"`
	TelegramID  string         `gorm:"uniqueIndex"` // Може бути порожнім
}

// BeforeCreate — це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID для користувача, якщо ID ще не встановлено.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Matchable reports whether the profile carries enough signal to be scored:
// a non-empty bio and at least one trait tag.
func (u *User) Matchable() bool {
	return u.Bio != "" && len(u.Traits) > 0
}
