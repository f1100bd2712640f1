package store

import (
	"errors"
	"fmt"

	"github.com/medora-health/remindd/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoUser is returned when an operation is attempted without a user id.
var ErrNoUser = errors.New("store: no user identified")

// Store persists reminder lists and settings per user. The reminder list is
// written back as a whole on every mutation, mirroring the owning session's
// in-memory copy; there are no partial updates.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// LoadReminders returns the persisted reminder list for userID ordered by
// creation time, then id. An unknown or empty user yields an empty list.
func (s *Store) LoadReminders(userID string) ([]model.Reminder, error) {
	if userID == "" {
		return nil, nil
	}

	var reminders []model.Reminder
	err := s.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("load reminders for %s: %w", userID, err)
	}
	return reminders, nil
}

// SaveReminders overwrites the full persisted list for userID in one
// transaction. Reminders without an id are assigned one on insert.
func (s *Store) SaveReminders(userID string, reminders []model.Reminder) error {
	if userID == "" {
		return ErrNoUser
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Reminder{}).Error; err != nil {
			return err
		}
		for i := range reminders {
			reminders[i].UserID = userID
			if err := tx.Create(&reminders[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save reminders for %s: %w", userID, err)
	}
	return nil
}

// Settings returns the stored preferences for userID, or the defaults when
// the user has never saved any.
func (s *Store) Settings(userID string) model.UserSettings {
	var settings model.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		return model.DefaultSettings(userID)
	}
	return settings
}

// SaveSettings upserts the preferences row for userID.
func (s *Store) SaveSettings(settings model.UserSettings) error {
	if settings.UserID == "" {
		return ErrNoUser
	}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&settings).Error
	if err != nil {
		return fmt.Errorf("save settings for %s: %w", settings.UserID, err)
	}
	return nil
}
