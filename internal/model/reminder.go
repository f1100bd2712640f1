package model

import "time"

// DateLayout is the calendar-date format used for acknowledgment tracking.
const DateLayout = "2006-01-02"

// TimeLayout is the 24-hour wall-clock format reminders trigger on.
const TimeLayout = "15:04"

// Reminder is a daily recurring alert owned by a single user. Time holds a
// wall-clock HH:MM with no date component; the reminder re-arms every day.
type Reminder struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               string    `gorm:"index;not null" json:"-"`
	Name                 string    `gorm:"type:text;not null" json:"name"`
	Time                 string    `gorm:"size:5;not null" json:"time"`
	IsActive             bool      `gorm:"not null" json:"is_active"`
	Contact              string    `gorm:"type:text" json:"contact,omitempty"`
	LastAcknowledgedDate *string   `gorm:"size:10" json:"last_acknowledged_date,omitempty"`
	NotifiedCount        int       `gorm:"not null;default:0" json:"notified_count"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DueAt reports whether the reminder should fire at the given local instant.
// A reminder is due when its time-of-day matches, it is active, and it has
// not already been acknowledged today.
func (r *Reminder) DueAt(now time.Time) bool {
	if !r.IsActive || r.Time != now.Format(TimeLayout) {
		return false
	}
	today := now.Format(DateLayout)
	return r.LastAcknowledgedDate == nil || *r.LastAcknowledgedDate != today
}

// UserSettings stores per-user alert preferences. Missing rows fall back to
// DefaultSettings rather than zero values.
type UserSettings struct {
	UserID               string    `gorm:"primaryKey" json:"-"`
	SoundEnabled         bool      `json:"sound_enabled"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultSettings returns the preferences applied before a user has saved any.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{
		UserID:               userID,
		SoundEnabled:         true,
		NotificationsEnabled: true,
	}
}
