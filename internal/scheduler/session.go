package scheduler

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/medora-health/remindd/internal/model"
)

// ReminderStore persists a session's reminder list. The list is always
// written back whole; the store never sees partial updates.
type ReminderStore interface {
	LoadReminders(userID string) ([]model.Reminder, error)
	SaveReminders(userID string, reminders []model.Reminder) error
}

// SettingsSource reads the user's current alert preferences. It is consulted
// again on every tick and escalation, so toggles take effect on the next
// alert rather than retroactively.
type SettingsSource interface {
	Settings(userID string) model.UserSettings
}

// Sounder plays the two escalation sounds. Playback is best-effort: a failed
// Play never blocks the alert from being presented or the fallback timer
// from running.
type Sounder interface {
	PlayAlert() error
	StopAlert()
	PlayRingtone() error
	StopRingtone()
}

// Presenter shows and dismisses the blocking alert surface for a reminder.
type Presenter interface {
	ShowAlert(r model.Reminder)
	Dismiss()
}

// Notifier emits the short-lived "calling contact" notice when an alert
// times out unacknowledged. Implementations must be fire-and-forget.
type Notifier interface {
	CallingNotice(userID string, r model.Reminder)
}

// ErrReminderNotFound is returned for mutations addressing an unknown id.
var ErrReminderNotFound = errors.New("scheduler: reminder not found")

// ErrNoSessionUser is returned when a session is requested without a user.
var ErrNoSessionUser = errors.New("scheduler: no user identified")

// ErrInvalidReminder marks rejected add/update input.
var ErrInvalidReminder = errors.New("scheduler: invalid reminder")

var timePattern = regexp.MustCompile(`^(?:[01][0-9]|2[0-3]):[0-5][0-9]$`)

// Session owns the reminder list for one signed-in user and drives the
// two-phase escalation. At most one reminder alerts at a time: while one is
// presented, ticks do not promote another.
type Session struct {
	userID        string
	store         ReminderStore
	settings      SettingsSource
	sounder       Sounder
	presenter     Presenter
	notifier      Notifier
	clock         Clock
	loc           *time.Location
	fallbackAfter time.Duration
	logger        *log.Logger

	mu        sync.Mutex
	reminders []model.Reminder
	alerting  uint // id of the alerting reminder, 0 when idle
	gen       uint64
	fallback  Timer
	closed    bool
}

// newSession loads the persisted reminder list for userID. An unknown user
// starts with an empty list.
func newSession(userID string, m *Manager) (*Session, error) {
	s := &Session{
		userID:        userID,
		store:         m.store,
		settings:      m.settingsSource,
		sounder:       m.sounder,
		presenter:     m.presenter,
		notifier:      m.notifier,
		clock:         m.clock,
		loc:           m.loc,
		fallbackAfter: m.fallbackAfter,
		logger:        m.logger,
	}

	reminders, err := s.store.LoadReminders(userID)
	if err != nil {
		return nil, err
	}
	s.reminders = reminders
	return s, nil
}

// Reminders returns a copy of the session's reminder list in scan order.
func (s *Session) Reminders() []model.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reminder, len(s.reminders))
	copy(out, s.reminders)
	return out
}

// Current returns the reminder currently alerting, if any.
func (s *Session) Current() (model.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alerting == 0 {
		return model.Reminder{}, false
	}
	if r := s.find(s.alerting); r != nil {
		return *r, true
	}
	return model.Reminder{}, false
}

// Add validates and appends a reminder, then persists the full list.
func (s *Session) Add(name, timeOfDay string, isActive bool, contact string) (model.Reminder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Reminder{}, fmt.Errorf("%w: name must not be empty", ErrInvalidReminder)
	}
	if !timePattern.MatchString(timeOfDay) {
		return model.Reminder{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidReminder, timeOfDay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reminder := model.Reminder{
		UserID:    s.userID,
		Name:      name,
		Time:      timeOfDay,
		IsActive:  isActive,
		Contact:   strings.TrimSpace(contact),
		CreatedAt: s.clock.Now().In(s.loc),
	}
	s.reminders = append(s.reminders, reminder)
	if err := s.persistLocked(); err != nil {
		s.reminders = s.reminders[:len(s.reminders)-1]
		return model.Reminder{}, err
	}
	return s.reminders[len(s.reminders)-1], nil
}

// Changes describes an edit to a reminder. Nil fields are left untouched;
// the id is immutable.
type Changes struct {
	Name     *string
	Time     *string
	IsActive *bool
	Contact  *string
}

// Update applies changes to the reminder with the given id and persists.
func (s *Session) Update(id uint, changes Changes) (model.Reminder, error) {
	if changes.Name != nil && strings.TrimSpace(*changes.Name) == "" {
		return model.Reminder{}, fmt.Errorf("%w: name must not be empty", ErrInvalidReminder)
	}
	if changes.Time != nil && !timePattern.MatchString(*changes.Time) {
		return model.Reminder{}, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidReminder, *changes.Time)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return model.Reminder{}, ErrReminderNotFound
	}

	prev := *r
	if changes.Name != nil {
		r.Name = strings.TrimSpace(*changes.Name)
	}
	if changes.Time != nil {
		r.Time = *changes.Time
	}
	if changes.IsActive != nil {
		r.IsActive = *changes.IsActive
	}
	if changes.Contact != nil {
		r.Contact = strings.TrimSpace(*changes.Contact)
	}
	if err := s.persistLocked(); err != nil {
		*r = prev
		return model.Reminder{}, err
	}
	return *r, nil
}

// Remove deletes the reminder with the given id and persists. Removing the
// reminder that is currently alerting resolves the alert without recording
// an acknowledgment.
func (s *Session) Remove(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrReminderNotFound
	}

	if s.alerting == id {
		s.resolveLocked()
	}
	s.reminders = append(s.reminders[:idx], s.reminders[idx+1:]...)
	return s.persistLocked()
}

// Tick runs one due-reminder scan against the wall clock. It is a no-op
// while a reminder is already alerting or after Close.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.alerting != 0 || s.userID == "" {
		return
	}

	now := s.clock.Now().In(s.loc)
	for i := range s.reminders {
		if s.reminders[i].DueAt(now) {
			s.promoteLocked(&s.reminders[i])
			return
		}
	}
}

// promoteLocked moves the session to the alerting state for r.
func (s *Session) promoteLocked(r *model.Reminder) {
	s.alerting = r.ID
	s.gen++
	gen := s.gen

	s.presenter.ShowAlert(*r)
	if s.settings.Settings(s.userID).SoundEnabled {
		if err := s.sounder.PlayAlert(); err != nil {
			s.logger.Printf("session %s: alert sound: %v", s.userID, err)
		}
	}
	s.fallback = s.clock.AfterFunc(s.fallbackAfter, func() {
		s.fallbackExpired(gen)
	})
}

// Acknowledge resolves the current alert: the fallback is cancelled, sounds
// stop, and the reminder is marked acknowledged for today so it cannot fire
// again until tomorrow. Calling it while idle is a no-op.
func (s *Session) Acknowledge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.alerting == 0 {
		return nil
	}

	r := s.find(s.alerting)
	s.resolveLocked()
	if r == nil {
		return nil
	}

	today := s.clock.Now().In(s.loc).Format(model.DateLayout)
	r.LastAcknowledgedDate = &today
	r.NotifiedCount++

	if err := s.persistLocked(); err != nil {
		s.logger.Printf("session %s: acknowledgment not persisted: %v", s.userID, err)
		return err
	}
	return nil
}

// fallbackExpired fires when the 30-second window elapses unacknowledged.
// The acknowledgment date is deliberately left untouched so the reminder
// keeps retrying on later ticks until the user confirms it.
func (s *Session) fallbackExpired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.alerting == 0 || gen != s.gen {
		return
	}

	r := s.find(s.alerting)
	s.sounder.StopAlert()
	s.presenter.Dismiss()
	s.alerting = 0
	s.fallback = nil

	if r == nil {
		return
	}
	settings := s.settings.Settings(s.userID)
	if settings.SoundEnabled {
		if err := s.sounder.PlayRingtone(); err != nil {
			s.logger.Printf("session %s: ringtone: %v", s.userID, err)
		}
	}
	if settings.NotificationsEnabled {
		s.notifier.CallingNotice(s.userID, *r)
	}
}

// resolveLocked returns the session to idle: cancels the pending fallback,
// stops both sounds, and dismisses the alert surface.
func (s *Session) resolveLocked() {
	if s.fallback != nil {
		s.fallback.Stop()
		s.fallback = nil
	}
	s.gen++
	s.sounder.StopAlert()
	s.sounder.StopRingtone()
	s.presenter.Dismiss()
	s.alerting = 0
}

// Close cancels any pending fallback and stops sounds. A closed session
// never ticks again.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.alerting != 0 {
		s.resolveLocked()
	}
	s.closed = true
}

func (s *Session) find(id uint) *model.Reminder {
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			return &s.reminders[i]
		}
	}
	return nil
}

func (s *Session) persistLocked() error {
	return s.store.SaveReminders(s.userID, s.reminders)
}
