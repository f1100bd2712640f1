package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Deps collects the collaborators a Manager wires into every session.
type Deps struct {
	Store     ReminderStore
	Settings  SettingsSource
	Sounder   Sounder
	Presenter Presenter
	Notifier  Notifier

	// Clock defaults to the real wall clock.
	Clock Clock
	// Location defaults to time.Local.
	Location *time.Location
	// TickInterval defaults to 10 seconds.
	TickInterval time.Duration
	// FallbackAfter defaults to 30 seconds.
	FallbackAfter time.Duration
	Logger        *log.Logger
}

// Manager keeps one escalation Session per signed-in user and drives their
// periodic due-reminder scans from a single cron loop.
type Manager struct {
	store          ReminderStore
	settingsSource SettingsSource
	sounder        Sounder
	presenter      Presenter
	notifier       Notifier
	clock          Clock
	loc            *time.Location
	tickInterval   time.Duration
	fallbackAfter  time.Duration
	logger         *log.Logger
	cron           *cron.Cron

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager with defaults filled in for optional deps.
func NewManager(deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.TickInterval <= 0 {
		deps.TickInterval = 10 * time.Second
	}
	if deps.FallbackAfter <= 0 {
		deps.FallbackAfter = 30 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}

	return &Manager{
		store:          deps.Store,
		settingsSource: deps.Settings,
		sounder:        deps.Sounder,
		presenter:      deps.Presenter,
		notifier:       deps.Notifier,
		clock:          deps.Clock,
		loc:            deps.Location,
		tickInterval:   deps.TickInterval,
		fallbackAfter:  deps.FallbackAfter,
		logger:         deps.Logger,
		cron:           cron.New(cron.WithLocation(deps.Location)),
		sessions:       make(map[string]*Session),
	}
}

// Start registers the periodic scan and starts the scheduler loop.
func (m *Manager) Start() error {
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.tickInterval), m.TickAll)
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler loop, waits for a running scan to finish, and
// closes every session so no orphaned fallback can fire afterwards.
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Session returns the escalation session for userID, loading the user's
// persisted reminders on first access.
func (m *Manager) Session(userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrNoSessionUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	s, err := newSession(userID, m)
	if err != nil {
		return nil, err
	}
	m.sessions[userID] = s
	return s, nil
}

// CloseSession tears down the session for userID, cancelling its timers.
// Used when the user signs out.
func (m *Manager) CloseSession(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

// TickAll runs one due-reminder scan for every live session.
func (m *Manager) TickAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Tick()
	}
}
