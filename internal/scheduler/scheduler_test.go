package scheduler

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medora-health/remindd/internal/model"
	"github.com/medora-health/remindd/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeClock drives Now and delayed callbacks manually so no test sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and fires any timers that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// fakeSounder records play/stop calls and can simulate autoplay denial.
type fakeSounder struct {
	mu        sync.Mutex
	events    []string
	playErr   error
	alertOn   bool
	ringOn    bool
	ringCount int
}

func (s *fakeSounder) PlayAlert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "play-alert")
	if s.playErr != nil {
		return s.playErr
	}
	s.alertOn = true
	return nil
}

func (s *fakeSounder) StopAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "stop-alert")
	s.alertOn = false
}

func (s *fakeSounder) PlayRingtone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "play-ringtone")
	s.ringOn = true
	s.ringCount++
	return nil
}

func (s *fakeSounder) StopRingtone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "stop-ringtone")
	s.ringOn = false
}

func (s *fakeSounder) ringtones() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ringCount
}

func (s *fakeSounder) alertPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertOn
}

func (s *fakeSounder) saw(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

type fakePresenter struct {
	mu      sync.Mutex
	shown   []string
	visible bool
}

func (p *fakePresenter) ShowAlert(r model.Reminder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, r.Name)
	p.visible = true
}

func (p *fakePresenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = false
}

func (p *fakePresenter) shownNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.shown...)
}

func (p *fakePresenter) isVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (n *fakeNotifier) CallingNotice(userID string, r model.Reminder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, r.Name)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

// fakeSettings lets tests flip the two toggles directly.
type fakeSettings struct {
	mu            sync.Mutex
	sound         bool
	notifications bool
}

func (f *fakeSettings) Settings(userID string) model.UserSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.UserSettings{UserID: userID, SoundEnabled: f.sound, NotificationsEnabled: f.notifications}
}

// countingStore wraps the real store to observe persistence writes.
type countingStore struct {
	inner *store.Store
	mu    sync.Mutex
	saves int
}

func (c *countingStore) LoadReminders(userID string) ([]model.Reminder, error) {
	return c.inner.LoadReminders(userID)
}

func (c *countingStore) SaveReminders(userID string, reminders []model.Reminder) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.inner.SaveReminders(userID, reminders)
}

func (c *countingStore) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

type fixture struct {
	clock     *fakeClock
	sounder   *fakeSounder
	presenter *fakePresenter
	notifier  *fakeNotifier
	settings  *fakeSettings
	store     *countingStore
	mgr       *Manager
	session   *Session
}

// newFixture starts the clock one minute before 08:00 on 2024-01-01 UTC
// with an in-memory database.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_fk=1", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	if err := db.AutoMigrate(&model.Reminder{}, &model.UserSettings{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	f := &fixture{
		clock:     newFakeClock(time.Date(2024, 1, 1, 7, 59, 0, 0, time.UTC)),
		sounder:   &fakeSounder{},
		presenter: &fakePresenter{},
		notifier:  &fakeNotifier{},
		settings:  &fakeSettings{sound: true, notifications: true},
		store:     &countingStore{inner: store.New(db)},
	}
	f.mgr = NewManager(Deps{
		Store:         f.store,
		Settings:      f.settings,
		Sounder:       f.sounder,
		Presenter:     f.presenter,
		Notifier:      f.notifier,
		Clock:         f.clock,
		Location:      time.UTC,
		FallbackAfter: 30 * time.Second,
		Logger:        log.New(io.Discard, "", 0),
	})

	session, err := f.mgr.Session("user")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	f.session = session
	return f
}

func (f *fixture) addReminder(t *testing.T, name, timeOfDay string, active bool) model.Reminder {
	t.Helper()
	r, err := f.session.Add(name, timeOfDay, active, "+15550100")
	if err != nil {
		t.Fatalf("add reminder %q: %v", name, err)
	}
	return r
}

func TestTickPromotesDueReminder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()

	current, alerting := f.session.Current()
	if !alerting || current.Name != "Meds" {
		t.Fatalf("expected Meds alerting, got %+v alerting=%v", current, alerting)
	}
	if !f.sounder.alertPlaying() {
		t.Fatalf("expected alert sound playing")
	}
	if got := f.presenter.shownNames(); len(got) != 1 || got[0] != "Meds" {
		t.Fatalf("expected one presented alert, got %v", got)
	}
	if !f.presenter.isVisible() {
		t.Fatalf("alert surface not visible while alerting")
	}
}

func TestTickBeforeDueTimeDoesNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)

	f.session.Tick() // still 07:59

	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("reminder promoted before its time")
	}
}

func TestAcknowledgeResolvesAndSuppressesForDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	if err := f.session.Acknowledge(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("still alerting after acknowledgment")
	}
	if f.sounder.alertPlaying() {
		t.Fatalf("alert sound still playing after acknowledgment")
	}
	if f.presenter.isVisible() {
		t.Fatalf("alert surface still visible after acknowledgment")
	}

	reminders := f.session.Reminders()
	if len(reminders) != 1 {
		t.Fatalf("expected one reminder, got %d", len(reminders))
	}
	r := reminders[0]
	if r.LastAcknowledgedDate == nil || *r.LastAcknowledgedDate != "2024-01-01" {
		t.Fatalf("expected acknowledgment date 2024-01-01, got %v", r.LastAcknowledgedDate)
	}
	if r.NotifiedCount != 1 {
		t.Fatalf("expected notified count 1, got %d", r.NotifiedCount)
	}

	// Same minute, repeated ticks: suppressed for the rest of the day.
	for i := 0; i < 3; i++ {
		f.clock.Advance(10 * time.Second)
		f.session.Tick()
	}
	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("reminder re-alerted on the day it was acknowledged")
	}

	// Next day at the same time it fires again.
	f.clock.Advance(24 * time.Hour)
	f.session.Tick()
	if _, alerting := f.session.Current(); !alerting {
		t.Fatalf("reminder did not fire the following day")
	}
}

func TestAcknowledgeWhileIdleIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)
	saves := f.store.saveCount()

	if err := f.session.Acknowledge(); err != nil {
		t.Fatalf("acknowledge while idle: %v", err)
	}
	if got := f.store.saveCount(); got != saves {
		t.Fatalf("idle acknowledge wrote to the store: %d -> %d saves", saves, got)
	}
	if r := f.session.Reminders()[0]; r.LastAcknowledgedDate != nil || r.NotifiedCount != 0 {
		t.Fatalf("idle acknowledge mutated reminder: %+v", r)
	}
}

func TestFallbackTimeoutEscalates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	f.clock.Advance(30 * time.Second)

	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("still alerting after fallback timeout")
	}
	if f.sounder.ringtones() != 1 {
		t.Fatalf("expected one ringtone, got %d", f.sounder.ringtones())
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one calling notice, got %d", f.notifier.count())
	}
	if r := f.session.Reminders()[0]; r.LastAcknowledgedDate != nil {
		t.Fatalf("fallback timeout must not acknowledge, got date %v", r.LastAcknowledgedDate)
	}

	// Not acknowledged, so the same reminder retries within the same minute.
	f.clock.Advance(10 * time.Second)
	f.session.Tick()
	if current, alerting := f.session.Current(); !alerting || current.Name != "Meds" {
		t.Fatalf("unacknowledged reminder did not retry")
	}
}

func TestAcknowledgeCancelsFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	f.clock.Advance(29 * time.Second)
	if err := f.session.Acknowledge(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	f.clock.Advance(10 * time.Minute)

	if f.sounder.ringtones() != 0 {
		t.Fatalf("ringtone played after acknowledgment")
	}
	if f.notifier.count() != 0 {
		t.Fatalf("calling notice sent after acknowledgment")
	}
}

func TestOnlyOneReminderAlertsAtATime(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "First", "08:00", true)
	f.clock.Advance(time.Second)
	f.addReminder(t, "Second", "08:00", true)

	f.clock.Advance(time.Minute - time.Second)
	f.session.Tick()

	current, alerting := f.session.Current()
	if !alerting || current.Name != "First" {
		t.Fatalf("expected First alerting, got %+v", current)
	}

	// A tick while alerting must not promote the second reminder or restart sounds.
	f.clock.Advance(10 * time.Second)
	f.session.Tick()
	if got := f.presenter.shownNames(); len(got) != 1 {
		t.Fatalf("second alert presented while first still active: %v", got)
	}

	if err := f.session.Acknowledge(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	f.clock.Advance(10 * time.Second)
	f.session.Tick()

	current, alerting = f.session.Current()
	if !alerting || current.Name != "Second" {
		t.Fatalf("expected Second alerting after First resolved, got %+v alerting=%v", current, alerting)
	}
}

func TestInactiveReminderNeverAlerts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Paused", "08:00", false)

	f.clock.Advance(time.Minute)
	for i := 0; i < 6; i++ {
		f.session.Tick()
		f.clock.Advance(10 * time.Second)
	}

	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("inactive reminder alerted")
	}
}

func TestPlaybackDenialDoesNotBlockAlert(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sounder.playErr = fmt.Errorf("autoplay blocked")
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()

	if _, alerting := f.session.Current(); !alerting {
		t.Fatalf("denied playback prevented the alert")
	}
	f.clock.Advance(30 * time.Second)
	if f.notifier.count() != 1 {
		t.Fatalf("denied playback prevented the fallback timer")
	}
}

func TestSoundDisabledSkipsPlayback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.settings.sound = false
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	f.clock.Advance(30 * time.Second)

	if f.sounder.saw("play-alert") || f.sounder.saw("play-ringtone") {
		t.Fatalf("sounds played with sound disabled: %v", f.sounder.events)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("notice suppressed although notifications are enabled")
	}
}

func TestNotificationsDisabledSkipsNotice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.settings.notifications = false
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	f.clock.Advance(30 * time.Second)

	if f.notifier.count() != 0 {
		t.Fatalf("calling notice sent with notifications disabled")
	}
	if f.sounder.ringtones() != 1 {
		t.Fatalf("ringtone suppressed although sound is enabled")
	}
}

func TestCloseCancelsPendingFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	f.mgr.CloseSession("user")
	f.clock.Advance(time.Minute)

	if f.notifier.count() != 0 || f.sounder.ringtones() != 0 {
		t.Fatalf("fallback fired after session close")
	}
	f.session.Tick()
	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("closed session promoted a reminder")
	}
}

func TestRemoveAlertingReminderResolvesWithoutAck(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r := f.addReminder(t, "Meds", "08:00", true)

	f.clock.Advance(time.Minute)
	f.session.Tick()
	if err := f.session.Remove(r.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	f.clock.Advance(time.Minute)

	if _, alerting := f.session.Current(); alerting {
		t.Fatalf("still alerting after removal")
	}
	if f.notifier.count() != 0 {
		t.Fatalf("fallback fired for a removed reminder")
	}
	if got := len(f.session.Reminders()); got != 0 {
		t.Fatalf("expected empty list, got %d reminders", got)
	}
}

func TestUpdateValidatesAndPersists(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r := f.addReminder(t, "Meds", "08:00", true)

	badTime := "25:99"
	if _, err := f.session.Update(r.ID, Changes{Time: &badTime}); err == nil {
		t.Fatalf("expected error for invalid time")
	}

	newName := "Evening meds"
	newTime := "20:30"
	updated, err := f.session.Update(r.ID, Changes{Name: &newName, Time: &newTime})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Evening meds" || updated.Time != "20:30" || updated.ID != r.ID {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if _, err := f.session.Update(999, Changes{Name: &newName}); err != ErrReminderNotFound {
		t.Fatalf("expected ErrReminderNotFound, got %v", err)
	}
}

func TestSessionSurvivesReload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addReminder(t, "Meds", "08:00", true)
	f.clock.Advance(time.Minute)
	f.session.Tick()
	if err := f.session.Acknowledge(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	// A fresh session for the same user sees the acknowledged state.
	f.mgr.CloseSession("user")
	reloaded, err := f.mgr.Session("user")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	reminders := reloaded.Reminders()
	if len(reminders) != 1 {
		t.Fatalf("expected one reminder after reload, got %d", len(reminders))
	}
	if reminders[0].NotifiedCount != 1 || reminders[0].LastAcknowledgedDate == nil {
		t.Fatalf("acknowledged state lost across reload: %+v", reminders[0])
	}
}

func TestManagerRejectsEmptyUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.mgr.Session(""); err != ErrNoSessionUser {
		t.Fatalf("expected ErrNoSessionUser, got %v", err)
	}
}
