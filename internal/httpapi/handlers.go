package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medora-health/remindd/internal/auth"
	"github.com/medora-health/remindd/internal/scheduler"
	"github.com/medora-health/remindd/internal/store"
)

// ReminderHandler serves reminder CRUD and escalation actions against the
// caller's scheduler session.
type ReminderHandler struct {
	Mgr    *scheduler.Manager
	Logger *log.Logger
}

type reminderRequest struct {
	Name     *string `json:"name"`
	Time     *string `json:"time"`
	IsActive *bool   `json:"is_active"`
	Contact  *string `json:"contact"`
}

func (h *ReminderHandler) session(w http.ResponseWriter, r *http.Request) (*scheduler.Session, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	s, err := h.Mgr.Session(uid)
	if err != nil {
		h.Logger.Printf("httpapi: session for %s: %v", uid, err)
		http.Error(w, "could not load reminders", http.StatusInternalServerError)
		return nil, false
	}
	return s, true
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Reminders())
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == nil || req.Time == nil {
		http.Error(w, "name and time are required", http.StatusBadRequest)
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	contact := ""
	if req.Contact != nil {
		contact = *req.Contact
	}

	reminder, err := s.Add(*req.Name, *req.Time, isActive, contact)
	if err != nil {
		writeSessionError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid reminder id", http.StatusBadRequest)
		return
	}

	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	reminder, err := s.Update(id, scheduler.Changes{
		Name:     req.Name,
		Time:     req.Time,
		IsActive: req.IsActive,
		Contact:  req.Contact,
	})
	if err != nil {
		writeSessionError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid reminder id", http.StatusBadRequest)
		return
	}
	if err := s.Remove(id); err != nil {
		writeSessionError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Acknowledge confirms the currently alerting reminder. Acknowledging while
// nothing is alerting succeeds without effect.
func (h *ReminderHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Acknowledge(); err != nil {
		h.Logger.Printf("httpapi: acknowledge: %v", err)
		http.Error(w, "acknowledgment was not persisted", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Alerting returns the reminder currently being presented, or 204 when idle.
func (h *ReminderHandler) Alerting(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	reminder, alerting := s.Current()
	if !alerting {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// Logout tears down the caller's session so no timers outlive the sign-out.
func (h *ReminderHandler) Logout(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.Mgr.CloseSession(uid)
	w.WriteHeader(http.StatusNoContent)
}

// SettingsHandler serves per-user alert preferences.
type SettingsHandler struct {
	Store  *store.Store
	Logger *log.Logger
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.Store.Settings(uid))
}

func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SoundEnabled         *bool `json:"sound_enabled"`
		NotificationsEnabled *bool `json:"notifications_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	settings := h.Store.Settings(uid)
	if req.SoundEnabled != nil {
		settings.SoundEnabled = *req.SoundEnabled
	}
	if req.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *req.NotificationsEnabled
	}
	if err := h.Store.SaveSettings(settings); err != nil {
		h.Logger.Printf("httpapi: save settings: %v", err)
		http.Error(w, "settings were not saved", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func parseID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func writeSessionError(w http.ResponseWriter, logger *log.Logger, err error) {
	switch {
	case errors.Is(err, scheduler.ErrReminderNotFound):
		http.Error(w, "reminder not found", http.StatusNotFound)
	case errors.Is(err, store.ErrNoUser):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, scheduler.ErrInvalidReminder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Printf("httpapi: %v", err)
		http.Error(w, "request failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
