package httpapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medora-health/remindd/internal/auth"
	"github.com/medora-health/remindd/internal/scheduler"
	"github.com/medora-health/remindd/internal/store"
)

// NewRouter assembles the REST surface: reminder CRUD and acknowledgment on
// the per-user session, plus alert preferences.
func NewRouter(mgr *scheduler.Manager, st *store.Store, jwtSvc *auth.JWT, corsOrigins []string, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rh := &ReminderHandler{Mgr: mgr, Logger: logger}
	sh := &SettingsHandler{Store: st, Logger: logger}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", rh.List)
			r.Post("/", rh.Create)
			r.Get("/alerting", rh.Alerting)
			r.Post("/acknowledge", rh.Acknowledge)
			r.Put("/{id}", rh.Update)
			r.Delete("/{id}", rh.Delete)
		})

		r.Get("/settings", sh.Get)
		r.Put("/settings", sh.Put)

		r.Delete("/session", rh.Logout)
	})

	return r
}
