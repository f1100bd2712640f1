package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medora-health/remindd/internal/alert"
	"github.com/medora-health/remindd/internal/auth"
	"github.com/medora-health/remindd/internal/config"
	"github.com/medora-health/remindd/internal/database"
	"github.com/medora-health/remindd/internal/httpapi"
	myopenai "github.com/medora-health/remindd/internal/openai"
	"github.com/medora-health/remindd/internal/scheduler"
	"github.com/medora-health/remindd/internal/store"
	"github.com/medora-health/remindd/internal/twilio"
)

func main() {
	logger := log.New(os.Stdout, "[remindd] ", log.LstdFlags|log.Lshortfile)
	cfg := config.Load()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}
	st := store.New(db)

	var twilioClient *twilio.Client
	if cfg.TwilioAccountSID != "" {
		twilioClient = twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, cfg.TwilioVoiceNumber)
	} else {
		logger.Println("twilio not configured, escalation calls will only be logged")
	}
	openAIClient := myopenai.New(cfg.OpenAIAPIKey)

	mgr := scheduler.NewManager(scheduler.Deps{
		Store:         st,
		Settings:      st,
		Sounder:       alert.NewConsoleSounder(logger),
		Presenter:     alert.NewLogPresenter(logger),
		Notifier:      alert.NewEscalator(twilioClient, openAIClient, logger),
		Location:      cfg.LocalTimezone,
		TickInterval:  cfg.TickInterval,
		FallbackAfter: cfg.FallbackAfter,
		Logger:        logger,
	})
	if err := mgr.Start(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	router := httpapi.NewRouter(mgr, st, jwtSvc, cfg.CORSAllowedOrigins, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(server, mgr, logger)
}

func waitForShutdown(server *http.Server, mgr *scheduler.Manager, logger *log.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	mgr.Stop()
}
