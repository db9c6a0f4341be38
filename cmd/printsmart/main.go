package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/premsagar786/printsmart/internal/admin"
	"github.com/premsagar786/printsmart/internal/api/handlers"
	"github.com/premsagar786/printsmart/internal/api/middleware"
	"github.com/premsagar786/printsmart/internal/config"
	"github.com/premsagar786/printsmart/internal/docs"
	"github.com/premsagar786/printsmart/internal/engine"
	"github.com/premsagar786/printsmart/internal/notify"
	"github.com/premsagar786/printsmart/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	library, err := docs.NewLibrary(cfg.Documents.Path)
	if err != nil {
		log.Fatalf("failed to open document library: %v", err)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	var webhookNotifier *notify.WebhookNotifier
	if cfg.Webhook.URL != "" {
		webhookNotifier = notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:     cfg.Webhook.URL,
			Secret:  cfg.Webhook.Secret,
			Timeout: cfg.Webhook.Timeout,
		})
		webhookNotifier.Start()
		defer webhookNotifier.Stop()
		notifier = webhookNotifier
	}

	directory := admin.NewDirectory(st)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	eng := engine.New(st, notifier, rng, engine.Config{
		TickInterval: cfg.Queue.TickInterval,
	})
	eng.Start()
	defer eng.Stop()

	auth, err := middleware.NewAuthMiddleware(st, directory)
	if err != nil {
		log.Fatalf("failed to initialize auth: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	handlers.RegisterRoutes(router, auth,
		handlers.NewJobHandler(eng, library),
		handlers.NewSettingsHandler(eng),
		handlers.NewUserHandler(directory),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("printsmart listening on :%d", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
