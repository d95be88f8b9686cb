package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thehub/storefront/internal/auth"
	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/cart"
	"github.com/thehub/storefront/internal/config"
	"github.com/thehub/storefront/internal/events"
	"github.com/thehub/storefront/internal/httpserver"
	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/logging"
	"github.com/thehub/storefront/internal/session"
	"github.com/thehub/storefront/internal/state"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if configuration.CORE_API_URL == "" {
		log.Fatal("CORE_API_URL is required")
	}

	logger := logging.New(configuration.LOG_LEVEL)

	store, err := state.Open(configuration.STATE_PATH)
	if err != nil {
		log.Fatalf("state store error: %v", err)
	}
	tokens := session.NewTokenStore(store)

	coreClient := httpx.NewClient(configuration.CORE_API_URL, tokens)
	authClient := coreClient
	if configuration.AUTH_API_URL != configuration.CORE_API_URL {
		authClient = httpx.NewClient(configuration.AUTH_API_URL, tokens)
	}

	var producer *events.Producer
	if brokers := configuration.KafkaBrokers(); len(brokers) > 0 {
		producer = events.NewProducer(brokers)
	}

	authCtrl := auth.NewController(backend.NewAuthAPI(authClient), tokens, auth.Options{
		Logger: logger,
		Navigate: func(path string) {
			logger.Info("navigation requested", "path", path)
		},
	})
	cartCtrl := cart.NewController(backend.NewCartAPI(coreClient), store, authCtrl, tokens, logger)

	ctx := context.Background()
	authCtrl.Start(ctx)
	cartCtrl.Boot(ctx, authCtrl.Status())

	e := echo.New()
	e.HideBanner = true

	deps := httpserver.Deps{
		Auth:     authCtrl,
		Cart:     cartCtrl,
		Products: backend.NewProductsAPI(coreClient),
		Users:    backend.NewUsersAPI(coreClient),
		Events:   producer,
		Log:      logger,
	}
	if err := httpserver.Register(e, &deps); err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Addr:         configuration.LISTEN_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", configuration.LISTEN_ADDR)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	cartCtrl.Close()
	authCtrl.Close()

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	if err := store.Close(); err != nil {
		log.Printf("state close error: %v", err)
	}

	logger.Info("shutdown complete")
}
