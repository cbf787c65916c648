package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lootlook/config"
	"lootlook/database"
	"lootlook/handlers"
	"lootlook/middleware"
	"lootlook/notifier"
	"lootlook/repository"
	"lootlook/scheduler"
	"lootlook/scraper"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment")
	}

	serverCfg := config.LoadServerConfig()
	scraperCfg := config.DefaultScraperConfig()

	if err := database.InitDatabase(serverCfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer database.CloseDatabase()

	if err := database.CreateTables(); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	repo := repository.NewBookmarkRepository()
	extractor := scraper.NewExtractor(scraperCfg)
	notify := notifier.New(config.LoadNtfyConfig())

	checker := scheduler.NewPriceChecker(extractor, notify, scraperCfg)
	checker.Start()
	defer checker.Stop()

	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)
	router.Use(middleware.RateLimiter(serverCfg.RateLimitRPS))
	handlers.NewHandlers(repo, extractor, scraperCfg).RegisterRoutes(router)

	// Screenshots are served for the frontend's bookmark cards.
	router.PathPrefix("/screenshots/").Handler(
		http.StripPrefix("/screenshots/", http.FileServer(http.Dir(scraperCfg.ScreenshotDir))))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: strings.Split(serverCfg.AllowedOrigins, ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	srv := &http.Server{
		Addr:         serverCfg.Host + ":" + serverCfg.Port,
		Handler:      corsHandler,
		ReadTimeout:  15 * time.Second,
		// Extraction endpoints render a page synchronously, so the write
		// timeout must cover a full navigation.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
}
