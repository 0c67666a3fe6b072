package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abdullahkazmii/financial-chatbot/internal/api"
	"github.com/abdullahkazmii/financial-chatbot/internal/config"
	"github.com/abdullahkazmii/financial-chatbot/internal/core"
	"github.com/abdullahkazmii/financial-chatbot/internal/logger"
	"github.com/abdullahkazmii/financial-chatbot/internal/marketdata"
	"github.com/abdullahkazmii/financial-chatbot/internal/openai"
	"github.com/abdullahkazmii/financial-chatbot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if _, err := logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer dbStore.Close()

	// External clients
	openaiClient := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	marketClient := marketdata.NewClient(cfg.MarketDataBaseURL)
	marketService := marketdata.NewService(marketClient, cfg.MarketCacheTTL)

	// Services
	assistantService := core.NewAssistantService(openaiClient, dbStore, marketService,
		cfg.AssistantModel, cfg.TitleModel, cfg.RunPollInterval, cfg.RunTimeout)
	chatService := core.NewChatService(dbStore, assistantService)
	speechService := core.NewSpeechService(openaiClient, cfg.TTSModel, cfg.TTSVoice)

	// API handler and router
	apiHandler := api.NewAPIHandler(chatService, speechService, marketService, []byte(cfg.JWTSecret))
	router := api.NewRouter(apiHandler)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RunTimeout + 30*time.Second, // Assistant runs can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("Starting server. Press Ctrl+C to quit.")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", cfg.Addr()).Msg("Could not listen")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting gracefully")
}
