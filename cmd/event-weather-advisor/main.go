package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/event-weather-advisor/internal/api/http"
	"github.com/i474232898/event-weather-advisor/internal/cache"
	"github.com/i474232898/event-weather-advisor/internal/calendar"
	"github.com/i474232898/event-weather-advisor/internal/config"
	"github.com/i474232898/event-weather-advisor/internal/location"
	"github.com/i474232898/event-weather-advisor/internal/recommend"
	"github.com/i474232898/event-weather-advisor/internal/remote"
	"github.com/i474232898/event-weather-advisor/internal/scheduler"
	"github.com/i474232898/event-weather-advisor/internal/store"
	"github.com/i474232898/event-weather-advisor/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: 15 * time.Second,
	}

	// Badger backs both the recommendation store and the TTL cache.
	opts := badger.DefaultOptions(cfg.DataDir).WithLogger(nil)
	if cfg.DataDir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("failed to open data store: %v", err)
	}
	defer db.Close()

	recStore := store.NewBadgerStore(db)
	ttlCache := cache.NewBadgerCache(db)

	backoff := remote.DefaultBackoff()

	var backend location.Backend
	if cfg.GeocoderBackend == "google" {
		backend = location.NewGoogleBackend(cfg.GoogleAPIKey, backoff)
	} else {
		backend = location.NewNominatimBackend(httpClient, backoff)
	}
	resolver := location.NewResolver(backend, ttlCache, 0)

	weatherConn := weather.NewConnector(httpClient, cfg.OpenWeatherAPIKey, ttlCache, backoff)

	var providers []calendar.Provider
	if cfg.GoogleCalendarToken != "" {
		tokens := calendar.NewStaticTokenSource(cfg.GoogleCalendarToken)
		providers = append(providers, calendar.NewGoogleProvider(httpClient, tokens, backoff))
	}
	if cfg.MicrosoftGraphToken != "" {
		tokens := calendar.NewStaticTokenSource(cfg.MicrosoftGraphToken)
		providers = append(providers, calendar.NewMicrosoftProvider(resty.NewWithClient(httpClient), tokens, backoff))
	}
	if len(providers) == 0 {
		log.Println("INFO: no calendar providers configured; event endpoints will reject requests")
	}
	calendarConn := calendar.NewConnector(ttlCache, providers...)

	generator := recommend.NewChatGenerator(httpClient, recommend.GeneratorConfig{
		BaseURL:           cfg.OpenAIBaseURL,
		APIKey:            cfg.OpenAIAPIKey,
		Model:             cfg.OpenAIModel,
		MaxTokens:         cfg.OpenAIMaxTokens,
		Temperature:       cfg.OpenAITemperature,
		RequestsPerMinute: cfg.OpenAIRateLimit,
	}, backoff)

	pipeline := recommend.NewPipeline(calendarConn, resolver, weatherConn, generator, recStore, ttlCache, recommend.PipelineConfig{
		Lookahead: cfg.Lookahead,
		Freshness: cfg.Freshness,
		Units:     cfg.Units,
	})

	sched := scheduler.New(cfg.Users, cfg.RunInterval, pipeline)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webhooks := httpapi.NewWebhookQueue(calendarConn, 64)
	webhooks.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "event-weather-advisor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Recommendations: pipeline,
		Store:           recStore,
		Events:          calendarConn,
		Weather:         weatherConn,
		Locations:       resolver,
		Webhooks:        webhooks,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
