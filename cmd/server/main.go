package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glasscast/internal/api"
	"glasscast/internal/auth"
	"glasscast/internal/config"
	"glasscast/internal/services"
	"glasscast/internal/store"
	"glasscast/internal/widget"
	"glasscast/pkg/client"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Glasscast weather service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Favorites database
	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Local state store (recent searches, preferences, widget slot)
	local, err := store.OpenLocalStore(cfg.LocalStore.Path)
	if err != nil {
		logger.Fatal("Failed to open local store", zap.Error(err))
	}
	defer local.Close()

	// Weather provider client
	weatherClient := client.NewOpenWeatherClient(cfg.WeatherAPI.APIKey, client.ClientConfig{
		Timeout:        cfg.WeatherAPI.Timeout,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}, logger)

	// Auth session
	provider := auth.NewHTTPProvider(auth.ProviderConfig{
		BaseURL: cfg.Auth.BaseURL,
		AnonKey: cfg.Auth.AnonKey,
		Timeout: cfg.Auth.Timeout,
	}, logger)
	session := auth.NewSession(provider, cfg.Auth.RedirectURL, logger)

	// Stores
	favorites := store.NewFavoritesStore(pool, logger)
	recent := store.NewRecentSearchCache(local, cfg.RecentSearches.MaxEntries, logger)
	prefs := store.NewPreferences(local, logger)

	// Widget snapshot bridge and refresher
	bridge := widget.NewSnapshotBridge(local, logger)
	refresher, err := widget.NewRefresher(bridge, cfg.Widget.RefreshSpec, logger)
	if err != nil {
		logger.Fatal("Failed to initialize widget refresher", zap.Error(err))
	}

	// Core services
	aggregator := services.NewAggregator(weatherClient, bridge, refresher.Signal, logger)
	search := services.NewSearchOrchestrator(
		weatherClient,
		recent,
		favorites,
		aggregator,
		cfg.Search.Debounce,
		cfg.Search.MinQueryLength,
		logger,
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(session, aggregator, search, favorites, recent, prefs, bridge, logger)
	api.SetupRoutes(app, handler, logger)

	// Start widget refresher
	refresher.Start()

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop widget refresher
	refresher.Stop()

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
