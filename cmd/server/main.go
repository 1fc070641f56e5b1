package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"homeops/backend/internal/api"
	"homeops/backend/internal/auth"
	"homeops/backend/internal/chains"
	"homeops/backend/internal/config"
	"homeops/backend/internal/integrations"
	"homeops/backend/internal/logging"
	"homeops/backend/internal/mcp"
	"homeops/backend/internal/repository"
	"homeops/backend/internal/services"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "homeops-server",
	Short: "Admin backend for the HomeOps homelab",
	Long:  "homeops-server exposes the homelab services as tools over REST and MCP,\nand chains tool calls together based on configured follow-up rules.",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	// Initialize logging
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer logger.Sync()

	logger.Infow("Configuration loaded",
		"environment", cfg.Environment,
		"addr", cfg.Server.Addr,
		"integrations", len(cfg.Integrations),
		"config_file", viper.ConfigFileUsed(),
	)

	logger.Info("Starting HomeOps admin backend")

	// Initialize database connection
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Errorw("Failed to initialize database", "error", err)
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer dbPool.Close()

	logger.Info("Database connected")

	// Initialize repository layer. The schema is idempotent, so it is applied
	// on every start.
	store := repository.NewPostgresStore(dbPool, logger)
	if err := store.Migrate(ctx); err != nil {
		logger.Errorw("Failed to apply schema", "error", err)
		log.Fatalf("Schema migration failed: %v", err)
	}

	// Attach integration clients and build the service layer
	registry := integrations.NewRegistry(logger)
	attachIntegrations(registry, cfg, logger)

	enricher := chains.NewEnricher(store, store, registry.ServiceNames(), cfg.FlowWindow(), logger)
	toolService := services.NewToolService(registry, enricher, store, logger)

	logger.Infow("Service layer initialized", "tools", len(registry.List()))

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("homeops-backend"))

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Errorw("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}

	// Register auth handlers
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	// Mount REST API handlers
	server := api.NewServer(store, store, registry, toolService, dbPool)
	server.Register(e, echo.WrapMiddleware(authz.RequireAuth))

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(registry, toolService, logger)
	mcpHandlers := http.NewServeMux()
	mcpServer.MountHTTPHandlers(mcpHandlers)
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("Server starting", "address", cfg.Server.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Errorw("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Errorw("Server shutdown error", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Errorw("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}

	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer dbPool.Close()

	store := repository.NewPostgresStore(dbPool, logger)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("Schema applied")
	return nil
}

// attachIntegrations builds a client for every enabled integration in the
// config. Unknown service keys are skipped so a stale config entry cannot
// prevent startup.
func attachIntegrations(registry *integrations.Registry, cfg *config.Config, logger *zap.SugaredLogger) {
	for _, integ := range cfg.Integrations {
		if !integ.Enabled || integ.URL == "" {
			continue
		}
		switch integ.Service {
		case "overseerr":
			integrations.NewOverseerr(integ.URL, integ.APIKey).Attach(registry)
		case "sabnzbd":
			integrations.NewSABnzbd(integ.URL, integ.APIKey).Attach(registry)
		case "jellyfin":
			integrations.NewJellyfin(integ.URL, integ.APIKey).Attach(registry)
		default:
			logger.Warnw("unknown integration in config", "service", integ.Service)
			continue
		}
		logger.Infow("integration attached", "service", integ.Service, "url", integ.URL)
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
