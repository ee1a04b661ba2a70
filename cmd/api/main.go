package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/bizmatters/agent-builder/code-editor/internal/auth"
	"github.com/bizmatters/agent-builder/code-editor/internal/config"
	"github.com/bizmatters/agent-builder/code-editor/internal/gateway"
	"github.com/bizmatters/agent-builder/code-editor/internal/metrics"
	"github.com/bizmatters/agent-builder/code-editor/internal/orchestration"
	"github.com/bizmatters/agent-builder/code-editor/internal/pipeline"
	"github.com/bizmatters/agent-builder/code-editor/internal/provider"
	"github.com/bizmatters/agent-builder/code-editor/internal/sandbox"

	_ "github.com/bizmatters/agent-builder/code-editor/docs" // swagger docs
)

// @title Code Editor API
// @version 1.0
// @description Session API for an AI-assisted code editor
// @description
// @description Upload a project, chat with a model provider to request changes, review and apply them,
// @description and preview the result with a simulated pipeline or a sandboxed dev server.

// @contact.name API Support
// @contact.email support@bizmatters.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "code-editor",
		Short:         "Run the code editor session API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	config.InitFlags(cmd)
	return cmd
}

func run(cfg *config.Config) error {
	// Initialize OpenTelemetry
	tp, err := initTracer()
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	// Proposal audit trail: Postgres when configured, memory otherwise
	var pool *pgxpool.Pool
	var proposals orchestration.ProposalStore
	if cfg.Database.URL != "" {
		pool, err = connectDatabase(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := orchestration.NewPostgresProposalStore(pool)
		if err := store.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("failed to prepare proposal schema: %w", err)
		}
		proposals = store
	} else {
		log.Println(`{"level":"info","message":"No database configured, keeping proposals in memory"}`)
		proposals = orchestration.NewMemoryProposalStore()
	}

	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	turnMetrics, err := metrics.NewTurnMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	gatewayOpts := []provider.Option{provider.WithTimeout(cfg.Provider.Timeout)}
	for id, baseURL := range cfg.Provider.BaseURLs {
		gatewayOpts = append(gatewayOpts, provider.WithBaseURL(id, baseURL))
	}
	providers := provider.NewGateway(gatewayOpts...)

	runtimePipeline := pipeline.NewRuntime(pipeline.RuntimeConfig{
		WorkDir:        cfg.Pipeline.WorkDir,
		InstallCommand: cfg.Pipeline.InstallCommand,
		DevCommand:     cfg.Pipeline.DevCommand,
		DevServerURL:   cfg.Pipeline.DevServerURL,
		Runner:         sandbox.ExecRunner{},
	})
	defer runtimePipeline.Close()

	sessions := orchestration.NewService(orchestration.Config{
		DefaultProvider: cfg.Provider.Default,
		DefaultModel:    cfg.Provider.Model,
		MaxFiles:        cfg.Context.MaxFiles,
		MaxChars:        cfg.Context.MaxChars,
		HistoryMessages: cfg.Context.HistoryMessages,
		ChangeDelay:     cfg.Applier.ChangeDelay,
		IdleTimeout:     cfg.Session.IdleTimeout,
	}, providers, proposals, turnMetrics,
		pipeline.NewSimulated(cfg.Pipeline.Steps, cfg.Pipeline.StepDelay),
		runtimePipeline,
	)
	defer sessions.Shutdown()

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	sessions.StartJanitor(janitorCtx, cfg.Session.JanitorInterval)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(structuredLoggingMiddleware())

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		if pool != nil {
			if err := pool.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not ready",
					"error":  "database connection failed",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Swagger documentation (public)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	gateway.RegisterRoutes(api,
		gateway.NewHandler(sessions, jwtManager, cfg.Auth.TokenTTL),
		gateway.NewSessionStream(sessions, cfg.Server.AllowedOrigins),
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf(`{"level":"info","message":"Starting code editor API server","addr":"%s"}`, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Println(`{"level":"info","message":"Shutting down server"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println(`{"level":"info","message":"Server exited"}`)
	return nil
}

// connectDatabase opens the pool, retrying while the database comes up
func connectDatabase(dbURL string) (*pgxpool.Pool, error) {
	log.Println(`{"level":"info","message":"Connecting to PostgreSQL database"}`)

	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(context.Background(), dbURL)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				break
			}
			pool.Close()
		}
		log.Printf(`{"level":"warn","message":"Waiting for database","attempt":%d,"max_attempts":10,"error":"%v"}`, i+1, err)
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	log.Println(`{"level":"info","message":"Connected to PostgreSQL database"}`)
	return pool, nil
}

// initTracer initializes OpenTelemetry tracing
func initTracer() (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// structuredLoggingMiddleware provides structured JSON logging for all requests
func structuredLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		logEntry := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		// Set by RequireAuth
		if sessionID := c.GetString(auth.SessionIDKey); sessionID != "" {
			logEntry["session_id"] = sessionID
		}

		if len(c.Errors) > 0 {
			logEntry["errors"] = c.Errors.String()
		}

		logJSON, _ := json.Marshal(logEntry)
		log.Println(string(logJSON))
	}
}
