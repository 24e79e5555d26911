package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"pigeon/internal/agent"
	"pigeon/internal/config"
	"pigeon/internal/constants"
	"pigeon/internal/logger"
	"pigeon/internal/pipeline"
	"pigeon/pkg/bootstrap"
	"pigeon/pkg/health"
	"pigeon/pkg/logging"
	"pigeon/pkg/metrics"
	"pigeon/pkg/migrations"
	"pigeon/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	mongoClient    *mongo.Client
	registry       *agent.Registry
	service        *pipeline.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("pipeline-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.initAgents(ctx); err != nil {
		return fmt.Errorf("failed to initialize agents: %w", err)
	}

	if err := a.initService(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := a.InitBroker("pipeline-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "pipeline-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterPipelineMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	client, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = client

	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	if err := migrations.EnsureMongoCollection(ctx, client.Database(dbName)); err != nil {
		return err
	}
	return nil
}

// initAgents builds the builtin agent set and registers everything not
// named in pipeline.disabled_agents. AI-backed agents share one content
// generator, breaker-wrapped when the circuit breaker is enabled.
func (a *App) initAgents(ctx context.Context) error {
	registry := agent.NewRegistry(a.Logger)

	var generator agent.ContentGenerator = agent.NewTemplateGenerator()
	if a.Config.CircuitBreaker.Enabled {
		generator = agent.NewBreakerGenerator(generator, a.Config.CircuitBreaker)
	}

	agents := []agent.Agent{
		agent.NewSpamFilter(a.Config.Pipeline.SpamKeywords),
		agent.NewCategorizer(),
		agent.NewPrioritizer(a.Config.Pipeline.UrgentKeywords),
		agent.NewSummarizer(generator),
		agent.NewResponder(generator),
	}

	disabled := make(map[string]bool, len(a.Config.Pipeline.DisabledAgents))
	for _, id := range a.Config.Pipeline.DisabledAgents {
		disabled[id] = true
	}

	for _, ag := range agents {
		desc := ag.Descriptor()
		if disabled[desc.ID] {
			a.Logger.InfowCtx(ctx, "Agent disabled by config", "agent_id", desc.ID)
			continue
		}
		if err := ag.Initialize(ctx, nil); err != nil {
			return fmt.Errorf("agent %s initialization failed: %w", desc.ID, err)
		}
		if err := registry.Register(ag); err != nil {
			return err
		}
	}

	a.registry = registry
	return nil
}

func (a *App) initService() error {
	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	repo := pipeline.NewRepository(a.mongoClient.Database(dbName))

	agentTimeout := a.Config.Pipeline.AgentTimeout
	executor := pipeline.NewExecutor(a.registry, repo, a.Logger, agentTimeout)

	processedTopic := a.Config.Broker.Kafka.OutputTopic
	a.service = pipeline.NewService(executor, a.Producer, processedTopic, a.Logger)
	return nil
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultInboundTopic
	}
	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Consuming inbound messages", "topic", inputTopic)
		return a.Consumer.Consume(gCtx, inputTopic, a.service.Handle)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "pipeline-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down pipeline service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.registry != nil {
			if err := a.registry.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("agent registry shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, nil, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
