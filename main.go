package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/hashicorp/consul/api"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"roadassist/auth"
	"roadassist/config"
	"roadassist/domain"
	"roadassist/handlers"
	"roadassist/kafka"
	"roadassist/logging"
	"roadassist/service"
)

// initTracer initializes OpenTelemetry tracing against the OTLP endpoint.
func initTracer(cfg *config.Config, logger *slog.Logger) (func(), error) {
	logger.Info("Initializing tracer", "jaeger_endpoint", cfg.JaegerEndpoint)

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.JaegerEndpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithURLPath("/v1/traces"),
	)
	if err != nil {
		logger.Error("Failed to create OTLP exporter", "error", err)
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	resources := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter, sdktrace.WithExportTimeout(5*time.Second))),
		sdktrace.WithResource(resources),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func() {
		logger.Info("Shutting down tracer provider")
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("Error shutting down tracer provider", "error", err)
		}
	}, nil
}

func connectToMongoDB(uri string, retries int, delay time.Duration, logger *slog.Logger) (*mongo.Client, error) {
	var client *mongo.Client
	var err error

	for i := range retries {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err == nil {
			err = client.Ping(ctx, nil)
			if err == nil {
				cancel()
				logger.Info("Connected to MongoDB", "uri", uri)
				return client, nil
			}
		}
		cancel()
		logger.Error("Failed to connect to MongoDB", "attempt", i+1, "max_attempts", retries, "error", err)
		if i < retries-1 {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("failed to connect to MongoDB after %d retries: %w", retries, err)
}

func registerWithConsul(cfg *config.Config, logger *slog.Logger) error {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.ConsulAddress
	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return fmt.Errorf("failed to create Consul client: %w", err)
	}

	port, err := strconv.Atoi(cfg.ServicePort)
	if err != nil {
		return fmt.Errorf("invalid service port %q: %w", cfg.ServicePort, err)
	}
	registration := &api.AgentServiceRegistration{
		ID:      cfg.ServiceName + "-" + cfg.ServicePort,
		Name:    cfg.ServiceName,
		Port:    port,
		Address: cfg.ServiceName,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", cfg.ServiceName, cfg.ServicePort),
			Interval: "10s",
			Timeout:  "5s",
		},
	}
	if err := consulClient.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register with Consul: %w", err)
	}
	logger.Info("Registered with Consul", "service", cfg.ServiceName, "port", cfg.ServicePort)
	return nil
}

func main() {
	cfg := config.Load()

	logger, logFile, err := logging.NewLogger(cfg.LogFilePath)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	slog.SetDefault(logger)

	logger.Info("Starting roadassist", "app", cfg.ServiceName, "timestamp", time.Now().Unix())

	shutdownTracer, err := initTracer(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer()

	client, err := connectToMongoDB(cfg.MongoURI, 5, 2*time.Second, logger)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	repo := domain.NewMongoRepository(client, cfg.MongoDatabase)
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repo.EnsureIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}
	cancelIndexes()

	if err := registerWithConsul(cfg, logger); err != nil {
		logger.Error("Consul registration failed", "error", err)
		os.Exit(1)
	}

	svc := service.NewService(repo, logger)
	handler := handlers.NewHandler(svc, logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer, err := kafka.NewProducer(cfg.KafkaBootstrapServers, cfg.SchemaRegistryURL, cfg.EventTopic, cfg.EventSchemaPath, logger)
	if err != nil {
		logger.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	processor := kafka.NewOutboxProcessor(repo, producer, logger, cfg.OutboxInterval)
	go func() {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Outbox processor stopped", "error", err)
		}
	}()

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(cfg.ServiceName))

	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Public: browsing a mechanic's reviews needs no account.
	r.HandleFunc("/api/mechanics/{mechanicID}/reviews", handler.MechanicReviews).Methods("GET")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(verifier.Middleware)

	// Request lifecycle
	apiRouter.HandleFunc("/requests", auth.RequireRole(auth.RoleCustomer, handler.CreateRequest)).Methods("POST")
	apiRouter.HandleFunc("/requests/nearby", auth.RequireRole(auth.RoleMechanic, handler.NearbyRequests)).Methods("GET")
	apiRouter.HandleFunc("/requests/customer", auth.RequireRole(auth.RoleCustomer, handler.CustomerRequests)).Methods("GET")
	apiRouter.HandleFunc("/requests/mechanic", auth.RequireRole(auth.RoleMechanic, handler.MechanicRequests)).Methods("GET")
	apiRouter.HandleFunc("/requests/{requestID}", handler.GetRequest).Methods("GET")
	apiRouter.HandleFunc("/requests/{requestID}/accept", auth.RequireRole(auth.RoleMechanic, handler.AcceptRequest)).Methods("PUT")
	apiRouter.HandleFunc("/requests/{requestID}/complete", auth.RequireRole(auth.RoleMechanic, handler.CompleteRequest)).Methods("PUT")
	apiRouter.HandleFunc("/requests/{requestID}/cancel", handler.CancelRequest).Methods("PUT")

	// Mechanic discovery and profile
	apiRouter.HandleFunc("/mechanics/nearby", handler.NearbyMechanics).Methods("GET")
	apiRouter.HandleFunc("/mechanics/search", handler.SearchMechanics).Methods("GET")
	apiRouter.HandleFunc("/mechanics/profile", auth.RequireRole(auth.RoleMechanic, handler.MechanicProfile)).Methods("GET")
	apiRouter.HandleFunc("/mechanics/location", auth.RequireRole(auth.RoleMechanic, handler.UpdateLocation)).Methods("PUT")
	apiRouter.HandleFunc("/mechanics/status", auth.RequireRole(auth.RoleMechanic, handler.UpdateStatus)).Methods("PUT")
	apiRouter.HandleFunc("/mechanics/{mechanicID}/review", auth.RequireRole(auth.RoleCustomer, handler.AddReview)).Methods("POST")

	srv := &http.Server{
		Addr:    ":" + cfg.ServicePort,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting roadassist", "port", cfg.ServicePort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
