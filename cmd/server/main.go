package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/babel/pkg/config"
	"github.com/dasmlab/babel/pkg/gateway"
	"github.com/dasmlab/babel/pkg/model"
	"github.com/dasmlab/babel/pkg/server"
	"github.com/sirupsen/logrus"
)

var (
	// Server configuration flags
	configPath = flag.String("config", "", "Path to YAML configuration file")
	port       = flag.Int("port", 0, "HTTP server port (overrides server.port)")
	grpcPort   = flag.Int("grpc-port", 0, "gRPC health server port, 0 disables it (overrides server.grpc_port)")

	// Model provider configuration
	modelEngine = flag.String("model-engine", "", "Model engine: responses or chat (overrides model.engine)")
	modelURL    = flag.String("model-url", "", "Base URL for the model API (overrides model.base_url)")

	// Logging configuration
	logLevel = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	applyFlags(cfg)

	// Set log level
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"port":         cfg.Server.Port,
		"grpc_port":    cfg.Server.GRPCPort,
		"model_engine": cfg.Model.Engine,
		"model":        cfg.Model.Name,
		"model_url":    cfg.Model.BaseURL,
		"log_level":    level.String(),
	}).Info("Starting Babel AI gateway")

	provider := newProvider(cfg, logger)

	gw := gateway.New(gateway.Options{
		Provider: provider,
		Model:    cfg.Model.Name,
		Limits:   cfg.Limits(),
		Logger:   logger,
	})
	httpServer := server.NewHTTPServer(gw, logger, cfg.Server.Port)

	errChan := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	grpcServer, healthServer := startGRPCHealth(cfg.Server.GRPCPort, provider != nil, logger, errChan)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.WithError(err).Fatal("Server error")
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if healthServer != nil {
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-ctx.Done():
			logger.Warn("Graceful shutdown timeout, forcing stop...")
			grpcServer.Stop()
		}
	}

	logger.Info("Server stopped gracefully")
}

// applyFlags overrides configuration with flags that were set explicitly.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "grpc-port":
			cfg.Server.GRPCPort = *grpcPort
		case "model-engine":
			cfg.Model.Engine = *modelEngine
		case "model-url":
			cfg.Model.BaseURL = *modelURL
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
}

// newProvider creates the model provider. Without an API key the gateway
// still starts and answers every task with a configuration error.
func newProvider(cfg *config.Config, logger *logrus.Logger) model.Provider {
	providerCfg, err := cfg.ProviderConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse model engine type")
	}
	providerCfg.Logger = logger

	provider, err := model.NewProvider(providerCfg)
	if errors.Is(err, model.ErrNotConfigured) {
		logger.Warn("OPENAI_API_KEY is not configured, AI requests will fail until it is set")
		return nil
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to create model provider")
	}

	// Verify provider is reachable
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("Checking model provider health...")
	if err := provider.CheckHealth(ctx); err != nil {
		logger.WithError(err).Warn("Model provider health check failed, but continuing anyway")
	} else {
		logger.Info("Model provider health check passed")
	}
	return provider
}

// startGRPCHealth serves grpc.health.v1 on port for orchestrator probes.
// It returns nil values when port is 0.
func startGRPCHealth(port int, ready bool, logger *logrus.Logger, errChan chan<- error) (*grpc.Server, *health.Server) {
	if port == 0 {
		return nil, nil
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"port": port,
		}).Fatal("Failed to listen on port")
	}

	s := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !ready {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	healthServer.SetServingStatus("", status)

	// Enable reflection for grpcurl/debugging
	reflection.Register(s)

	go func() {
		logger.WithFields(logrus.Fields{
			"port": port,
		}).Info("gRPC health server listening")
		if err := s.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	return s, healthServer
}
