package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/yourorg/capture-bridge/internal/circuitbreaker"
	"github.com/yourorg/capture-bridge/internal/config"
	"github.com/yourorg/capture-bridge/internal/currency"
	"github.com/yourorg/capture-bridge/internal/factory"
	"github.com/yourorg/capture-bridge/internal/logging"
	"github.com/yourorg/capture-bridge/internal/monitor"
	"github.com/yourorg/capture-bridge/internal/policy"
	"github.com/yourorg/capture-bridge/internal/reporting"
	"github.com/yourorg/capture-bridge/internal/storage"
	"github.com/yourorg/capture-bridge/internal/token"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "capture-bridge",
		Short:   "Payment capture bridge in front of card gateways",
		Version: version,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log, os.Stderr)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			redacted := *cfg
			redacted.Gateway.APIKey = redact(cfg.Gateway.APIKey)
			redacted.Gateway.Secret = redact(cfg.Gateway.Secret)
			redacted.Storage.RedisPassword = redact(cfg.Storage.RedisPassword)
			redacted.Storage.PostgresDSN = redact(cfg.Storage.PostgresDSN)
			out, err := config.Render(&redacted)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// newServer wires the gateway binding, storage and reporting from cfg. The
// returned close function releases the store.
func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, func() error, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	var guard *policy.PaymentPolicyEnforcer
	if len(cfg.Policy.Rules) > 0 {
		if guard, err = policy.NewPaymentPolicyEnforcer(cfg.Policy.Rules); err != nil {
			store.Close()
			return nil, nil, err
		}
	}

	tokens := token.NewGenericFactory(cfg.Tokens.BaseURL)
	deps := factory.Deps{
		Currencies: currency.NewStatic(cfg.Currencies),
		Tokens:     tokens,
		Breaker:    circuitbreaker.NewCircuitBreaker(cfg.Breaker),
		Logger:     logger,
	}
	if guard != nil {
		deps.Guard = guard
	}
	orc, err := factory.New(deps, nil).Create(cfg.Gateway.Options())
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	createPayment, err := openMonitor(cfg.Schema.CreatePaymentPath, monitor.SchemaCreatePayment)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	capture, err := openMonitor(cfg.Schema.CapturePath, monitor.SchemaCapture)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	s := &server{
		orc:           orc,
		store:         store,
		tokens:        tokens,
		vault:         newCardVault(),
		journal:       reporting.NewJournal(cfg.Journal.Capacity),
		reporter:      reporting.NewRetrospectiveReporter(),
		logger:        logger.With().Str("component", "http").Logger(),
		createPayment: createPayment,
		capture:       capture,
	}
	return s, store.Close, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "redis":
		s := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		return storage.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return storage.NewMemoryStore(), nil
	}
}

func openMonitor(path, embedded string) (*monitor.ContractMonitor, error) {
	if path != "" {
		return monitor.NewContractMonitor(path)
	}
	return monitor.NewEmbeddedContractMonitor(embedded)
}

// setupTracing installs a stdout exporter as the global tracer provider.
func setupTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	gin.SetMode(cfg.Server.Mode)

	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing()
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	s, closeStore, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	httpSrv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: s.routes(cfg.Tracing.Enabled)}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.Server.GRPCAddr).Msg("grpc health listening")
		errCh <- grpcSrv.Serve(lis)
	}()
	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Str("gateway", cfg.Gateway.Type).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpSrv.Shutdown(sctx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	grpcSrv.GracefulStop()
	return err
}
