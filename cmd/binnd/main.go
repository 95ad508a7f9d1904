// binnd is the BINN document server.
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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strand-protocol/binn/pkg/config"
	"github.com/strand-protocol/binn/pkg/logging"
	"github.com/strand-protocol/binn/pkg/observability"
	"github.com/strand-protocol/binn/pkg/server"
	"github.com/strand-protocol/binn/pkg/store"
	"github.com/strand-protocol/binn/pkg/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		addr        string
		network     string
		storeType   string
		metricsAddr string
		logLevel    string
	)
	cmd := &cobra.Command{
		Use:           "binnd",
		Short:         "BINN document server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// The environment overrides the file, flags override both.
			cfg.ApplyEnv()
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("network") {
				cfg.Server.Network = network
			}
			if flags.Changed("store") {
				cfg.Store.Type = storeType
			}
			if flags.Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger, nil)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ~/.binn/config.yaml)")
	f.StringVar(&addr, "addr", "", "listen address (default \"127.0.0.1:7420\")")
	f.StringVar(&network, "network", "", "listen network: tcp or udp (default \"tcp\")")
	f.StringVar(&storeType, "store", "", "document store backend: memory, etcd or postgres (default \"memory\")")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default \"info\")")
	return cmd
}

// run serves until ctx is cancelled, then stops gracefully. ready, if set, is
// called with the bound document and metrics addresses once both accept
// traffic; the metrics address is nil when metrics are disabled.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, ready func(serve, metrics net.Addr)) error {
	// --- Document store ---
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	srv := server.New(st,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithDecodeOptions(cfg.CodecOptions(reg)...),
		server.WithMaxConns(cfg.Server.MaxConns),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	// --- Metrics endpoint ---
	var (
		metricsSrv *http.Server
		metricsLn  net.Listener
	)
	errc := make(chan error, 2)
	if cfg.Server.MetricsAddr != "" {
		metricsLn, err = net.Listen("tcp", cfg.Server.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
		metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("metrics server: %w", err)
			}
		}()
		logger.Info("serving metrics", zap.Stringer("addr", metricsLn.Addr()))
	}

	// --- Document server ---
	var bound net.Addr
	switch cfg.Server.Network {
	case "udp":
		t, err := transport.ListenOverlay(cfg.Server.Addr)
		if err != nil {
			shutdownMetrics(metricsSrv, logger)
			return fmt.Errorf("listen: %w", err)
		}
		bound = t.LocalAddr()
		go func() { errc <- srv.ServeOverlay(t) }()
	default:
		ln, err := net.Listen(cfg.Server.Network, cfg.Server.Addr)
		if err != nil {
			shutdownMetrics(metricsSrv, logger)
			return fmt.Errorf("listen: %w", err)
		}
		bound = ln.Addr()
		go func() { errc <- srv.Serve(ln) }()
	}
	logger.Info("starting binnd",
		zap.String("network", cfg.Server.Network),
		zap.Stringer("addr", bound),
		zap.String("store", cfg.Store.Type),
		zap.Bool("strict_size", cfg.Codec.StrictSize),
	)
	if ready != nil {
		var m net.Addr
		if metricsLn != nil {
			m = metricsLn.Addr()
		}
		ready(bound, m)
	}

	// --- Graceful shutdown ---
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errc:
		logger.Error("server failed", zap.Error(serveErr))
	}
	srv.Stop()
	shutdownMetrics(metricsSrv, logger)
	logger.Info("binnd stopped")
	return serveErr
}

func shutdownMetrics(s *http.Server, logger *zap.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
}
