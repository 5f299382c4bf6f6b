// cmd/koifarm/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"koifarm/internal/adapters/in/http/middleware"
	"koifarm/internal/infra/telemetry"
	shared "koifarm/internal/platform/di/shared"
	sfDI "koifarm/internal/platform/di/storefront"
)

// version is stamped at build time (-ldflags "-X main.version=...").
var version = "dev"

// bootHandler serves fallback until the storefront router is promoted.
// Promotion happens once; later calls are ignored.
type bootHandler struct {
	fallback http.Handler
	ready    atomic.Pointer[http.Handler]
}

func newBootHandler(fallback http.Handler) *bootHandler {
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	return &bootHandler{fallback: fallback}
}

// promote swaps in h and reports whether it took effect.
func (b *bootHandler) promote(h http.Handler) bool {
	if h == nil {
		return false
	}
	return b.ready.CompareAndSwap(nil, &h)
}

func (b *bootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h := b.ready.Load(); h != nil {
		(*h).ServeHTTP(w, r)
		return
	}
	b.fallback.ServeHTTP(w, r)
}

func healthzHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// serve starts listening immediately with /healthz only, builds the DI graph in the
// background, then promotes the storefront router.
func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger
	cfg := a.cfg

	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.SetupTracing(cfg.TraceStdout, version, nil)
	if err != nil {
		return err
	}
	shutdownMetrics, err := telemetry.SetupMetrics(ctx, telemetry.MetricsOptions{
		Version:      version,
		Stdout:       cfg.MetricsStdout,
		OTLPEndpoint: cfg.OTLPMetricsEndpoint,
	})
	if err != nil {
		_ = shutdownTracing(ctx)
		return err
	}

	boot := newBootHandler(middleware.CORS(cfg.CORSAllowedOrigins)(healthzHandler()))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(boot, "koifarm"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Lifetime management (infra/container)
	var infraHolder atomic.Pointer[shared.Infra]
	var contHolder atomic.Pointer[sfDI.Container]
	shuttingDown := make(chan struct{})

	// Graceful shutdown
	idleConnsClosed := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(c)

		select {
		case sig := <-c:
			logger.Info("[boot] received signal; shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
			logger.Info("[boot] context cancelled; shutting down")
		case <-serveErr:
		}
		close(shuttingDown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[boot] server shutdown error", zap.Error(err))
		}

		// pending cart writes go out before the stores close
		if cont := contHolder.Swap(nil); cont != nil {
			logger.Info("[boot] flushing carts...")
			if err := cont.Close(shutdownCtx); err != nil {
				logger.Warn("[boot] storefront container close error", zap.Error(err))
			}
		}
		if inf := infraHolder.Swap(nil); inf != nil {
			logger.Info("[boot] closing infra resources...")
			if err := inf.Close(); err != nil {
				logger.Warn("[boot] infra close error", zap.Error(err))
			}
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("[boot] tracing shutdown error", zap.Error(err))
		}
		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Warn("[boot] metrics shutdown error", zap.Error(err))
		}

		close(idleConnsClosed)
	}()

	// Start server NOW
	var listenErr error
	go func() {
		logger.Info("[boot] listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[boot] server error", zap.Error(err))
			listenErr = err
			serveErr <- err
		}
	}()

	// Heavy DI init in background; then swap handler to the storefront router
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		inf, err := shared.NewInfra(initCtx, cfg, logger)
		if err != nil {
			logger.Warn("[boot] shared infra init failed (serving /healthz only)", zap.Error(err))
			return
		}
		infraHolder.Store(inf)

		cont, err := sfDI.NewContainer(initCtx, inf)
		if err != nil {
			if old := infraHolder.Swap(nil); old != nil {
				_ = old.Close()
			}
			logger.Warn("[boot] storefront di init failed (serving /healthz only)", zap.Error(err))
			return
		}
		contHolder.Store(cont)

		select {
		case <-shuttingDown:
			if c := contHolder.Swap(nil); c != nil {
				_ = c.Close(context.Background())
			}
			if i := infraHolder.Swap(nil); i != nil {
				_ = i.Close()
			}
			return
		default:
		}

		if boot.promote(sfDI.Handler(cont)) {
			logger.Info("[boot] storefront router promoted")
		}
	}()

	<-idleConnsClosed
	logger.Info("[boot] server stopped")
	return listenErr
}
