// orgtree, departman hiyerarşisi servisinin çalıştırıcısıdır.
//
// Kullanım:
//
//	orgtree -migrate                 # bekleyen migration'ları uygula
//	orgtree -rebuild-ancestry        # closure tablosunu yeniden kur
//	orgtree -metrics-addr :9090      # /metrics uç noktasını sun
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/biyonik/orgtree-api/internal/app"
	"github.com/biyonik/orgtree-api/internal/config"
	"github.com/biyonik/orgtree-api/pkg/logger"
)

func main() {
	var (
		migrate     = flag.Bool("migrate", false, "Apply pending schema migrations and exit")
		rebuild     = flag.Bool("rebuild-ancestry", false, "Rebuild the department ancestry table and exit")
		metricsAddr = flag.String("metrics-addr", ":9090", "Address of the Prometheus metrics endpoint")
	)
	flag.Parse()

	boot := logger.New(logger.Options{Level: os.Getenv("LOG_LEVEL"), Service: "orgtree"})
	cfg, err := config.LoadConfig(boot)
	if err != nil {
		boot.Fatal().Err(err).Msg("geçersiz yapılandırma")
	}
	log := logger.New(logger.Options{Level: cfg.Log.Level, Pretty: cfg.IsDevelopment(), Service: cfg.App.Name})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log, *migrate, *rebuild, *metricsAddr)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("uygulama hatası")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, migrate, rebuild bool, metricsAddr string) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		return a.Migrate(ctx)
	}
	if rebuild {
		written, err := a.RebuildAncestry(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("rows", written).Msg("ancestry yeniden kuruldu")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", metricsAddr).Msg("metrics uç noktası dinleniyor")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("kapanıyor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
