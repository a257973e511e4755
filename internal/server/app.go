// Package server assembles the sync server: storage, session key
// custody, the reconcile service, background enrichment and the HTTP
// surface, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/server/archive"
	"github.com/fieldstock/shiftledger/internal/server/config"
	"github.com/fieldstock/shiftledger/internal/server/enrich"
	"github.com/fieldstock/shiftledger/internal/server/httpapi"
	"github.com/fieldstock/shiftledger/internal/server/keystore"
	"github.com/fieldstock/shiftledger/internal/server/reconcile"
	"github.com/fieldstock/shiftledger/internal/server/store"
)

type App struct {
	config     *config.Config
	log        logging.Logger
	stores     *store.PostgresManager
	enrichment *enrich.Queue
	httpServer *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	// NewPostgresManager applies pending migrations itself.
	stores, err := store.NewPostgresManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}

	keys := keystore.New(stores.ShiftKeys(stores.Conn()), cfg.KeystorePassphrase)

	opts := []reconcile.Option{}

	var queue *enrich.Queue
	if cfg.GeocoderAPIKey != "" {
		geo := enrich.NewHTTPGeocoder(cfg.GeocoderEndpoint, cfg.GeocoderAPIKey)
		queue = enrich.NewQueue(geo, stores.Shifts(stores.Conn()), log)
		opts = append(opts, reconcile.WithEnricher(queue))
	} else {
		log.Warn(ctx, "geocoder api key not set, shift sites stay unresolved")
	}

	archiver, err := archive.NewS3Archiver(ctx, archive.S3Options{
		Region:       cfg.S3Region,
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		BaseEndpoint: cfg.S3BaseEndpoint,
		Bucket:       cfg.S3Bucket,
	})
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("archive init: %w", err)
	}
	opts = append(opts, reconcile.WithArchiver(archiver))

	service := reconcile.NewService(stores, reconcile.NewTxRunner(stores.Conn()), keys, log, opts...)

	handler := httpapi.NewHandler(service, log)
	router := httpapi.NewRouter(handler, httpapi.RouterOptions{
		SecretKey:      []byte(cfg.SecretKey),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	return &App{
		config:     cfg,
		log:        log,
		stores:     stores,
		enrichment: queue,
		httpServer: &http.Server{Addr: cfg.EndpointAddr, Handler: router},
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.log.Info(ctx, "starting sync server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.enrichment != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.enrichment.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error(ctx, "http server error", "error", err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.log.Error(shutdownCtx, "shutdown error", "error", err.Error())
	}

	wg.Wait()

	if err := app.stores.Close(); err != nil {
		app.log.Error(shutdownCtx, "db close error", "error", err.Error())
	}

	app.log.Info(shutdownCtx, "sync server stopped")
}
