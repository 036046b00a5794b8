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
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/backoffice/internal/catalog"
	"github.com/vasiliy-maslov/backoffice/internal/config"
	"github.com/vasiliy-maslov/backoffice/internal/db"
	httphandler "github.com/vasiliy-maslov/backoffice/internal/handler/http"
	"github.com/vasiliy-maslov/backoffice/internal/invoice"
	"github.com/vasiliy-maslov/backoffice/internal/order"
	"github.com/vasiliy-maslov/backoffice/internal/report"
	"github.com/vasiliy-maslov/backoffice/internal/stock"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "path to a .env file, ignored when missing")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Str("env", cfg.App.Env).Msg("Backoffice starting...")

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if cfg.Postgres.Migrate {
		if err := pg.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	} else {
		log.Warn().Msg("Migrations disabled, running against the existing schema")
	}

	caps, err := db.ProbeCapabilities(ctx, pg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to probe schema capabilities")
	}

	reportDB := pg.SQLX()
	defer reportDB.Close()

	stockSvc := stock.NewService(pg, stock.NewRepository())
	catalogSvc := catalog.NewService(pg, catalog.NewRepository(caps), cfg.Catalog.MaxList)
	invoiceSvc := invoice.NewService(pg, invoice.NewRepository(caps), stockSvc, catalogSvc)
	orderSvc := order.NewService(pg, order.NewRepository(caps), catalogSvc, invoiceSvc)
	reportSvc := report.NewService(report.NewRepository(reportDB))

	verbose := !cfg.IsProduction()
	router := httphandler.NewRouter(httphandler.Handlers{
		Products: httphandler.NewProductHandler(catalogSvc, verbose),
		Stock:    httphandler.NewStockHandler(stockSvc, verbose),
		Invoices: httphandler.NewInvoiceHandler(invoiceSvc, verbose),
		Orders:   httphandler.NewOrderHandler(orderSvc, verbose),
		Reports:  httphandler.NewReportHandler(reportSvc, verbose),
		Shop:     httphandler.NewShopHandler(catalogSvc, orderSvc, verbose),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()
}
