package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"qwenedit/internal/edit"
	"qwenedit/internal/history"
	"qwenedit/internal/http/handlers"
	httpapi "qwenedit/internal/http/httpapi"
	"qwenedit/internal/infra"
	"qwenedit/internal/infra/geoip"
	"qwenedit/internal/middleware"
	"qwenedit/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	client, err := edit.NewClient(edit.ClientOptions{
		BaseURL:         cfg.RunpodBaseURL,
		EndpointID:      cfg.RunpodEndpointID,
		APIKey:          cfg.RunpodAPIKey,
		PollInterval:    cfg.PollInterval,
		MaxPollInterval: cfg.MaxPollInterval,
		PollRetries:     cfg.PollRetries,
		Logger:          &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure backend client")
	}

	store, err := storage.NewVolumeStore(cfg.StagingPath, cfg.VolumePrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure staging storage")
	}

	// Job history is optional; the pipeline runs fine without a database.
	var recorder edit.Recorder
	var jobHistory *history.Store
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		jobHistory = history.NewStore(pool)
		recorder = jobHistory
	}

	pipeline, err := edit.NewPipeline(edit.PipelineOptions{
		Resolver:    edit.NewResolver(edit.ResolverOptions{FetchTimeout: cfg.FetchTimeout}),
		Runner:      client,
		Stager:      store,
		InlineLimit: cfg.InlineLimit,
		JobTimeout:  cfg.JobTimeout,
		Recorder:    recorder,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build edit pipeline")
	}
	batch := edit.NewBatch(pipeline, cfg.BatchWorkers, &logger)

	app := handlers.NewApp(pipeline, batch, logger)
	app.History = jobHistory
	app.MaxBatchItems = cfg.BatchMaxItems

	var lookup middleware.CountryLookup
	countries, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if countries != nil {
		lookup = countries.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  httpapi.SplitOrigins(cfg.AllowedOrigins),
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
