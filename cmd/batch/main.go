package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"qwenedit/internal/edit"
	"qwenedit/internal/infra"
	"qwenedit/internal/storage"
	"qwenedit/pkg/zip"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

func main() {
	_ = godotenv.Load()

	var (
		inputDir  = flag.String("in", "", "folder of images to edit")
		outputDir = flag.String("out", "output/qwen_batch", "folder for edited images")
		prompt    = flag.String("prompt", "enhance image quality", "edit instruction applied to every image")
		negative  = flag.String("negative", edit.DefaultNegativePrompt, "negative prompt")
		seed      = flag.Int("seed", edit.DefaultSeed, "base seed; each file gets seed+index")
		width     = flag.Int("width", edit.DefaultWidth, "output width")
		height    = flag.Int("height", edit.DefaultHeight, "output height")
		steps     = flag.Int("steps", edit.DefaultSteps, "inference steps")
		cfgScale  = flag.Float64("cfg", edit.DefaultCFG, "cfg scale")
		lightning = flag.Bool("lightning", false, "lightning mode (4 steps)")
		zipOut    = flag.String("zip", "", "also bundle edited images into this zip file")
	)
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if *inputDir == "" {
		logger.Fatal().Msg("batch: -in folder is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, err := os.ReadDir(*inputDir)
	if err != nil {
		logger.Fatal().Err(err).Str("folder", *inputDir).Msg("batch: cannot read input folder")
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		logger.Fatal().Str("folder", *inputDir).Msg("batch: no image files to process")
	}

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
		logger.Fatal().Err(err).Msg("batch: failed to configure backend client")
	}
	store, err := storage.NewVolumeStore(cfg.StagingPath, cfg.VolumePrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to configure staging storage")
	}
	pipeline, err := edit.NewPipeline(edit.PipelineOptions{
		Resolver:    edit.NewResolver(edit.ResolverOptions{FetchTimeout: cfg.FetchTimeout}),
		Runner:      client,
		Stager:      store,
		InlineLimit: cfg.InlineLimit,
		JobTimeout:  cfg.JobTimeout,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to build edit pipeline")
	}

	items := make([]edit.Item, len(files))
	for i, name := range files {
		params := edit.DefaultParameters()
		params.Prompt = *prompt
		params.NegativePrompt = *negative
		params.Seed = *seed + i
		params.Width = *width
		params.Height = *height
		params.Steps = *steps
		params.CFG = *cfgScale
		params.Lightning = *lightning
		items[i] = edit.NewItem(edit.PathReference(filepath.Join(*inputDir, name)), nil, params)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("batch: cannot create output folder")
	}

	logger.Info().Int("files", len(files)).Str("folder", *inputDir).Msg("batch: started")
	result := edit.NewBatch(pipeline, cfg.BatchWorkers, &logger).Run(ctx, items)

	var archive []zip.Asset
	for i, outcome := range result.Outcomes {
		name := files[i]
		if !outcome.Success {
			logger.Error().Str("file", name).Str("error", outcome.Err).Msg("batch: item failed")
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		outName := "edited_" + stem + ".png"
		outPath := filepath.Join(*outputDir, outName)
		if err := os.WriteFile(outPath, outcome.Image, 0o644); err != nil {
			logger.Error().Err(err).Str("file", name).Msg("batch: failed to save result")
			continue
		}
		if *zipOut != "" {
			archive = append(archive, zip.Asset{Filename: outName, Data: outcome.Image})
		}
		logger.Info().Str("file", name).Str("output", outPath).Str("job_id", outcome.JobID).Msg("batch: item done")
	}

	if *zipOut != "" && len(archive) > 0 {
		raw, err := zip.ArchiveAssets(archive)
		if err != nil {
			logger.Error().Err(err).Msg("batch: failed to build archive")
		} else if err := os.WriteFile(*zipOut, raw, 0o644); err != nil {
			logger.Error().Err(err).Str("output", *zipOut).Msg("batch: failed to save archive")
		} else {
			logger.Info().Str("output", *zipOut).Int("files", len(archive)).Msg("batch: archive written")
		}
	}
	logger.Info().
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("total", len(files)).
		Msg("batch: finished")
}
