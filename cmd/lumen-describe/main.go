// lumen-describe runs a folder batch from the command line and writes the
// event stream as newline-delimited JSON to stdout
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"lumen/internal/adapters/runtime"
	"lumen/internal/core/tiling"
	"lumen/internal/platform/config"
	perr "lumen/internal/platform/errors"
	"lumen/internal/platform/logger"
	"lumen/internal/platform/model"
	"lumen/internal/services/describe/domain"
	"lumen/internal/services/describe/repo"
	dsvc "lumen/internal/services/describe/service"
)

func main() {
	dir := flag.String("dir", "", "folder of images to describe")
	ext := flag.String("ext", "jpg", "image extension to match")
	maxN := flag.Int("max", 7, "maximum number of images to process")
	modelID := flag.String("model", "", "model identifier override")
	flag.Parse()

	root := config.New()
	modelCfg := root.Prefix("MODEL_")
	tilingCfg := root.Prefix("TILING_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	if *dir == "" {
		l.Error().Msg("-dir is required")
		os.Exit(2)
	}

	id := *modelID
	if id == "" {
		id = modelCfg.MayString("ID", "LiquidAI/LFM2-VL-1.6B")
	}

	mgr := model.New(
		model.Config{ID: id},
		runtime.NewLoader(runtime.Config{
			Endpoint:    modelCfg.MayString("ENDPOINT", "http://127.0.0.1:8080"),
			LoadTimeout: modelCfg.MayDuration("LOAD_TIMEOUT", 0),
		}),
	)
	defer func() { _ = mgr.Release() }()

	src := repo.NewFS()
	svc := dsvc.New(dsvc.Config{
		Prompt: modelCfg.MayString("PROMPT", dsvc.DefaultPrompt),
		Tiling: tiling.Config{
			MinTiles:  tilingCfg.MayInt("MIN_TILES", 1),
			MaxTiles:  tilingCfg.MayInt("MAX_TILES", 12),
			TileEdge:  tilingCfg.MayInt("EDGE", 448),
			Thumbnail: tilingCfg.MayBool("THUMBNAIL", true),
		},
	}, mgr, src)

	paths, err := src.List(*dir, *ext)
	if err != nil {
		l.Error().Err(err).Str("dir", *dir).Msg("listing folder failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	allFailed := false
	sink := domain.SinkFunc(func(ev domain.Event) error {
		if ev.Type == domain.EventComplete && ev.Succeeded != nil && *ev.Succeeded == 0 {
			allFailed = true
		}
		return enc.Encode(ev)
	})

	if err := svc.StreamBatch(context.Background(), paths, *maxN, sink); err != nil {
		if !perr.IsCode(err, perr.ErrorCodeBatchFailed) {
			l.Error().Err(err).Msg("stream failed")
		}
		os.Exit(1)
	}
	if allFailed {
		os.Exit(1)
	}
}
