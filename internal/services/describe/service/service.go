// Package service contains describe workflows: the per-item inference
// pipeline, the sequential batch orchestrator and the stream emitter
package service

import (
	"context"
	"fmt"

	"lumen/internal/core/tiling"
	perr "lumen/internal/platform/errors"
	"lumen/internal/platform/logger"
	"lumen/internal/platform/model"
	"lumen/internal/services/describe/domain"
)

// DefaultPrompt is what the model is asked when no prompt is configured
const DefaultPrompt = "What is in this image?"

// Config configures the describe service
type Config struct {
	// Prompt is sent with every tile batch; empty uses DefaultPrompt
	Prompt string

	// Tiling parameterizes the preprocessor
	Tiling tiling.Config

	// BatchCap is the default item cap when a request does not set one
	BatchCap int
}

// Service defines the describe service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the describe service
type Svc struct {
	cfg    Config
	models *model.Manager
	src    domain.SourcePort
	log    logger.Logger
}

// New constructs a describe service
func New(cfg Config, models *model.Manager, src domain.SourcePort) *Svc {
	if models == nil {
		panic("describe.Service requires a non nil model.Manager")
	}
	if src == nil {
		panic("describe.Service requires a non nil SourcePort")
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Tiling == (tiling.Config{}) {
		cfg.Tiling = tiling.DefaultConfig()
	}
	if cfg.BatchCap <= 0 {
		cfg.BatchCap = 7
	}
	return &Svc{
		cfg:    cfg,
		models: models,
		src:    src,
		log:    *logger.Named("describe"),
	}
}

// BatchCap reports the configured default item cap
func (s *Svc) BatchCap() int { return s.cfg.BatchCap }

// Item runs the full pipeline for one path and folds the outcome into an
// ItemResult. Failures never propagate as errors; they are classified
// and embedded so a batch can keep going
func (s *Svc) Item(ctx context.Context, path string) domain.ItemResult {
	desc, err := s.describe(ctx, path)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeOOM) {
			// free accelerator memory so later items stand a chance;
			// the release outcome must not mask the failure being reported
			if relErr := s.models.Release(); relErr != nil {
				s.log.Warn().Err(relErr).Msg("release after oom failed")
			} else {
				s.log.Info().Str("path", path).Msg("released runtime after oom")
			}
		}
		s.log.Warn().Err(err).Str("path", path).Str("class", fmt.Sprint(perr.CodeOf(err))).Msg("item failed")
		return domain.ItemResult{Path: path, Status: domain.StatusError, Error: err.Error()}
	}
	return domain.ItemResult{Path: path, Status: domain.StatusSuccess, Description: desc}
}

// describe is path -> image -> plan -> tiles -> tensors -> generation ->
// cleaned text. Errors come back carrying their failure class
func (s *Svc) describe(ctx context.Context, path string) (string, error) {
	img, err := s.src.Load(path)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	plan, err := tiling.PlanFor(b.Dx(), b.Dy(), s.cfg.Tiling)
	if err != nil {
		return "", err
	}

	tiles := tiling.Split(img, plan, s.cfg.Tiling)
	batch := tiling.Stack(tiling.NormalizeAll(tiles, s.cfg.Tiling.TileEdge))

	rt, err := s.models.Acquire(ctx)
	if err != nil {
		return "", err
	}

	raw, err := rt.Generate(ctx, batch, s.cfg.Prompt)
	if err != nil {
		return "", err
	}

	return CleanResponse(raw, s.cfg.Prompt), nil
}
