package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"lumen/internal/adapters/runtime"
	"lumen/internal/core/tiling"
	"lumen/internal/platform/config"
	"lumen/internal/platform/logger"
	"lumen/internal/platform/model"
	phttp "lumen/internal/platform/net/http"
	mw "lumen/internal/platform/net/middleware"
	"lumen/internal/platform/store"
	"lumen/internal/services/describe/domain"
	dhttp "lumen/internal/services/describe/http"
	"lumen/internal/services/describe/repo"
	dsvc "lumen/internal/services/describe/service"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	modelCfg := root.Prefix("MODEL_")
	tilingCfg := root.Prefix("TILING_")
	batchCfg := root.Prefix("BATCH_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	mgr := model.New(
		model.Config{ID: modelCfg.MayString("ID", "LiquidAI/LFM2-VL-1.6B")},
		runtime.NewLoader(runtime.Config{
			Endpoint:    modelCfg.MayString("ENDPOINT", "http://127.0.0.1:8080"),
			LoadTimeout: modelCfg.MayDuration("LOAD_TIMEOUT", 0),
		}),
	)
	defer func() {
		if err := mgr.Release(); err != nil {
			l.Error().Err(err).Msg("failed to release runtime")
		}
	}()

	src := repo.NewFS()
	svc := dsvc.New(dsvc.Config{
		Prompt: modelCfg.MayString("PROMPT", dsvc.DefaultPrompt),
		Tiling: tiling.Config{
			MinTiles:  tilingCfg.MayInt("MIN_TILES", 1),
			MaxTiles:  tilingCfg.MayInt("MAX_TILES", 12),
			TileEdge:  tilingCfg.MayInt("EDGE", 448),
			Thumbnail: tilingCfg.MayBool("THUMBNAIL", true),
		},
		BatchCap: batchCfg.MayInt("DEFAULT_CAP", 7),
	}, mgr, src)

	// history store is optional; no SERVICE_PGSQL_DBURL means no history
	var hist domain.HistoryPort
	if url := pgCfg.MayString("DBURL", ""); url != "" {
		st, err := store.Open(
			context.Background(),
			store.Config{PG: store.PGConfig{
				Enabled:  true,
				URL:      url,
				MaxConns: int32(pgCfg.MayInt("MAX_CONNS", 4)),
			}},
			store.WithLogger(*l),
		)
		if err != nil {
			l.Panic().Err(err).Msg("store.Open failed")
		}
		if err := st.Guard(context.Background()); err != nil {
			l.Panic().Err(err).Msg("store unreachable")
		}
		defer func() {
			if err := st.Close(context.Background()); err != nil {
				l.Error().Err(err).Msg("failed to close store")
			}
		}()

		h := repo.NewHistory(st.PG)
		if err := h.EnsureSchema(context.Background()); err != nil {
			l.Panic().Err(err).Msg("history schema failed")
		}
		hist = h
	}

	srv := phttp.NewServer(apiCfg)
	r := srv.Router()

	// middleware first, then routes
	r.Use(
		mw.RequestID(),
		mw.RealIP(),
		mw.StripSlashes(),
		mw.Heartbeat("/ping"),
		mw.RecoverJSON,
		mw.AccessLogZerolog(mw.AccessLogOptions{}),
		mw.CORS(mw.CORSOptions{
			AllowedOrigins:   apiCfg.MayCSV("CORS_ORIGINS", []string{"*"}),
			AllowCredentials: apiCfg.MayBool("CORS_CREDENTIALS", true),
		}),
	)

	dhttp.Register(r, dhttp.Options{
		Svc:     svc,
		Src:     src,
		History: hist,
		Cap:     batchCfg.MayInt("DEFAULT_CAP", 7),
		Timeout: apiCfg.MayDuration("QUICK_TIMEOUT", 15*time.Second),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
