package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/query"
	"github.com/cppla/postboard/routes"
	"github.com/cppla/postboard/session"
	"github.com/cppla/postboard/source"
	"github.com/cppla/postboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	remote := source.NewHTTP(cfg.RemoteBaseURL, time.Duration(cfg.RemoteTimeoutSec)*time.Second)
	src := buildSource(cfg, remote)

	opts := session.Options{
		RevealIncrement: cfg.RevealIncrement,
		DefaultUserID:   cfg.DefaultUserID,
		Engine:          query.NewEngine(cfg.CollationLanguage),
		Logger:          utils.Logger,
	}
	if cfg.RemoteForwardMutations {
		opts.Forwarder = remote
		opts.ForwardTimeout = time.Duration(cfg.RemoteTimeoutSec) * time.Second
	}
	sessions := session.NewRegistry(src, opts, time.Duration(cfg.SessionIdleMinutes)*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go sessions.Janitor(ctx, time.Minute)

	r := routes.SetupRouter(cfg, sessions, utils.NewWSHub())

	utils.Sugar.Infof("Starting server on port %s (graceful), source=%s", cfg.AppPort, cfg.SourceKind)
	if err := utils.GraceServer(":"+cfg.AppPort, r, cancel); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// buildSource picks the collection source and puts the Redis snapshot cache
// in front of it when Redis is configured.
func buildSource(cfg config.AppConfig, remote *source.HTTP) source.Source {
	var src source.Source = remote
	if cfg.SourceKind == "sql" {
		sqlSrc := source.NewSQL(config.InitDatabase())
		if err := sqlSrc.Migrate(); err != nil {
			utils.Logger.Fatal("posts table migration failed", zap.Error(err))
		}
		src = sqlSrc
	}
	if rc := utils.GetRedis(); rc != nil {
		src = source.NewCached(src, rc, time.Duration(cfg.RemoteCacheTTLSec)*time.Second, utils.Logger)
	}
	return src
}
