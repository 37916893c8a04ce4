package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/keymint/keymint-server/internal/api/http"
	"github.com/keymint/keymint-server/internal/api/http/handler"
	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/api/http/middleware"
	httpserver "github.com/keymint/keymint-server/internal/api/http/server"
	"github.com/keymint/keymint-server/internal/config"
	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/lockout"
	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/model"
	"github.com/keymint/keymint-server/internal/repository/postgres"
	redisrepo "github.com/keymint/keymint-server/internal/repository/redis"
	"github.com/keymint/keymint-server/internal/server"
	"github.com/keymint/keymint-server/internal/service"
	"github.com/keymint/keymint-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	keyRepo := postgres.NewSigningKeyRepository(db)
	refreshRepo := postgres.NewRefreshTokenRepository(db)
	userRepo := postgres.NewUserRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db)

	var denylist model.DenylistStore
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		denylist, err = redisrepo.NewDenylist(ctx, client)
		if err != nil {
			logger.Fatal("failed to initialize redis denylist", "error", err)
		}
	} else {
		denylist = postgres.NewDenylistRepository(db)
	}

	keyManager := keys.NewManager(keyRepo, logger)
	issuer := token.NewIssuer(keyManager, cfg.Token.Issuer, cfg.Token.AccessTTL)
	verifier := token.NewVerifier(keyManager, userRepo, denylist, cfg.Token.Issuer)

	tokenService := service.NewTokenService(issuer, verifier, userRepo, refreshRepo, denylist, logger, cfg.Token.RefreshTTL)

	tracker := lockout.NewTracker(lockoutTiers(cfg.Lockout), logger)
	sweeper := service.NewSweeper(refreshRepo, denylist, tracker, logger, cfg.Sweep.Interval)

	ctxMgr := httpctx.NewManager()
	authHandler := handler.NewAuth(tokenService, credentialRepo, tracker, ctxMgr, logger)
	adminHandler := handler.NewAdmin(keyManager, tokenService, ctxMgr, logger)
	jwksHandler := handler.NewJWKSHandler(keyManager, cfg.Token.JWKSMaxAge, logger)

	router := httpapi.New(
		authHandler,
		adminHandler,
		jwksHandler,
		middleware.NewAuthenticate(tokenService, ctxMgr, logger),
		middleware.NewLogging(logger),
	)
	httpServer := httpserver.NewHTTPServer(router.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func lockoutTiers(cfg config.Lockout) []lockout.Tier {
	tiers := make([]lockout.Tier, 0, len(cfg.Thresholds))
	for i, threshold := range cfg.Thresholds {
		tiers = append(tiers, lockout.Tier{Threshold: threshold, Duration: cfg.Durations[i]})
	}
	return tiers
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
