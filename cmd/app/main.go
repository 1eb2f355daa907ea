package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"earningbot/internal/bot"
	"earningbot/internal/config"
	"earningbot/internal/firestore"
	httpServer "earningbot/internal/http"
	"earningbot/internal/http/handlers"
	"earningbot/internal/keepalive"
	"earningbot/internal/logger"
	"earningbot/internal/repository"
	"earningbot/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	store := firestore.New(cfg.FirebaseProjectID, cfg.FirebaseAPIKey)

	users := repository.NewUserRepository(store)
	withdrawals := repository.NewWithdrawalRepository(store)
	referrals := repository.NewReferralRepository(store)
	configCache := repository.NewConfigCache(store)

	locks := service.NewUserLocks()
	rewards := service.NewRewardService(users, referrals, configCache, locks)
	withdraws := service.NewWithdrawService(users, withdrawals, referrals, configCache, locks)

	b, err := bot.New(cfg.BotToken, rewards, withdraws, func(checker service.MemberChecker) *service.MembershipGate {
		return service.NewMembershipGate(checker, configCache)
	})
	if err != nil {
		logger.Fatal("bot init failed", "err", err)
	}

	health := handlers.NewHealthHandler(configCache.Ping)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	httpServer.RegisterRoutes(r, health)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("http server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go keepalive.New(cfg.KeepaliveURL, cfg.KeepaliveInterval).Run(ctx)

	go b.Start()
	logger.Info("bot is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	cancel()
	b.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	logger.Info("exited")
}
