// Command admin_seed grants the admin flag to an existing account. Admin
// rows are never created through the API.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"onboard/internal/config"
	applog "onboard/internal/logger"
	"onboard/internal/repositories"
	"onboard/internal/repositories/cache"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("failed to load configuration", zap.Error(err))
	}
	zl := applog.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zl.Sync() }()

	adminEmail := config.GetEnv("ADMIN_EMAIL", "")
	if len(os.Args) > 1 {
		adminEmail = os.Args[1]
	}
	if adminEmail == "" {
		zl.Fatal("ADMIN_EMAIL must be set or passed as the first argument")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repositories.InitDB(cfg.Database.Postgres)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	user, err := repositories.NewUserRepository(db).GetByEmail(ctx, adminEmail)
	if errors.Is(err, repositories.ErrUserNotFound) {
		zl.Fatal("no account with that email; sign up first", zap.String("email", adminEmail))
	}
	if err != nil {
		zl.Fatal("failed to look up user", zap.Error(err))
	}

	if err := repositories.NewAdminRepository(db).Grant(ctx, user.ID); err != nil {
		zl.Fatal("failed to grant admin", zap.Error(err))
	}

	// drop a cached denial so the grant applies immediately
	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     cfg.Database.Redis.Host,
		Port:     cfg.Database.Redis.Port,
		Password: cfg.Database.Redis.Password,
		DB:       cfg.Database.Redis.DB,
	})
	cacheService := cache.NewCacheService(redisClient, time.Hour)
	defer cacheService.Close()
	if err := cacheService.InvalidateAdminFlag(ctx, user.ID); err != nil {
		zl.Warn("failed to clear cached admin flag", zap.Error(err))
	}

	zl.Info("admin access granted", zap.String("email", user.Email), zap.String("user_id", user.ID.String()))
}
