package middleware

import (
	"context"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/logger"
	"onboard/internal/repositories"
	"onboard/internal/services/auth"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	LookupCacheHit  = "cache_hit"
	LookupCacheMiss = "cache_miss"
	LookupError     = "error"
)

// AdminFlagCache caches admin lookups; *cache.CacheService satisfies it.
type AdminFlagCache interface {
	GetAdminFlag(ctx context.Context, userID uuid.UUID) (isAdmin bool, found bool, err error)
	CacheAdminFlag(ctx context.Context, userID uuid.UUID, isAdmin bool) error
	InvalidateAdminFlag(ctx context.Context, userID uuid.UUID) error
}

type LookupRecorder interface {
	RecordAdminLookup(result string)
}

type noopLookupRecorder struct{}

func (noopLookupRecorder) RecordAdminLookup(string) {}

// AdminGate admits only sessions whose user has an admin_users row.
type AdminGate struct {
	admins  repositories.AdminRepository
	cache   AdminFlagCache
	metrics LookupRecorder
	log     logger.Logger
}

func NewAdminGate(admins repositories.AdminRepository, cache AdminFlagCache, metrics LookupRecorder, log logger.Logger) *AdminGate {
	if metrics == nil {
		metrics = noopLookupRecorder{}
	}
	return &AdminGate{admins: admins, cache: cache, metrics: metrics, log: log}
}

// Handler must run after AuthMiddleware.Handler.
func (g *AdminGate) Handler(c *fiber.Ctx) error {
	sess := SessionFrom(c)
	if sess == nil {
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}

	isAdmin, err := g.IsAdmin(c.UserContext(), sess.UserID)
	if err != nil {
		g.log.WithError(err).Error("admin lookup failed", map[string]interface{}{"user_id": sess.UserID})
		return response.FromError(c, apperr.Wrap(apperr.CodeInternal, "Failed to verify admin access", err))
	}
	if !isAdmin {
		g.log.Info("admin access denied", map[string]interface{}{"user_id": sess.UserID, "path": c.Path()})
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":    apperr.ErrForbidden.Message,
			"code":     apperr.CodeForbidden,
			"redirect": "/",
		})
	}
	return c.Next()
}

// IsAdmin consults the cache before the admin table. Cache errors fall
// through to the table.
func (g *AdminGate) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if g.cache != nil {
		isAdmin, found, err := g.cache.GetAdminFlag(ctx, userID)
		if err == nil && found {
			g.metrics.RecordAdminLookup(LookupCacheHit)
			return isAdmin, nil
		}
		if err != nil {
			g.log.WithError(err).Warn("admin flag cache unavailable", nil)
		}
	}

	isAdmin, err := g.admins.IsAdmin(ctx, userID)
	if err != nil {
		g.metrics.RecordAdminLookup(LookupError)
		return false, err
	}
	g.metrics.RecordAdminLookup(LookupCacheMiss)

	if g.cache != nil {
		if err := g.cache.CacheAdminFlag(ctx, userID, isAdmin); err != nil {
			g.log.WithError(err).Warn("failed to cache admin flag", nil)
		}
	}
	return isAdmin, nil
}

// EvictOnSignOut drops the cached admin flag whenever a user signs out.
func (g *AdminGate) EvictOnSignOut(svc auth.Service) (unsubscribe func()) {
	return svc.Subscribe(func(ev auth.SessionEvent) {
		if ev.Type != auth.EventSignedOut || g.cache == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.cache.InvalidateAdminFlag(ctx, ev.Session.UserID); err != nil {
			g.log.WithError(err).Warn("failed to evict admin flag", map[string]interface{}{"user_id": ev.Session.UserID})
		}
	})
}
