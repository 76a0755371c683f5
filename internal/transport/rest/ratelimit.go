package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/cache"
)

// RateLimitConfig описывает параметры лимитера с фиксированным окном.
type RateLimitConfig struct {
	// Limit — максимум запросов с одного IP за окно.
	Limit int64
	// Window — длительность окна.
	Window time.Duration
}

// DefaultRateLimitConfig возвращает лимит, достаточный для персонала
// одного ресторана, но отсекающий бот-трафик на бронирования.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:  120,
		Window: time.Minute,
	}
}

// RateLimit ограничивает количество запросов с одного IP в фиксированном
// окне поверх KeyedStore. При недоступном backend запрос пропускается:
// лимитер защищает от всплесков, а не служит контролем доступа.
func RateLimit(store cache.KeyedStore, cfg RateLimitConfig, logger *log.Entry) echo.MiddlewareFunc {
	if logger == nil {
		logger = log.New().WithField("component", "rate_limit")
	}
	if store == nil || cfg.Limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := "rbs:rate:" + ip

			count, err := store.IncrWindow(c.Request().Context(), key, cfg.Window)
			if err != nil {
				logger.WithError(err).Warn("rate limiter backend failed, passing request through")
				return next(c)
			}

			remaining := cfg.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatInt(cfg.Limit, 10))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > cfg.Limit {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(cfg.Window/time.Second)))
				return c.JSON(http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
