// Package rest реализует HTTP API системы бронирования поверх echo.
// Транспорт только переводит запросы в вызовы сервисов и доменные
// ошибки в HTTP-статусы, бизнес-правила живут в internal/service.
package rest

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/stanislavgolubev/rbs/internal/cache"
	"github.com/stanislavgolubev/rbs/internal/service/booking"
	"github.com/stanislavgolubev/rbs/internal/service/orders"
	"github.com/stanislavgolubev/rbs/internal/service/tables"
)

// availabilityCacheTTL ограничивает время жизни кэша сводки доступности.
// Значение короткое: занятость меняется каждым подтверждением брони.
const availabilityCacheTTL = 5 * time.Second

// Server связывает HTTP-маршруты с сервисами бронирования.
type Server struct {
	bookings *booking.Service
	orders   *orders.Service
	tables   *tables.Service
	cache    cache.KeyedStore
	logger   *log.Entry
}

// NewServer создаёт HTTP-слой. Кэш опционален: при nil сводка
// доступности считается на каждый запрос.
func NewServer(bookings *booking.Service, orderSvc *orders.Service, tableSvc *tables.Service, keyed cache.KeyedStore, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &Server{
		bookings: bookings,
		orders:   orderSvc,
		tables:   tableSvc,
		cache:    keyed,
		logger:   logger,
	}
}

// Register вешает маршруты API на echo-инстанс.
func (s *Server) Register(e *echo.Echo, rateCfg RateLimitConfig) {
	e.Use(echomw.Recover())
	e.Use(RateLimit(s.cache, rateCfg, s.logger))

	v1 := e.Group("/v1")

	v1.POST("/restaurants/:id/reservations", s.createReservation)
	v1.GET("/restaurants/:id/availability", s.availability)

	v1.GET("/reservations/:id", s.getReservation)
	v1.POST("/reservations/:id/cancel", s.cancelReservation)
	v1.POST("/reservations/:id/checkin", s.checkInReservation)
	v1.POST("/reservations/:id/no-show", s.markNoShow)
	v1.POST("/reservations/:id/complete", s.completeReservation)

	v1.POST("/tables/:id/orders", s.openOrder)
	v1.GET("/tables/:id", s.getTable)
	v1.PATCH("/tables/:id/status", s.setTableStatus)

	v1.GET("/orders/:id", s.getOrder)
	v1.POST("/orders/:id/items", s.addOrderItems)
	v1.PATCH("/orders/:id/items/:itemID/status", s.updateItemStatus)
	v1.POST("/orders/:id/bill", s.requestBill)
	v1.POST("/orders/:id/close", s.closeOrder)
}
