package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stanislavgolubev/rbs/internal/service/booking"
)

type createReservationRequest struct {
	TableID     string    `json:"table_id"`
	PartySize   int32     `json:"party_size"`
	ReservedFor time.Time `json:"reserved_for"`
	Notes       string    `json:"notes"`
}

func (s *Server) createReservation(c echo.Context) error {
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	reservation, err := s.bookings.CreateReservation(c.Request().Context(), booking.CreateReservationRequest{
		RestaurantID: c.Param("id"),
		TableID:      body.TableID,
		PartySize:    body.PartySize,
		ReservedFor:  body.ReservedFor,
		Notes:        body.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationView(reservation))
}

func (s *Server) getReservation(c echo.Context) error {
	reservation, err := s.bookings.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(reservation))
}

func (s *Server) cancelReservation(c echo.Context) error {
	reservation, err := s.bookings.CancelReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(reservation))
}

type checkInRequest struct {
	TableID string `json:"table_id"`
}

func (s *Server) checkInReservation(c echo.Context) error {
	var body checkInRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	reservation, err := s.bookings.CheckIn(c.Request().Context(), c.Param("id"), body.TableID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(reservation))
}

func (s *Server) markNoShow(c echo.Context) error {
	reservation, err := s.bookings.MarkNoShow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(reservation))
}

func (s *Server) completeReservation(c echo.Context) error {
	reservation, err := s.bookings.Complete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationView(reservation))
}

// availability отдаёт сводку доступности на запрошенный момент.
// Ответ кэшируется на несколько секунд: эндпоинт дергают виджеты
// бронирования гораздо чаще, чем меняется занятость.
func (s *Server) availability(c echo.Context) error {
	restaurantID := c.Param("id")

	at := time.Now().UTC()
	if raw := c.QueryParam("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "at must be RFC3339"})
		}
		at = parsed.UTC()
	}

	cacheKey := "rbs:availability:" + restaurantID + ":" + at.Truncate(time.Minute).Format(time.RFC3339)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(c.Request().Context(), cacheKey); err == nil && ok {
			return c.JSONBlob(http.StatusOK, []byte(cached))
		}
	}

	availability, err := s.bookings.Availability(c.Request().Context(), restaurantID, at)
	if err != nil {
		return writeError(c, err)
	}

	view := toAvailabilityView(availability)
	if s.cache != nil {
		if payload, err := json.Marshal(view); err == nil {
			if cacheErr := s.cache.Set(c.Request().Context(), cacheKey, string(payload), availabilityCacheTTL); cacheErr != nil {
				s.logger.WithError(cacheErr).Debug("availability cache write failed")
			}
		}
	}
	return c.JSON(http.StatusOK, view)
}
