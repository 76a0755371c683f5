package rest

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stanislavgolubev/rbs/internal/domain"
)

// errorBody — единый формат ошибок API.
type errorBody struct {
	Error string `json:"error"`
}

// validationErrors — ошибки клиентского ввода, которые отдаются как 400.
var validationErrors = []error{
	domain.ErrRestaurantIDRequired,
	domain.ErrTableIDRequired,
	domain.ErrPartySizeInvalid,
	domain.ErrReservedForRequired,
	domain.ErrItemQtyInvalid,
	domain.ErrItemsRequired,
	domain.ErrInvalidTableStatus,
	domain.ErrInvalidItemStatus,
	domain.ErrInvalidDiscount,
	domain.ErrInvalidTip,
}

var notFoundErrors = []error{
	domain.ErrRestaurantNotFound,
	domain.ErrTableNotFound,
	domain.ErrReservationNotFound,
	domain.ErrOrderNotFound,
	domain.ErrOrderItemNotFound,
}

// writeError переводит доменную ошибку в HTTP-статус.
// Отказы домена — 409: повтор без изменения запроса не поможет.
// Исчерпанные ретраи сериализации — 503: клиент может повторить позже.
func writeError(c echo.Context, err error) error {
	switch {
	case matchesAny(err, validationErrors):
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	case matchesAny(err, notFoundErrors):
		return c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
	case domain.IsRejection(err), errors.Is(err, domain.ErrVersionConflict):
		return c.JSON(http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrBookingConflict):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
