package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stanislavgolubev/rbs/internal/domain"
	"github.com/stanislavgolubev/rbs/internal/service/orders"
)

type orderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Qty        int32  `json:"qty"`
}

type openOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

func toItemRequests(items []orderItemRequest) []orders.ItemRequest {
	result := make([]orders.ItemRequest, 0, len(items))
	for _, item := range items {
		result = append(result, orders.ItemRequest{MenuItemID: item.MenuItemID, Qty: item.Qty})
	}
	return result
}

func (s *Server) openOrder(c echo.Context) error {
	var body openOrderRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	order, err := s.orders.Open(c.Request().Context(), c.Param("id"), toItemRequests(body.Items))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderView(order))
}

func (s *Server) getOrder(c echo.Context) error {
	order, err := s.orders.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}

func (s *Server) addOrderItems(c echo.Context) error {
	var body openOrderRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	order, err := s.orders.AddItems(c.Request().Context(), c.Param("id"), toItemRequests(body.Items))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateItemStatus(c echo.Context) error {
	var body itemStatusRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	order, err := s.orders.UpdateItemStatus(c.Request().Context(), c.Param("id"), c.Param("itemID"), body.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}

func (s *Server) requestBill(c echo.Context) error {
	order, err := s.orders.RequestBill(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}

type closeOrderRequest struct {
	TipMinor        int64 `json:"tip_minor"`
	DiscountMinor   int64 `json:"discount_minor"`
	DiscountPercent int32 `json:"discount_percent"`
}

func (s *Server) closeOrder(c echo.Context) error {
	var body closeOrderRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	order, err := s.orders.Close(c.Request().Context(), c.Param("id"), body.TipMinor, domain.Discount{
		AmountMinor: body.DiscountMinor,
		Percent:     body.DiscountPercent,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}
