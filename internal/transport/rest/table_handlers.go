package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) getTable(c echo.Context) error {
	table, err := s.tables.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTableView(table))
}

type tableStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) setTableStatus(c echo.Context) error {
	var body tableStatusRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	table, err := s.tables.SetStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTableView(table))
}
