package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// authMiddleware rejects any request whose Internal-Auth-Token header
// doesn't match the configured shared secret (§6). A shared static
// token is the explicitly accepted level of auth at this boundary —
// full authentication is a non-goal (§1).
func (h *Handler) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("Internal-Auth-Token") != h.token {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "invalid or missing Internal-Auth-Token"})
		}
		return next(c)
	}
}
