// Package api implements the Execution Service's internal HTTP
// surface: /health, /execute, /sessions and /sessions/{id}.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codeboxed/execd/internal/coordinator"
	"github.com/codeboxed/execd/internal/langhandler"
	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/session"
)

// Handler wires the Coordinator and Session Registry to echo routes.
type Handler struct {
	coord          *coordinator.Coordinator
	sessions       *session.Registry
	languages      *langhandler.Registry
	token          string
	defaultTimeout int
}

// NewHandler constructs a Handler. token is the shared Internal-Auth-Token
// secret; defaultTimeout is substituted for any request that omits
// timeout_seconds.
func NewHandler(coord *coordinator.Coordinator, sessions *session.Registry, languages *langhandler.Registry, token string, defaultTimeout int) *Handler {
	return &Handler{coord: coord, sessions: sessions, languages: languages, token: token, defaultTimeout: defaultTimeout}
}

// Register mounts every route onto e. /health is unauthenticated; every
// other route requires Internal-Auth-Token (§6).
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.health)

	g := e.Group("")
	g.Use(h.authMiddleware)
	g.POST("/execute", h.execute)
	g.POST("/sessions", h.createSession)
	g.DELETE("/sessions/:session_id", h.deleteSession)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "healthy"})
}

func (h *Handler) execute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	timeout := req.TimeoutSeconds
	if timeout == 0 {
		timeout = h.defaultTimeout
	}

	result, err := h.coord.Execute(c.Request().Context(), coordinator.ExecutionRequest{
		ExecutionID: req.ExecutionID,
		UserID:      req.UserID,
		Language:    req.Language,
		Code:        req.Code,
		Timeout:     timeout,
		SessionID:   req.SessionID,
		Files:       req.Files.Entries,
	})
	if err != nil {
		switch {
		case errors.Is(err, langhandler.ErrUnsupportedLanguage):
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, session.ErrNotFound):
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, pool.ErrNoCapacity):
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
	}

	resp := executeResponse{Output: result.Output, ExitCode: result.ExitCode}
	if result.Error != "" {
		resp.Error = &result.Error
	}
	if result.SessionID != "" {
		resp.SessionID = &result.SessionID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) createSession(c echo.Context) error {
	var req sessionCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}

	canonical, err := h.languages.Canonicalize(req.Language)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	sess, err := h.sessions.Create(c.Request().Context(), req.UserID, canonical)
	if err != nil {
		if errors.Is(err, pool.ErrNoCapacity) {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, sessionCreateResponse{
		SessionID: sess.ID,
		Language:  canonical,
		Message:   "session created",
	})
}

func (h *Handler) deleteSession(c echo.Context) error {
	id := c.Param("session_id")
	if err := h.sessions.End(c.Request().Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, sessionDeleteResponse{Success: true, Message: "session ended"})
}
