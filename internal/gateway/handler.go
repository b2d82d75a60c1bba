package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler mounts the gateway's public routes, each forwarding to the
// Execution Service. Run requests are stamped with a fresh execution_id
// and the caller's user_id, session creation with the user_id only, and
// session deletion is forwarded as is. The user_id is the bearer JWT's
// "sub" claim, read without signature
// verification — key management is out of scope here, so this is
// forwarding metadata, not an auth boundary; real authentication is
// assumed to happen upstream of this service).
type Handler struct {
	client *Client
}

// NewHandler constructs a Handler forwarding through client.
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// Register mounts every public route onto e.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/v1/code_interpreter")
	g.POST("/run", h.run)
	g.POST("/sessions", h.createSession)
	g.DELETE("/sessions/:id", h.deleteSession)
}

type runRequest struct {
	Language       string            `json:"language"`
	Code           string            `json:"code"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	SessionID      string            `json:"session_id,omitempty"`
	Files          map[string]string `json:"files,omitempty"`
}

type forwardedRun struct {
	runRequest
	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
}

func (h *Handler) run(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	body, err := json.Marshal(forwardedRun{
		runRequest:  req,
		ExecutionID: uuid.NewString(),
		UserID:      userIDFromRequest(c),
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return h.relay(c, http.MethodPost, "/execute", body)
}

type sessionCreateRequest struct {
	Language string `json:"language"`
}

type forwardedSessionCreate struct {
	Language string `json:"language"`
	UserID   string `json:"user_id"`
}

func (h *Handler) createSession(c echo.Context) error {
	var req sessionCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}

	body, err := json.Marshal(forwardedSessionCreate{Language: req.Language, UserID: userIDFromRequest(c)})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return h.relay(c, http.MethodPost, "/sessions", body)
}

func (h *Handler) deleteSession(c echo.Context) error {
	return h.relay(c, http.MethodDelete, "/sessions/"+c.Param("id"), nil)
}

func (h *Handler) relay(c echo.Context, method, path string, body []byte) error {
	fwd, err := h.client.Forward(c.Request().Context(), method, path, body)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.Blob(fwd.StatusCode, echo.MIMEApplicationJSON, fwd.Body)
}

// userIDFromRequest extracts the "sub" claim from an unverified bearer
// JWT, or "" if none is present or it doesn't parse.
func userIDFromRequest(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	tokenStr := strings.TrimPrefix(auth, "Bearer ")
	if tokenStr == "" || tokenStr == auth {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
