package dash

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type Handler struct {
	Registry *Registry
	Hub      *Hub
	Log      *zap.Logger
}

// NewHandler serves the apps in reg. A nil hub gets a private one.
func NewHandler(reg *Registry, hub *Hub, log *zap.Logger) *Handler {
	if reg == nil {
		reg = Default()
	}
	if hub == nil {
		hub = NewHub()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Registry: reg, Hub: hub, Log: log}
}

// RegisterRoutes mounts the app endpoints, typically under /dash/app.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:name/_dash-layout", h.layout)
	rg.POST("/:name/_dash-update-component", h.update)
	rg.GET("/:name/ws", h.ws)
}

func (h *Handler) app(c *gin.Context) *App {
	app, err := h.Registry.Lookup(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown app"})
		return nil
	}
	return app
}

func (h *Handler) layout(c *gin.Context) {
	app := h.app(c)
	if app == nil {
		return
	}
	c.JSON(http.StatusOK, app.Layout)
}

func (h *Handler) update(c *gin.Context) {
	app := h.app(c)
	if app == nil {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	resp, err := h.dispatch(c.Request.Context(), app, req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": messageFor(err)})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ws serves a live channel: every text frame is an UpdateRequest and is
// answered with an UpdateResponse or {"error": ...}. Hub events are
// interleaved on the same socket.
func (h *Handler) ws(c *gin.Context) {
	app := h.app(c)
	if app == nil {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	lc := h.Hub.add(app.Name, conn)
	defer h.Hub.remove(lc)
	h.Log.Debug("dash ws connected", zap.String("app", app.Name))

	ctx := c.Request.Context()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.Log.Debug("dash ws closed", zap.String("app", app.Name), zap.Error(err))
			return
		}

		var req UpdateRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			if werr := lc.writeJSON(gin.H{"error": "invalid json"}); werr != nil {
				return
			}
			continue
		}

		resp, err := h.dispatch(ctx, app, req)
		if err != nil {
			if werr := lc.writeJSON(gin.H{"error": messageFor(err)}); werr != nil {
				return
			}
			continue
		}
		if err := lc.writeJSON(resp); err != nil {
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, app *App, req UpdateRequest) (UpdateResponse, error) {
	resp, err := app.Dispatch(ctx, req)
	if err != nil && statusFor(err) == http.StatusInternalServerError {
		h.Log.Error("dash callback failed",
			zap.String("app", app.Name),
			zap.String("output", req.Output),
			zap.Error(err),
		)
	}
	return resp, err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownApp):
		return http.StatusNotFound
	case errors.Is(err, ErrUnknownOutput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch statusFor(err) {
	case http.StatusNotFound:
		return "unknown app"
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusForbidden:
		return "forbidden"
	default:
		return "callback failed"
	}
}
