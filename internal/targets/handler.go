package targets

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tomdash/internal/auth"
	"tomdash/internal/permissions"
	"tomdash/pkg/models"
)

// Notifier hears about changes that can alter what a widget shows.
type Notifier interface {
	Refresh(reason string)
}

type Handler struct {
	Repo  *Repo
	Perms *permissions.Repo
	Users *auth.Repo
	// Changes is optional.
	Changes Notifier
	Log     *zap.Logger
}

func NewHandler(repo *Repo, perms *permissions.Repo, users *auth.Repo, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repo: repo, Perms: perms, Users: users, Log: log}
}

// RegisterRoutes expects rg to already carry auth.AuthMiddleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)              // GET /targets
	rg.POST("", h.create)           // POST /targets
	rg.GET("/:id", h.getByID)       // GET /targets/:id
	rg.POST("/:id/grants", h.grant) // POST /targets/:id/grants
}

// currentUser loads the user behind the request's token.
func (h *Handler) currentUser(c *gin.Context) *auth.User {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	u, err := h.Users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.Log.Error("load user", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return nil
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return u
}

func (h *Handler) list(c *gin.Context) {
	u := h.currentUser(c)
	if u == nil {
		return
	}

	var typ models.TargetType
	if s := strings.TrimSpace(c.Query("type")); s != "" {
		typ = models.ParseTargetType(s)
		if typ == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type filter"})
			return
		}
	}

	items, err := h.Repo.ListViewable(c.Request.Context(), h.Perms, u, typ)
	if err != nil {
		h.Log.Error("list targets", zap.String("username", u.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}

type createReq struct {
	Name string  `json:"name"`
	Type string  `json:"type"`
	RA   float64 `json:"ra"`
	Dec  float64 `json:"dec"`
}

func (h *Handler) create(c *gin.Context) {
	u := h.currentUser(c)
	if u == nil {
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	t := models.Target{Name: req.Name, Type: models.TargetType(req.Type), RA: req.RA, Dec: req.Dec}
	id, err := h.Repo.Create(c.Request.Context(), t)
	if err != nil {
		if errors.Is(err, ErrInvalidTarget) {
			c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrInvalidTarget.Error()+": ")})
			return
		}
		h.Log.Error("create target", zap.String("name", req.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	// the creator can always see what they added
	if err := h.Perms.GrantUser(c.Request.Context(), id, u.ID); err != nil {
		h.Log.Error("grant creator", zap.Int64("target_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
		return
	}

	saved, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	h.changed("target created")
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) getByID(c *gin.Context) {
	u := h.currentUser(c)
	if u == nil {
		return
	}

	id, ok := parseID(c)
	if !ok {
		return
	}

	allowed, err := h.Perms.CanView(c.Request.Context(), u, id)
	if err != nil {
		h.Log.Error("can view", zap.Int64("target_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if !allowed {
		// indistinguishable from a missing target
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	t, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

type grantReq struct {
	Username string `json:"username"`
	GroupID  string `json:"group_id"`
}

func (h *Handler) grant(c *gin.Context) {
	u := h.currentUser(c)
	if u == nil {
		return
	}
	if !u.IsSuperuser {
		c.JSON(http.StatusForbidden, gin.H{"error": "superuser required"})
		return
	}

	id, ok := parseID(c)
	if !ok {
		return
	}

	var req grantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	t, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil || t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	switch {
	case strings.TrimSpace(req.Username) != "":
		grantee, err := h.Users.LookupUsername(c.Request.Context(), req.Username)
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		err = h.Perms.GrantUser(c.Request.Context(), id, grantee.ID)
		if err != nil {
			h.Log.Error("grant user", zap.Int64("target_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "grant failed"})
			return
		}
	case strings.TrimSpace(req.GroupID) != "":
		if err := h.Perms.GrantGroup(c.Request.Context(), id, strings.TrimSpace(req.GroupID)); err != nil {
			// foreign key failure when the group does not exist
			c.JSON(http.StatusBadRequest, gin.H{"error": "grant failed"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or group_id required"})
		return
	}

	h.changed("grant added")
	c.JSON(http.StatusOK, gin.H{"status": "granted"})
}

func (h *Handler) changed(reason string) {
	if h.Changes != nil {
		h.Changes.Refresh(reason)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
