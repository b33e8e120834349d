// Package web serves the HTML pages that host the dash widgets.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tomdash/internal/auth"
	"tomdash/internal/permissions"
	"tomdash/internal/targets"
	"tomdash/internal/templatetags"
	"tomdash/pkg/models"
)

const htmlContentType = "text/html; charset=utf-8"

//go:embed templates/*.html
var templateFS embed.FS

type Handler struct {
	Users   *auth.Repo
	Perms   *permissions.Repo
	Targets *targets.Repo
	Log     *zap.Logger

	pages *template.Template
}

func NewHandler(users *auth.Repo, perms *permissions.Repo, repo *targets.Repo, lib *templatetags.Library, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	pages := template.Must(template.New("").Funcs(lib.FuncMap()).ParseFS(templateFS, "templates/*.html"))
	return &Handler{Users: users, Perms: perms, Targets: repo, Log: log, pages: pages}
}

// RegisterRoutes mounts the login page on public and the target pages on
// protected, which must carry auth.AuthMiddleware.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/login", h.login)
	protected.GET("/ui/targets", h.targetList)
}

type targetListData struct {
	Title   string
	Request templatetags.RequestContext
	Targets []models.Target
}

func (h *Handler) targetList(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || u == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	items, err := h.Targets.ListViewable(c.Request.Context(), h.Perms, u, "")
	if err != nil {
		h.Log.Error("list targets", zap.String("user", u.Username), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	h.render(c, "targets.html", targetListData{
		Title:   "Targets",
		Request: templatetags.RequestContext{User: u},
		Targets: items,
	})
	h.Log.Debug("target list served", zap.String("user", u.Username), zap.Int("targets", len(items)))
}

func (h *Handler) login(c *gin.Context) {
	next := c.Query("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/ui/targets"
	}
	h.render(c, "login.html", gin.H{"LoginURL": "/auth/login", "Next": next})
}

func (h *Handler) render(c *gin.Context, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		h.Log.Error("render page", zap.String("template", name), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "render_failed"})
		return
	}
	c.Data(http.StatusOK, htmlContentType, buf.Bytes())
}
