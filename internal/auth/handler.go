package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Repo   *Repo
	Tokens TokenService
	Log    *zap.Logger
}

func NewHandler(repo *Repo, tokens TokenService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repo: repo, Tokens: tokens, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/logout", AuthMiddleware(h.Tokens, h.Repo), h.logout)
	rg.GET("/me", AuthMiddleware(h.Tokens, h.Repo), h.me)
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var ErrInvalidUser = errors.New("invalid user")

// NewUser validates the fields and hashes the password. It is shared with
// the admin CLI. Validation failures wrap ErrInvalidUser.
func NewUser(username, email, password string, superuser bool) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if len(username) < 3 || len(username) > 30 {
		return User{}, fmt.Errorf("%w: username must be 3-30 chars", ErrInvalidUser)
	}
	if !strings.Contains(email, "@") || len(email) > 255 {
		return User{}, fmt.Errorf("%w: invalid email", ErrInvalidUser)
	}
	if len(password) < 8 || len(password) > 72 {
		return User{}, fmt.Errorf("%w: password must be 8-72 chars", ErrInvalidUser)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsSuperuser:  superuser,
	}, nil
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := NewUser(req.Username, req.Email, req.Password, false)
	if err != nil {
		if errors.Is(err, ErrInvalidUser) {
			c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrInvalidUser.Error()+": ")})
			return
		}
		h.Log.Error("new user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	// uniqueness checks
	existing, err := h.Repo.GetByEmail(c.Request.Context(), u.Email)
	if err != nil {
		h.Log.Error("lookup email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}
	existing, err = h.Repo.GetByUsername(c.Request.Context(), u.Username)
	if err != nil {
		h.Log.Error("lookup username", zap.String("username", u.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	if err := h.Repo.CreateUser(c.Request.Context(), u); err != nil {
		// SQLite unique constraint will also trigger here in races
		h.Log.Error("create user", zap.String("username", u.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	h.issue(c, http.StatusCreated, &u)
}

type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if req.Password == "" || (strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Username) == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username or email and password required"})
		return
	}

	var (
		u   *User
		err error
	)
	if strings.TrimSpace(req.Email) != "" {
		u, err = h.Repo.GetByEmail(c.Request.Context(), req.Email)
	} else {
		u, err = h.Repo.GetByUsername(c.Request.Context(), req.Username)
	}
	if err != nil || u == nil {
		// don't reveal which part failed
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.issue(c, http.StatusOK, u)
}

func (h *Handler) issue(c *gin.Context, status int, u *User) {
	token, exp, err := h.Tokens.Sign(u)
	if err != nil {
		h.Log.Error("sign token", zap.String("username", u.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(time.Until(exp).Seconds()), "/", "", false, true)
	c.JSON(status, gin.H{
		"user": gin.H{
			"id":        u.ID,
			"username":  u.Username,
			"email":     u.Email,
			"superuser": u.IsSuperuser,
		},
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if err := h.Repo.BumpTokenVersion(c.Request.Context(), claims.UserID); err != nil {
		h.Log.Error("logout", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	claims := MustGetClaims(c)
	c.JSON(http.StatusOK, gin.H{
		"id":        claims.UserID,
		"username":  claims.Username,
		"superuser": claims.Superuser,
	})
}
