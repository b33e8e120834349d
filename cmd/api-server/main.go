package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tomdash/internal/auth"
	"tomdash/internal/dash"
	"tomdash/internal/permissions"
	"tomdash/internal/plots"
	"tomdash/internal/targets"
	"tomdash/internal/templatetags"
	"tomdash/internal/web"
	"tomdash/pkg/database"
	"tomdash/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	db := database.MustOpen(dbCfg, log)
	defer db.Close()

	users := auth.NewRepo(db)
	perms := permissions.NewRepo(db)
	targetRepo := targets.NewRepo(db)

	plots.RegisterTargetDistribution(&plots.TargetDistribution{
		Users:   users,
		Perms:   perms,
		Targets: targetRepo,
		Log:     log,
	})

	authCfg := cfg.Auth()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	requireAuth := auth.AuthMiddleware(tokenSvc, users)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := dash.NewHub()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "apps": dash.Default().Names(), "live": hub.Stats()})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "not_ready",
				"db_error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "db": "ok"})
	})

	auth.NewHandler(users, tokenSvc, log).RegisterRoutes(router.Group("/auth"))

	targetGroup := router.Group("/targets")
	targetGroup.Use(requireAuth)
	targetHandler := targets.NewHandler(targetRepo, perms, users, log)
	targetHandler.Changes = hub
	targetHandler.RegisterRoutes(targetGroup)

	dashGroup := router.Group("/dash/app")
	dashGroup.Use(requireAuth)
	dash.NewHandler(dash.Default(), hub, log).RegisterRoutes(dashGroup)

	lib := &templatetags.Library{Registry: dash.Default(), BasePath: "/dash/app", PlotlyJS: cfg.PlotlyJS}
	pages := router.Group("/")
	pages.Use(requireAuth)
	web.NewHandler(users, perms, targetRepo, lib, log).RegisterRoutes(router.Group("/"), pages)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", dbCfg.Path))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
