package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/servimatch/servimatch/internal/channel"
	"github.com/servimatch/servimatch/internal/config"
	"github.com/servimatch/servimatch/internal/db"
	"github.com/servimatch/servimatch/internal/domain"
	"github.com/servimatch/servimatch/internal/logger"
	"github.com/servimatch/servimatch/internal/middleware"
	"github.com/servimatch/servimatch/internal/negotiation"
	"github.com/servimatch/servimatch/internal/notify"
	"github.com/servimatch/servimatch/internal/push"
	"github.com/servimatch/servimatch/internal/recommend"
	"github.com/servimatch/servimatch/internal/store/pgdb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	ctx := context.Background()
	pool, err := db.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	stores := pgdb.New(pool)
	router := channel.NewRouter(log)
	transport := push.LogTransport{Log: log}
	notifier := notify.NewService(stores.Notifications, router, transport, log)
	service := negotiation.NewService(stores, router, notifier, log)
	ranking := recommend.NewClient(cfg.Ranking, log)

	negotiationHandler := negotiation.NewHandler(service, stores)
	notifyHandler := notify.NewHandler(stores.Notifications, notifier)
	recommendHandler := recommend.NewHandler(ranking, stores.Directory, log)
	wsHandler := channel.NewWSHandler(router, service, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "servimatch"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	auth := middleware.Auth(cfg.Auth.AccessSecret)
	api := e.Group("", auth)

	api.GET("/ws", wsHandler.Serve)

	api.POST("/requests", negotiationHandler.CreateRequest, middleware.RequireRoles(domain.RoleClient))
	api.GET("/requests/me", negotiationHandler.ListMyRequests, middleware.RequireRoles(domain.RoleClient))
	api.GET("/requests/open", negotiationHandler.ListOpenRequests, middleware.RequireRoles(domain.RoleTechnician))
	api.GET("/requests/:id", negotiationHandler.GetRequest)
	api.POST("/requests/:id/cancel", negotiationHandler.CancelRequest)

	api.POST("/requests/:id/offers", negotiationHandler.SubmitOffer, middleware.RequireRoles(domain.RoleTechnician))
	api.GET("/requests/:id/offers", negotiationHandler.ListOffers)
	api.POST("/requests/:id/select", negotiationHandler.SelectOffer, middleware.RequireRoles(domain.RoleClient))

	api.GET("/assignments/:id", negotiationHandler.GetAssignment)
	api.POST("/assignments/:id/advance", negotiationHandler.AdvanceAssignment, middleware.RequireRoles(domain.RoleTechnician))

	api.POST("/requests/:id/messages", negotiationHandler.SendGroupMessage)
	api.GET("/requests/:id/messages", negotiationHandler.GroupMessages)
	api.POST("/assignments/:id/messages", negotiationHandler.SendPrivateMessage)
	api.GET("/assignments/:id/messages", negotiationHandler.PrivateMessages)

	api.GET("/requests/:id/recommendations", recommendHandler.Recommendations, middleware.RequireRoles(domain.RoleClient))

	api.GET("/notifications", notifyHandler.List)
	api.GET("/notifications/unread", notifyHandler.UnreadCount)
	api.POST("/notifications/:id/read", notifyHandler.MarkRead)
	api.POST("/notifications/read-all", notifyHandler.MarkAllRead)
	api.DELETE("/notifications/:id", notifyHandler.Delete)
	api.DELETE("/notifications", notifyHandler.DeleteAll)

	admin := e.Group("/admin", auth, middleware.RequireRoles(domain.RoleAdmin))
	admin.GET("/requests", negotiationHandler.ListAllRequests)
	admin.POST("/notifications", notifyHandler.AdminSend)

	e.GET("/ranking/health", recommendHandler.Health)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting servimatch")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
