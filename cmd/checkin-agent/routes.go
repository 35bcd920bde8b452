package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/checkin-sync-agent/api/swagger"
	"github.com/noah-isme/checkin-sync-agent/internal/handler"
	"github.com/noah-isme/checkin-sync-agent/internal/middleware"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
	"github.com/noah-isme/checkin-sync-agent/internal/network"
	"github.com/noah-isme/checkin-sync-agent/internal/service"
	"github.com/noah-isme/checkin-sync-agent/internal/state"
	"github.com/noah-isme/checkin-sync-agent/internal/websocket"
	"github.com/noah-isme/checkin-sync-agent/pkg/config"
	"github.com/noah-isme/checkin-sync-agent/pkg/logger"
	reqidmiddleware "github.com/noah-isme/checkin-sync-agent/pkg/middleware/requestid"
)

type routeServices struct {
	auth     *service.AuthService
	events   *service.EventService
	checkins *service.CheckinService
	sync     *service.SyncService
	reports  *service.ReportService
	metrics  *service.MetricsService
	store    *state.Store
	manual   *network.ManualSource
	hub      *websocket.Hub
	notifier *service.HubNotifier
	checks   map[string]handler.ReadinessCheck
	validate *validator.Validate
}

func newRouter(cfg *config.Config, logr *zap.Logger, s routeServices) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(s.metrics))

	metricsHandler := handler.NewMetricsHandler(s.metrics, s.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(s.auth)
	eventHandler := handler.NewEventHandler(s.events, s.validate)
	checkinHandler := handler.NewCheckinHandler(s.checkins, s.notifier, s.validate)
	syncHandler := handler.NewSyncHandler(s.sync, s.store)
	connectivityHandler := handler.NewConnectivityHandler(s.store, s.manual, s.validate)
	wsHandler := handler.NewWebSocketHandler(s.hub, logger.Component(logr, "websocket"))

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(s.auth))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	secured.GET("/events", eventHandler.List)
	secured.GET("/events/:id", eventHandler.Get)
	secured.GET("/events/:id/attendees", eventHandler.Attendees)
	secured.GET("/events/:id/attendees/:attendeeId/status", checkinHandler.Status)
	secured.POST("/events/:id/checkins", checkinHandler.Create)

	if cfg.Reports.Enabled {
		reportHandler := handler.NewReportHandler(s.reports, s.validate)
		secured.GET("/events/:id/roster", middleware.RequireRoles(models.RoleOrganizer), reportHandler.Roster)
	}

	secured.GET("/sync/pending", syncHandler.Pending)
	secured.GET("/sync/last", syncHandler.Last)
	secured.POST("/sync", syncHandler.Trigger)

	secured.GET("/connectivity", connectivityHandler.Get)
	secured.PUT("/connectivity", connectivityHandler.Set)

	secured.GET("/metrics/summary", metricsHandler.Summary)
	secured.GET("/ws", wsHandler.Stream)

	return r
}
