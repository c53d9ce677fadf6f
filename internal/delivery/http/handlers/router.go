package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/middleware"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/metrics"
)

type RouterDeps struct {
	ServiceName string
	AdminToken  string
	Checkout    *CheckoutHandler
	Admin       *AdminHandler
	Health      *HealthHandler
	Metrics     *metrics.SettlementMetrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(middleware.LoggerMiddleware(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(d.Metrics))
	}

	r.GET("/health", d.Health.Health)
	if d.Gatherer != nil {
		r.GET("/metrics", middleware.PrometheusHandler(d.Gatherer))
	}

	api := r.Group("/api")
	{
		api.POST("/checkout", d.Checkout.Initiate)
		api.GET("/checkout/return", d.Checkout.Return)
		api.POST("/checkout/return", d.Checkout.Return)
		api.POST("/checkout/confirm", d.Checkout.Confirm)
		api.GET("/orders/:id/history", d.Checkout.History)
	}

	admin := r.Group("/admin", middleware.AdminAuth(d.AdminToken))
	{
		admin.POST("/orders/:id/refund", d.Admin.Refund)
		admin.POST("/orders/:id/capture", d.Admin.Capture)
		admin.POST("/orders/:id/settle", d.Admin.Enqueue)
		admin.POST("/queue/run", d.Admin.RunQueue)
		admin.POST("/queue/cleanup", d.Admin.Cleanup)
		admin.GET("/queue/depth", d.Admin.QueueDepth)
		admin.GET("/queue/messages/:id", d.Admin.QueueMessage)
		admin.GET("/security-events", d.Admin.SecurityEvents)
	}

	return r
}
