package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"glampstay/internal/infra/config"
	"glampstay/internal/infra/obs"
)

type SettlementHTTP interface {
	CreateBooking(c *gin.Context)
	RecordPayment(c *gin.Context)
	TransitionBooking(c *gin.Context)
	GetBooking(c *gin.Context)
	BookingAudit(c *gin.Context)
	SetCommissionStatus(c *gin.Context)
	GetCommission(c *gin.Context)
	CommissionAudit(c *gin.Context)
	AgentCommissions(c *gin.Context)
}

type Handlers struct {
	Settlement SettlementHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without binding it to an address.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", actorHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(ActorMiddleware)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	router.GET("/metrics", health.MetricsHandler())

	if h.Settlement != nil {
		router.POST("/bookings", h.Settlement.CreateBooking)
		router.GET("/bookings/:id", h.Settlement.GetBooking)
		router.POST("/bookings/:id/payments", h.Settlement.RecordPayment)
		router.PATCH("/bookings/:id/status", h.Settlement.TransitionBooking)
		router.GET("/bookings/:id/audit", h.Settlement.BookingAudit)
		router.GET("/commissions/:id", h.Settlement.GetCommission)
		router.PATCH("/commissions/:id", h.Settlement.SetCommissionStatus)
		router.GET("/commissions/:id/audit", h.Settlement.CommissionAudit)
		router.GET("/agents/:id/commissions", h.Settlement.AgentCommissions)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
