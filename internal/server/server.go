package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"fortune-letter/internal/metrics"
	"fortune-letter/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthFunc reports store health for /healthz.
type HealthFunc func(ctx context.Context) map[string]string

type Options struct {
	CORSOrigins    []string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Health         HealthFunc
}

// Server is the HTTP front of the order service.
type Server struct {
	orders service.OrderService
	router *gin.Engine
	log    *zap.Logger
	health HealthFunc
}

func NewServer(orders service.OrderService, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		accessLog(log),
		httpMetrics(opts.Metrics),
		cors.New(corsConfig(opts.CORSOrigins)),
	)

	s := &Server{
		orders: orders,
		router: router,
		log:    log.With(zap.String("component", "http_server")),
		health: opts.Health,
	}

	router.GET("/healthz", s.handleHealth)
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := router.Group("/api")
	{
		api.POST("/orders", s.handleCreateOrder)
		api.GET("/orders/:orderId", s.handleGetOrder)
		api.POST("/payments/request", s.handleRequestPayment)
		api.POST("/payments/confirm", s.handleConfirmPayment)
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// HTTPServer wraps the router with the timeouts used in production.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		// confirm may wait on the text generation provider
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  time.Minute,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
