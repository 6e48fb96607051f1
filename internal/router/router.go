package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/outreachly/drip-engine/internal/handler"
	"github.com/outreachly/drip-engine/internal/middleware"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	ServiceTokenSecret string
	RequestTimeout     time.Duration
	MetricsPrefix      string
}

type Router struct {
	engine  *gin.Engine
	ops     *handler.Handler
	apiHs   []Handler
	cfg     Config
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(ops *handler.Handler, cfg Config, apiHandlers ...Handler) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	return &Router{
		engine:  engine,
		ops:     ops,
		apiHs:   apiHandlers,
		cfg:     cfg,
		metrics: newRouterMetrics(cfg.MetricsPrefix),
	}
}

func newRouterMetrics(prefix string) *routerMetrics {
	if prefix == "" {
		prefix = "dripengine"
	}
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prefix,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 30},
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (r *Router) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// Setup wires middleware and routes. Health and metrics stay outside auth
// so probes and scrapes need no token.
func (r *Router) Setup() {
	r.engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		r.instrument(),
	)

	r.engine.GET("/health", r.ops.LivenessCheck)
	r.engine.GET("/health/ready", r.ops.ReadinessCheck)
	r.engine.GET("/metrics", r.ops.MetricsHandler)

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.ServiceAuth(r.cfg.ServiceTokenSecret),
		middleware.Timeout(r.cfg.RequestTimeout),
	)
	for _, h := range r.apiHs {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
