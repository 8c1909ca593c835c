// Package api serves the procedure endpoints and the sign-in flow over gin.
//
// Procedures live under /api/trpc/<namespace>.<name>. Queries are GET requests with
// an optional JSON "input" query parameter; mutations are POST requests with a JSON
// body. Results are wrapped as {"result": ...} and failures as {"error": {...}}.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"todo-calendar/internal/metrics"
	"todo-calendar/internal/service"
	"todo-calendar/internal/session"
)

// Options wires the server to its collaborators.
type Options struct {
	Users    *service.UserService
	Tasks    *service.TaskService
	Feedback *service.FeedbackService
	Sessions *session.Manager
	// OAuth enables /api/oauth/login and /api/oauth/callback when set.
	OAuth   *OAuth
	Metrics *metrics.Metrics
	// Gatherer exposes /metrics when set.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Production  bool
	Log         *zap.Logger
}

type Server struct {
	users      *service.UserService
	tasks      *service.TaskService
	feedback   *service.FeedbackService
	sessions   *session.Manager
	oauth      *OAuth
	metrics    *metrics.Metrics
	log        *zap.Logger
	engine     *gin.Engine
	procedures map[string]procedure
}

func NewServer(opts Options) (*Server, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}

	s := &Server{
		users:      opts.Users,
		tasks:      opts.Tasks,
		feedback:   opts.Feedback,
		sessions:   opts.Sessions,
		oauth:      opts.OAuth,
		metrics:    opts.Metrics,
		log:        opts.Log,
		engine:     gin.New(),
		procedures: make(map[string]procedure),
	}

	s.engine.Use(gin.Recovery(), requestLogger(opts.Log), gzip.Gzip(gzip.DefaultCompression))
	if len(opts.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = opts.CORSOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		s.engine.Use(cors.New(corsConfig))
	}
	s.engine.Use(s.authenticate())

	s.registerProcedures()

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
	s.engine.Any("/api/trpc/:procedure", s.dispatch)
	if s.oauth != nil {
		s.engine.GET("/api/oauth/login", s.login)
		s.engine.GET("/api/oauth/callback", s.callback)
	}
	if opts.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return s, nil
}

// Engine exposes the router so pages can be mounted next to the procedures.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
