package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/service"
	"github.com/urielssan/subite/internal/slots"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ReadinessChecker reports whether a backing store is usable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Bookings *service.BookingService
	Admin    *service.AdminService
	Slots    *service.SlotService
	Catalog  *slots.Catalog
	Clock    domain.Clock
	Cache    domain.CacheRepository
	DB       ReadinessChecker
}

// Server is the public booking and admin HTTP API.
type Server struct {
	cfg    config.APIConfig
	deps   Deps
	engine *gin.Engine
	server *http.Server
	logger *zerolog.Logger
}

func NewServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	httpLogger := logger.With().Str("component", "http").Logger()

	s := &Server{cfg: cfg, deps: deps, logger: &httpLogger}
	s.engine = s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		s.logger.Warn().Err(err).Msg("failed to set trusted proxies")
	}

	r.Use(RequestID(), AccessLog(s.logger), Recovery(s.logger))
	if mw := CORS(s.cfg.CORS, s.cfg.Auth); mw != nil {
		r.Use(mw)
	}
	r.Use(newRateLimiter(s.cfg.RateLimit, s.cfg.Auth).Middleware())

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)

	v1 := r.Group("/api/v1")
	v1.GET("/routes", s.listRoutes)
	v1.GET("/shared/availability", s.sharedAvailability)
	v1.GET("/bookings/:kind/:id/receipt", s.receipt)

	book := v1.Group("", bookingThrottle(s.deps.Cache, s.cfg.RateLimit.BookingsPerMinute, s.logger))
	book.POST("/shared/bookings", s.bookShared)
	book.POST("/parcels", s.bookParcel)
	book.POST("/airport", s.bookAirport)
	book.POST("/exclusive", s.bookExclusive)
	book.POST("/anywhere", s.bookAnywhere)

	auth := NewAdminAuth(s.cfg.Auth)
	read := v1.Group("/admin", auth.Require(PermAdminRead))
	read.GET("/dashboard", s.dashboard)
	read.GET("/prices", s.listPrices)
	read.GET("/schedules", s.listSchedules)
	read.GET("/bookings", s.listBookings)
	read.GET("/bookings/export", s.exportBookings)

	write := v1.Group("/admin", auth.Require(PermAdminWrite))
	write.PUT("/prices", s.updatePrices)
	write.PUT("/schedules", s.saveSchedule)
	write.DELETE("/schedules/:id", s.deleteSchedule)
	write.DELETE("/bookings/:kind/:id", s.deleteBooking)
	write.POST("/slots/cleanup", s.cleanupSlots)
	write.POST("/slots/migrate", s.migrateBookings)
	write.POST("/slots/reconcile", s.reconcileSlots)

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.Ready(c.Request.Context()); err != nil {
			s.logger.Error().Err(err).Msg("readiness check failed")
			respondError(c, http.StatusServiceUnavailable, "not_ready", "database unavailable", nil)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
