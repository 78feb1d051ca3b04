// Package server exposes the settlement pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viharalabs/templedesk/internal/booking"
	bookingdomain "github.com/viharalabs/templedesk/internal/booking/domain"
	"github.com/viharalabs/templedesk/internal/clock"
	"github.com/viharalabs/templedesk/internal/config"
	"github.com/viharalabs/templedesk/internal/gateway"
	"github.com/viharalabs/templedesk/internal/inventory"
	"github.com/viharalabs/templedesk/internal/ledger"
	"github.com/viharalabs/templedesk/internal/locks"
	"github.com/viharalabs/templedesk/internal/observability/metrics"
	"github.com/viharalabs/templedesk/internal/refseq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	metrics.Module,
	refseq.Module,
	gateway.Module,
	inventory.Module,
	ledger.Module,
	locks.Module,
	booking.Module,
	fx.Invoke(RegisterRoutes),
	fx.Invoke(run),
)

func NewEngine(registry *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogging(logger))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	bookingSvc bookingdomain.Service
	gateway    *gateway.Adapter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BookingSvc bookingdomain.Service
	Gateway    *gateway.Adapter
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		genID:      p.GenID,
		clock:      p.Clock,
		bookingSvc: p.BookingSvc,
		gateway:    p.Gateway,
	}
}

func RegisterRoutes(s *Server) {
	api := s.engine.Group("/v1", s.TempleContext(), s.ActorContext())
	{
		api.POST("/bookings", s.SubmitBooking)
		api.GET("/bookings", s.ListBookings)
		api.GET("/bookings/:id", s.GetBooking)
		api.POST("/bookings/:id/cancel", s.CancelBooking)
		api.POST("/bookings/:id/fulfill", s.FulfillBooking)
		api.POST("/bookings/:id/payments", s.RecordPledgePayment)
	}

	// Unauthenticated wire-protocol surface the gateway posts to. The
	// browser return arrives as either verb depending on gateway settings.
	s.engine.POST("/gateway/callback", s.HandleGatewayCallback)
	s.engine.POST("/gateway/return", s.HandleGatewayReturn)
	s.engine.GET("/gateway/return", s.HandleGatewayReturn)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
