// README: API gateway; builds the gin engine, registers routes and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"wastelink/internal/http/handlers"
	"wastelink/internal/http/middleware"
	"wastelink/internal/infra"
	"wastelink/internal/media"
	"wastelink/internal/modules/location"
	"wastelink/internal/modules/marketplace"
	"wastelink/internal/modules/pickup"
	"wastelink/internal/modules/user"
	"wastelink/internal/realtime"
)

type ServerDeps struct {
	Pickup      *pickup.Service
	Candidates  handlers.CandidateSource
	Marketplace *marketplace.Service
	Users       *user.Service
	Location    *location.Service
	Media       *media.Storage
	Hub         *realtime.Hub
	Verifier    infra.TokenVerifier
	Logger      *logrus.Logger

	RequestTimeout time.Duration
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	d := s.deps
	r := gin.New()
	r.Use(middleware.Recovery(d.Logger), middleware.Logging(d.Logger), middleware.Metrics(), middleware.CORS())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(d.Verifier)

	// Sockets are long lived and stay outside the request deadline.
	ws := handlers.NewWSHandler(d.Hub, d.Pickup)
	r.GET("/ws", auth, ws.Serve)

	api := r.Group("/api", auth, middleware.Timeout(d.RequestTimeout))

	pickups := handlers.NewPickupHandler(d.Pickup, d.Candidates)
	api.POST("/pickups", pickups.Create)
	api.GET("/pickups", pickups.List)
	api.GET("/pickups/:id", pickups.Get)
	api.PATCH("/pickups/:id/status", pickups.UpdateStatus)
	api.GET("/pickups/:id/candidates", pickups.Candidates)

	market := handlers.NewMarketplaceHandler(d.Marketplace)
	api.POST("/marketplace/:id/purchase", market.Purchase)
	api.GET("/marketplace/listings", market.Listings)
	api.GET("/transactions", market.Transactions)
	api.POST("/admin/pickups/:id/payout", market.Payout)

	users := handlers.NewUserHandler(d.Users)
	api.GET("/me", users.Me)
	api.PUT("/me", users.UpsertMe)
	api.POST("/admin/users/:id/verify", users.Verify)

	loc := handlers.NewLocationHandler(d.Location)
	api.PUT("/collectors/:id/location", loc.Update)

	mediaHandler := handlers.NewMediaHandler(d.Media)
	api.POST("/media", mediaHandler.Upload)

	return r
}
