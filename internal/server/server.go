// Package server assembles the realtime engine: store, handlers, socket dispatcher,
// scheduler and the HTTP routes in front of them.
package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/config"
	"github.com/aura-stage/backend/internal/auth"
	"github.com/aura-stage/backend/internal/middleware"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/polls"
	"github.com/aura-stage/backend/internal/questions"
	"github.com/aura-stage/backend/internal/ratelimit"
	"github.com/aura-stage/backend/internal/reactions"
	"github.com/aura-stage/backend/internal/realtime"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/scheduler"
	"github.com/aura-stage/backend/internal/session"
	"github.com/aura-stage/backend/internal/settings"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/timers"
)

// ResultsReader lists archived poll results for an event.
type ResultsReader interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.PollArchive, error)
}

// Deps are the external collaborators. Every field except JWT may be nil.
type Deps struct {
	Clock     clockwork.Clock
	JWT       *auth.JWTService
	Passwords auth.PasswordStore
	Writer    auth.PasswordWriter
	Archiver  polls.Archiver
	Results   ResultsReader
	Logger    *zap.Logger
}

// Server owns the in-memory engine and its HTTP front.
type Server struct {
	Store      *store.Store
	Hub        *realtime.Hub
	Dispatcher *realtime.Dispatcher
	Scheduler  *scheduler.Scheduler
	Publisher  *polls.Publisher
	Limiter    *ratelimit.Limiter
	Engine     *gin.Engine

	results ResultsReader
	logger  *zap.Logger
}

// New wires every component.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	st := store.New(clock, logger)
	hub := realtime.NewHub(logger)
	router := rooms.NewRouter(hub)
	limiter := ratelimit.New(ratelimit.DefaultRules, clock, logger)
	publisher := polls.NewPublisher(deps.Archiver, logger)

	provider := auth.NewProvider(deps.JWT, deps.Passwords, cfg.Auth.AVTechPasswordHash, logger)
	lifecycle := session.NewManager(st, router, hub, logger)
	dispatcher := realtime.NewDispatcher(hub, lifecycle, provider, logger)
	registerSocketRoutes(dispatcher, socketHandlers{
		polls:     polls.NewHandler(st, router, limiter, publisher, logger),
		timers:    timers.NewHandler(st, router, logger),
		questions: questions.NewHandler(st, router, limiter, logger),
		settings:  settings.NewHandler(st, router, limiter, logger),
		reactions: reactions.NewHandler(st, router, limiter, logger),
	})

	s := &Server{
		Store:      st,
		Hub:        hub,
		Dispatcher: dispatcher,
		Scheduler:  scheduler.New(st, router, publisher, cfg.Realtime.TickInterval, logger),
		Publisher:  publisher,
		Limiter:    limiter,
		results:    deps.Results,
		logger:     logger,
	}
	s.Engine = s.routes(cfg, deps)
	return s
}

func (s *Server) routes(cfg *config.Config, deps Deps) *gin.Engine {
	origins := middleware.ParseOrigins(cfg.Server.CORSAllowedOrigins)
	validate := func(token string) (string, string, error) {
		claims, err := deps.JWT.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID, claims.Role, nil
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(origins))
	r.Use(middleware.Logger(s.logger))

	r.GET("/health", s.health)

	authHandler := auth.NewHandler(deps.Writer, s.logger)

	events := r.Group("/events")
	events.Use(middleware.JWT(validate), middleware.RequireRole(models.RoleProducer))
	{
		events.GET("/:id/stats", s.stats)
		events.GET("/:id/results", s.pollResults)
		events.PUT("/:id/avtech-password", authHandler.SetAVTechPassword)
	}

	r.GET("/ws", realtime.ServeWs(s.Hub, s.Dispatcher, realtime.Options{
		SendBuffer:      cfg.Realtime.SendBuffer,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		CheckOrigin:     origins.CheckOrigin,
	}, s.logger))
	return r
}
