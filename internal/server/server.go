package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pulseim/pulse/internal/auth"
	"github.com/pulseim/pulse/internal/config"
	"github.com/pulseim/pulse/internal/dispatch"
	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/events"
	"github.com/pulseim/pulse/internal/friends"
	"github.com/pulseim/pulse/internal/gateway"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/notify"
	"github.com/pulseim/pulse/internal/presence"
	"github.com/pulseim/pulse/internal/pubsub"
	"github.com/pulseim/pulse/internal/roster"
	"github.com/pulseim/pulse/internal/rooms"
	"github.com/pulseim/pulse/internal/storage"
)

// Server wires the realtime core together: gateway, presence registry,
// room router, dispatcher, broadcaster and friend fan-out over one hub
// and one in-process bus.
type Server struct {
	E   *echo.Echo
	Cfg *config.Config

	bus      *pubsub.WatermillBus
	store    domain.MessageStore
	hub      *hub.Hub
	registry *presence.Registry
	gateway  *gateway.Gateway

	// Roster collaborators are in-memory here; production deployments
	// substitute the owning domain services.
	Friends    *roster.MemoryFriends
	Membership *roster.MemoryMembership
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config) (*Server, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var notifier domain.Notifier
	if cfg.RedisAddr != "" {
		rn, err := notify.NewRedis(context.Background(), cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("notification service: %w", err)
		}
		notifier = rn
	}

	bus := pubsub.NewWatermillBus()
	h := hub.New()
	registry := presence.NewRegistry(bus)

	friendStore := roster.NewMemoryFriends()
	membership := roster.NewMemoryMembership()

	fanout := friends.New(friendStore, registry, h, notifier)
	if err := fanout.Start(context.Background(), bus); err != nil {
		return nil, fmt.Errorf("start friend fanout: %w", err)
	}

	dispatcher := dispatch.New(store, h, cfg.MaxContentLen)
	broadcaster := events.New(store, h)
	router := rooms.NewRouter(membership)

	gw := gateway.New(gateway.Deps{
		Auth:        auth.NewVerifier(cfg.AuthSecret),
		Registry:    registry,
		Router:      router,
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
		Hub:         h,
		AuthTimeout: cfg.AuthTimeout,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(slogRequestLogger())

	s := &Server{
		E:          e,
		Cfg:        cfg,
		bus:        bus,
		store:      store,
		hub:        h,
		registry:   registry,
		gateway:    gw,
		Friends:    friendStore,
		Membership: membership,
	}
	s.registerRoutes()
	return s, nil
}

func openStore(cfg *config.Config) (domain.MessageStore, error) {
	switch cfg.StoreBackend {
	case config.StorePebble:
		return storage.OpenPebble(cfg.PebblePath)
	case config.StoreSurreal:
		return storage.NewSurrealStore(context.Background(), storage.SurrealConfig{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNS,
			Database:  cfg.SurrealDB,
			User:      cfg.SurrealUser,
			Pass:      cfg.SurrealPass,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// slogRequestLogger adapts echo's request logging onto slog.
func slogRequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	})
}
