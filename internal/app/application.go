// Package app wires every component together and owns the process
// lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dilshad08/virtual-classroom/internal/api"
	"github.com/dilshad08/virtual-classroom/internal/auth"
	"github.com/dilshad08/virtual-classroom/internal/broadcast"
	"github.com/dilshad08/virtual-classroom/internal/config"
	"github.com/dilshad08/virtual-classroom/internal/liveclass"
	"github.com/dilshad08/virtual-classroom/internal/store"
	"github.com/dilshad08/virtual-classroom/internal/websocket"
)

// Application coordinates all system components.
type Application struct {
	config      *config.Config
	store       *store.Store
	broadcaster *broadcast.Broadcaster
	service     *liveclass.Service
	httpServer  *http.Server
}

// New initializes components in dependency order:
// store -> broadcaster -> core service -> auth -> adapters -> HTTP.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.New(&store.Config{
		Path:            cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		WriteTimeout:    cfg.Database.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	broadcaster := broadcast.New(cfg.Broadcast.QueueSize)

	policy := liveclass.NewJoinPolicy(cfg.Broadcast.JoinExemptRoles...)
	service := liveclass.NewService(st, broadcaster, policy)

	identity := auth.NewService(st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authz := auth.NewPolicy()

	apiServer := api.NewServer(service, identity, authz, st, broadcaster)
	wsHandler := websocket.NewHandler(service, identity, authz, broadcaster)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		store:       st,
		broadcaster: broadcaster,
		service:     service,
		httpServer:  httpServer,
	}, nil
}

// Start launches the broadcaster and the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting virtual classroom on %s", app.httpServer.Addr)

	if err := app.broadcaster.Start(ctx); err != nil {
		return fmt.Errorf("failed to start broadcaster: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.broadcaster.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Virtual classroom started")
		return nil
	case <-ctx.Done():
		_ = app.broadcaster.Stop()
		return ctx.Err()
	}
}

// Stop shuts everything down in reverse order:
// HTTP -> broadcaster -> store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down virtual classroom")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.broadcaster.Stop(); err != nil {
		log.Printf("Broadcaster shutdown error: %v", err)
	}
	if err := app.store.Close(); err != nil {
		log.Printf("Store shutdown error: %v", err)
	}

	log.Printf("Shutdown complete")
	return nil
}

// Addr returns the server address for external connections.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
