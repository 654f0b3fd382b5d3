package app

import (
	"context"

	"github.com/mlutz/deconzd/internal/config"
	"github.com/mlutz/deconzd/internal/db"
	"github.com/mlutz/deconzd/internal/eventbus"
	"github.com/mlutz/deconzd/internal/storage"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB    *db.DB
	Bus   *eventbus.Bus
	Store *storage.LightStateStore

	// High-level services
	Lights *LightService
	API    *APIService
	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Initialize persisted state store
	s.Store = storage.NewLightStateStore(database.DB)

	// Initialize light service (handlers, translator, gateway client)
	s.Lights, err = NewLightService(cfg, s.Bus, s.Store)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Initialize command API service
	s.API = NewAPIService(cfg, s.Lights)

	// Initialize health service
	s.Health = NewHealthService(cfg)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., max reconnects exceeded).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// Connect to the gateway, seed caches, fetch initial state
	if err := s.Lights.Start(ctx); err != nil {
		return err
	}

	// Start all background services
	s.Lights.StartBackground(ctx, onFatalError)
	s.API.Start(ctx)
	s.Health.Start(ctx)

	return nil
}

// ClearState clears all persisted light state.
func (s *Services) ClearState() error {
	return s.Store.Clear()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(shutdownCtx)
		cancel()
	}
	if s.Lights != nil {
		s.Lights.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
