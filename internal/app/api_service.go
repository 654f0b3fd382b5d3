package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mlutz/deconzd/internal/api"
	"github.com/mlutz/deconzd/internal/config"
)

// APIService wraps the command API HTTP server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, sink api.CommandSink) *APIService {
	server := api.NewServer(cfg.API.Host, cfg.API.Port, sink)
	return &APIService{
		cfg:    cfg,
		server: server,
	}
}

// Start begins the command API server if enabled.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		log.Debug().Msg("Command API server disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("Command API server error")
		}
	}()
}
