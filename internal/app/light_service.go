package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mlutz/deconzd/internal/api"
	"github.com/mlutz/deconzd/internal/color"
	"github.com/mlutz/deconzd/internal/config"
	"github.com/mlutz/deconzd/internal/deconz"
	"github.com/mlutz/deconzd/internal/eventbus"
	"github.com/mlutz/deconzd/internal/light"
	"github.com/mlutz/deconzd/internal/storage"
)

// LightService owns the gateway client, the push stream and one handler per
// configured light. It routes pushed states to the owning handler and
// exposes command dispatch to the API server.
type LightService struct {
	cfg      *config.Config
	Client   *deconz.Client
	Stream   *deconz.PushStream
	Bus      *eventbus.Bus
	Store    *storage.LightStateStore
	handlers map[string]*light.Handler
}

// converter adapts the color package to the light.ColorConverter interface.
type converter struct{}

func (converter) XYFromHSB(hue float64, sat, bri int) (x, y float64) {
	return color.XYFromHSB(hue, sat, bri)
}

func (converter) HSBFromXY(x, y float64) (hue float64, sat, bri int) {
	return color.HSBFromXY(x, y)
}

// busEmitter publishes reconciled channel values onto the event bus.
type busEmitter struct {
	bus *eventbus.Bus
}

func (e *busEmitter) EmitChannelValue(lightID string, channel light.ChannelKind, value light.Value) {
	log.Debug().
		Str("light", lightID).
		Stringer("channel", channel).
		Interface("value", value).
		Msg("Channel value updated")

	e.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeChannelUpdate,
		Data: map[string]interface{}{
			"light_id": lightID,
			"channel":  channel.String(),
			"value":    value,
		},
	})
}

// NewLightService creates the service and one handler per configured light.
func NewLightService(cfg *config.Config, bus *eventbus.Bus, store *storage.LightStateStore) (*LightService, error) {
	client := deconz.NewClient(
		cfg.Deconz.Host,
		cfg.Deconz.Port,
		cfg.Deconz.APIKey,
		cfg.Deconz.Timeout.Duration(),
		cfg.Deconz.RateLimitRPS,
	)

	s := &LightService{
		cfg:      cfg,
		Client:   client,
		Bus:      bus,
		Store:    store,
		handlers: make(map[string]*light.Handler),
	}

	translator := light.NewTranslator(converter{})
	emitter := &busEmitter{bus: bus}

	for _, lc := range cfg.Lights {
		channels := make([]light.ChannelKind, 0, len(lc.Channels))
		for _, name := range lc.Channels {
			kind, err := light.ParseChannelKind(name)
			if err != nil {
				return nil, fmt.Errorf("light %s: %w", lc.ID, err)
			}
			channels = append(channels, kind)
		}

		s.handlers[lc.ID] = light.NewHandler(lc.ID, channels, translator, client, emitter, converter{}, light.Options{
			TransitionTime:    lc.TransitionTime,
			SuppressionWindow: cfg.Suppression.Window.Duration(),
			OnAccepted:        s.publishAccepted,
		})
	}

	// Persist every accepted state so caches survive restarts
	bus.Subscribe(eventbus.EventTypeLightState, s.persistState)

	return s, nil
}

// Start connects to the gateway, seeds handler caches from persisted state
// and performs the initial full-state fetch for every light.
func (s *LightService) Start(ctx context.Context) error {
	gateway, err := s.Client.Connect(ctx)
	if err != nil {
		return err
	}

	wsPort := s.cfg.Deconz.WsPort
	if wsPort == 0 {
		wsPort = gateway.WebsocketPort
	}
	if wsPort == 0 {
		return fmt.Errorf("gateway did not advertise a websocket port and ws_port is not configured")
	}

	// Enumerate gateway lights to catch configuration mistakes early
	known, err := s.Client.GetLights(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to enumerate gateway lights")
	} else {
		for id := range s.handlers {
			if _, ok := known[id]; !ok {
				log.Warn().Str("light", id).Msg("Configured light not known to the gateway")
			}
		}
		log.Info().
			Int("gateway_lights", len(known)).
			Int("configured", len(s.handlers)).
			Msg("Gateway lights enumerated")
	}

	s.Stream = deconz.NewPushStream(s.cfg.Deconz.Host, wsPort, deconz.PushStreamConfig{
		MinBackoff:    s.cfg.Deconz.MinRetryBackoff.Duration(),
		MaxBackoff:    s.cfg.Deconz.MaxRetryBackoff.Duration(),
		Multiplier:    s.cfg.Deconz.RetryMultiplier,
		MaxReconnects: s.cfg.Deconz.MaxReconnects,
	})

	// Seed caches from the last persisted states
	persisted, err := s.Store.All()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted light states")
	} else {
		for id, state := range persisted {
			if handler, ok := s.handlers[id]; ok {
				handler.Seed(state)
			}
		}
	}

	// Initial full-state fetch; a light the gateway won't show us (403) is
	// tolerated, a broken fetch is not fatal for the others
	for id, handler := range s.handlers {
		if err := handler.Fetch(ctx); err != nil {
			log.Warn().Err(err).Str("light", id).Msg("Initial state fetch failed")
		}
	}

	return nil
}

// StartBackground starts the push stream. A terminally failed stream is
// reported through onFatalError.
func (s *LightService) StartBackground(ctx context.Context, onFatalError func(error)) {
	go func() {
		if err := s.Stream.Run(ctx, s.dispatch); err != nil {
			onFatalError(err)
		}
	}()
}

// dispatch routes a pushed state to the handler owning that light.
func (s *LightService) dispatch(id string, state *deconz.LightState) {
	handler, ok := s.handlers[id]
	if !ok {
		log.Trace().Str("light", id).Msg("Push update for unconfigured light, skipping")
		return
	}
	handler.UpdateReceived(state)
}

// HandleCommand dispatches a channel command to the owning handler. It
// implements api.CommandSink.
func (s *LightService) HandleCommand(ctx context.Context, lightID string, channel light.ChannelKind, cmd light.Command) error {
	handler, ok := s.handlers[lightID]
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrUnknownLight, lightID)
	}
	return handler.HandleCommand(ctx, channel, cmd)
}

// publishAccepted puts every accepted full state on the bus.
func (s *LightService) publishAccepted(id string, state deconz.LightState) {
	s.Bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeLightState,
		Data: map[string]interface{}{
			"light_id": id,
			"state":    state,
		},
	})
}

// persistState is the bus subscriber writing accepted states to SQLite.
func (s *LightService) persistState(event eventbus.Event) {
	id, _ := event.Data["light_id"].(string)
	state, ok := event.Data["state"].(deconz.LightState)
	if !ok || id == "" {
		return
	}
	if err := s.Store.Set(id, state); err != nil {
		log.Error().Err(err).Str("light", id).Msg("Failed to persist light state")
	}
}

// Close releases the gateway client.
func (s *LightService) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
