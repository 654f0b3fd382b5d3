package deconz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrMaxReconnectsExceeded is returned when the maximum number of reconnect
// attempts is exceeded.
var ErrMaxReconnectsExceeded = errors.New("max reconnects exceeded")

// PushStreamConfig contains configuration for push stream reconnection.
type PushStreamConfig struct {
	MinBackoff    time.Duration // Minimum backoff between reconnects
	MaxBackoff    time.Duration // Maximum backoff between reconnects
	Multiplier    float64       // Backoff multiplier
	MaxReconnects int           // Max reconnect attempts, 0 = infinite
}

// DefaultPushStreamConfig returns sensible defaults for the push stream.
func DefaultPushStreamConfig() PushStreamConfig {
	return PushStreamConfig{
		MinBackoff:    1 * time.Second,
		MaxBackoff:    2 * time.Minute,
		Multiplier:    2.0,
		MaxReconnects: 0, // infinite
	}
}

// StateFunc receives the state carried by a push message for a light.
type StateFunc func(id string, state *LightState)

// PushStream listens to the gateway WebSocket for asynchronous state
// updates.
type PushStream struct {
	url    string
	dialer *websocket.Dialer
	config PushStreamConfig
}

// NewPushStream creates a push stream listener for the given gateway host
// and WebSocket port.
func NewPushStream(host string, port int, config PushStreamConfig) *PushStream {
	return &PushStream{
		url:    fmt.Sprintf("ws://%s:%d", host, port),
		dialer: websocket.DefaultDialer,
		config: config,
	}
}

// Run listens to the push stream with automatic reconnection, invoking
// onState once per light state message. Returns ErrMaxReconnectsExceeded if
// max reconnects is exceeded.
func (p *PushStream) Run(ctx context.Context, onState StateFunc) error {
	retryCount := 0
	currentBackoff := p.config.MinBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := p.connect(ctx, onState)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			retryCount++

			if p.config.MaxReconnects > 0 && retryCount > p.config.MaxReconnects {
				log.Error().
					Int("max_reconnects", p.config.MaxReconnects).
					Msg("Push stream: max reconnects exceeded, terminating")
				return ErrMaxReconnectsExceeded
			}

			log.Warn().
				Err(err).
				Dur("backoff", currentBackoff).
				Int("retry", retryCount).
				Int("max_reconnects", p.config.MaxReconnects).
				Msg("Push stream disconnected, reconnecting")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(currentBackoff):
			}

			nextBackoff := time.Duration(float64(currentBackoff) * p.config.Multiplier)
			if nextBackoff > p.config.MaxBackoff {
				nextBackoff = p.config.MaxBackoff
			}
			currentBackoff = nextBackoff

			continue
		}

		// Reset retry count and backoff on successful connection
		retryCount = 0
		currentBackoff = p.config.MinBackoff
	}
}

func (p *PushStream) connect(ctx context.Context, onState StateFunc) error {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	log.Info().Str("url", p.url).Msg("Connected to deCONZ push stream")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		p.processMessage(data, onState)
	}
}

// processMessage parses a single WebSocket frame. Frames that don't carry a
// recognizable light state are ignored.
func (p *PushStream) processMessage(data []byte, onState StateFunc) {
	var msg PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("data", string(data)).Msg("Failed to parse push message")
		return
	}

	if msg.Type != "event" || msg.Event != "changed" || msg.Resource != "lights" {
		log.Trace().
			Str("type", msg.Type).
			Str("event", msg.Event).
			Str("resource", msg.Resource).
			Str("id", msg.ID).
			Msg("Unhandled push message")
		return
	}

	if msg.State == nil {
		return
	}

	onState(msg.ID, msg.State)
}
