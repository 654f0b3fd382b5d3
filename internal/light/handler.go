package light

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlutz/deconzd/internal/deconz"
)

// DefaultSuppressionWindow is how long pushed updates that contradict the
// last sent command are dropped after a send, when the command carried no
// transition time. Whether 250ms is enough on slow networks is an open
// question, so it stays configurable.
const DefaultSuppressionWindow = 250 * time.Millisecond

// Transport sends state deltas to and fetches state from the gateway.
type Transport interface {
	SetLightState(ctx context.Context, id string, state *deconz.LightState) error
	GetLight(ctx context.Context, id string) (*deconz.LightMessage, error)
}

// Emitter receives reconciled channel values.
type Emitter interface {
	EmitChannelValue(lightID string, channel ChannelKind, value Value)
}

// Options configures a Handler.
type Options struct {
	// TransitionTime is the fade time in seconds included with
	// brightness/color deltas, nil if unset.
	TransitionTime *float64

	// SuppressionWindow is the default echo-suppression duration; zero
	// means DefaultSuppressionWindow.
	SuppressionWindow time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	// OnAccepted is called with every accepted state, outside the handler
	// lock. Used to persist the last known state.
	OnAccepted func(id string, state deconz.LightState)
}

// Handler owns the reconciliation state of a single light: the cached
// gateway state, the last sent command and the suppression deadline. Command
// handling and push updates arrive from independent goroutines and are
// serialized on one mutex; the critical "check window, then replace state"
// step is atomic.
type Handler struct {
	id         string
	channels   []ChannelKind
	translator *Translator
	transport  Transport
	emitter    Emitter
	convert    ColorConverter

	transitionTime *float64
	window         time.Duration
	clock          func() time.Time
	onAccepted     func(id string, state deconz.LightState)
	log            zerolog.Logger

	mu            sync.Mutex
	cache         deconz.LightState
	lastCommand   deconz.LightState
	suppressUntil time.Time
}

// NewHandler creates a handler for one light with the given channels.
func NewHandler(id string, channels []ChannelKind, translator *Translator, transport Transport, emitter Emitter, convert ColorConverter, opts Options) *Handler {
	window := opts.SuppressionWindow
	if window == 0 {
		window = DefaultSuppressionWindow
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Handler{
		id:             id,
		channels:       channels,
		translator:     translator,
		transport:      transport,
		emitter:        emitter,
		convert:        convert,
		transitionTime: opts.TransitionTime,
		window:         window,
		clock:          clock,
		onAccepted:     opts.OnAccepted,
		log:            log.With().Str("light", id).Logger(),
	}
}

// ID returns the light id this handler owns.
func (h *Handler) ID() string {
	return h.id
}

// Channels returns the channel kinds configured for this light.
func (h *Handler) Channels() []ChannelKind {
	return h.channels
}

// HandleCommand translates a channel command into a state delta and sends it.
// Commands that don't apply to the channel are silently ignored. Only a
// successful send arms the suppression window and records the last command.
func (h *Handler) HandleCommand(ctx context.Context, channel ChannelKind, cmd Command) error {
	if _, ok := cmd.(Refresh); ok {
		h.mu.Lock()
		cached := h.cache
		h.mu.Unlock()
		h.emit(channel, &cached)
		return nil
	}

	logger := h.log.With().
		Str("command_id", uuid.NewString()).
		Stringer("channel", channel).
		Logger()

	h.mu.Lock()
	cctx := CommandContext{
		Channel:        channel,
		Command:        cmd,
		Cached:         h.cache,
		TransitionTime: h.transitionTime,
	}
	h.mu.Unlock()

	out := h.translator.Translate(cctx)
	if out.IsNoOp() {
		logger.Trace().Msg("Command not applicable, ignoring")
		return nil
	}

	delta := out.State()
	logger.Trace().Interface("delta", delta).Msg("Sending state delta")

	if err := h.transport.SetLightState(ctx, h.id, delta); err != nil {
		logger.Debug().Err(err).Msg("Sending command failed")
		return err
	}

	window := h.window
	if delta.TransitionTime != nil {
		window = time.Duration(*delta.TransitionTime) * time.Millisecond
	}

	h.mu.Lock()
	h.suppressUntil = h.clock().Add(window)
	h.lastCommand = *delta
	h.mu.Unlock()

	return nil
}

// UpdateReceived reconciles an incoming state from a push message or fetch.
// While the suppression window is armed, states that differ from the last
// sent command are dropped; everything else replaces the cache wholesale and
// re-emits every channel. No field-level merge ever happens.
func (h *Handler) UpdateReceived(state *deconz.LightState) {
	if state == nil {
		return
	}

	h.mu.Lock()
	if h.clock().Before(h.suppressUntil) && !state.EqualsIgnoreNil(&h.lastCommand) {
		h.log.Trace().Time("until", h.suppressUntil).Msg("Ignoring differing update after last command")
		h.mu.Unlock()
		return
	}
	h.cache = *state
	accepted := *state
	h.mu.Unlock()

	for _, channel := range h.channels {
		h.emit(channel, &accepted)
	}

	if h.onAccepted != nil {
		h.onAccepted(h.id, accepted)
	}
}

// Fetch reads the full light state from the gateway and reconciles it. A
// gateway refusing access (403) yields no state and no error.
func (h *Handler) Fetch(ctx context.Context) error {
	msg, err := h.transport.GetLight(ctx, h.id)
	if err != nil {
		return err
	}
	if msg == nil || msg.State == nil {
		return nil
	}
	h.UpdateReceived(msg.State)
	return nil
}

// Seed primes the cache without emitting, e.g. from persisted state at
// startup.
func (h *Handler) Seed(state deconz.LightState) {
	h.mu.Lock()
	h.cache = state
	h.mu.Unlock()
}

func (h *Handler) emit(channel ChannelKind, state *deconz.LightState) {
	switch channel {
	case ChannelSwitch:
		if state.On != nil {
			h.emitter.EmitChannelValue(h.id, channel, OnOff(*state.On))
		}

	case ChannelColor:
		if state.Hue != nil && state.Sat != nil && state.Bri != nil {
			h.emitter.EmitChannelValue(h.id, channel, HSB{
				Hue: HueToDegrees(*state.Hue),
				Sat: int(ToPercent(*state.Sat)),
				Bri: int(ToPercent(*state.Bri)),
			})
		} else if len(state.XY) == 2 {
			hue, sat, bri := h.convert.HSBFromXY(state.XY[0], state.XY[1])
			h.emitter.EmitChannelValue(h.id, channel, HSB{Hue: hue, Sat: sat, Bri: bri})
		}

	case ChannelBrightness:
		// an off light shows as off, regardless of its stored brightness
		if state.Bri != nil && state.On != nil && *state.On {
			h.emitter.EmitChannelValue(h.id, channel, ToPercent(*state.Bri))
		} else {
			h.emitter.EmitChannelValue(h.id, channel, OnOff(false))
		}

	case ChannelColorTemperature:
		if state.Ct != nil {
			h.emitter.EmitChannelValue(h.id, channel, Decimal(CtToPercent(*state.Ct)))
		}

	case ChannelPosition:
		if state.Bri != nil {
			h.emitter.EmitChannelValue(h.id, channel, ToPercent(*state.Bri))
		}
	}
}
