package light

import (
	"math"

	"github.com/mlutz/deconzd/internal/deconz"
)

// Cover STOP direction inference: brightness up to 254 still counts as
// "moving down" to absorb the rounding error of the percent conversion.
// Device quirk, not general policy.
const stopThreshold = 254

// ColorConverter is the color-model conversion used when a light operates in
// xy color mode.
type ColorConverter interface {
	XYFromHSB(hue float64, sat, bri int) (x, y float64)
	HSBFromXY(x, y float64) (hue float64, sat, bri int)
}

// CommandContext is the immutable snapshot a single translation works on.
type CommandContext struct {
	Channel ChannelKind
	Command Command
	Cached  deconz.LightState

	// TransitionTime is the configured fade time in seconds, nil if unset.
	TransitionTime *float64
}

// Outcome is the result of a translation: either a state delta to send or an
// explicit no-op. Unsupported channel/command combinations are no-ops, never
// errors.
type Outcome struct {
	delta *deconz.LightState
}

// NoOp returns the outcome that sends nothing.
func NoOp() Outcome {
	return Outcome{}
}

// Delta returns an outcome carrying a state delta to send.
func Delta(state *deconz.LightState) Outcome {
	return Outcome{delta: state}
}

// IsNoOp reports whether the outcome carries nothing to send.
func (o Outcome) IsNoOp() bool {
	return o.delta == nil
}

// State returns the delta to send. Only valid when IsNoOp is false.
func (o Outcome) State() *deconz.LightState {
	return o.delta
}

// Translator turns channel commands into minimal gateway state deltas.
type Translator struct {
	convert  ColorConverter
	handlers map[ChannelKind]func(CommandContext) Outcome
}

// NewTranslator creates a translator with one handler registered per channel
// kind.
func NewTranslator(convert ColorConverter) *Translator {
	t := &Translator{convert: convert}
	t.handlers = map[ChannelKind]func(CommandContext) Outcome{
		ChannelSwitch:           t.translateSwitch,
		ChannelBrightness:       t.translateLight,
		ChannelColor:            t.translateLight,
		ChannelColorTemperature: t.translateColorTemperature,
		ChannelPosition:         t.translatePosition,
	}
	return t
}

// Translate computes the state delta for a command, or a no-op if the command
// does not apply to the channel.
func (t *Translator) Translate(c CommandContext) Outcome {
	handler, ok := t.handlers[c.Channel]
	if !ok {
		return NoOp()
	}

	out := handler(c)
	if out.IsNoOp() {
		return out
	}

	// A light being turned off rejects every other field, so an off delta
	// carries nothing else.
	if delta := out.State(); delta.On != nil && !*delta.On {
		return Delta(&deconz.LightState{On: delta.On})
	}
	return out
}

func (t *Translator) translateSwitch(c CommandContext) Outcome {
	cmd, ok := c.Command.(OnOff)
	if !ok {
		return NoOp()
	}
	on := bool(cmd)
	return Delta(&deconz.LightState{On: &on})
}

func (t *Translator) translateLight(c CommandContext) Outcome {
	delta := &deconz.LightState{}

	switch cmd := c.Command.(type) {
	case OnOff:
		on := bool(cmd)
		delta.On = &on

	case HSB:
		if c.Cached.ColorMode != nil && *c.Cached.ColorMode == deconz.ColorModeXY {
			x, y := t.convert.XYFromHSB(cmd.Hue, cmd.Sat, cmd.Bri)
			delta.XY = []float64{x, y}
			delta.Bri = intPtr(FromPercent(Percent(cmd.Bri)))
		} else {
			// "hs" is the default when the light never reported a color mode
			delta.Bri = intPtr(FromPercent(Percent(cmd.Bri)))
			delta.Hue = intPtr(DegreesToHue(cmd.Hue))
			delta.Sat = intPtr(FromPercent(Percent(cmd.Sat)))
		}

	case Percent:
		delta.Bri = intPtr(FromPercent(cmd))

	case Decimal:
		delta.Bri = intPtr(int(cmd))

	default:
		return NoOp()
	}

	if delta.Bri != nil {
		// send power state together with brightness if unknown or disagreeing
		if c.Cached.On == nil || (*delta.Bri > 0) != *c.Cached.On {
			on := *delta.Bri > 0
			delta.On = &on
		}

		// don't send bri=0 to a light that is already off
		if *delta.Bri == 0 && c.Cached.On != nil && !*c.Cached.On {
			return NoOp()
		}
	}

	if c.TransitionTime != nil {
		// value is in 1/10 seconds
		tt := int(math.Round(*c.TransitionTime * 10))
		delta.TransitionTime = &tt
	}

	return Delta(delta)
}

func (t *Translator) translateColorTemperature(c CommandContext) Outcome {
	cmd, ok := c.Command.(Decimal)
	if !ok {
		return NoOp()
	}

	mode := deconz.ColorModeCT
	ct := CtFromPercent(float64(cmd))
	delta := &deconz.LightState{ColorMode: &mode, Ct: &ct}

	// the gateway only accepts a color temperature while the light is on
	if c.Cached.On != nil && !*c.Cached.On {
		on := true
		delta.On = &on
	}

	return Delta(delta)
}

func (t *Translator) translatePosition(c CommandContext) Outcome {
	delta := &deconz.LightState{}

	switch cmd := c.Command.(type) {
	case Move:
		switch cmd {
		case MoveDown:
			// "down" engages the motor in the on direction
			on := true
			delta.On = &on
		case MoveUp:
			on := false
			delta.On = &on
		case MoveStop:
			currentOn, currentBri := c.Cached.On, c.Cached.Bri
			if currentOn != nil && *currentOn && currentBri != nil && *currentBri <= stopThreshold {
				// going down or currently stopped
				on := true
				delta.On = &on
			} else if currentOn != nil && !*currentOn && currentBri != nil && *currentBri > 0 {
				// going up or currently stopped
				on := false
				delta.On = &on
			}
		default:
			return NoOp()
		}

	case Percent:
		delta.Bri = intPtr(FromPercent(cmd))

	default:
		return NoOp()
	}

	return Delta(delta)
}

func intPtr(v int) *int {
	return &v
}
