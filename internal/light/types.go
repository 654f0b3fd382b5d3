// Package light implements the per-light translation and reconciliation
// engine: user commands on typed channels become sparse state deltas for the
// gateway, and gateway state updates become channel value emissions, gated by
// an echo-suppression window around recently sent commands.
package light

import "fmt"

// ChannelKind identifies a control surface of a light.
type ChannelKind int

const (
	ChannelSwitch ChannelKind = iota
	ChannelBrightness
	ChannelColor
	ChannelColorTemperature
	ChannelPosition
)

var channelNames = map[ChannelKind]string{
	ChannelSwitch:           "switch",
	ChannelBrightness:       "brightness",
	ChannelColor:            "color",
	ChannelColorTemperature: "color_temperature",
	ChannelPosition:         "position",
}

func (k ChannelKind) String() string {
	if name, ok := channelNames[k]; ok {
		return name
	}
	return fmt.Sprintf("channel(%d)", int(k))
}

// ParseChannelKind parses a channel name as used in configuration.
func ParseChannelKind(s string) (ChannelKind, error) {
	for kind, name := range channelNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown channel kind %q", s)
}

// Command is a user command issued on a channel. Value is a reconciled state
// emitted back to the channel. The concrete types below serve as both, the
// same way a switch accepts and reports on/off.
type Command interface{ isCommand() }

// Value is a per-channel value produced by the reconciler.
type Value interface{ isValue() }

// OnOff switches a light (or reports its power state).
type OnOff bool

// Percent is a whole percentage in [0,100], used for brightness and position.
type Percent int

// Decimal is a raw decimal value: device brightness units as a command,
// percent-scaled color temperature as a command or value.
type Decimal float64

// HSB is a color in hue degrees [0,360), saturation percent and brightness
// percent.
type HSB struct {
	Hue float64
	Sat int
	Bri int
}

// Move commands a cover on the position channel.
type Move int

const (
	MoveDown Move = iota
	MoveUp
	MoveStop
)

// Refresh requests re-emission of the current cached value for a channel. It
// bypasses both the translator and the reconciler.
type Refresh struct{}

func (OnOff) isCommand()   {}
func (Percent) isCommand() {}
func (Decimal) isCommand() {}
func (HSB) isCommand()     {}
func (Move) isCommand()    {}
func (Refresh) isCommand() {}

func (OnOff) isValue()   {}
func (Percent) isValue() {}
func (Decimal) isValue() {}
func (HSB) isValue()     {}
