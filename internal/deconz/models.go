// Package deconz provides access to a deCONZ gateway: the REST API for
// reading and writing light state and the WebSocket push channel.
package deconz

// Color modes reported by the gateway.
const (
	ColorModeHS = "hs"
	ColorModeXY = "xy"
	ColorModeCT = "ct"
)

// LightState is the sparse state record of a light. A nil field means
// "unknown/unchanged", never zero. Outgoing command deltas set only the
// fields they touch; incoming states replace the cached record wholesale.
//
// The JSON names are the gateway's wire contract.
type LightState struct {
	On             *bool     `json:"on,omitempty"`
	Bri            *int      `json:"bri,omitempty"`
	Hue            *int      `json:"hue,omitempty"`
	Sat            *int      `json:"sat,omitempty"`
	XY             []float64 `json:"xy,omitempty"`
	Ct             *int      `json:"ct,omitempty"`
	ColorMode      *string   `json:"colormode,omitempty"`
	TransitionTime *int      `json:"transitiontime,omitempty"`
}

// EqualsIgnoreNil compares two states field by field, skipping fields that
// are unset on either side. Two states with no overlapping fields compare
// equal.
func (s *LightState) EqualsIgnoreNil(other *LightState) bool {
	if other == nil {
		return true
	}
	if s.On != nil && other.On != nil && *s.On != *other.On {
		return false
	}
	if s.Bri != nil && other.Bri != nil && *s.Bri != *other.Bri {
		return false
	}
	if s.Hue != nil && other.Hue != nil && *s.Hue != *other.Hue {
		return false
	}
	if s.Sat != nil && other.Sat != nil && *s.Sat != *other.Sat {
		return false
	}
	if len(s.XY) == 2 && len(other.XY) == 2 && (s.XY[0] != other.XY[0] || s.XY[1] != other.XY[1]) {
		return false
	}
	if s.Ct != nil && other.Ct != nil && *s.Ct != *other.Ct {
		return false
	}
	if s.ColorMode != nil && other.ColorMode != nil && *s.ColorMode != *other.ColorMode {
		return false
	}
	return true
}

// LightMessage is a light resource as returned by GET /lights/<id> and
// carried inside push frames.
type LightMessage struct {
	ID       string      `json:"-"`
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	ModelID  string      `json:"modelid"`
	UniqueID string      `json:"uniqueid"`
	State    *LightState `json:"state"`
}

// PushMessage is a frame from the gateway WebSocket.
type PushMessage struct {
	Type     string      `json:"t"`
	Event    string      `json:"e"`
	Resource string      `json:"r"`
	ID       string      `json:"id"`
	State    *LightState `json:"state,omitempty"`
}

// GatewayConfig is the subset of GET /config the daemon cares about.
type GatewayConfig struct {
	Name          string `json:"name"`
	APIVersion    string `json:"apiversion"`
	WebsocketPort int    `json:"websocketport"`
}
