package api

import (
	"encoding/json"
	"fmt"

	"github.com/mlutz/deconzd/internal/light"
)

// commandBody is the JSON body of a channel command request. Exactly one of
// the fields must be set.
type commandBody struct {
	Command *string  `json:"command,omitempty"` // on, off, up, down, stop, refresh
	Percent *int     `json:"percent,omitempty"`
	Decimal *float64 `json:"decimal,omitempty"`
	HSB     *hsbBody `json:"hsb,omitempty"`
}

type hsbBody struct {
	Hue float64 `json:"hue"`
	Sat int     `json:"sat"`
	Bri int     `json:"bri"`
}

// ParseCommand decodes a request body into a channel command.
func ParseCommand(data []byte) (light.Command, error) {
	var body commandBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("invalid command body: %w", err)
	}

	set := 0
	if body.Command != nil {
		set++
	}
	if body.Percent != nil {
		set++
	}
	if body.Decimal != nil {
		set++
	}
	if body.HSB != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of command, percent, decimal, hsb must be set")
	}

	switch {
	case body.Command != nil:
		switch *body.Command {
		case "on":
			return light.OnOff(true), nil
		case "off":
			return light.OnOff(false), nil
		case "up":
			return light.MoveUp, nil
		case "down":
			return light.MoveDown, nil
		case "stop":
			return light.MoveStop, nil
		case "refresh":
			return light.Refresh{}, nil
		default:
			return nil, fmt.Errorf("unknown command %q", *body.Command)
		}

	case body.Percent != nil:
		if *body.Percent < 0 || *body.Percent > 100 {
			return nil, fmt.Errorf("percent %d out of range [0,100]", *body.Percent)
		}
		return light.Percent(*body.Percent), nil

	case body.Decimal != nil:
		return light.Decimal(*body.Decimal), nil

	default:
		return light.HSB{Hue: body.HSB.Hue, Sat: body.HSB.Sat, Bri: body.HSB.Bri}, nil
	}
}
