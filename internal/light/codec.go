package light

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Conversion factors between gateway units and channel units.
const (
	hueFactor = 65535.0 / 360.0
	briFactor = 2.54

	ctMin = 153 // mired
	ctMax = 500 // mired
)

// ToPercent converts gateway brightness [0,255] to a percentage. Out-of-range
// inputs are clamped and traced, never rejected.
func ToPercent(bri int) Percent {
	scaled := int(math.Ceil(float64(bri) / briFactor))
	if scaled < 0 || scaled > 100 {
		log.Trace().Int("bri", bri).Int("scaled", scaled).Msg("Brightness out of range, coercing")
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 100 {
			scaled = 100
		}
	}
	return Percent(scaled)
}

// FromPercent converts a percentage to gateway brightness [0,254].
//
// ToPercent and FromPercent do not round-trip exactly: ceil/floor asymmetry
// makes them differ by up to one unit in either scale.
func FromPercent(p Percent) int {
	return int(math.Floor(float64(p) * briFactor))
}

// HueToDegrees converts gateway hue [0,65535] to degrees [0,360).
func HueToDegrees(hue int) float64 {
	return float64(hue) / hueFactor
}

// DegreesToHue converts hue degrees to gateway units.
func DegreesToHue(deg float64) int {
	return int(math.Round(deg * hueFactor))
}

// CtToPercent scales a mired color temperature [153,500] to [0,100].
func CtToPercent(ct int) float64 {
	return 100.0 * float64(ct-ctMin) / float64(ctMax-ctMin)
}

// CtFromPercent scales a [0,100] value back to mired.
func CtFromPercent(p float64) int {
	return int(math.Round(p/100.0*float64(ctMax-ctMin))) + ctMin
}
