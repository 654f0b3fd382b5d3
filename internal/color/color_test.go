package color

import (
	"math"
	"testing"
)

func TestXYFromHSBPrimaries(t *testing.T) {
	tests := []struct {
		name string
		hue  float64
		sat  int
		bri  int
		x, y float64
	}{
		// gamut corners of the wide-gamut RGB conversion
		{"red", 0, 100, 100, 0.7006, 0.2993},
		{"green", 120, 100, 100, 0.1724, 0.7468},
		{"blue", 240, 100, 100, 0.1355, 0.0399},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := XYFromHSB(tt.hue, tt.sat, tt.bri)
			if math.Abs(x-tt.x) > 0.01 || math.Abs(y-tt.y) > 0.01 {
				t.Errorf("XYFromHSB = (%.4f, %.4f), want about (%.4f, %.4f)", x, y, tt.x, tt.y)
			}
		})
	}
}

func TestXYFromHSBBlackFallsBackToWhitePoint(t *testing.T) {
	x, y := XYFromHSB(0, 0, 0)
	if math.Abs(x-0.3127) > 0.001 || math.Abs(y-0.3290) > 0.001 {
		t.Errorf("black = (%.4f, %.4f), want D65 white point", x, y)
	}
}

func TestHSBFromXYZeroY(t *testing.T) {
	hue, sat, bri := HSBFromXY(0.5, 0)
	if hue != 0 || sat != 0 || bri != 0 {
		t.Errorf("HSBFromXY(0.5, 0) = (%v, %v, %v), want zeros", hue, sat, bri)
	}
}

func TestHueRoundTrip(t *testing.T) {
	// xy cannot carry brightness, so only hue survives the round trip with
	// any accuracy; saturated colors keep their hue within a few degrees
	for _, hue := range []float64{0, 60, 120, 180, 240, 300} {
		x, y := XYFromHSB(hue, 100, 100)
		gotHue, gotSat, _ := HSBFromXY(x, y)

		diff := math.Abs(gotHue - hue)
		if diff > 180 {
			diff = 360 - diff
		}
		if diff > 10 {
			t.Errorf("hue %v -> xy(%.4f, %.4f) -> %v, drift %v", hue, x, y, gotHue, diff)
		}
		if gotSat < 50 {
			t.Errorf("hue %v: saturation collapsed to %d", hue, gotSat)
		}
	}
}
