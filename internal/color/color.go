// Package color converts between hue/saturation/brightness and the CIE xy
// color coordinates used by Zigbee lights, via gamma-corrected sRGB.
package color

import "math"

// XYFromHSB converts hue (degrees), saturation and brightness (both [0,100])
// to CIE xy coordinates.
func XYFromHSB(hue float64, sat, bri int) (x, y float64) {
	r, g, b := hsbToRGB(hue, float64(sat)/100.0, float64(bri)/100.0)

	r = invGamma(r)
	g = invGamma(g)
	b = invGamma(b)

	// Wide-gamut RGB D65 conversion, as documented for Hue-family lights.
	cieX := r*0.664511 + g*0.154324 + b*0.162028
	cieY := r*0.283881 + g*0.668433 + b*0.047685
	cieZ := r*0.000088 + g*0.072310 + b*0.986039

	sum := cieX + cieY + cieZ
	if sum == 0 {
		// black has no chromaticity, fall back to the D65 white point
		return 0.3127, 0.3290
	}
	return cieX / sum, cieY / sum
}

// HSBFromXY converts CIE xy coordinates to hue/saturation/brightness,
// assuming full luminance. Out-of-gamut results are clamped.
func HSBFromXY(x, y float64) (hue float64, sat, bri int) {
	if y == 0 {
		return 0, 0, 0
	}

	cieY := 1.0
	cieX := (cieY / y) * x
	cieZ := (cieY / y) * (1.0 - x - y)

	r := cieX*1.656492 - cieY*0.354851 - cieZ*0.255038
	g := -cieX*0.707196 + cieY*1.655397 + cieZ*0.036152
	b := cieX*0.051713 - cieY*0.121364 + cieZ*1.011530

	r = gamma(clamp01(r))
	g = gamma(clamp01(g))
	b = gamma(clamp01(b))

	// Normalize so the dominant component carries full brightness.
	max := math.Max(r, math.Max(g, b))
	if max > 1.0 {
		r /= max
		g /= max
		b /= max
	}

	return rgbToHSB(r, g, b)
}

func hsbToRGB(hue, sat, bri float64) (r, g, b float64) {
	h := math.Mod(hue, 360.0) / 60.0
	i := math.Floor(h)
	f := h - i

	p := bri * (1.0 - sat)
	q := bri * (1.0 - sat*f)
	t := bri * (1.0 - sat*(1.0-f))

	switch int(i) {
	case 0:
		return bri, t, p
	case 1:
		return q, bri, p
	case 2:
		return p, bri, t
	case 3:
		return p, q, bri
	case 4:
		return t, p, bri
	default:
		return bri, p, q
	}
}

func rgbToHSB(r, g, b float64) (hue float64, sat, bri int) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	switch {
	case delta == 0:
		hue = 0
	case max == r:
		hue = 60.0 * math.Mod((g-b)/delta, 6.0)
	case max == g:
		hue = 60.0 * ((b-r)/delta + 2.0)
	default:
		hue = 60.0 * ((r-g)/delta + 4.0)
	}
	if hue < 0 {
		hue += 360.0
	}

	var s float64
	if max > 0 {
		s = delta / max
	}

	return hue, int(math.Round(s * 100.0)), int(math.Round(max * 100.0))
}

func invGamma(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}

func gamma(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}

func clamp01(c float64) float64 {
	if c < 0 {
		return 0
	}
	return c
}
