// Package mathx holds small scalar helpers shared by the terrain stages.
package mathx

// Remap maps value from [fromMin, fromMax] onto [toMin, toMax] without clamping.
func Remap(value, fromMin, fromMax, toMin, toMax float64) float64 {
	return toMin + (value-fromMin)*(toMax-toMin)/(fromMax-fromMin)
}

func Clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
