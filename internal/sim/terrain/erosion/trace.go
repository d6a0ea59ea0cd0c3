package erosion

import "github.com/go-gl/mathgl/mgl32"

// tracer converts grid positions into world-space polyline points for the
// first few droplets of a run.
type tracer struct {
	enabled bool
	max     int
	half    float32
	xyScale float32
	yScale  float32
}

func newTracer(o TraceOptions, fieldSize int) tracer {
	if !o.Enabled {
		return tracer{}
	}
	size := o.ChunkSize
	if size <= 0 {
		size = fieldSize - 1
	}
	if size <= 0 {
		size = 1
	}
	max := o.MaxDroplets
	if max <= 0 {
		max = DefaultTraceDroplets
	}
	return tracer{
		enabled: true,
		max:     max,
		half:    float32(size) / 2,
		xyScale: o.WorldScale / float32(size),
		yScale:  o.WorldScale * o.HeightMultiplier,
	}
}

func (t tracer) point(x, y, h float32) mgl32.Vec3 {
	return mgl32.Vec3{(x - t.half) * t.xyScale, h * t.yScale, (y - t.half) * t.xyScale}
}

func (t tracer) begin(droplet int, x, y, h float32) []mgl32.Vec3 {
	if !t.enabled || droplet >= t.max {
		return nil
	}
	return []mgl32.Vec3{t.point(x, y, h)}
}

func (t tracer) step(path []mgl32.Vec3, x, y, h float32) []mgl32.Vec3 {
	if path == nil {
		return nil
	}
	return append(path, t.point(x, y, h))
}
