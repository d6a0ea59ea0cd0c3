// Package erosion simulates hydraulic erosion with independent water droplets
// that pick up and drop sediment on a height field.
package erosion

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/heightmap"
)

// Hydraulic holds the droplet simulation tunables.
type Hydraulic struct {
	Iterations             int
	Radius                 int
	Inertia                float32
	SedimentCapacityFactor float32
	MinSedimentCapacity    float32
	ErodeSpeed             float32
	DepositSpeed           float32
	EvaporateSpeed         float32
	Gravity                float32
	MaxDropletLifetime     int
	InitialWaterVolume     float32
	InitialSpeed           float32
	Seed                   uint64
}

func DefaultHydraulic() Hydraulic {
	return Hydraulic{
		Iterations:             100,
		Radius:                 3,
		Inertia:                0.05,
		SedimentCapacityFactor: 4,
		MinSedimentCapacity:    0.01,
		ErodeSpeed:             0.3,
		DepositSpeed:           0.3,
		EvaporateSpeed:         0.01,
		Gravity:                4,
		MaxDropletLifetime:     10,
		InitialWaterVolume:     1,
		InitialSpeed:           1,
	}
}

// Validate checks the tunables against the chunk they will run on.
func (h Hydraulic) Validate(chunkSize int) error {
	for _, f := range []struct {
		name string
		v    float32
	}{
		{"inertia", h.Inertia},
		{"sediment_capacity_factor", h.SedimentCapacityFactor},
		{"min_sediment_capacity", h.MinSedimentCapacity},
		{"erode_speed", h.ErodeSpeed},
		{"deposit_speed", h.DepositSpeed},
		{"evaporate_speed", h.EvaporateSpeed},
		{"gravity", h.Gravity},
		{"initial_water_volume", h.InitialWaterVolume},
		{"initial_speed", h.InitialSpeed},
	} {
		if math.IsNaN(float64(f.v)) || math.IsInf(float64(f.v), 0) {
			return fmt.Errorf("erosion.%s must be finite (got %v)", f.name, f.v)
		}
	}
	switch {
	case h.Iterations < 0:
		return fmt.Errorf("erosion.iterations must be >= 0 (got %d)", h.Iterations)
	case h.Radius < 1:
		return fmt.Errorf("erosion.radius must be >= 1 (got %d)", h.Radius)
	case h.Radius >= chunkSize:
		return fmt.Errorf("erosion.radius %d must be smaller than chunk size %d", h.Radius, chunkSize)
	case h.Inertia < 0 || h.Inertia > 1:
		return fmt.Errorf("erosion.inertia must be in [0,1] (got %v)", h.Inertia)
	case h.EvaporateSpeed < 0 || h.EvaporateSpeed > 1:
		return fmt.Errorf("erosion.evaporate_speed must be in [0,1] (got %v)", h.EvaporateSpeed)
	case h.ErodeSpeed < 0 || h.DepositSpeed < 0:
		return fmt.Errorf("erosion erode/deposit speeds must be >= 0")
	case h.MaxDropletLifetime < 0:
		return fmt.Errorf("erosion.max_droplet_lifetime must be >= 0 (got %d)", h.MaxDropletLifetime)
	case h.InitialWaterVolume < 0 || h.InitialSpeed < 0:
		return fmt.Errorf("erosion initial water/speed must be >= 0")
	}
	return nil
}

// TraceOptions turns on droplet path recording. Positions are converted to
// the same world space the mesh uses.
type TraceOptions struct {
	Enabled          bool
	MaxDroplets      int
	ChunkSize        int
	WorldScale       float32
	HeightMultiplier float32
}

const DefaultTraceDroplets = 10

// Report summarises one erosion run. SedimentInTransit is what droplets were
// still carrying when they stopped; the field total changes by exactly that
// amount, up to float rounding.
type Report struct {
	Droplets          int
	Steps             int
	Eroded            float64
	Deposited         float64
	SedimentInTransit float64
	RainPaths         [][]mgl32.Vec3
}

// Erode builds the brush table for the field and runs the simulation in place.
func (h Hydraulic) Erode(f *heightmap.Field, trace TraceOptions) (Report, error) {
	if h.Iterations == 0 {
		return Report{}, nil
	}
	brushes, err := NewBrushTable(f.Size, h.Radius)
	if err != nil {
		return Report{}, err
	}
	return h.Run(f, brushes, trace)
}

// Run simulates h.Iterations droplets one after another. Droplets see the
// terrain left by earlier ones, so the sequence must stay single-threaded to
// be reproducible for a seed.
func (h Hydraulic) Run(f *heightmap.Field, brushes *BrushTable, trace TraceOptions) (Report, error) {
	var rep Report
	if brushes.MapSize != f.Size {
		return rep, fmt.Errorf("erosion: brush table for size %d used on field of size %d", brushes.MapSize, f.Size)
	}
	if f.Size < 2 || h.Iterations == 0 {
		return rep, nil
	}

	rng := rand.New(rand.NewPCG(h.Seed, h.Seed^0x9e3779b97f4a7c15))
	limit := float32(f.Size - 1)

	tr := newTracer(trace, f.Size)

	for i := 0; i < h.Iterations; i++ {
		posX := spawn(rng, limit)
		posY := spawn(rng, limit)
		var dirX, dirY float32
		speed := h.InitialSpeed
		water := h.InitialWaterVolume
		var sediment float32

		path := tr.begin(i, posX, posY, heightAndGradient(f, posX, posY).height)

		for step := 0; step < h.MaxDropletLifetime; step++ {
			nodeX := int(posX)
			nodeY := int(posY)
			offX := posX - float32(nodeX)
			offY := posY - float32(nodeY)

			hg := heightAndGradient(f, posX, posY)

			dirX = dirX*h.Inertia - hg.gradX*(1-h.Inertia)
			dirY = dirY*h.Inertia - hg.gradY*(1-h.Inertia)
			if l := float32(math.Sqrt(float64(dirX*dirX + dirY*dirY))); l != 0 {
				dirX /= l
				dirY /= l
			}
			posX += dirX
			posY += dirY

			if (dirX == 0 && dirY == 0) || posX < 0 || posX >= limit || posY < 0 || posY >= limit {
				break
			}
			rep.Steps++

			newHeight := heightAndGradient(f, posX, posY).height
			dh := newHeight - hg.height
			path = tr.step(path, posX, posY, newHeight)

			capacity := -dh * speed * water * h.SedimentCapacityFactor
			if capacity < h.MinSedimentCapacity {
				capacity = h.MinSedimentCapacity
			}

			if sediment > capacity || dh > 0 {
				var amount float32
				if dh > 0 {
					amount = min(dh, sediment)
				} else {
					amount = (sediment - capacity) * h.DepositSpeed
				}
				sediment -= amount
				rep.Deposited += float64(amount)

				f.Add(nodeX, nodeY, amount*(1-offX)*(1-offY))
				f.Add(nodeX+1, nodeY, amount*offX*(1-offY))
				f.Add(nodeX, nodeY+1, amount*(1-offX)*offY)
				f.Add(nodeX+1, nodeY+1, amount*offX*offY)
			} else {
				amount := min((capacity-sediment)*h.ErodeSpeed, -dh)
				for _, b := range brushes.At(nodeX, nodeY) {
					want := amount * b.Weight
					// Never dig a cell below zero.
					took := min(f.At(b.X, b.Y), want)
					f.Add(b.X, b.Y, -took)
					sediment += took
					rep.Eroded += float64(took)
				}
			}

			// Clamped: a steep climb with high gravity could otherwise go negative.
			speed = float32(math.Sqrt(math.Max(0, float64(speed*speed+dh*h.Gravity))))
			water *= 1 - h.EvaporateSpeed
		}

		rep.Droplets++
		rep.SedimentInTransit += float64(sediment)
		if path != nil {
			rep.RainPaths = append(rep.RainPaths, path)
		}
	}
	return rep, nil
}

func spawn(rng *rand.Rand, limit float32) float32 {
	p := rng.Float32() * limit
	if p >= limit {
		p = math.Nextafter32(limit, 0)
	}
	return p
}

type heightGradient struct {
	height float32
	gradX  float32
	gradY  float32
}

// heightAndGradient interpolates the four corners of the cell containing
// (posX, posY). The droplet loop stops before leaving [0, size-1), so a
// lookup outside that range is a bug.
func heightAndGradient(f *heightmap.Field, posX, posY float32) heightGradient {
	if posX < 0 || posY < 0 {
		panic(fmt.Sprintf("erosion: bilinear sample at (%v,%v) below grid origin", posX, posY))
	}
	cx := int(posX)
	cy := int(posY)
	if cx+1 >= f.Size || cy+1 >= f.Size {
		panic(fmt.Sprintf("erosion: bilinear sample at (%v,%v) outside %dx%d grid", posX, posY, f.Size, f.Size))
	}
	x := posX - float32(cx)
	y := posY - float32(cy)

	nw := f.At(cx, cy)
	ne := f.At(cx+1, cy)
	sw := f.At(cx, cy+1)
	se := f.At(cx+1, cy+1)

	return heightGradient{
		height: nw*(1-x)*(1-y) + ne*x*(1-y) + sw*(1-x)*y + se*x*y,
		gradX:  (ne-nw)*(1-y) + (se-sw)*y,
		gradY:  (sw-nw)*(1-x) + (se-ne)*x,
	}
}
