package layout

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/sitegraph/pkg/graph"
)

// body is a node as seen by the quad-tree. Every body weighs 1, so a cell's
// aggregate mass is the number of nodes inside it.
type body struct {
	pos  r2.Vec
	size float64
}

func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return 1 }

// simulation holds per-run state. It is owned by exactly one goroutine at a
// time: the engine loop, or the caller of Step/Run.
type simulation struct {
	store    *graph.Store
	settings Settings
	workers  int
	rng      *rand.Rand

	links      []graph.Link
	mass       []float64 // degree+1, for gravity
	outMass    []float64 // out-degree+1, for attraction distribution
	outMassAvg float64

	bodies    []body
	particles []barneshut.Particle2
	plane     *barneshut.Plane

	fx, fy         []float64
	prevFx, prevFy []float64

	iter uint64

	// onFallback is called when the quad-tree cannot be built.
	onFallback func(error)
}

func newSimulation(s *graph.Store, settings Settings, workers int, rng *rand.Rand, iter uint64) *simulation {
	n := s.Len()
	sim := &simulation{
		store:     s,
		settings:  settings,
		workers:   max(workers, 1),
		rng:       rng,
		links:     s.Links(),
		mass:      make([]float64, n),
		outMass:   make([]float64, n),
		bodies:    make([]body, n),
		particles: make([]barneshut.Particle2, n),
		fx:        make([]float64, n),
		fy:        make([]float64, n),
		prevFx:    make([]float64, n),
		prevFy:    make([]float64, n),
		iter:      iter,
	}
	var total float64
	for i := range n {
		sim.mass[i] = float64(s.DegreeAt(i) + 1)
		sim.outMass[i] = float64(s.OutDegreeAt(i) + 1)
		total += sim.outMass[i]
		sim.bodies[i].size = s.SizeAt(i)
		sim.particles[i] = &sim.bodies[i]
	}
	if n > 0 {
		sim.outMassAvg = total / float64(n)
	}
	return sim
}

// iterate runs one force step and writes new positions to the store.
func (sim *simulation) iterate() {
	if len(sim.bodies) == 0 {
		return
	}
	sim.readPositions()
	sim.separateCoincident()
	clear(sim.fx)
	clear(sim.fy)

	sim.repulsion()
	sim.attraction()
	sim.gravity()
	sim.apply()
	sim.iter++
}

func (sim *simulation) readPositions() {
	for i := range sim.bodies {
		x, y := sim.store.PositionAt(i)
		sim.bodies[i].pos = r2.Vec{X: x, Y: y}
	}
}

// separateCoincident nudges nodes that share a position. Exactly coincident
// bodies have no repulsion direction and would make the quad-tree recurse
// until it runs out of precision.
func (sim *simulation) separateCoincident() {
	seen := make(map[r2.Vec]struct{}, len(sim.bodies))
	for i := range sim.bodies {
		b := &sim.bodies[i]
		for {
			if _, dup := seen[b.pos]; !dup {
				break
			}
			angle := sim.rng.Float64() * 2 * math.Pi
			r := 1e-3 * (1 + sim.rng.Float64())
			b.pos = r2.Add(b.pos, r2.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle)})
		}
		seen[b.pos] = struct{}{}
	}
}

// =============================================================================
// Repulsion
// =============================================================================

func (sim *simulation) repulsion() {
	if sim.settings.BarnesHut && sim.buildPlane() {
		sim.parallel(func(i int) {
			f := sim.plane.ForceOn(sim.particles[i], sim.settings.Theta, sim.repulse)
			sim.fx[i] += f.X
			sim.fy[i] += f.Y
		})
		return
	}
	sim.parallel(func(i int) {
		var f r2.Vec
		for j := range sim.particles {
			if j == i {
				continue
			}
			v := r2.Sub(sim.bodies[j].pos, sim.bodies[i].pos)
			f = r2.Add(f, sim.repulse(sim.particles[i], sim.particles[j], 1, 1, v))
		}
		sim.fx[i] += f.X
		sim.fy[i] += f.Y
	})
}

func (sim *simulation) buildPlane() bool {
	var err error
	if sim.plane == nil {
		sim.plane, err = barneshut.NewPlane(sim.particles)
	} else {
		err = sim.plane.Reset()
	}
	if err != nil {
		sim.plane = nil
		if sim.onFallback != nil {
			sim.onFallback(err)
		}
		return false
	}
	return true
}

// repulse is a barneshut.Force2. v points from p1 to p2; p2 is nil when it
// stands for an aggregate cell.
func (sim *simulation) repulse(p1, p2 barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
	if p1 == p2 {
		return r2.Vec{}
	}
	d := r2.Norm(v)
	if d == 0 {
		return r2.Vec{}
	}
	kr := sim.settings.ScalingRatio
	f := kr * m1 * m2 / d
	if sim.settings.AdjustSizes {
		var s1, s2 float64
		if b, ok := p1.(*body); ok {
			s1 = b.size
		}
		if b, ok := p2.(*body); ok {
			s2 = b.size
		}
		switch gap := d - s1 - s2; {
		case gap > 0:
			f = kr * m1 * m2 / gap
		case gap < 0:
			f = overlapRep * kr * m1 * m2
		default:
			f = 0
		}
	}
	return r2.Scale(-f/d, v)
}

// =============================================================================
// Attraction and Gravity
// =============================================================================

func (sim *simulation) attraction() {
	infl := sim.settings.EdgeWeightInfluence
	for _, l := range sim.links {
		if l.Source == l.Target {
			continue
		}
		w := 1.0
		if infl != 0 {
			w = math.Pow(max(l.Weight, 0), infl)
		}
		coef := w
		if sim.settings.OutboundAttractionDistribution {
			coef *= sim.outMassAvg / sim.outMass[l.Source]
		}
		src, dst := sim.bodies[l.Source].pos, sim.bodies[l.Target].pos
		dx, dy := src.X-dst.X, src.Y-dst.Y
		if sim.settings.AdjustSizes {
			d := math.Hypot(dx, dy)
			gap := d - sim.bodies[l.Source].size - sim.bodies[l.Target].size
			if gap <= 0 {
				continue
			}
			coef *= gap / d
		}
		sim.fx[l.Source] -= dx * coef
		sim.fy[l.Source] -= dy * coef
		sim.fx[l.Target] += dx * coef
		sim.fy[l.Target] += dy * coef
	}
}

func (sim *simulation) gravity() {
	g := sim.settings.Gravity
	if g == 0 {
		return
	}
	kr := sim.settings.ScalingRatio
	for i := range sim.bodies {
		p := sim.bodies[i].pos
		d := math.Hypot(p.X, p.Y)
		if d == 0 {
			continue
		}
		factor := kr * sim.mass[i] * g
		if !sim.settings.StrongGravity {
			factor /= d
		}
		sim.fx[i] -= p.X * factor
		sim.fy[i] -= p.Y * factor
	}
}

// =============================================================================
// Integration
// =============================================================================

// speed decays with the iteration count and never drops below MinSpeed.
func speed(iter uint64) float64 {
	return max(MinSpeed, 1/(1+float64(iter)*speedDecay))
}

func (sim *simulation) apply() {
	sp := speed(sim.iter)
	for i := range sim.bodies {
		fx, fy := sim.fx[i], sim.fy[i]
		if !finite(fx) || !finite(fy) {
			sim.prevFx[i], sim.prevFy[i] = 0, 0
			continue
		}
		swing := math.Hypot(fx-sim.prevFx[i], fy-sim.prevFy[i])
		sim.prevFx[i], sim.prevFy[i] = fx, fy

		step := sp / (sim.settings.SlowDown * (1 + math.Sqrt(swing)))
		dx, dy := fx*step, fy*step
		if l := math.Hypot(dx, dy); l > MaxDisplacement {
			dx, dy = dx*MaxDisplacement/l, dy*MaxDisplacement/l
		}
		p := sim.bodies[i].pos
		nx, ny := p.X+dx, p.Y+dy
		if !finite(nx) || !finite(ny) {
			continue
		}
		sim.store.SetPositionAt(i, nx, ny)
	}
}

// parallel calls fn for every node index, split across the worker count.
// fn may only write to its own index.
func (sim *simulation) parallel(fn func(i int)) {
	n := len(sim.bodies)
	workers := min(sim.workers, n)
	if workers <= 1 {
		for i := range n {
			fn(i)
		}
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}()
	}
	wg.Wait()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
