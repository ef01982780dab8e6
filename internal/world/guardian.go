package world

import (
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"aura-server/internal/config"
)

// Guardian motion tuning. Velocity integrates a fixed acceleration along the
// heading with multiplicative friction, so speed self-limits.
const (
	guardianWanderChance = 0.02  // per guardian per tick
	guardianAccel        = 0.2   // velocity gain along heading per tick
	guardianFriction     = 0.94  // multiplicative damping per tick
	guardianDecay        = 0.02  // singing/pulsing decay per tick
	guardianSingChance   = 0.005 // per guardian per tick, once cooldown passed
	guardianSingCooldown = 300   // ticks before a sing becomes possible again
	spawnChance          = 0.02  // per realm per tick while under-populated
	despawnChance        = 0.01  // per realm per tick while over-populated
	attractRadius        = 400.0 // social gravity outer bound
	attractDeadzone      = 100.0 // no pull once this close
)

// Guardian is a server-simulated synthetic occupant. It exists only to keep a
// realm from feeling empty; it never changes realm, it is destroyed and a new
// one spawned elsewhere instead.
type Guardian struct {
	ID      string
	Realm   string
	X, Y    float64
	VX, VY  float64
	Heading float64
	Hue     float64
	XP      float64
	Singing float64
	Pulsing float64
	Emoting string

	actionTicks int
}

// Vec is a 2D point.
type Vec struct {
	X, Y float64
}

// Population owns the set of guardians and the per-realm population control
// loop. The control loop is probabilistic: one spawn draw and one despawn
// draw per realm per tick, so occupancy drifts toward the target rather than
// snapping to it.
type Population struct {
	mu        sync.RWMutex
	guardians map[string]*Guardian
	rng       *rand.Rand
	cfg       config.WorldConfig
}

// NewPopulation creates an empty guardian population.
func NewPopulation(cfg config.WorldConfig, seed int64) *Population {
	return &Population{
		guardians: make(map[string]*Guardian),
		rng:       rand.New(rand.NewSource(seed)),
		cfg:       cfg,
	}
}

// AdvanceAll runs one simulation step for every guardian. sessionsByRealm
// provides the positions of live players so guardians can drift toward the
// nearest one (social gravity).
func (p *Population) AdvanceAll(sessionsByRealm map[string][]Vec) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, g := range p.guardians {
		p.advance(g, sessionsByRealm[g.Realm])
	}
}

func (p *Population) advance(g *Guardian, players []Vec) {
	// Wander: occasionally perturb the heading by a bounded random delta.
	if p.rng.Float64() < guardianWanderChance {
		g.Heading += (p.rng.Float64() - 0.5) * 2
	}

	// Social gravity: blend heading toward the nearest player, but only in
	// the (deadzone, radius) band so guardians hover rather than collide.
	if target, dist, ok := nearest(g.X, g.Y, players); ok {
		if dist < attractRadius && dist > attractDeadzone {
			angle := math.Atan2(target.Y-g.Y, target.X-g.X)
			g.Heading = g.Heading*0.95 + angle*0.05
		}
	}

	// Containment: beyond the realm boundary, steer back toward the origin.
	if math.Hypot(g.X, g.Y) > p.cfg.ContainRadius {
		angle := math.Atan2(-g.Y, -g.X)
		g.Heading = g.Heading*0.9 + angle*0.1
	}

	g.VX += math.Cos(g.Heading) * guardianAccel
	g.VY += math.Sin(g.Heading) * guardianAccel
	g.VX *= guardianFriction
	g.VY *= guardianFriction
	g.X += g.VX
	g.Y += g.VY

	g.Singing = math.Max(0, g.Singing-guardianDecay)
	g.Pulsing = math.Max(0, g.Pulsing-guardianDecay)

	g.actionTicks++
	if g.actionTicks > guardianSingCooldown && p.rng.Float64() < guardianSingChance {
		g.actionTicks = 0
		g.Singing = 1
	}
}

// ManagePopulation runs the per-realm control loop for one tick. One random
// draw per direction per realm; overshoot is tolerated and corrected over
// later ticks.
func (p *Population) ManagePopulation(realm string, sessionCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inRealm := p.inRealmLocked(realm)
	total := sessionCount + len(inRealm)

	switch {
	case total < p.cfg.MinPopulation:
		if p.rng.Float64() < spawnChance {
			g := p.spawnLocked(realm)
			log.Printf("🤖 Guardian spawned in %s. Population: %d", realm, total+1)
			p.guardians[g.ID] = g
		}
	case total > p.cfg.MinPopulation && len(inRealm) > 0:
		if p.rng.Float64() < despawnChance {
			delete(p.guardians, inRealm[0].ID)
			log.Printf("👋 Guardian departed from %s. Population: %d", realm, total-1)
		}
	}
}

func (p *Population) spawnLocked(realm string) *Guardian {
	angle := p.rng.Float64() * math.Pi * 2
	dist := p.cfg.SpawnRingMin + p.rng.Float64()*p.cfg.SpawnRingSpread
	return &Guardian{
		ID:      "guardian-" + uuid.NewString()[:8],
		Realm:   realm,
		X:       math.Cos(angle) * dist,
		Y:       math.Sin(angle) * dist,
		Heading: p.rng.Float64() * math.Pi * 2,
		Hue:     180 + p.rng.Float64()*60,
		XP:      100 + p.rng.Float64()*800,
	}
}

func (p *Population) inRealmLocked(realm string) []*Guardian {
	out := make([]*Guardian, 0, 4)
	for _, g := range p.guardians {
		if g.Realm == realm {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByRealm returns copies of every guardian in the realm, ordered by ID.
func (p *Population) ListByRealm(realm string) []Guardian {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ptrs := p.inRealmLocked(realm)
	out := make([]Guardian, 0, len(ptrs))
	for _, g := range ptrs {
		out = append(out, *g)
	}
	return out
}

// CountByRealm returns the number of guardians in the realm.
func (p *Population) CountByRealm(realm string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, g := range p.guardians {
		if g.Realm == realm {
			n++
		}
	}
	return n
}

// Count returns the total guardian count across realms.
func (p *Population) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.guardians)
}

// Realms returns every realm with at least one guardian.
func (p *Population) Realms() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, g := range p.guardians {
		seen[g.Realm] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for realm := range seen {
		out = append(out, realm)
	}
	sort.Strings(out)
	return out
}

func nearest(x, y float64, points []Vec) (Vec, float64, bool) {
	best := Vec{}
	bestDist := math.MaxFloat64
	for _, pt := range points {
		d := math.Hypot(pt.X-x, pt.Y-y)
		if d < bestDist {
			best, bestDist = pt, d
		}
	}
	return best, bestDist, bestDist != math.MaxFloat64
}
