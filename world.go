package server

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"hearth-and-harm/server/hotspots/catalog"
	"hearth-and-harm/server/logging"
	logginghotspots "hearth-and-harm/server/logging/hotspots"
)

// WorldConfig carries the host-level tunables of the simulation.
type WorldConfig struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
	Seed   string  `yaml:"seed" json:"seed"`
}

func (c WorldConfig) normalized() WorldConfig {
	if c.Width <= 0 {
		c.Width = 800
	}
	if c.Height <= 0 {
		c.Height = 600
	}
	if c.Seed == "" {
		c.Seed = "hearth-and-harm"
	}
	return c
}

type worldCounters struct {
	contactsBegun    atomic.Uint64
	contactsEnded    atomic.Uint64
	affectsSent      atomic.Uint64
	affectsFailed    atomic.Uint64
	affectsDelivered atomic.Uint64
	lazyDrops        atomic.Uint64
	wakeupsArmed     atomic.Uint64
	wakeupsFired     atomic.Uint64
}

// CounterSnapshot is the diagnostics view of the world counters.
type CounterSnapshot struct {
	ContactsBegun    uint64 `json:"contactsBegun"`
	ContactsEnded    uint64 `json:"contactsEnded"`
	AffectsSent      uint64 `json:"affectsSent"`
	AffectsFailed    uint64 `json:"affectsFailed"`
	AffectsDelivered uint64 `json:"affectsDelivered"`
	LazyDrops        uint64 `json:"lazyDrops"`
	WakeupsArmed     uint64 `json:"wakeupsArmed"`
	WakeupsFired     uint64 `json:"wakeupsFired"`
}

func (c *worldCounters) snapshot() CounterSnapshot {
	return CounterSnapshot{
		ContactsBegun:    c.contactsBegun.Load(),
		ContactsEnded:    c.contactsEnded.Load(),
		AffectsSent:      c.affectsSent.Load(),
		AffectsFailed:    c.affectsFailed.Load(),
		AffectsDelivered: c.affectsDelivered.Load(),
		LazyDrops:        c.lazyDrops.Load(),
		WakeupsArmed:     c.wakeupsArmed.Load(),
		WakeupsFired:     c.wakeupsFired.Load(),
	}
}

// World owns the authoritative simulation state: actors, hotspots, and the
// deferred message queue that carries affects and wake-ups between them. All
// mutation happens on the single simulation goroutine; the hub serializes
// access from transport handlers.
type World struct {
	cfg          WorldConfig
	actors       map[string]*actorState
	actorOrder   []string
	hotspots     map[string]*hotspotState
	hotspotOrder []string
	index        *hotspotSpatialIndex
	queue        *messageQueue
	rng          *rand.Rand
	publisher    logging.Publisher
	counters     *worldCounters
	currentTick  uint64
	nextHotspot  uint64
}

// NewWorld constructs an empty world with a deterministic, seed-derived RNG.
func NewWorld(cfg WorldConfig, publisher logging.Publisher) *World {
	normalized := cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	w := &World{
		cfg:       normalized,
		actors:    make(map[string]*actorState),
		hotspots:  make(map[string]*hotspotState),
		index:     newHotspotSpatialIndex(spatialCellSize, spatialMaxPerCell),
		rng:       rand.New(rand.NewSource(seedFromString(normalized.Seed))),
		publisher: publisher,
		counters:  &worldCounters{},
	}
	w.queue = newMessageQueue(w)
	return w
}

func seedFromString(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64())
}

// Config returns the normalized world configuration.
func (w *World) Config() WorldConfig {
	return w.cfg
}

// CurrentTick returns the last completed simulation tick.
func (w *World) CurrentTick() uint64 {
	return w.currentTick
}

// Counters returns a point-in-time view of the telemetry counters.
func (w *World) Counters() CounterSnapshot {
	return w.counters.snapshot()
}

func (w *World) entityRef(id string) logging.EntityRef {
	if actor, ok := w.actors[id]; ok {
		return logging.EntityRef{ID: id, Kind: actor.entityKind()}
	}
	if _, ok := w.hotspots[id]; ok {
		return logging.EntityRef{ID: id, Kind: logging.EntityKindHotspot}
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
}

// SpawnActor adds an actor of the category at the position, clamped to the
// world bounds.
func (w *World) SpawnActor(category EntityCategory, x, y float64) *actorState {
	actor := newActorState(category, clamp(x, 0, w.cfg.Width), clamp(y, 0, w.cfg.Height))
	w.actors[actor.ID] = actor
	w.actorOrder = append(w.actorOrder, actor.ID)
	return actor
}

// RemoveActor drops the actor and delivers contact-end notifications for any
// hotspot it was still touching; without them the zones would carry the dead
// ID in their collider sets indefinitely.
func (w *World) RemoveActor(id string) {
	actor, ok := w.actors[id]
	if !ok {
		return
	}
	for hotspotID := range actor.touching {
		if hs, exists := w.hotspots[hotspotID]; exists {
			hs.handleContactEnd(actor)
		}
	}
	delete(w.actors, id)
	for i, candidate := range w.actorOrder {
		if candidate == id {
			w.actorOrder = append(w.actorOrder[:i], w.actorOrder[i+1:]...)
			break
		}
	}
}

// SetIntent records the actor's movement intent for the next step.
func (w *World) SetIntent(id string, dx, dy float64) {
	actor, ok := w.actors[id]
	if !ok {
		return
	}
	length := math.Sqrt(dx*dx + dy*dy)
	if length > 1 {
		dx /= length
		dy /= length
	}
	actor.intentX = dx
	actor.intentY = dy
}

// SpawnHotspot places a zone from a validated catalog entry and activates it.
func (w *World) SpawnHotspot(entry catalog.Entry) (*hotspotState, error) {
	cfg, err := configFromDefinition(entry.Definition)
	if err != nil {
		return nil, fmt.Errorf("world: spawn %q: %w", entry.ID, err)
	}
	w.nextHotspot++
	id := fmt.Sprintf("hotspot-%d", w.nextHotspot)
	shape := Hotspot{
		Name:   entry.ID,
		X:      entry.Definition.X,
		Y:      entry.Definition.Y,
		Width:  entry.Definition.Width,
		Height: entry.Definition.Height,
	}
	hs, err := newHotspotState(id, shape, cfg, hotspotDeps{
		transport: w.queue,
		rng:       w.rng,
		publisher: w.publisher,
		counters:  w.counters,
		tick:      func() uint64 { return w.currentTick },
		entityRef: w.entityRef,
	})
	if err != nil {
		return nil, fmt.Errorf("world: spawn %q: %w", entry.ID, err)
	}
	if !w.index.Upsert(hs) {
		return nil, fmt.Errorf("world: spawn %q: spatial cell capacity exceeded", entry.ID)
	}
	w.hotspots[id] = hs
	w.hotspotOrder = append(w.hotspotOrder, id)
	hs.enterWorld()
	logginghotspots.Spawned(
		context.Background(),
		w.publisher,
		w.currentTick,
		hs.entityRef(),
		logginghotspots.SpawnedPayload{
			Definition: entry.ID,
			Channel:    string(cfg.Channel),
			RepeatMs:   cfg.RepeatInterval.Milliseconds(),
		},
	)
	return hs, nil
}

// RemoveHotspot deactivates the zone and unregisters it. The exit discards
// all of its pending schedule; any wake-up already in flight no-ops.
func (w *World) RemoveHotspot(id string) {
	hs, ok := w.hotspots[id]
	if !ok {
		return
	}
	hs.exitWorld()
	w.index.Remove(id)
	delete(w.hotspots, id)
	for i, candidate := range w.hotspotOrder {
		if candidate == id {
			w.hotspotOrder = append(w.hotspotOrder[:i], w.hotspotOrder[i+1:]...)
			break
		}
	}
}

// Step advances the simulation one tick: integrate movement, sweep contacts,
// then drain every message due by now (wake-ups fire here, and the affects
// they queue for "as soon as possible" land in the same drain).
func (w *World) Step(now time.Time, dt float64) {
	w.currentTick++
	for _, id := range w.actorOrder {
		actor := w.actors[id]
		if actor.intentX == 0 && actor.intentY == 0 {
			continue
		}
		actor.X = clamp(actor.X+actor.intentX*moveSpeed*dt, 0, w.cfg.Width)
		actor.Y = clamp(actor.Y+actor.intentY*moveSpeed*dt, 0, w.cfg.Height)
	}
	w.sweepContacts(now)
	w.queue.drainDue(now)
}

// Snapshot returns wire views of the actors and hotspots in spawn order.
func (w *World) Snapshot() ([]Actor, []Hotspot) {
	actors := make([]Actor, 0, len(w.actorOrder))
	for _, id := range w.actorOrder {
		if actor, ok := w.actors[id]; ok {
			actors = append(actors, actor.snapshot())
		}
	}
	hotspots := make([]Hotspot, 0, len(w.hotspotOrder))
	for _, id := range w.hotspotOrder {
		if hs, ok := w.hotspots[id]; ok {
			hotspots = append(hotspots, hs.snapshot())
		}
	}
	return actors, hotspots
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
