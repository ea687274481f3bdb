package server

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"hearth-and-harm/server/hotspots/catalog"
	"hearth-and-harm/server/logging"
	logginghotspots "hearth-and-harm/server/logging/hotspots"
	"hearth-and-harm/server/stats"
)

// RepeatUnlimited keeps a target on the schedule for as long as it stays in
// contact.
const RepeatUnlimited = -1

// HotspotConfig is the immutable authoring-time configuration of one zone.
type HotspotConfig struct {
	InitialDelay     time.Duration
	RepeatInterval   time.Duration
	MinAmount        int
	MaxAmount        int
	RepeatCount      int
	Channel          stats.Channel
	TargetCategories []EntityCategory
}

// Validate mirrors the catalog's authoring checks for configs built in code.
func (c HotspotConfig) Validate() error {
	if c.InitialDelay < 0 {
		return fmt.Errorf("hotspot: initial delay %v must not be negative", c.InitialDelay)
	}
	if c.RepeatInterval < 0 {
		return fmt.Errorf("hotspot: repeat interval %v must not be negative", c.RepeatInterval)
	}
	if c.RepeatCount < RepeatUnlimited {
		return fmt.Errorf("hotspot: repeat count %d must be -1, 0, or positive", c.RepeatCount)
	}
	if c.RepeatCount != 0 && c.RepeatInterval == 0 {
		return fmt.Errorf("hotspot: repeat interval must be positive when the affect repeats")
	}
	if c.MinAmount > c.MaxAmount {
		return fmt.Errorf("hotspot: min amount %d exceeds max amount %d", c.MinAmount, c.MaxAmount)
	}
	return nil
}

// Hotspot is the wire representation of a zone.
type Hotspot struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Channel string  `json:"channel"`
}

// hotspotDeps are the external collaborators a hotspot is wired to at spawn
// time: the queued transport it affects targets and wakes itself through, a
// seeded RNG for magnitude draws, and the host's clock/tick/logging surface.
type hotspotDeps struct {
	transport Transport
	rng       *rand.Rand
	publisher logging.Publisher
	counters  *worldCounters
	tick      func() uint64
	entityRef func(id string) logging.EntityRef
}

// hotspotState owns the collider set and the affect schedule for one zone.
// Its state is touched only by externally serialized calls (contact
// notifications, wake-up deliveries, world entry/exit), so it carries no
// locking of its own.
type hotspotState struct {
	Hotspot
	cfg       HotspotConfig
	active    bool
	colliders *colliderSet
	sched     *affectSchedule
	deps      hotspotDeps
}

func newHotspotState(id string, shape Hotspot, cfg HotspotConfig, deps hotspotDeps) (*hotspotState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.transport == nil || deps.rng == nil {
		return nil, fmt.Errorf("hotspot: transport and rng are required")
	}
	if deps.publisher == nil {
		deps.publisher = logging.NopPublisher()
	}
	if deps.counters == nil {
		deps.counters = &worldCounters{}
	}
	if deps.tick == nil {
		deps.tick = func() uint64 { return 0 }
	}
	if deps.entityRef == nil {
		deps.entityRef = func(id string) logging.EntityRef {
			return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
		}
	}
	shape.ID = id
	shape.Channel = string(cfg.Channel)
	return &hotspotState{
		Hotspot:   shape,
		cfg:       cfg,
		colliders: newColliderSet(),
		sched:     newAffectSchedule(),
		deps:      deps,
	}, nil
}

// configFromDefinition converts a validated catalog definition.
func configFromDefinition(def catalog.HotspotDefinition) (HotspotConfig, error) {
	channel, err := stats.ParseChannel(def.Channel)
	if err != nil {
		return HotspotConfig{}, err
	}
	categories := make([]EntityCategory, 0, len(def.TargetCategories))
	for _, raw := range def.TargetCategories {
		category, err := ParseCategory(raw)
		if err != nil {
			return HotspotConfig{}, err
		}
		categories = append(categories, category)
	}
	return HotspotConfig{
		InitialDelay:     time.Duration(def.InitialDelayMs) * time.Millisecond,
		RepeatInterval:   time.Duration(def.RepeatIntervalMs) * time.Millisecond,
		MinAmount:        def.MinAmount,
		MaxAmount:        def.MaxAmount,
		RepeatCount:      def.RepeatCount,
		Channel:          channel,
		TargetCategories: categories,
	}, nil
}

func (h *hotspotState) entityRef() logging.EntityRef {
	return logging.EntityRef{ID: h.ID, Kind: logging.EntityKindHotspot}
}

// enterWorld activates collision intake and processing. Nothing is scheduled
// here; there are no targets yet.
func (h *hotspotState) enterWorld() {
	if h == nil {
		return
	}
	h.active = true
}

// exitWorld discards all pending scheduled work and clears the collider set.
// Any wake-up still in flight becomes a no-op through the activity guard in
// processDue, so a removed hotspot leaves no dangling work behind.
func (h *hotspotState) exitWorld() {
	if h == nil || !h.active {
		return
	}
	h.active = false
	dropped := h.sched.clear()
	cleared := h.colliders.Len()
	h.colliders.Clear()
	logginghotspots.Deactivated(
		context.Background(),
		h.deps.publisher,
		h.deps.tick(),
		h.entityRef(),
		logginghotspots.DeactivatedPayload{DroppedRecords: dropped, ClearedContacts: cleared},
	)
}

// handleContactBegin records a new overlap and, when the entity qualifies for
// effects, schedules its first affect. The entity reference is valid only for
// the duration of the call; the ID alone is retained.
func (h *hotspotState) handleContactBegin(other Entity, now time.Time) {
	if h == nil || other == nil || !h.active {
		return
	}
	id := other.EntityID()
	if id == "" {
		return
	}
	// A begin for an entity already in contact is a duplicate notification
	// from the collision layer. Ignoring it preserves the one-pending-record
	// invariant instead of re-scheduling an already ticking target.
	if h.colliders.Contains(id) {
		return
	}
	h.colliders.Add(id)
	h.deps.counters.contactsBegun.Add(1)
	if !h.qualifies(other) {
		return
	}
	// A target that left and came back before its stale record was processed
	// already has a pending record; that record resumes its cadence now that
	// membership holds again. Scheduling a second one would double the tick.
	if h.sched.contains(id) {
		return
	}
	h.scheduleTarget(&targetRecord{targetID: id}, now.Add(h.cfg.InitialDelay))
}

// handleContactEnd removes the entity from the collider set and nothing else:
// a pending record, if any, is dropped lazily the next time its bucket is
// processed, keeping departure O(1).
func (h *hotspotState) handleContactEnd(other Entity) {
	if h == nil || other == nil {
		return
	}
	id := other.EntityID()
	if id == "" || !h.colliders.Contains(id) {
		return
	}
	h.colliders.Remove(id)
	h.deps.counters.contactsEnded.Add(1)
}

// scheduleTarget files the record and arms a wake-up only when the table was
// empty: a wake-up is already pending for the current earliest bucket
// otherwise.
func (h *hotspotState) scheduleTarget(rec *targetRecord, at time.Time) {
	if h.sched.insert(rec, at) {
		h.deps.transport.RequestWakeup(h.ID, at)
		h.deps.counters.wakeupsArmed.Add(1)
	}
}

// qualifies applies the category filter; an empty filter accepts everything.
func (h *hotspotState) qualifies(other Entity) bool {
	if len(h.cfg.TargetCategories) == 0 {
		return true
	}
	for _, category := range h.cfg.TargetCategories {
		if matchesCategory(other, category) {
			return true
		}
	}
	return false
}

func matchesCategory(e Entity, category EntityCategory) bool {
	switch category {
	case CategoryPlayer:
		return e.IsPlayer()
	case CategoryNPC:
		return e.IsNPC()
	case CategoryCreature:
		return e.IsCreature()
	case CategoryItem:
		return e.IsItem()
	default:
		return false
	}
}

func (h *hotspotState) bounds() (minX, minY, maxX, maxY float64) {
	return h.X, h.Y, h.X + h.Width, h.Y + h.Height
}

func (h *hotspotState) snapshot() Hotspot {
	return h.Hotspot
}
