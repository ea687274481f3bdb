package server

import (
	"fmt"

	"github.com/google/uuid"

	"hearth-and-harm/server/logging"
	"hearth-and-harm/server/stats"
)

// EntityCategory is the closed set of target categories a hotspot can filter
// on.
type EntityCategory string

const (
	CategoryPlayer   EntityCategory = "player"
	CategoryNPC      EntityCategory = "npc"
	CategoryCreature EntityCategory = "creature"
	CategoryItem     EntityCategory = "item"
)

// ParseCategory resolves a designer-authored category name.
func ParseCategory(raw string) (EntityCategory, error) {
	switch EntityCategory(raw) {
	case CategoryPlayer, CategoryNPC, CategoryCreature, CategoryItem:
		return EntityCategory(raw), nil
	}
	return "", fmt.Errorf("unknown entity category %q", raw)
}

// Entity is the narrow surface a hotspot is allowed to see during a collision
// notification. Implementations are valid only for the duration of the call;
// the hotspot retains the ID alone.
type Entity interface {
	EntityID() string
	IsPlayer() bool
	IsNPC() bool
	IsCreature() bool
	IsItem() bool
}

// Actor is the wire representation of a simulated entity.
type Actor struct {
	ID       string         `json:"id"`
	Category EntityCategory `json:"category"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Stats    map[string]int `json:"stats,omitempty"`
}

type actorState struct {
	Actor
	stats    *stats.Block
	intentX  float64
	intentY  float64
	touching map[string]struct{}
}

const actorHalf = 14.0

func newActorState(category EntityCategory, x, y float64) *actorState {
	return &actorState{
		Actor: Actor{
			ID:       fmt.Sprintf("%s-%s", category, uuid.NewString()),
			Category: category,
			X:        x,
			Y:        y,
		},
		stats:    defaultStatBlock(category),
		touching: make(map[string]struct{}),
	}
}

// defaultStatBlock gives each category the channels it actually carries.
// Items expose health only (structural integrity); anything channel-specific
// beyond that is the stat block's business, never the hotspot's.
func defaultStatBlock(category EntityCategory) *stats.Block {
	switch category {
	case CategoryItem:
		return stats.NewBlock(map[stats.Channel]int{
			stats.ChannelHealth: 50,
		})
	case CategoryCreature:
		return stats.NewBlock(map[stats.Channel]int{
			stats.ChannelHealth:  80,
			stats.ChannelStamina: 60,
		})
	default:
		return stats.NewBlock(map[stats.Channel]int{
			stats.ChannelHealth:  100,
			stats.ChannelStamina: 100,
			stats.ChannelMana:    100,
		})
	}
}

func (a *actorState) EntityID() string {
	if a == nil {
		return ""
	}
	return a.ID
}

func (a *actorState) IsPlayer() bool   { return a != nil && a.Category == CategoryPlayer }
func (a *actorState) IsNPC() bool      { return a != nil && a.Category == CategoryNPC }
func (a *actorState) IsCreature() bool { return a != nil && a.Category == CategoryCreature }
func (a *actorState) IsItem() bool     { return a != nil && a.Category == CategoryItem }

func (a *actorState) entityKind() logging.EntityKind {
	switch a.Category {
	case CategoryPlayer:
		return logging.EntityKindPlayer
	case CategoryNPC:
		return logging.EntityKindNPC
	case CategoryCreature:
		return logging.EntityKindCreature
	case CategoryItem:
		return logging.EntityKindItem
	default:
		return logging.EntityKindUnknown
	}
}

func (a *actorState) snapshot() Actor {
	actor := a.Actor
	actor.Stats = a.stats.Snapshot()
	return actor
}
