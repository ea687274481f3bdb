package hotspots

import (
	"context"

	"hearth-and-harm/server/logging"
)

const (
	// EventSpawned is emitted when a hotspot enters the world.
	EventSpawned logging.EventType = "hotspots.spawned"
	// EventDeactivated is emitted when a hotspot leaves the world and drops
	// its pending schedule.
	EventDeactivated logging.EventType = "hotspots.deactivated"
	// EventAffected is emitted when a queued affect is delivered to a target.
	EventAffected logging.EventType = "hotspots.affected"
	// EventRetired is emitted when a target leaves a hotspot's schedule.
	EventRetired logging.EventType = "hotspots.retired"
)

// SpawnedPayload captures the authored shape of a freshly spawned hotspot.
type SpawnedPayload struct {
	Definition string `json:"definition,omitempty"`
	Channel    string `json:"channel"`
	RepeatMs   int64  `json:"repeatMs,omitempty"`
}

// AffectedPayload captures a delivered magnitude on a stat channel.
type AffectedPayload struct {
	Channel string `json:"channel"`
	Amount  int    `json:"amount"`
	Value   int    `json:"value"`
}

// RetiredPayload records why a target left the schedule.
type RetiredPayload struct {
	Reason     string `json:"reason"`
	Affections int    `json:"affections,omitempty"`
}

// DeactivatedPayload records the work discarded on world exit.
type DeactivatedPayload struct {
	DroppedRecords  int `json:"droppedRecords,omitempty"`
	ClearedContacts int `json:"clearedContacts,omitempty"`
}

const (
	ReasonDeparted = "departed"
	ReasonLimit    = "limit-reached"
	ReasonLost     = "unresolvable"
)

// Spawned publishes a hotspot spawn event.
func Spawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

// Deactivated publishes a hotspot world-exit event.
func Deactivated(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DeactivatedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventDeactivated,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

// Affected publishes a delivered affect.
func Affected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload AffectedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventAffected,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

// Retired publishes the end of a target's schedule.
func Retired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload RetiredPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventRetired,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = "hotspots"
	pub.Publish(ctx, event)
}
