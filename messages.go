package server

import (
	"context"
	"sort"
	"time"

	"hearth-and-harm/server/logging"
	logginghotspots "hearth-and-harm/server/logging/hotspots"
	"hearth-and-harm/server/stats"
)

// Transport is the one-way, queued messaging surface the hotspot core sends
// through. Sends report only whether the recipient was addressable at send
// time; delivery always happens after the sending call has returned, never
// reentrantly.
type Transport interface {
	Affect(targetID string, channel stats.Channel, amount int, deliverAt time.Time) bool
	RequestWakeup(hotspotID string, deliverAt time.Time) bool
}

type envelopeKind int

const (
	envelopeAffect envelopeKind = iota
	envelopeWakeup
)

type envelope struct {
	kind      envelopeKind
	targetID  string
	channel   stats.Channel
	amount    int
	deliverAt time.Time
	seq       uint64
}

// messageQueue is the in-process deferred delivery channel backing Transport.
// Envelopes are held sorted by deliver-at time, ties broken by enqueue order,
// and drained once per simulation step.
type messageQueue struct {
	world   *World
	pending []*envelope
	nextSeq uint64
}

func newMessageQueue(w *World) *messageQueue {
	return &messageQueue{world: w}
}

// Affect queues a stat change for the target. Returns false when the target
// cannot be resolved to an address right now; an accepted envelope may still
// find the target gone at delivery time, in which case it is dropped.
func (q *messageQueue) Affect(targetID string, channel stats.Channel, amount int, deliverAt time.Time) bool {
	if q == nil || q.world == nil {
		return false
	}
	if _, ok := q.world.actors[targetID]; !ok {
		return false
	}
	q.enqueue(&envelope{
		kind:      envelopeAffect,
		targetID:  targetID,
		channel:   channel,
		amount:    amount,
		deliverAt: deliverAt,
	})
	return true
}

// RequestWakeup queues a self-addressed delivery that will invoke the
// hotspot's processDue.
func (q *messageQueue) RequestWakeup(hotspotID string, deliverAt time.Time) bool {
	if q == nil || q.world == nil {
		return false
	}
	if _, ok := q.world.hotspots[hotspotID]; !ok {
		return false
	}
	q.enqueue(&envelope{
		kind:      envelopeWakeup,
		targetID:  hotspotID,
		deliverAt: deliverAt,
	})
	return true
}

func (q *messageQueue) enqueue(env *envelope) {
	env.seq = q.nextSeq
	q.nextSeq++
	// Insert after every envelope due at the same instant so equal times
	// stay in enqueue order.
	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].deliverAt.After(env.deliverAt)
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = env
}

func (q *messageQueue) len() int {
	if q == nil {
		return 0
	}
	return len(q.pending)
}

// drainDue delivers every envelope due at or before now, including envelopes
// enqueued by the deliveries themselves (a wake-up processed at its due time
// may queue an immediate affect).
func (q *messageQueue) drainDue(now time.Time) {
	if q == nil {
		return
	}
	for len(q.pending) > 0 && !q.pending[0].deliverAt.After(now) {
		env := q.pending[0]
		q.pending = q.pending[1:]
		q.deliver(env, now)
	}
}

func (q *messageQueue) deliver(env *envelope, now time.Time) {
	w := q.world
	switch env.kind {
	case envelopeAffect:
		actor, ok := w.actors[env.targetID]
		if !ok {
			// Target left the world after the send was accepted. Dropped
			// silently; the schedule already treats it as retired.
			return
		}
		value, supported := actor.stats.Apply(env.channel, env.amount)
		if !supported {
			return
		}
		w.counters.affectsDelivered.Add(1)
		logginghotspots.Affected(
			context.Background(),
			w.publisher,
			w.currentTick,
			logging.EntityRef{Kind: logging.EntityKindWorld},
			w.entityRef(env.targetID),
			logginghotspots.AffectedPayload{Channel: string(env.channel), Amount: env.amount, Value: value},
		)
	case envelopeWakeup:
		hs, ok := w.hotspots[env.targetID]
		if !ok {
			return
		}
		w.counters.wakeupsFired.Add(1)
		hs.processDue(now)
	}
}
