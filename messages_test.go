package server

import (
	"testing"
	"time"

	"hearth-and-harm/server/logging"
	"hearth-and-harm/server/stats"
)

func newTestWorld() *World {
	return NewWorld(WorldConfig{Width: 800, Height: 600, Seed: "test"}, logging.NopPublisher())
}

func TestQueueDeliversInTimeThenSendOrder(t *testing.T) {
	w := newTestWorld()
	target := w.SpawnActor(CategoryPlayer, 10, 10)

	q := w.queue
	q.Affect(target.ID, stats.ChannelHealth, 1, at(2*time.Second))
	q.Affect(target.ID, stats.ChannelHealth, 2, at(1*time.Second))
	q.Affect(target.ID, stats.ChannelHealth, 3, at(1*time.Second))

	if q.len() != 3 {
		t.Fatalf("expected 3 pending envelopes, got %d", q.len())
	}
	if q.pending[0].amount != 2 || q.pending[1].amount != 3 || q.pending[2].amount != 1 {
		t.Fatalf("queue must order by time then enqueue sequence, got %+v", q.pending)
	}

	// Only the first two are due at t=1.
	q.drainDue(at(1 * time.Second))
	if got := target.stats.Get(stats.ChannelHealth); got != 95 {
		t.Fatalf("expected both t=1 envelopes applied (100-2-3), got %d", got)
	}
	if q.len() != 1 {
		t.Fatalf("t=2 envelope should still be pending")
	}

	q.drainDue(at(2 * time.Second))
	if got := target.stats.Get(stats.ChannelHealth); got != 94 {
		t.Fatalf("expected final health 94, got %d", got)
	}
}

func TestAffectRejectsUnknownTargetAtSendTime(t *testing.T) {
	w := newTestWorld()
	if w.queue.Affect("ghost", stats.ChannelHealth, 5, at(0)) {
		t.Fatalf("unknown target must be rejected at send time")
	}
	if w.queue.len() != 0 {
		t.Fatalf("rejected send must not enqueue")
	}
}

func TestAffectDroppedWhenTargetLeavesBeforeDelivery(t *testing.T) {
	w := newTestWorld()
	target := w.SpawnActor(CategoryPlayer, 10, 10)

	if !w.queue.Affect(target.ID, stats.ChannelHealth, 5, at(time.Second)) {
		t.Fatalf("resolvable target must be accepted")
	}
	w.RemoveActor(target.ID)

	// Delivery finds the target gone; nothing panics, nothing applies.
	w.queue.drainDue(at(time.Second))
	if w.counters.affectsDelivered.Load() != 0 {
		t.Fatalf("no delivery should be recorded for a departed target")
	}
}

func TestWakeupRejectsUnknownHotspot(t *testing.T) {
	w := newTestWorld()
	if w.queue.RequestWakeup("hotspot-missing", at(0)) {
		t.Fatalf("unknown hotspot must be rejected")
	}
}

func TestUnsupportedChannelDeliveryIsSilent(t *testing.T) {
	w := newTestWorld()
	crate := w.SpawnActor(CategoryItem, 10, 10)

	w.queue.Affect(crate.ID, stats.ChannelMana, 5, at(0))
	w.queue.drainDue(at(0))

	if w.counters.affectsDelivered.Load() != 0 {
		t.Fatalf("items carry no mana; delivery should be silently dropped")
	}
	if got := crate.stats.Get(stats.ChannelHealth); got != 50 {
		t.Fatalf("health must be untouched, got %d", got)
	}
}
