package server

import (
	"math/rand"
	"testing"
	"time"

	"hearth-and-harm/server/stats"
)

type testEntity struct {
	id       string
	category EntityCategory
}

func (e *testEntity) EntityID() string { return e.id }
func (e *testEntity) IsPlayer() bool   { return e.category == CategoryPlayer }
func (e *testEntity) IsNPC() bool      { return e.category == CategoryNPC }
func (e *testEntity) IsCreature() bool { return e.category == CategoryCreature }
func (e *testEntity) IsItem() bool     { return e.category == CategoryItem }

type affectCall struct {
	targetID string
	channel  stats.Channel
	amount   int
	at       time.Time
}

type wakeupCall struct {
	hotspotID string
	at        time.Time
}

type fakeTransport struct {
	affects    []affectCall
	wakeups    []wakeupCall
	failAffect map[string]bool
}

func (f *fakeTransport) Affect(targetID string, channel stats.Channel, amount int, deliverAt time.Time) bool {
	if f.failAffect[targetID] {
		return false
	}
	f.affects = append(f.affects, affectCall{targetID: targetID, channel: channel, amount: amount, at: deliverAt})
	return true
}

func (f *fakeTransport) RequestWakeup(hotspotID string, deliverAt time.Time) bool {
	f.wakeups = append(f.wakeups, wakeupCall{hotspotID: hotspotID, at: deliverAt})
	return true
}

func newTestHotspot(t *testing.T, cfg HotspotConfig) (*hotspotState, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{failAffect: make(map[string]bool)}
	hs, err := newHotspotState("hotspot-test", Hotspot{X: 0, Y: 0, Width: 50, Height: 50}, cfg, hotspotDeps{
		transport: transport,
		rng:       rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("construct hotspot: %v", err)
	}
	hs.enterWorld()
	return hs, transport
}

func player(id string) *testEntity {
	return &testEntity{id: id, category: CategoryPlayer}
}

var baseTime = time.UnixMilli(1_000_000)

func at(d time.Duration) time.Time {
	return baseTime.Add(d)
}

func TestSingleAffectThenRetire(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: 2 * time.Second,
		MinAmount:      5,
		MaxAmount:      5,
		RepeatCount:    0,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(player("p1"), at(10*time.Second))

	if len(transport.wakeups) != 1 || !transport.wakeups[0].at.Equal(at(10*time.Second)) {
		t.Fatalf("expected one wakeup at contact time, got %v", transport.wakeups)
	}

	hs.processDue(at(10 * time.Second))

	if len(transport.affects) != 1 {
		t.Fatalf("expected exactly one affect, got %d", len(transport.affects))
	}
	call := transport.affects[0]
	if call.targetID != "p1" || call.amount != 5 || !call.at.Equal(at(10*time.Second)) {
		t.Fatalf("unexpected affect %+v", call)
	}
	if hs.sched.size() != 0 {
		t.Fatalf("repeat count 0 should never reschedule, %d pending", hs.sched.size())
	}
	if len(transport.wakeups) != 1 {
		t.Fatalf("no further wakeup should be armed, got %v", transport.wakeups)
	}
}

func TestLazyDropAfterContactEnd(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   3 * time.Second,
		RepeatInterval: 1 * time.Second,
		MinAmount:      2,
		MaxAmount:      2,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	target := player("p1")
	hs.handleContactBegin(target, at(0))

	hs.processDue(at(3 * time.Second))
	if len(transport.affects) != 1 {
		t.Fatalf("expected first affect at t=3, got %d", len(transport.affects))
	}
	if len(transport.wakeups) != 2 || !transport.wakeups[1].at.Equal(at(4*time.Second)) {
		t.Fatalf("expected re-arm for t=4, got %v", transport.wakeups)
	}

	// Contact ends between firings; no table scan happens here.
	hs.handleContactEnd(target)
	if hs.sched.size() != 1 {
		t.Fatalf("record should still be pending after contact end, got %d", hs.sched.size())
	}

	hs.processDue(at(4 * time.Second))
	if len(transport.affects) != 1 {
		t.Fatalf("departed target must not be affected again, got %d affects", len(transport.affects))
	}
	if hs.sched.size() != 0 {
		t.Fatalf("stale record should be dropped with its bucket, %d pending", hs.sched.size())
	}
	if len(transport.wakeups) != 2 {
		t.Fatalf("empty table must not re-arm, got %v", transport.wakeups)
	}
}

func TestCategoryFilterTracksButNeverSchedules(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:     0,
		RepeatInterval:   time.Second,
		MinAmount:        1,
		MaxAmount:        1,
		RepeatCount:      RepeatUnlimited,
		Channel:          stats.ChannelHealth,
		TargetCategories: []EntityCategory{CategoryItem},
	})

	intruder := player("p1")
	hs.handleContactBegin(intruder, at(0))

	if !hs.colliders.Contains("p1") {
		t.Fatalf("non-qualifying collider must still be tracked")
	}
	if hs.sched.size() != 0 || len(transport.wakeups) != 0 {
		t.Fatalf("non-qualifying collider must never be scheduled")
	}

	hs.handleContactEnd(intruder)
	if hs.colliders.Contains("p1") {
		t.Fatalf("contact end should remove the collider")
	}

	crate := &testEntity{id: "crate-1", category: CategoryItem}
	hs.handleContactBegin(crate, at(time.Second))
	if hs.sched.size() != 1 {
		t.Fatalf("qualifying item should be scheduled")
	}
}

func TestSameBucketProcessedInBeginOrder(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    0,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(player("a"), at(0))
	hs.handleContactBegin(player("b"), at(0))

	if len(transport.wakeups) != 1 {
		t.Fatalf("second schedule into a pending table must not arm another wakeup, got %v", transport.wakeups)
	}

	hs.processDue(at(0))

	if len(transport.affects) != 2 {
		t.Fatalf("expected both targets affected, got %d", len(transport.affects))
	}
	if transport.affects[0].targetID != "a" || transport.affects[1].targetID != "b" {
		t.Fatalf("bucket must be processed in begin order, got %+v", transport.affects)
	}
}

func TestRepeatCountLaw(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    2,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(player("p1"), at(0))
	for i := 0; i < 10; i++ {
		if hs.sched.size() == 0 {
			break
		}
		next, _ := hs.sched.earliest()
		hs.processDue(next)
	}

	if got := len(transport.affects); got != 3 {
		t.Fatalf("repeat count 2 must deliver exactly 3 affects, got %d", got)
	}
	if hs.sched.size() != 0 {
		t.Fatalf("target must not be rescheduled past its limit")
	}
}

func TestUnlimitedRepeatKeepsRescheduling(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(player("p1"), at(0))
	for i := 0; i < 25; i++ {
		next, ok := hs.sched.earliest()
		if !ok {
			t.Fatalf("unlimited repeat should stay scheduled (iteration %d)", i)
		}
		hs.processDue(next)
	}

	if got := len(transport.affects); got != 25 {
		t.Fatalf("expected 25 affects, got %d", got)
	}
	// Unlimited targets never track a count; it can never reach a limit.
	for _, bucket := range hs.sched.buckets {
		for _, rec := range bucket {
			if rec.affections != 0 {
				t.Fatalf("unlimited repeat must not track affections, got %d", rec.affections)
			}
		}
	}
}

func TestAffectFailureRetiresTarget(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})
	transport.failAffect["p1"] = true

	hs.handleContactBegin(player("p1"), at(0))
	hs.processDue(at(0))

	if len(transport.affects) != 0 {
		t.Fatalf("failed delivery should record nothing")
	}
	if hs.sched.size() != 0 {
		t.Fatalf("unresolvable target must be retired, not retried")
	}
}

func TestInactiveHotspotIgnoresEverything(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(player("p1"), at(0))
	hs.exitWorld()

	if hs.sched.size() != 0 || hs.colliders.Len() != 0 {
		t.Fatalf("world exit must discard the schedule and the collider set")
	}

	// The wakeup armed before exit still gets delivered; it must do nothing.
	hs.processDue(at(0))
	if len(transport.affects) != 0 {
		t.Fatalf("inactive hotspot must not affect")
	}
	if len(transport.wakeups) != 1 {
		t.Fatalf("inactive hotspot must not re-arm, got %v", transport.wakeups)
	}

	hs.handleContactBegin(player("p2"), at(time.Second))
	if hs.colliders.Len() != 0 {
		t.Fatalf("inactive hotspot must reject collision intake")
	}

	hs.enterWorld()
	if hs.sched.size() != 0 {
		t.Fatalf("table must start empty after re-entry")
	}
}

func TestNilAndDuplicateNotifications(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(nil, at(0))
	hs.handleContactEnd(nil)
	if hs.colliders.Len() != 0 {
		t.Fatalf("nil notifications must be ignored")
	}

	target := player("p1")
	hs.handleContactBegin(target, at(0))
	hs.handleContactBegin(target, at(time.Second))
	if hs.sched.size() != 1 {
		t.Fatalf("duplicate begin must not create a second pending record, got %d", hs.sched.size())
	}
	if len(transport.wakeups) != 1 {
		t.Fatalf("duplicate begin must not arm another wakeup")
	}

	hs.handleContactEnd(target)
	hs.handleContactEnd(target)
	if hs.colliders.Len() != 0 {
		t.Fatalf("spurious end must be absorbed")
	}
}

func TestReentryResumesPendingRecord(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   2 * time.Second,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	target := player("p1")
	hs.handleContactBegin(target, at(0))
	hs.handleContactEnd(target)

	// Back inside before the stale record was processed: the old record
	// resumes, no second one is filed.
	hs.handleContactBegin(target, at(time.Second))
	if hs.sched.size() != 1 {
		t.Fatalf("re-entry must not file a second record, got %d", hs.sched.size())
	}
	if len(transport.wakeups) != 1 {
		t.Fatalf("re-entry must not arm another wakeup, got %v", transport.wakeups)
	}

	hs.processDue(at(2 * time.Second))
	if len(transport.affects) != 1 {
		t.Fatalf("resumed record should fire on its original cadence, got %d", len(transport.affects))
	}
}

func TestMagnitudeStaysInBounds(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      -3,
		MaxAmount:      4,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	hs.handleContactBegin(player("p1"), at(0))
	for i := 0; i < 200; i++ {
		next, _ := hs.sched.earliest()
		hs.processDue(next)
	}

	seen := make(map[int]bool)
	for _, call := range transport.affects {
		if call.amount < -3 || call.amount > 4 {
			t.Fatalf("amount %d outside [-3, 4]", call.amount)
		}
		seen[call.amount] = true
	}
	if !seen[-3] || !seen[4] {
		t.Fatalf("inclusive bounds should both be drawable over 200 draws, saw %v", seen)
	}
}

func TestSpuriousWakeupWithEmptyTable(t *testing.T) {
	hs, transport := newTestHotspot(t, HotspotConfig{
		InitialDelay:   0,
		RepeatInterval: time.Second,
		MinAmount:      1,
		MaxAmount:      1,
		RepeatCount:    RepeatUnlimited,
		Channel:        stats.ChannelHealth,
	})

	hs.processDue(at(0))
	if len(transport.affects) != 0 || len(transport.wakeups) != 0 {
		t.Fatalf("wakeup against an empty table must do nothing")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  HotspotConfig
	}{
		{"inverted range", HotspotConfig{MinAmount: 5, MaxAmount: 1, RepeatCount: 0, Channel: stats.ChannelHealth}},
		{"negative delay", HotspotConfig{InitialDelay: -time.Second, RepeatCount: 0, Channel: stats.ChannelHealth}},
		{"negative interval", HotspotConfig{RepeatInterval: -time.Second, RepeatCount: 0, Channel: stats.ChannelHealth}},
		{"repeat without interval", HotspotConfig{RepeatCount: RepeatUnlimited, Channel: stats.ChannelHealth}},
		{"bad repeat count", HotspotConfig{RepeatCount: -2, Channel: stats.ChannelHealth}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatalf("expected %s to be rejected", tc.name)
			}
		})
	}
}
