package server

import (
	"context"
	"sort"
	"time"

	logginghotspots "hearth-and-harm/server/logging/hotspots"
)

// targetRecord tracks one scheduled target. It carries the stable entity ID
// only, never a live reference; the entity may leave the world between
// scheduling and processing.
type targetRecord struct {
	targetID   string
	affections int
}

// affectSchedule is a time-bucketed table of pending affects: absolute
// millisecond time to the records due then, insertion order preserved within
// a bucket. A target ID appears in at most one bucket at a time, which is
// what lets processing use a plain collider-set membership check instead of
// per-target cancellation bookkeeping.
type affectSchedule struct {
	buckets map[int64][]*targetRecord
	order   []int64
}

func newAffectSchedule() *affectSchedule {
	return &affectSchedule{buckets: make(map[int64][]*targetRecord)}
}

// insert files the record under the bucket for at, creating the bucket when
// absent. Reports whether the table was empty before the call, which is the
// only case where the caller must arm an external wake-up.
func (s *affectSchedule) insert(rec *targetRecord, at time.Time) bool {
	wasEmpty := len(s.order) == 0
	key := at.UnixMilli()
	if _, ok := s.buckets[key]; !ok {
		idx := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= key })
		s.order = append(s.order, 0)
		copy(s.order[idx+1:], s.order[idx:])
		s.order[idx] = key
	}
	s.buckets[key] = append(s.buckets[key], rec)
	return wasEmpty
}

// popEarliest removes and returns the earliest bucket in full.
func (s *affectSchedule) popEarliest() ([]*targetRecord, bool) {
	if len(s.order) == 0 {
		return nil, false
	}
	key := s.order[0]
	records := s.buckets[key]
	delete(s.buckets, key)
	s.order = s.order[1:]
	return records, true
}

// earliest reports the next due time without removing anything.
func (s *affectSchedule) earliest() (time.Time, bool) {
	if len(s.order) == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(s.order[0]), true
}

// size counts pending records across all buckets.
func (s *affectSchedule) size() int {
	total := 0
	for _, bucket := range s.buckets {
		total += len(bucket)
	}
	return total
}

// contains reports whether a record for the target is pending anywhere.
func (s *affectSchedule) contains(targetID string) bool {
	for _, bucket := range s.buckets {
		for _, rec := range bucket {
			if rec.targetID == targetID {
				return true
			}
		}
	}
	return false
}

// clear discards every bucket and reports how many records were dropped.
func (s *affectSchedule) clear() int {
	dropped := s.size()
	clear(s.buckets)
	s.order = s.order[:0]
	return dropped
}

// processDue handles a delivered wake-up: pops the earliest bucket, affects
// every record whose target is still in contact, and reschedules or retires
// each one. Wake-ups that race a world exit or an empty table degrade to
// no-ops.
func (h *hotspotState) processDue(now time.Time) {
	if h == nil || !h.active {
		return
	}
	records, ok := h.sched.popEarliest()
	if ok {
		for _, rec := range records {
			h.processRecord(rec, now)
		}
	}
	// Re-arm for whatever is left; insertions made while processing are
	// covered here rather than arming one wake-up per reschedule.
	if next, pending := h.sched.earliest(); pending {
		h.deps.transport.RequestWakeup(h.ID, next)
	}
}

func (h *hotspotState) processRecord(rec *targetRecord, now time.Time) {
	if !h.colliders.Contains(rec.targetID) {
		// Contact ended since scheduling; the record was carried lazily
		// instead of scanning the table on every departure.
		h.deps.counters.lazyDrops.Add(1)
		h.publishRetired(rec, logginghotspots.ReasonDeparted)
		return
	}
	amount := h.drawAmount()
	if !h.deps.transport.Affect(rec.targetID, h.cfg.Channel, amount, now) {
		h.deps.counters.affectsFailed.Add(1)
		h.publishRetired(rec, logginghotspots.ReasonLost)
		return
	}
	h.deps.counters.affectsSent.Add(1)
	if h.cfg.RepeatCount != RepeatUnlimited {
		rec.affections++
		if rec.affections > h.cfg.RepeatCount {
			h.publishRetired(rec, logginghotspots.ReasonLimit)
			return
		}
	}
	h.sched.insert(rec, now.Add(h.cfg.RepeatInterval))
}

func (h *hotspotState) drawAmount() int {
	min, max := h.cfg.MinAmount, h.cfg.MaxAmount
	if min >= max {
		return min
	}
	return h.deps.rng.Intn(max-min+1) + min
}

func (h *hotspotState) publishRetired(rec *targetRecord, reason string) {
	logginghotspots.Retired(
		context.Background(),
		h.deps.publisher,
		h.deps.tick(),
		h.entityRef(),
		h.deps.entityRef(rec.targetID),
		logginghotspots.RetiredPayload{Reason: reason, Affections: rec.affections},
	)
}
