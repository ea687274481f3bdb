package server

// colliderSet is the authoritative record of which entities currently overlap
// a hotspot. Membership is updated only by contact notifications; add and
// remove are idempotent so a malformed double begin or spurious end cannot
// corrupt it.
type colliderSet struct {
	members map[string]struct{}
}

func newColliderSet() *colliderSet {
	return &colliderSet{members: make(map[string]struct{})}
}

func (s *colliderSet) Add(id string) {
	if s == nil || id == "" {
		return
	}
	s.members[id] = struct{}{}
}

func (s *colliderSet) Remove(id string) {
	if s == nil {
		return
	}
	delete(s.members, id)
}

func (s *colliderSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[id]
	return ok
}

func (s *colliderSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

func (s *colliderSet) Clear() {
	if s == nil {
		return
	}
	clear(s.members)
}
