package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hearth-and-harm/server/internal/telemetry"
)

const (
	writeWait         = 10 * time.Second
	tickRate          = 15 // simulation ticks per second
	moveSpeed         = 160.0
	heartbeatInterval = 2 * time.Second
)

// Hub serializes all access to the world and owns the subscriber
// connections. Every world mutation (joins, intents, ticks) happens under
// its mutex, which is the single mutual-exclusion scope the hotspot core
// relies on.
type Hub struct {
	mu          sync.Mutex
	world       *World
	subscribers map[string]*subscriber
	logger      telemetry.Logger
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewHub(world *World, logger telemetry.Logger) *Hub {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Hub{
		world:       world,
		subscribers: make(map[string]*subscriber),
		logger:      logger,
	}
}

// Join registers a new player actor and returns the current snapshot.
func (h *Hub) Join() joinResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	actor := h.world.SpawnActor(CategoryPlayer, h.world.cfg.Width/2, h.world.cfg.Height/2)
	actors, hotspots := h.world.Snapshot()
	return joinResponse{
		Ver:      ProtoVersion,
		ID:       actor.ID,
		Actors:   actors,
		Hotspots: hotspots,
		Config:   h.world.Config(),
	}
}

// Subscribe associates a WebSocket connection with an existing player.
func (h *Hub) Subscribe(playerID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.world.actors[playerID]; !ok {
		return nil, false
	}
	if existing, ok := h.subscribers[playerID]; ok {
		existing.conn.Close()
	}
	sub := &subscriber{conn: conn}
	h.subscribers[playerID] = sub
	return sub, true
}

// Disconnect removes the player and closes any active connection.
func (h *Hub) Disconnect(playerID string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[playerID]
	if subOK {
		delete(h.subscribers, playerID)
	}
	h.world.RemoveActor(playerID)
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
}

// HandleClientMessage applies one decoded client message.
func (h *Hub) HandleClientMessage(playerID string, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Printf("hub: malformed message from %s: %v", playerID, err)
		return
	}
	switch msg.Type {
	case "move":
		h.mu.Lock()
		h.world.SetIntent(playerID, msg.DX, msg.DY)
		h.mu.Unlock()
	case "heartbeat":
		h.sendHeartbeat(playerID, msg.SentAt)
	default:
		h.logger.Printf("hub: unknown message type %q from %s", msg.Type, playerID)
	}
}

func (h *Hub) sendHeartbeat(playerID string, clientTime int64) {
	h.mu.Lock()
	sub, ok := h.subscribers[playerID]
	h.mu.Unlock()
	if !ok {
		return
	}
	reply := heartbeatMessage{
		Type:       "heartbeat",
		ServerTime: time.Now().UnixMilli(),
		ClientTime: clientTime,
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	sub.write(data)
}

// RunSimulation drives the fixed-rate tick loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	interval := time.Second / tickRate
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			h.mu.Lock()
			h.world.Step(now, dt)
			actors, hotspots := h.world.Snapshot()
			tick := h.world.CurrentTick()
			h.mu.Unlock()

			h.broadcastState(actors, hotspots, tick)
		}
	}
}

func (h *Hub) broadcastState(actors []Actor, hotspots []Hotspot, tick uint64) {
	msg := stateMessage{
		Ver:        ProtoVersion,
		Type:       "state",
		Actors:     actors,
		Hotspots:   hotspots,
		Tick:       tick,
		ServerTime: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("hub: marshal state failed: %v", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Printf("hub: dropping subscriber %s: %v", id, err)
			h.Disconnect(id)
		}
	}
}

// Diagnostics reports the hub's health surface.
func (h *Hub) Diagnostics() (uint64, int, CounterSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.CurrentTick(), len(h.world.actors), h.world.Counters()
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
