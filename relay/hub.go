package relay

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/caffeineduck/browserinterop/contract"
	"go.uber.org/zap"
)

// Room groups the clients and hosts of one hosting session.
type Room struct {
	ID      string
	members map[string]*Member
}

// RoomInfo describes a room for the /rooms listing.
type RoomInfo struct {
	ID      string `json:"id"`
	Clients int    `json:"clients"`
	Hosts   int    `json:"hosts"`
}

func (r *Room) count(memberType string) int {
	n := 0
	for _, m := range r.members {
		if m.Type == memberType {
			n++
		}
	}
	return n
}

// Hub tracks rooms and routes room messages between their members.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms: make(map[string]*Room),
		log:   log,
	}
}

// Join adds m to its room, creating the room on first use. Clients are
// told when the first host arrives.
func (h *Hub) Join(m *Member) {
	h.mu.Lock()
	room, ok := h.rooms[m.RoomID]
	if !ok {
		room = &Room{ID: m.RoomID, members: make(map[string]*Member)}
		h.rooms[m.RoomID] = room
	}
	if _, dup := room.members[m.ID]; dup {
		h.log.Warn("member already in room", zap.String("room", m.RoomID), zap.String("member", m.ID))
	}
	room.members[m.ID] = m
	var notify []*Member
	if m.Type == contract.MemberHost && room.count(contract.MemberHost) == 1 {
		notify = membersOf(room, contract.MemberClient)
	}
	h.mu.Unlock()

	h.log.Info("member joined",
		zap.String("room", m.RoomID),
		zap.String("member", m.ID),
		zap.String("type", m.Type))
	h.broadcast(notify, contract.RoomEnvelope{Event: contract.EventHostReconnected})
}

// Leave removes m. When the last host leaves, the clients are told.
func (h *Hub) Leave(m *Member) {
	h.mu.Lock()
	room, ok := h.rooms[m.RoomID]
	if !ok || room.members[m.ID] != m {
		h.mu.Unlock()
		return
	}
	delete(room.members, m.ID)
	var notify []*Member
	if m.Type == contract.MemberHost && room.count(contract.MemberHost) == 0 {
		notify = membersOf(room, contract.MemberClient)
	}
	if len(room.members) == 0 {
		delete(h.rooms, room.ID)
	}
	h.mu.Unlock()

	h.log.Info("member left", zap.String("room", m.RoomID), zap.String("member", m.ID))
	h.broadcast(notify, contract.RoomEnvelope{Event: contract.EventAllHostsDisconnected})
}

// Route forwards a request or response sent by from. Requests go to every
// member of the opposite type; responses go to the original caller.
func (h *Hub) Route(from *Member, env contract.RoomEnvelope) {
	var msg contract.RoomMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		h.log.Warn("invalid room message", zap.String("member", from.ID), zap.Error(err))
		return
	}

	h.mu.RLock()
	room, ok := h.rooms[from.RoomID]
	var targets []*Member
	if ok {
		switch env.Event {
		case contract.EventClientRequest:
			targets = membersOf(room, contract.MemberHost)
		case contract.EventHostRequest:
			targets = membersOf(room, contract.MemberClient)
		case contract.EventClientResponse, contract.EventHostResponse:
			if caller, found := room.members[msg.CallerID]; found {
				targets = []*Member{caller}
			}
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.log.Debug("no route for room message",
			zap.String("event", env.Event),
			zap.String("room", from.RoomID),
			zap.String("messageId", msg.MessageID))
		return
	}
	h.broadcast(targets, env)
}

func (h *Hub) broadcast(targets []*Member, env contract.RoomEnvelope) {
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error("encode room event", zap.Error(err))
		return
	}
	for _, m := range targets {
		if !m.enqueue(data) {
			h.log.Warn("member send buffer full", zap.String("member", m.ID))
		}
	}
}

// Rooms lists the active rooms sorted by id.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, RoomInfo{
			ID:      r.ID,
			Clients: r.count(contract.MemberClient),
			Hosts:   r.count(contract.MemberHost),
		})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func membersOf(room *Room, memberType string) []*Member {
	var out []*Member
	for _, m := range room.members {
		if m.Type == memberType {
			out = append(out, m)
		}
	}
	return out
}
