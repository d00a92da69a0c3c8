package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = (PongWait * 9) / 10
)

// Member is one websocket connection in a room.
type Member struct {
	ID     string
	Type   string
	RoomID string

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

func newMember(conn *websocket.Conn, cfg Config) *Member {
	return &Member{
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		done:    make(chan struct{}),
	}
}

func (m *Member) enqueue(data []byte) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.send <- data:
		return true
	default:
		return false
	}
}

func (m *Member) close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

// readPump joins the room on the first join-room event and routes every
// later event through the hub.
func (m *Member) readPump(h *Hub, maxMessageSize int64, log *zap.Logger) {
	defer func() {
		if m.RoomID != "" {
			h.Leave(m)
		}
		m.close()
		m.conn.Close()
	}()

	m.conn.SetReadLimit(maxMessageSize)
	m.conn.SetReadDeadline(time.Now().Add(PongWait))
	m.conn.SetPongHandler(func(string) error {
		return m.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		var env contract.RoomEnvelope
		if err := m.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("member connection lost", zap.String("member", m.ID), zap.Error(err))
			}
			return
		}

		if env.Event == contract.EventJoinRoom {
			m.join(h, env, log)
			continue
		}
		if m.RoomID == "" {
			log.Warn("event before join-room", zap.String("event", env.Event))
			continue
		}
		if !m.limiter.Allow() {
			log.Warn("member rate limited", zap.String("member", m.ID), zap.String("event", env.Event))
			continue
		}
		h.Route(m, env)
	}
}

func (m *Member) join(h *Hub, env contract.RoomEnvelope, log *zap.Logger) {
	if m.RoomID != "" {
		log.Warn("member already joined", zap.String("member", m.ID))
		return
	}
	var req contract.JoinRoom
	if err := json.Unmarshal(env.Data, &req); err != nil || req.RoomID == "" || req.MemberID == "" {
		log.Warn("invalid join-room", zap.ByteString("data", env.Data))
		return
	}
	if req.MemberType != contract.MemberClient && req.MemberType != contract.MemberHost {
		log.Warn("invalid member type", zap.String("type", req.MemberType))
		return
	}
	m.ID, m.Type, m.RoomID = req.MemberID, req.MemberType, req.RoomID
	h.Join(m)
}

func (m *Member) writePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		m.conn.Close()
	}()

	for {
		select {
		case <-m.done:
			m.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(WriteWait))
			return
		case data := <-m.send:
			m.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
