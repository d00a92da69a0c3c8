package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = (PongWait * 9) / 10
)

// Remote is a member of a relay room. Calls are sent to the members of
// the opposite type in the room; responses come back addressed to this
// member.
type Remote struct {
	conn       *websocket.Conn
	roomID     string
	memberID   string
	memberType string
	log        *zap.Logger
	onPresence func(hostsAvailable bool)

	wmu sync.Mutex

	mu         sync.Mutex
	dispatcher interop.Dispatcher
	pending    map[string]chan contract.RoomMessage
	closed     bool

	wg   sync.WaitGroup
	done chan struct{}
}

type RemoteOption func(*Remote)

func WithRemoteLogger(l *zap.Logger) RemoteOption {
	return func(r *Remote) {
		r.log = l
	}
}

// WithPresence registers a callback for host presence changes in the
// room. It only fires for client members.
func WithPresence(fn func(hostsAvailable bool)) RemoteOption {
	return func(r *Remote) {
		r.onPresence = fn
	}
}

// WithMemberID overrides the generated member id.
func WithMemberID(id string) RemoteOption {
	return func(r *Remote) {
		r.memberID = id
	}
}

// Dial connects to the relay websocket at url and joins roomID as a
// member of the given role.
func Dial(ctx context.Context, url, roomID string, role interop.Role, opts ...RemoteOption) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	r := &Remote{
		conn:       conn,
		roomID:     roomID,
		memberID:   uuid.NewString(),
		memberType: contract.MemberClient,
		log:        zap.NewNop(),
		pending:    make(map[string]chan contract.RoomMessage),
		done:       make(chan struct{}),
	}
	if role == interop.RoleHost {
		r.memberType = contract.MemberHost
	}
	for _, opt := range opts {
		opt(r)
	}

	join := contract.JoinRoom{RoomID: roomID, MemberID: r.memberID, MemberType: r.memberType}
	if err := r.emit(contract.EventJoinRoom, join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}
	return r, nil
}

func (r *Remote) MemberID() string {
	return r.memberID
}

func (r *Remote) Attach(d interop.Dispatcher) {
	r.mu.Lock()
	r.dispatcher = d
	r.mu.Unlock()
}

func (r *Remote) emit(event string, v any) error {
	env, err := contract.NewEnvelope(event, v)
	if err != nil {
		return err
	}
	r.wmu.Lock()
	defer r.wmu.Unlock()
	r.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return r.conn.WriteJSON(env)
}

func (r *Remote) message(call contract.Call) contract.RoomMessage {
	return contract.RoomMessage{
		Source:      r.memberID,
		RoomID:      r.roomID,
		MessageID:   uuid.NewString(),
		BioFunction: call.Function,
		Service:     call.Service,
		Payload:     call.Payload,
		TimeSent:    strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
}

func (r *Remote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Remote) Notify(ctx context.Context, call contract.Call) error {
	if r.isClosed() {
		return ErrClosed
	}
	msg := r.message(call)
	msg.Oneway = true
	return r.emit(contract.RequestEvent(r.memberType), msg)
}

func (r *Remote) Request(ctx context.Context, call contract.Call) (string, error) {
	msg := r.message(call)
	ch := make(chan contract.RoomMessage, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrClosed
	}
	r.pending[msg.MessageID] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, msg.MessageID)
		r.mu.Unlock()
	}()

	if err := r.emit(contract.RequestEvent(r.memberType), msg); err != nil {
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return "", ErrClosed
		}
		return resp.Result, nil
	}
}

// Run reads room events until the connection drops or ctx is done.
func (r *Remote) Run(ctx context.Context) error {
	defer r.wg.Wait()

	r.conn.SetReadDeadline(time.Now().Add(PongWait))
	r.conn.SetPongHandler(func(string) error {
		return r.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	r.wg.Add(1)
	go r.keepAlive(ctx)

	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()

	for {
		var env contract.RoomEnvelope
		if err := r.conn.ReadJSON(&env); err != nil {
			closedLocally := r.isClosed()
			r.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if closedLocally || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read room event: %w", err)
		}
		r.handle(ctx, env)
	}
}

func (r *Remote) keepAlive(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.wmu.Lock()
			err := r.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait))
			r.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (r *Remote) handle(ctx context.Context, env contract.RoomEnvelope) {
	switch env.Event {
	case contract.EventAllHostsDisconnected, contract.EventHostReconnected:
		if r.memberType == contract.MemberClient && r.onPresence != nil {
			r.onPresence(env.Event == contract.EventHostReconnected)
		}

	case contract.RequestEvent(peerType(r.memberType)):
		var msg contract.RoomMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			r.log.Warn("invalid room request", zap.Error(err))
			return
		}
		r.serve(ctx, msg)

	case contract.ResponseEvent(peerType(r.memberType)):
		var msg contract.RoomMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			r.log.Warn("invalid room response", zap.Error(err))
			return
		}
		if msg.MessageID == "" || msg.CallerID != r.memberID {
			return
		}
		r.mu.Lock()
		ch, ok := r.pending[msg.MessageID]
		if ok {
			select {
			case ch <- msg:
			default:
				ok = false
			}
		}
		r.mu.Unlock()
		if !ok {
			r.log.Error("unmatched async message", zap.String("messageId", msg.MessageID))
		}

	default:
		r.log.Debug("ignoring room event", zap.String("event", env.Event))
	}
}

func (r *Remote) serve(ctx context.Context, msg contract.RoomMessage) {
	r.mu.Lock()
	d := r.dispatcher
	if d != nil && !r.closed {
		r.wg.Add(1)
	} else {
		d = nil
	}
	r.mu.Unlock()
	if d == nil {
		r.log.Warn("dropping room request", zap.String("function", msg.BioFunction))
		return
	}

	go func() {
		defer r.wg.Done()
		result := d.Dispatch(ctx, contract.Call{
			Function: msg.BioFunction,
			Service:  msg.Service,
			Payload:  msg.Payload,
		})
		if msg.MessageID == "" || msg.Oneway {
			return
		}
		resp := contract.RoomMessage{
			Source:      r.memberID,
			RoomID:      msg.RoomID,
			MessageID:   msg.MessageID,
			BioFunction: msg.BioFunction,
			Service:     msg.Service,
			Result:      result,
			CallerID:    msg.Source,
			TimeSent:    msg.TimeSent,
		}
		if err := r.emit(contract.ResponseEvent(r.memberType), resp); err != nil {
			r.log.Error("send room response", zap.String("messageId", msg.MessageID), zap.Error(err))
		}
	}()
}

func peerType(memberType string) string {
	if memberType == contract.MemberHost {
		return contract.MemberClient
	}
	return contract.MemberHost
}

// Close leaves the room. Pending requests fail with ErrClosed.
func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
	r.mu.Unlock()
	close(r.done)

	r.wmu.Lock()
	r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(WriteWait))
	r.wmu.Unlock()
	return r.conn.Close()
}
