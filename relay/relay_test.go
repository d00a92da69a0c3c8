package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fixture struct {
	t      *testing.T
	server *Server
	http   *httptest.Server
	conns  []*websocket.Conn
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	s := New(cfg)
	f := &fixture{t: t, server: s, http: httptest.NewServer(s.Handler())}
	t.Cleanup(func() { goleak.VerifyNone(t) })
	t.Cleanup(func() {
		for _, c := range f.conns {
			c.Close()
		}
		s.Close()
		f.http.Close()
	})
	return f
}

func (f *fixture) join(room, id, memberType string) *websocket.Conn {
	f.t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + NamespacePath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(f.t, err)
	f.conns = append(f.conns, conn)

	env, err := contract.NewEnvelope(contract.EventJoinRoom, contract.JoinRoom{
		RoomID: room, MemberID: id, MemberType: memberType,
	})
	require.NoError(f.t, err)
	require.NoError(f.t, conn.WriteJSON(env))
	return conn
}

func (f *fixture) waitRoom(room string, clients, hosts int) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		for _, r := range f.server.Hub().Rooms() {
			if r.ID == room {
				return r.Clients == clients && r.Hosts == hosts
			}
		}
		return clients == 0 && hosts == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, event string, msg contract.RoomMessage) {
	t.Helper()
	env, err := contract.NewEnvelope(event, msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func read(t *testing.T, conn *websocket.Conn) contract.RoomEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env contract.RoomEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var env contract.RoomEnvelope
	err := conn.ReadJSON(&env)
	require.Error(t, err, "unexpected event %q", env.Event)
}

func decodeMessage(t *testing.T, env contract.RoomEnvelope) contract.RoomMessage {
	t.Helper()
	var msg contract.RoomMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func TestHealth(t *testing.T) {
	s := New(Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRoutesRequestAndResponse(t *testing.T) {
	f := newFixture(t, Config{})

	client := f.join("room1", "c1", contract.MemberClient)
	f.waitRoom("room1", 1, 0)
	host := f.join("room1", "h1", contract.MemberHost)
	f.waitRoom("room1", 1, 1)
	assert.Equal(t, contract.EventHostReconnected, read(t, client).Event)

	send(t, client, contract.EventClientRequest, contract.RoomMessage{
		Source: "c1", RoomID: "room1", MessageID: "m1",
		BioFunction: contract.FuncHostMethod, Payload: "ping",
	})
	env := read(t, host)
	require.Equal(t, contract.EventClientRequest, env.Event)
	req := decodeMessage(t, env)
	assert.Equal(t, "m1", req.MessageID)
	assert.Equal(t, "ping", req.Payload)

	send(t, host, contract.EventHostResponse, contract.RoomMessage{
		Source: "h1", RoomID: "room1", MessageID: "m1", CallerID: "c1", Result: "pong",
	})
	env = read(t, client)
	require.Equal(t, contract.EventHostResponse, env.Event)
	assert.Equal(t, "pong", decodeMessage(t, env).Result)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.JSONEq(t, `[{"id":"room1","clients":1,"hosts":1}]`, rec.Body.String())
}

func TestHostRequestReachesClients(t *testing.T) {
	f := newFixture(t, Config{})

	host := f.join("r", "h1", contract.MemberHost)
	f.waitRoom("r", 0, 1)
	c1 := f.join("r", "c1", contract.MemberClient)
	c2 := f.join("r", "c2", contract.MemberClient)
	f.waitRoom("r", 2, 1)

	send(t, host, contract.EventHostRequest, contract.RoomMessage{Source: "h1", RoomID: "r", BioFunction: contract.FuncWebEvent})
	assert.Equal(t, contract.EventHostRequest, read(t, c1).Event)
	assert.Equal(t, contract.EventHostRequest, read(t, c2).Event)
	expectSilence(t, host)
}

func TestAllHostsDisconnected(t *testing.T) {
	f := newFixture(t, Config{})

	h1 := f.join("r", "h1", contract.MemberHost)
	h2 := f.join("r", "h2", contract.MemberHost)
	f.waitRoom("r", 0, 2)
	client := f.join("r", "c1", contract.MemberClient)
	f.waitRoom("r", 1, 2)

	h1.Close()
	f.waitRoom("r", 1, 1)

	h2.Close()
	f.waitRoom("r", 1, 0)
	assert.Equal(t, contract.EventAllHostsDisconnected, read(t, client).Event)
}

func TestRoomsAreIsolated(t *testing.T) {
	f := newFixture(t, Config{})

	client := f.join("a", "c1", contract.MemberClient)
	other := f.join("b", "h2", contract.MemberHost)
	f.waitRoom("a", 1, 0)
	f.waitRoom("b", 0, 1)

	send(t, client, contract.EventClientRequest, contract.RoomMessage{Source: "c1", RoomID: "a", MessageID: "m"})
	expectSilence(t, other)
}

func TestRateLimitDropsExcess(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 0.001, Burst: 1})

	host := f.join("r", "h1", contract.MemberHost)
	f.waitRoom("r", 0, 1)
	client := f.join("r", "c1", contract.MemberClient)
	f.waitRoom("r", 1, 1)

	for _, id := range []string{"m1", "m2", "m3"} {
		send(t, client, contract.EventClientRequest, contract.RoomMessage{Source: "c1", RoomID: "r", MessageID: id})
	}
	assert.Equal(t, "m1", decodeMessage(t, read(t, host)).MessageID)
	expectSilence(t, host)
}

func TestEventsBeforeJoinIgnored(t *testing.T) {
	f := newFixture(t, Config{})

	host := f.join("r", "h1", contract.MemberHost)
	f.waitRoom("r", 0, 1)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + NamespacePath
	stray, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	f.conns = append(f.conns, stray)

	send(t, stray, contract.EventClientRequest, contract.RoomMessage{Source: "x", RoomID: "r", MessageID: "m"})
	expectSilence(t, host)
}
