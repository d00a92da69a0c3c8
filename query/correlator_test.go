package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type direct struct {
	target *interop.Peer
}

func (d *direct) Notify(ctx context.Context, call contract.Call) error {
	d.target.Dispatch(ctx, call)
	return nil
}

func (d *direct) Request(ctx context.Context, call contract.Call) (string, error) {
	return d.target.Dispatch(ctx, call), nil
}

type fixture struct {
	client, host   *interop.Peer
	clientQ, hostQ *Correlator
	clientH, hostH *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	toHost, toClient := &direct{}, &direct{}
	f := &fixture{
		client:  interop.New(toHost, interop.WithRole(interop.RoleClient)),
		host:    interop.New(toClient, interop.WithRole(interop.RoleHost)),
		clientQ: NewCorrelator(nil),
		hostQ:   NewCorrelator(nil),
		clientH: NewRegistry(),
		hostH:   NewRegistry(),
	}
	toHost.target = f.host
	toClient.target = f.client

	Install(f.client, f.clientH, f.clientQ)
	Install(f.host, f.hostH, f.hostQ)
	require.NoError(t, f.client.Handshake(context.Background()))
	return f
}

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, msg *Message) (*Message, error) {
		name, _ := msg.Data[0].String("name")
		return msg.Response(NewData().SetString("echo", name)), nil
	})
}

func TestCorrelatedQueryResolves(t *testing.T) {
	f := newFixture(t)
	f.hostH.Register("echo", echoHandler())

	client := NewClient(NewProxy(f.client, contract.Version2015_10), f.clientQ)
	msg := NewMessage("echo", NewData().SetString("name", "bolt"))

	pending, err := client.Send(context.Background(), msg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := pending.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, got[0].IsResponse)
	assert.Equal(t, msg.MessageID, got[0].MessageID)
	echo, _ := got[0].Data[0].String("echo")
	assert.Equal(t, "bolt", echo)
	assert.Equal(t, 0, f.clientQ.Len())
}

func TestUnansweredQueryStaysPending(t *testing.T) {
	f := newFixture(t)
	client := NewClient(NewProxy(f.client, contract.Version2015_10), f.clientQ)

	pending, err := client.Send(context.Background(), NewMessage("unknown"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, f.clientQ.Len())
	select {
	case <-pending.Done():
		t.Fatal("pending query settled without a response")
	default:
	}
}

func TestMethodQuery(t *testing.T) {
	f := newFixture(t)
	f.hostH.Register("echo", echoHandler())
	f.hostH.Register("broken", HandlerFunc(func(ctx context.Context, msg *Message) (*Message, error) {
		return nil, errors.New("database offline")
	}))

	proxy := NewProxy(f.client, contract.Version2019_05)
	got, err := proxy.Query(context.Background(), NewMessage("echo", NewData().SetString("name", "nut")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	echo, _ := got[0].Data[0].String("echo")
	assert.Equal(t, "nut", echo)

	_, err = proxy.Query(context.Background(), NewMessage("broken", NewData()))
	assert.ErrorIs(t, err, ErrQueryHandler)

	got, err = proxy.Query(context.Background(), NewMessage("nobody"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryUnavailable(t *testing.T) {
	p := interop.New(&direct{})
	proxy := NewProxy(p, contract.Version2015_10)
	c := NewCorrelator(nil)

	pending, err := NewClient(proxy, c).Send(context.Background(), NewMessage("q"))
	assert.Nil(t, pending)
	assert.ErrorIs(t, err, interop.ErrServiceUnavailable)
	assert.Equal(t, 0, c.Len())

	_, err = proxy.Query(context.Background(), NewMessage("q"))
	assert.ErrorIs(t, err, ErrQueryHandler)
}

type failingSender struct{}

func (failingSender) Available() bool { return true }
func (failingSender) Fire(context.Context, ...*Message) error {
	return errors.New("pipe closed")
}

func TestSendFailureRejects(t *testing.T) {
	c := NewCorrelator(nil)
	pending, err := c.Send(context.Background(), failingSender{}, NewMessage("q"))
	assert.ErrorIs(t, err, ErrQueryHandler)
	require.NotNil(t, pending)

	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueryHandler)
	assert.Equal(t, 0, c.Len())
}

func TestResolveOutOfOrder(t *testing.T) {
	c := NewCorrelator(nil)
	first := NewMessage("a")
	second := NewMessage("b")
	p1 := c.Track(first.MessageID)
	p2 := c.Track(second.MessageID)

	c.Resolve([]*Message{second.Response()})
	select {
	case <-p2.Done():
	default:
		t.Fatal("second query not resolved")
	}
	select {
	case <-p1.Done():
		t.Fatal("first query resolved early")
	default:
	}

	unmatched := c.Resolve([]*Message{first.Response(), second.Response()})
	require.Len(t, unmatched, 1)
	assert.Equal(t, second.MessageID, unmatched[0].MessageID)

	got, err := p1.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].QueryID)
}

func TestSettlesOnce(t *testing.T) {
	c := NewCorrelator(nil)
	msg := NewMessage("q")
	p := c.Track(msg.MessageID)
	assert.Same(t, p, c.Track(msg.MessageID))

	assert.True(t, c.Reject(msg.MessageID, ErrQueryHandler))
	assert.False(t, c.Reject(msg.MessageID, ErrQueryHandler))
	assert.False(t, p.settle(nil, nil))

	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueryHandler)
}

func TestServiceMethodHandlerError(t *testing.T) {
	h := NewRegistry()
	h.Register("boom", HandlerFunc(func(context.Context, *Message) (*Message, error) {
		return nil, errors.New("fail")
	}))
	svc := NewService(contract.Version2015_10, h, NewCorrelator(nil), nil, nil)

	payload, _ := Marshal(contract.Version2015_10, NewMessage("boom"))
	reply, err := svc.HandleIncomingMethod(context.Background(), payload)
	require.NoError(t, err)

	var hostErr *contract.HostError
	require.ErrorAs(t, contract.CheckResponse(reply), &hostErr)
	assert.Equal(t, HandlerErrorMessage, hostErr.Message)

	reply, err = svc.HandleIncomingMethod(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestServiceSettlesResponsesBeforeHandlerError(t *testing.T) {
	h := NewRegistry()
	h.Register("broken", HandlerFunc(func(context.Context, *Message) (*Message, error) {
		return nil, errors.New("fail")
	}))
	c := NewCorrelator(nil)
	sent := NewMessage("lookup")
	pending := c.Track(sent.MessageID)
	svc := NewService(contract.Version2015_10, h, c, nil, nil)

	payload, err := Marshal(contract.Version2015_10,
		NewMessage("broken"), sent.Response(NewData().SetString("name", "washer")))
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), payload)
	assert.ErrorIs(t, err, ErrQueryHandler)
	assert.Equal(t, 0, c.Len())

	select {
	case <-pending.Done():
	default:
		t.Fatal("response in failing batch not settled")
	}
	got, err := pending.Wait(context.Background())
	require.NoError(t, err)
	name, _ := got[0].Data[0].String("name")
	assert.Equal(t, "washer", name)
}
