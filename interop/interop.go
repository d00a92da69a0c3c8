package interop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/caffeineduck/browserinterop/appctx"
	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/service"
	"go.uber.org/zap"
)

var (
	ErrServiceUnavailable = errors.New("remote service not available")
	ErrUnknownFunction    = errors.New("unknown bio function")
)

// Transport carries calls to the other side.
type Transport interface {
	// Notify delivers a call without waiting for its result.
	Notify(ctx context.Context, call contract.Call) error
	// Request delivers a call and returns the other side's reply.
	Request(ctx context.Context, call contract.Call) (string, error)
}

// Dispatcher handles calls arriving from the other side.
type Dispatcher interface {
	Dispatch(ctx context.Context, call contract.Call) string
}

type Role int

const (
	RoleClient Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "client"
}

func (r Role) eventFunc() string {
	if r == RoleHost {
		return contract.FuncWebEvent
	}
	return contract.FuncHostEvent
}

func (r Role) methodFunc() string {
	if r == RoleHost {
		return contract.FuncWebMethod
	}
	return contract.FuncHostMethod
}

func (r Role) direction(outbound bool) string {
	local, remote := "Client", "Host"
	if r == RoleHost {
		local, remote = remote, local
	}
	if outbound {
		return local + "->" + remote
	}
	return remote + "->" + local
}

type Peer struct {
	role      Role
	transport Transport
	registry  *service.Registry
	remote    *service.Directory
	bus       *eventbus.Bus
	store     *appctx.Store
	log       *zap.Logger
	trace     Trace
	version   string

	mu            sync.RWMutex
	remoteVersion string
	started       atomic.Bool
}

// New creates a peer sending through t.
func New(t Transport, opts ...Option) *Peer {
	p := &Peer{
		transport: t,
		log:       zap.NewNop(),
		version:   contract.InteropVersion,
		trace:     Trace{Filtered: DefaultFilteredFQNs()},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = service.NewRegistry()
	}
	if p.remote == nil {
		p.remote = service.NewDirectory()
	}
	if p.bus == nil {
		p.bus = eventbus.New(eventbus.WithLogger(p.log))
	}
	if p.store == nil {
		p.store = appctx.New()
	}
	return p
}

func (p *Peer) Role() Role                    { return p.role }
func (p *Peer) Registry() *service.Registry   { return p.registry }
func (p *Peer) Directory() *service.Directory { return p.remote }
func (p *Peer) Bus() *eventbus.Bus            { return p.bus }
func (p *Peer) AppContext() *appctx.Store     { return p.store }
func (p *Peer) Logger() *zap.Logger           { return p.log }
func (p *Peer) Version() string               { return p.version }

func (p *Peer) RemoteVersion() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remoteVersion
}

// Available reports whether the other side advertised desc.
func (p *Peer) Available(desc contract.Descriptor) bool {
	return p.remote.Has(desc)
}

// Dispatch handles one inbound bio function call and returns the reply
// text. It never panics.
func (p *Peer) Dispatch(ctx context.Context, call contract.Call) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("dispatch panicked",
				zap.String("function", call.Function),
				zap.String("panic", fmt.Sprint(r)))
			reply = contract.ExceptionReply("InternalError", fmt.Sprint(r))
		}
	}()

	switch call.Function {
	case contract.FuncPing:
		var payload contract.PingPayload
		if err := json.Unmarshal([]byte(call.Payload), &payload); err != nil {
			payload.HostVersion = call.Payload
		}
		return p.Ping(payload.HostVersion)

	case contract.FuncServiceListUpdate:
		var payload contract.ServiceListPayload
		if err := json.Unmarshal([]byte(call.Payload), &payload); err != nil {
			p.log.Warn("malformed service list update", zap.Error(err))
			return contract.ExceptionReply("InternalError", err.Error())
		}
		return p.ServiceListUpdate(ctx, payload.Action, payload.JSONList, payload.SendList)

	case contract.FuncWebServiceListUpdate:
		return p.ServiceListUpdate(ctx, service.ActionReplace, call.Payload, false)

	case contract.FuncRequestServiceList:
		return p.RequestServiceList()

	case contract.FuncWebMethod, contract.FuncHostMethod:
		return p.Method(ctx, call.Service, call.Payload)

	case contract.FuncWebEvent, contract.FuncHostEvent:
		return p.Event(ctx, call.Service, call.Payload)

	case contract.FuncStartHandShake:
		if p.trace.Handshake {
			p.log.Info("handshake requested", zap.String("role", p.role.String()))
		}
		if err := p.Announce(ctx); err != nil {
			p.log.Error("announce failed", zap.Error(err))
		}
		return ""

	case contract.FuncConfig:
		p.store.Set(appctx.KeyHostConfig, call.Payload)
		return ""

	case contract.FuncHostSession:
		p.store.Set(appctx.KeyHostSession, call.Payload)
		return ""

	default:
		p.log.Error("unknown bio function", zap.String("function", call.Function))
		return contract.ExceptionReply("InternalError", fmt.Sprintf("%v: %s", ErrUnknownFunction, call.Function))
	}
}

// Ping records the other side's version and returns ours.
func (p *Peer) Ping(remoteVersion string) string {
	if remoteVersion != "" {
		p.mu.Lock()
		p.remoteVersion = remoteVersion
		p.mu.Unlock()

		p.store.Set(appctx.KeyHostingEnabled, true)
		p.bus.Publish(eventbus.TopicHostingEnabled, remoteVersion)
	}
	return p.version
}

// ServiceListUpdate merges the other side's service list into the
// directory. When sendList is set the local list is pushed back.
func (p *Peer) ServiceListUpdate(ctx context.Context, action, jsonList string, sendList bool) string {
	list, err := contract.ParseDescriptorList(jsonList)
	if err != nil {
		p.log.Warn("malformed service list", zap.Error(err))
		return contract.ExceptionReply("InternalError", err.Error())
	}
	if err := p.remote.Update(action, list); err != nil {
		return contract.ExceptionReply("InternalError", err.Error())
	}

	if p.trace.Calls {
		p.log.Info("service list update",
			zap.String("direction", p.role.direction(false)),
			zap.String("action", action),
			zap.Int("count", len(list)))
	}

	if sendList {
		call := contract.Call{
			Function: contract.FuncWebServiceListUpdate,
			Payload:  contract.FormatDescriptorList(p.registry.Descriptors()),
		}
		if err := p.transport.Notify(ctx, call); err != nil {
			p.log.Error("send service list", zap.Error(err))
		}
	}
	return "OK"
}

// RequestServiceList returns the JSON list of local services.
func (p *Peer) RequestServiceList() string {
	return contract.FormatDescriptorList(p.registry.Descriptors())
}

// Method dispatches an inbound request/response call.
func (p *Peer) Method(ctx context.Context, descJSON, payload string) string {
	desc, err := contract.ParseDescriptor(descJSON)
	if err != nil {
		return noService(descJSON)
	}
	h, ok := p.registry.LookupMethod(desc)
	if !ok {
		return noService(descJSON)
	}

	p.traceCall(false, "method", desc, payload)
	resp, err := p.invokeMethod(ctx, h, payload)
	if err != nil {
		p.log.Error("method handler failed", zap.Stringer("service", desc), zap.Error(err))
		return ""
	}
	return resp
}

// Event dispatches an inbound fire-and-forget call.
func (p *Peer) Event(ctx context.Context, descJSON, payload string) string {
	desc, err := contract.ParseDescriptor(descJSON)
	if err != nil {
		return noService(descJSON)
	}
	h, ok := p.registry.LookupEvent(desc)
	if !ok {
		return noService(descJSON)
	}

	p.traceCall(false, "event", desc, payload)
	if err := p.invokeEvent(ctx, h, payload); err != nil {
		p.log.Error("event handler failed", zap.Stringer("service", desc), zap.Error(err))
	}
	return ""
}

func (p *Peer) invokeMethod(ctx context.Context, h service.MethodHandler, payload string) (resp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.HandleIncomingMethod(ctx, payload)
}

func (p *Peer) invokeEvent(ctx context.Context, h service.EventHandler, payload string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.HandleIncomingEvent(ctx, payload)
}

func noService(descJSON string) string {
	return contract.ExceptionReply("InternalError", "No service available for: "+descJSON)
}

// CallEvent sends a fire-and-forget call to desc.
func (p *Peer) CallEvent(ctx context.Context, desc contract.Descriptor, payload string) error {
	p.traceCall(true, "event", desc, payload)
	call := contract.Call{Function: p.role.eventFunc(), Service: desc.JSON(), Payload: payload}
	if err := p.transport.Notify(ctx, call); err != nil {
		return fmt.Errorf("event %s: %w", desc, err)
	}
	return nil
}

// CallMethod sends a request/response call to desc. Exception replies are
// returned as *contract.HostError.
func (p *Peer) CallMethod(ctx context.Context, desc contract.Descriptor, payload string) (string, error) {
	p.traceCall(true, "method", desc, payload)
	call := contract.Call{Function: p.role.methodFunc(), Service: desc.JSON(), Payload: payload}
	resp, err := p.transport.Request(ctx, call)
	if err != nil {
		return "", fmt.Errorf("method %s: %w", desc, err)
	}
	if err := contract.CheckResponse(resp); err != nil {
		return "", err
	}
	return resp, nil
}

// Handshake asks the host to start the handshake. The host answers with a
// ping and its service list.
func (p *Peer) Handshake(ctx context.Context) error {
	if p.trace.Handshake {
		p.log.Info("start handshake")
	}
	if err := p.transport.Notify(ctx, contract.Call{Function: contract.FuncStartHandShake}); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// Announce pings the other side and sends it the local service list,
// asking for its list in return.
func (p *Peer) Announce(ctx context.Context) error {
	ping, _ := json.Marshal(contract.PingPayload{HostVersion: p.version})
	remoteVersion, err := p.transport.Request(ctx, contract.Call{
		Function: contract.FuncPing,
		Payload:  string(ping),
	})
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	p.Ping(remoteVersion)

	update, _ := json.Marshal(contract.ServiceListPayload{
		JSONList: contract.FormatDescriptorList(p.registry.Descriptors()),
		SendList: true,
	})
	resp, err := p.transport.Request(ctx, contract.Call{
		Function: contract.FuncServiceListUpdate,
		Payload:  string(update),
	})
	if err != nil {
		return fmt.Errorf("service list update: %w", err)
	}
	return contract.CheckResponse(resp)
}

func (p *Peer) StartupComplete() bool {
	return p.started.Load()
}

// MarkStartupComplete records that the client finished starting and tells
// the host when it listens for startup notifications.
func (p *Peer) MarkStartupComplete(ctx context.Context) error {
	if p.started.Swap(true) {
		return nil
	}
	p.bus.Publish(eventbus.TopicStartupComplete, nil)

	proxy := p.Proxy(contract.NewDescriptor(contract.HSStartupNotification, contract.Version2014_02))
	if !proxy.Available() {
		return nil
	}
	return proxy.Fire(ctx, contract.StartupNotification{Status: "Started"})
}
