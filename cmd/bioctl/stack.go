package main

import (
	"context"

	"github.com/caffeineduck/browserinterop/appctx"
	"github.com/caffeineduck/browserinterop/config"
	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/hostlog"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/caffeineduck/browserinterop/location"
	"github.com/caffeineduck/browserinterop/logging"
	"github.com/caffeineduck/browserinterop/objref"
	"github.com/caffeineduck/browserinterop/query"
	"github.com/caffeineduck/browserinterop/selection"
	"github.com/caffeineduck/browserinterop/service"
	"go.uber.org/zap"
)

// pingQuery is answered by every bioctl peer with its interop version.
const pingQuery = "bioctl.Ping"

// stack is one interop peer with the standard services installed for its
// role.
type stack struct {
	peer       *interop.Peer
	correlator *query.Correlator
	queries    *query.Registry
	provider   *selection.Provider
	log        *zap.Logger
}

func newStack(t interop.Transport, role interop.Role, c *config.Config, log *zap.Logger) (*stack, error) {
	trace, err := c.Interop.Trace.Trace()
	if err != nil {
		return nil, err
	}

	peer := interop.New(t,
		interop.WithRole(role),
		interop.WithLogger(log.Named("interop")),
		interop.WithTrace(trace),
		interop.WithVersion(c.Interop.Version),
	)
	s := &stack{
		peer:       peer,
		correlator: query.NewCorrelator(log.Named("query")),
		queries:    query.NewRegistry(),
		log:        log,
	}

	s.queries.Register(pingQuery, query.HandlerFunc(func(ctx context.Context, msg *query.Message) (*query.Message, error) {
		return msg.Response(query.NewData().SetString("version", peer.Version()).SetString("role", role.String())), nil
	}))
	query.Install(peer, s.queries, s.correlator)

	if role == interop.RoleHost {
		hostlog.InstallSink(peer, log.Named("client"))
		startup := contract.NewDescriptor(contract.HSStartupNotification, contract.Version2014_02)
		peer.Registry().RegisterEvent(startup, service.EventFunc(func(ctx context.Context, payload string) error {
			n, err := contract.Decode[contract.StartupNotification](payload)
			if err != nil {
				return err
			}
			log.Info("client startup", zap.String("status", n.Status))
			return nil
		}))
		provider := contract.NewDescriptor(contract.HSSelectionProvider, contract.Version2019_05)
		peer.Registry().RegisterEvent(provider, service.EventFunc(func(ctx context.Context, payload string) error {
			sel, err := contract.Decode[contract.Selection](payload)
			if err != nil {
				return err
			}
			peer.Bus().Publish(eventbus.TopicChangeSelection, sel.Selection)
			return nil
		}))
	} else {
		selection.Install(peer, selection.NewDefaultRegistry(peer.Bus(), peer.AppContext()))
		location.Install(peer, nil)
		s.provider = selection.NewProvider(peer, objref.NewDefaultRegistry(nil))
		s.provider.Attach(peer.Bus())
	}

	peer.Bus().Subscribe(eventbus.TopicChangeSelection, func(payload any) {
		log.Info("selection changed", zap.Any("selection", payload))
	})
	peer.Bus().Subscribe(eventbus.TopicOpenLocation, func(payload any) {
		log.Info("open location", zap.Any("target", payload))
	})
	return s, nil
}

// forwardLogs tees l to the host's logger-forward service. Lines are
// dropped while the host does not offer it.
func (s *stack) forwardLogs(l *zap.Logger) *zap.Logger {
	fwd := hostlog.NewForwarder(s.peer)
	return logging.Tee(l, hostlog.NewCore(fwd, logging.ForwardEncoder(), level))
}

// setHosting records whether a host is reachable.
func (s *stack) setHosting(enabled bool) {
	if err := s.peer.AppContext().Set(appctx.KeyHostingEnabled, enabled); err != nil {
		s.log.Warn("update app context", zap.Error(err))
	}
	s.peer.Bus().Publish(eventbus.TopicHostingEnabled, enabled)
}

// query sends a query over the event path and waits for its response.
func (s *stack) query(ctx context.Context, msg *query.Message) ([]*query.Message, error) {
	proxy := query.NewProxy(s.peer, contract.Version2019_05)
	if !proxy.Available() {
		proxy = query.NewProxy(s.peer, contract.Version2015_10)
	}
	client := query.NewClient(proxy, s.correlator)
	pending, err := client.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}
