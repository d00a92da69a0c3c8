package query

import (
	"context"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
)

// Service answers InteropQuery calls from the other side and routes
// responses to the correlator.
type Service struct {
	version    string
	handlers   *Registry
	correlator *Correlator
	proxy      *Proxy
	log        *zap.Logger
}

func NewService(version string, handlers *Registry, correlator *Correlator, proxy *Proxy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		version:    version,
		handlers:   handlers,
		correlator: correlator,
		proxy:      proxy,
		log:        log,
	}
}

// Process decodes payload, settles responses and runs the handlers of the
// queries. Responses are settled before any handler runs. It returns the
// responses produced by the handlers.
func (s *Service) Process(ctx context.Context, payload string) ([]*Message, error) {
	msgs, err := Unmarshal(payload)
	if err != nil {
		s.log.Error("decode query message", zap.Error(err))
		return nil, ErrQueryHandler
	}

	var answered, requests, responses []*Message
	for _, m := range msgs {
		if m.IsResponse {
			answered = append(answered, m)
		} else {
			requests = append(requests, m)
		}
	}
	if len(answered) > 0 {
		s.correlator.Resolve(answered)
	}

	for _, m := range requests {
		h, ok := s.handlers.Lookup(m.QueryID)
		if !ok {
			s.log.Warn("no query handler for query id", zap.String("queryId", m.QueryID))
			continue
		}
		resp, err := h.HandleQuery(ctx, m)
		if err != nil {
			s.log.Error("query handler failed", zap.String("queryId", m.QueryID), zap.Error(err))
			return nil, ErrQueryHandler
		}
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	return responses, nil
}

func (s *Service) HandleIncomingMethod(ctx context.Context, payload string) (string, error) {
	if payload == "" {
		return "", nil
	}
	responses, err := s.Process(ctx, payload)
	if err != nil {
		return contract.ExceptionReply("QueryError", HandlerErrorMessage), nil
	}
	if len(responses) == 0 {
		return "", nil
	}
	return Marshal(s.version, responses...)
}

func (s *Service) HandleIncomingEvent(ctx context.Context, payload string) error {
	if payload == "" || !s.proxy.Available() {
		return nil
	}
	responses, err := s.Process(ctx, payload)
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		return nil
	}
	return s.proxy.Fire(ctx, responses...)
}

// Install registers the query service for both interface versions on
// peer. Incoming queries go to handlers, responses to correlator.
func Install(peer *interop.Peer, handlers *Registry, correlator *Correlator) {
	for _, version := range []string{contract.Version2015_10, contract.Version2019_05} {
		local, remote := fqns(peer.Role())
		proxy := newProxy(peer, contract.NewDescriptor(remote, version))
		svc := NewService(version, handlers, correlator, proxy, peer.Logger())
		peer.Registry().Register(contract.NewDescriptor(local, version), svc)
	}
}

func fqns(role interop.Role) (local, remote string) {
	if role == interop.RoleHost {
		return contract.HSInteropQuery, contract.CSInteropQuery
	}
	return contract.CSInteropQuery, contract.HSInteropQuery
}
