package selection

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/eventbus"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/caffeineduck/browserinterop/objref"
	"go.uber.org/zap"
)

// DefaultEchoWindow is how long a selection stays recorded for echo
// suppression.
const DefaultEchoWindow = time.Second

var (
	providerV2019 = contract.NewDescriptor(contract.HSSelectionProvider, contract.Version2019_05)
	providerV2014 = contract.NewDescriptor(contract.HSSelectionProvider, contract.Version2014_10)
)

type record struct {
	uids []string
	at   time.Time
}

// Provider sends the local selection to the other side's selection
// provider service. Nothing is sent before startup completes. A selection
// equal to one recently exchanged is treated as an echo and dropped.
type Provider struct {
	peer   *interop.Peer
	refs   *objref.Registry
	log    *zap.Logger
	now    func() time.Time
	window time.Duration
	subset bool

	mu      sync.Mutex
	records []record
}

type ProviderOption func(*Provider)

func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

func WithEchoWindow(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.window = d
	}
}

// WithSubsetFilter also drops selections that overlap a recorded one.
// Some hosts send back only part of a selection they received.
func WithSubsetFilter() ProviderOption {
	return func(p *Provider) {
		p.subset = true
	}
}

func NewProvider(peer *interop.Peer, refs *objref.Registry, opts ...ProviderOption) *Provider {
	p := &Provider{
		peer:   peer,
		refs:   refs,
		log:    peer.Logger(),
		now:    time.Now,
		window: DefaultEchoWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attach records selections published on the bus so they are not sent
// back. It returns the unsubscribe function.
func (p *Provider) Attach(bus *eventbus.Bus) func() {
	return bus.Subscribe(eventbus.TopicChangeSelection, func(payload any) {
		if c, ok := payload.(Change); ok {
			p.record(c.Selected)
		}
	})
}

func (p *Provider) record(uids []string) {
	if len(uids) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record{uids: slices.Clone(uids), at: p.now()})
}

func (p *Provider) isEcho(uids []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.records = slices.DeleteFunc(p.records, func(r record) bool {
		return now.Sub(r.at) > p.window
	})

	for _, r := range p.records {
		common := 0
		for _, u := range uids {
			if slices.Contains(r.uids, u) {
				common++
			}
		}
		if len(r.uids) == len(uids) && common == len(uids) {
			return true
		}
		if p.subset && common > 0 {
			return true
		}
	}
	return false
}

// Select sends objs as the current selection using the newest provider
// version the other side offers.
func (p *Provider) Select(ctx context.Context, objs []objref.ModelObject) error {
	uids := make([]string, 0, len(objs))
	var refs []contract.ObjectRef
	var errs []error
	for _, obj := range objs {
		uids = append(uids, obj.UID)
		out, err := p.refs.CreateObjectRefs(obj)
		if err != nil {
			errs = append(errs, err)
		}
		refs = append(refs, out...)
	}
	if err := errors.Join(errs...); err != nil {
		p.log.Warn("object reference encoding", zap.Error(err))
	}

	if !p.peer.StartupComplete() {
		return nil
	}
	if p.isEcho(uids) {
		p.log.Debug("selection filtered as echo", zap.Strings("uids", uids))
		return nil
	}

	switch {
	case p.peer.Available(providerV2019):
		if err := p.Fire(ctx, refs); err != nil {
			return err
		}
	case p.peer.Available(providerV2014):
		if err := p.Call(ctx, refs); err != nil {
			return err
		}
	default:
		return nil
	}
	p.record(uids)
	return nil
}

func message(refs []contract.ObjectRef) contract.Selection {
	if refs == nil {
		refs = []contract.ObjectRef{}
	}
	return contract.Selection{Selection: refs, SingleSelect: true}
}

// Fire sends refs to the 2019_05 provider as an event.
func (p *Provider) Fire(ctx context.Context, refs []contract.ObjectRef) error {
	if !p.peer.StartupComplete() {
		return nil
	}
	return p.peer.Proxy(providerV2019).Fire(ctx, message(refs))
}

// Call sends refs to the 2014_10 provider as a method call.
func (p *Provider) Call(ctx context.Context, refs []contract.ObjectRef) error {
	if !p.peer.StartupComplete() {
		return nil
	}
	_, err := p.peer.Proxy(providerV2014).Call(ctx, message(refs))
	return err
}
