package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/caffeineduck/browserinterop/interop"
	"go.uber.org/zap"
)

// HandlerErrorMessage is the text reported to the other side when a query
// cannot be answered.
const HandlerErrorMessage = "Error in Executing Query Handler"

// ErrQueryHandler rejects a query. The underlying cause is logged, not
// wrapped.
var ErrQueryHandler = errors.New("query: " + HandlerErrorMessage)

// Sender fires query messages to the other side.
type Sender interface {
	Available() bool
	Fire(ctx context.Context, msgs ...*Message) error
}

// Pending is a query awaiting its response. It settles exactly once.
type Pending struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result []*Message
	err    error
}

func newPending(id string) *Pending {
	return &Pending{id: id, done: make(chan struct{})}
}

func (p *Pending) ID() string {
	return p.id
}

// Done is closed once the query is resolved or rejected.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

func (p *Pending) settle(result []*Message, err error) bool {
	settled := false
	p.once.Do(func() {
		p.result = result
		p.err = err
		settled = true
		close(p.done)
	})
	return settled
}

// Wait blocks until the query settles or ctx is done. Giving up on ctx does
// not remove the pending entry.
func (p *Pending) Wait(ctx context.Context) ([]*Message, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Correlator pairs outbound queries with their responses by message id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*Pending
	log     *zap.Logger
}

func NewCorrelator(log *zap.Logger) *Correlator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Correlator{pending: make(map[string]*Pending), log: log}
}

// Track records a pending entry for messageID. Tracking an id twice
// returns the existing entry.
func (c *Correlator) Track(messageID string) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[messageID]; ok {
		return p
	}
	p := newPending(messageID)
	c.pending[messageID] = p
	return p
}

// Send tracks msg and fires it through s. When the other side does not
// offer the query service nothing is tracked. A failed send rejects the
// entry with ErrQueryHandler.
func (c *Correlator) Send(ctx context.Context, s Sender, msg *Message) (*Pending, error) {
	if !s.Available() {
		return nil, fmt.Errorf("send query %s: %w", msg.QueryID, interop.ErrServiceUnavailable)
	}

	p := c.Track(msg.MessageID)
	if err := s.Fire(ctx, msg); err != nil {
		c.log.Error("send query failed",
			zap.String("queryId", msg.QueryID),
			zap.String("messageId", msg.MessageID),
			zap.Error(err))
		c.Reject(msg.MessageID, ErrQueryHandler)
		return p, ErrQueryHandler
	}
	return p, nil
}

// Resolve settles the pending entries matching the responses. Responses
// sharing a message id settle their entry together. Responses without a
// pending entry are logged and returned.
func (c *Correlator) Resolve(responses []*Message) (unmatched []*Message) {
	var order []string
	groups := make(map[string][]*Message)
	for _, m := range responses {
		if _, ok := groups[m.MessageID]; !ok {
			order = append(order, m.MessageID)
		}
		groups[m.MessageID] = append(groups[m.MessageID], m)
	}

	for _, id := range order {
		c.mu.Lock()
		p, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()

		if !ok {
			c.log.Warn("no pending query for response",
				zap.String("queryId", groups[id][0].QueryID),
				zap.String("messageId", id))
			unmatched = append(unmatched, groups[id]...)
			continue
		}
		p.settle(groups[id], nil)
	}
	return unmatched
}

// Reject settles the entry for messageID with err.
func (c *Correlator) Reject(messageID string, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[messageID]
	delete(c.pending, messageID)
	c.mu.Unlock()

	if !ok {
		return false
	}
	return p.settle(nil, err)
}

// Len returns the number of queries still awaiting a response.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
