// Package eventbus is the in-process publish/subscribe seam between the
// interop layer and the rest of the application.
package eventbus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Topics published by the interop services.
const (
	TopicLog             = "log"
	TopicChangeSelection = "hosting.changeSelection"
	TopicOpenLocation    = "hosting.openLocation"
	TopicHostingEnabled  = "hosting.enabled"
	TopicStartupComplete = "hosting.startupComplete"
)

type Handler func(payload any)

type subscription struct {
	id int
	fn Handler
}

// Bus delivers each published payload synchronously to the topic's
// subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int
	log    *zap.Logger
}

type Option func(*Bus)

func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[string][]subscription),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[topic]
			for i, s := range list {
				if s.id == id {
					b.subs[topic] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// Publish delivers payload to every subscriber of topic. A panicking
// subscriber is logged and does not stop delivery to the others.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range list {
		b.deliver(topic, s.fn, payload)
	}
}

func (b *Bus) deliver(topic string, fn Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked",
				zap.String("topic", topic),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn(payload)
}

func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
