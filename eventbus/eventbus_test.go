package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishOrder(t *testing.T) {
	b := New()
	var got []string

	b.Subscribe("t", func(p any) { got = append(got, "first:"+p.(string)) })
	b.Subscribe("t", func(p any) { got = append(got, "second:"+p.(string)) })
	b.Subscribe("other", func(p any) { got = append(got, "other") })

	b.Publish("t", "x")
	b.Publish("t", "y")

	assert.Equal(t, []string{"first:x", "second:x", "first:y", "second:y"}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	count := 0
	unsubscribe := b.Subscribe("t", func(any) { count++ })
	keep := b.Subscribe("t", func(any) {})
	defer keep()

	b.Publish("t", nil)
	unsubscribe()
	unsubscribe()
	b.Publish("t", nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, b.Subscribers("t"))
}

func TestPanickingSubscriber(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := New(WithLogger(zap.New(core)))

	delivered := false
	b.Subscribe("t", func(any) { panic("boom") })
	b.Subscribe("t", func(any) { delivered = true })

	require.NotPanics(t, func() { b.Publish("t", 1) })
	assert.True(t, delivered)
	assert.Equal(t, 1, logs.FilterMessage("subscriber panicked").Len())
}
