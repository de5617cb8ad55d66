package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublisher_LatestWins(t *testing.T) {
	p := newPublisher[int]()
	ch, cancel := p.Subscribe()
	defer cancel()

	assert.True(t, p.Publish(1))
	assert.True(t, p.Publish(2))
	assert.True(t, p.Publish(3))
	assert.Equal(t, 3, <-ch)
	assert.Equal(t, 3, p.Latest())
}

func TestPublisher_SkipsDuplicates(t *testing.T) {
	p := newPublisher[string]()
	assert.True(t, p.Publish("ok"))
	assert.False(t, p.Publish("ok"))

	ch, cancel := p.Subscribe()
	assert.Equal(t, "ok", <-ch, "new subscribers get the current value")

	p.Publish("ok")
	select {
	case v := <-ch:
		t.Fatalf("unexpected republish of %q", v)
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.True(t, p.Publish("changed"), "publishing after cancel must not block or panic")
}
