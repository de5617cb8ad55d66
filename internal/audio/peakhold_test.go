package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeakHolder(t *testing.T) {
	p := NewPeakHolder()
	p.SetHoldDuration(time.Second)
	start := time.Unix(0, 0)

	assert.InDelta(t, 0.5, p.Update(0.5, start), 1e-9)
	// Lower peaks are held until the hold duration expires.
	assert.InDelta(t, 0.5, p.Update(0.1, start.Add(500*time.Millisecond)), 1e-9)
	assert.InDelta(t, 0.8, p.Update(0.8, start.Add(600*time.Millisecond)), 1e-9)
	assert.InDelta(t, 0.2, p.Update(0.2, start.Add(1700*time.Millisecond)), 1e-9)

	p.Reset()
	assert.InDelta(t, 0.05, p.Update(0.05, start), 1e-9)
}
