package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickLogsAfterInterval(t *testing.T) {
	p := NewProfiler(WithInterval(10 * time.Millisecond))

	assert.False(t, p.Tick(), "interval has not elapsed yet")

	p.RecordFrame(3, 120, 5)
	time.Sleep(15 * time.Millisecond)
	assert.True(t, p.Tick())

	// Counters reset after a log line.
	assert.Equal(t, 0, p.frameCount)
	assert.Equal(t, uint64(0), p.drawCalls)
	assert.Equal(t, uint64(0), p.instancesDrawn)
	assert.Equal(t, uint64(0), p.culledDraws)
}

func TestDefaultInterval(t *testing.T) {
	p := NewProfiler()
	assert.Equal(t, time.Second, p.updateInterval)
}
