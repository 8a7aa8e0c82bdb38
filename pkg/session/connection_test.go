package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPredictedTimeFreeWhenBpsZero(t *testing.T) {
	c := &Connection{}
	assert.EqualValues(t, 0, c.PredictedTime(1<<20))
}

func TestRecordCompletedTaskRollsOverAfterWindow(t *testing.T) {
	c := &Connection{}
	for i := 0; i < BandwidthWindow-1; i++ {
		rolled := c.RecordCompletedTask(4096, 10*time.Millisecond)
		assert.False(t, rolled)
	}
	rolled := c.RecordCompletedTask(4096, 10*time.Millisecond)
	assert.True(t, rolled)
	assert.Greater(t, c.BytesPerSecond(), 0.0)
}

func TestEnableDisableSources(t *testing.T) {
	c := newConnection(0, nil, DefaultConnParams(), "10.0.0.1", 3260, "")
	assert.False(t, c.SourcesEnabled())
	c.EnableSources()
	assert.True(t, c.SourcesEnabled())
	c.DisableSources()
	assert.False(t, c.SourcesEnabled())
}

func TestDataToTransferTracking(t *testing.T) {
	c := &Connection{}
	c.AddDataToTransfer(4096)
	assert.EqualValues(t, 4096, c.DataToTransfer())
	c.AddDataToTransfer(-4096)
	assert.EqualValues(t, 0, c.DataToTransfer())
}
