package session

import (
	"sync/atomic"
	"time"

	"github.com/go-iscsi/initiator/internal/fifo"
	"github.com/go-iscsi/initiator/pkg/transport"
)

// BandwidthWindow is the number of rolling throughput samples kept per
// connection.
const BandwidthWindow = 30

// Connection is one TCP stream belonging to a Session.
type Connection struct {
	CID     int
	Conn    *transport.Conn
	Params  ConnParams

	expStatSN uint32 // atomic

	// TaskQueue gates which task is currently being worked: its head is
	// the in-progress task, not a backlog of in-flight tasks.
	TaskQueue *fifo.TaskQueue

	// DataRecvSource mirrors an edge-triggered "≥48 bytes readable" event
	// source; disabled connections are not polled by the workloop.
	dataRecvEnabled atomic.Bool

	ImmediateDataLength uint32

	dataToTransfer int64 // atomic, bytes this connection is committed to move

	bytesPerSecond        atomic.Uint64
	bytesPerSecondHistory [BandwidthWindow]float64
	historyIdx            int

	TaskStart time.Time
	LatencyMs float64

	PortalAddr string
	PortalPort uint16
	HostIface  string
}

func newConnection(cid int, conn *transport.Conn, params ConnParams, portalAddr string, portalPort uint16, hostIface string) *Connection {
	return &Connection{
		CID:        cid,
		Conn:       conn,
		Params:     params,
		TaskQueue:  fifo.NewTaskQueue(256),
		PortalAddr: portalAddr,
		PortalPort: portalPort,
		HostIface:  hostIface,
	}
}

func (c *Connection) ExpStatSN() uint32 {
	return atomic.LoadUint32(&c.expStatSN)
}

func (c *Connection) SetExpStatSN(v uint32) {
	atomic.StoreUint32(&c.expStatSN, v)
}

// AdvanceExpStatSN implements the exp_stat_sn advancement rule of the
// sequence-number engine: exactly one increment per status-bearing PDU.
func (c *Connection) AdvanceExpStatSN() {
	atomic.AddUint32(&c.expStatSN, 1)
}

func (c *Connection) DataToTransfer() int64 {
	return atomic.LoadInt64(&c.dataToTransfer)
}

func (c *Connection) AddDataToTransfer(n int64) {
	atomic.AddInt64(&c.dataToTransfer, n)
}

func (c *Connection) EnableSources() {
	c.TaskQueue.Enable()
	c.dataRecvEnabled.Store(true)
}

func (c *Connection) DisableSources() {
	c.TaskQueue.Disable()
	c.dataRecvEnabled.Store(false)
}

func (c *Connection) SourcesEnabled() bool {
	return c.TaskQueue.Enabled() && c.dataRecvEnabled.Load()
}

// BytesPerSecond is the current rolling-window peak throughput estimate:
// the maximum sample in the history window.
func (c *Connection) BytesPerSecond() float64 {
	return float64(c.bytesPerSecond.Load())
}

// RecordCompletedTask appends a throughput sample for a task that moved
// bytesTransferred bytes over duration, and reports whether the sample
// rolled the history index over (which enqueues a latency probe).
func (c *Connection) RecordCompletedTask(bytesTransferred int64, duration time.Duration) (rolledOver bool) {
	var sample float64
	if duration > 0 {
		sample = float64(bytesTransferred) / duration.Seconds()
	}
	c.bytesPerSecondHistory[c.historyIdx] = sample

	max := 0.0
	for _, v := range c.bytesPerSecondHistory {
		if v > max {
			max = v
		}
	}
	c.bytesPerSecond.Store(uint64(max))

	c.historyIdx++
	if c.historyIdx == BandwidthWindow {
		c.historyIdx = 0
		return true
	}
	return false
}

// PredictedTime estimates how long the connection's outstanding plus
// newly-requested transfer will take, for bandwidth-aware task dispatch.
// A zero bps connection is free and predicted as instantaneous.
func (c *Connection) PredictedTime(requestedBytes uint32) float64 {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float64(c.DataToTransfer()+int64(requestedBytes)) / bps
}
