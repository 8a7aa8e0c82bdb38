package task

import (
	"sync"
	"time"

	"github.com/go-iscsi/initiator/pkg/scsi"
)

// pending is the HBA-private data kept alongside a dispatched task: enough
// to find its owning connection for timeout handling and to record
// bandwidth/latency statistics when it completes. payload is a
// scsi.ScsiTask for a TypeSCSI tag or a taskMgmtRequest for a TypeTaskMgmt
// tag; TypeLatency tags carry none.
type pending struct {
	tag     uint32
	payload interface{}
	cid     int

	requestedBytes uint32
	startedAt      time.Time
}

func (p *pending) task() scsi.ScsiTask {
	t, _ := p.payload.(scsi.ScsiTask)
	return t
}

func (p *pending) taskMgmt() taskMgmtRequest {
	t, _ := p.payload.(taskMgmtRequest)
	return t
}

// registry is the per-session tag -> pending task lookup the receive loop
// and timeout handling consult. It is intentionally separate from the
// session/connection store: the store only knows about task_queue tags,
// not about scsi.ScsiTask handles.
type registry struct {
	mu      sync.Mutex
	pending map[uint32]*pending
}

func newRegistry() *registry {
	return &registry{pending: make(map[uint32]*pending)}
}

func (r *registry) put(p *pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.tag] = p
}

func (r *registry) get(tag uint32) (*pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[tag]
	return p, ok
}

func (r *registry) remove(tag uint32) (*pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[tag]
	if ok {
		delete(r.pending, tag)
	}
	return p, ok
}
