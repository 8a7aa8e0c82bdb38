package task

import "github.com/go-iscsi/initiator/pkg/scsi"

// HandleTaskTimeout is invoked when the current head-of-queue task on a
// connection has been outstanding longer than the configured task
// timeout. It fails the task back to the mid-layer as a delivery failure
// and escalates to connection-level recovery, since a task that never
// answered usually means the connection itself is wedged.
func (d *Dispatcher) HandleTaskTimeout(sid, cid int) {
	s := d.Store.Session(sid)
	if s == nil {
		return
	}
	conn := s.Connection(cid)
	if conn == nil {
		return
	}

	tag, ok := conn.TaskQueue.Head()
	if ok {
		d.disarmTaskTimer(tag)
		if p, removed := d.registryFor(sid).remove(tag); removed {
			if t := p.task(); t != nil {
				d.Completer.CompleteTask(t, scsi.StatusGood, scsi.DeliveryFailure)
			} else if req := p.taskMgmt(); req != nil {
				d.Completer.CompleteTaskManagement(req.Function(), req.ReferencedTaskTag(), scsi.DeliveryFailure)
			}
		}
	}

	// HandleConnectionTimeout drains the whole queue if the connection is
	// actually broken; if getpeername still succeeds, this was a lone task
	// timeout on a live connection, so pop it ourselves and move on.
	before := conn.TaskQueue.Len()
	d.HandleConnectionTimeout(sid, cid)
	if conn.TaskQueue.Len() == before && ok {
		conn.TaskQueue.Pop()
		if _, more := conn.TaskQueue.Head(); more {
			d.BeginTask(sid, cid)
		}
	}
}

// HandleConnectionTimeout probes the connection's liveness with
// getpeername and, if it is broken, deactivates and releases it: the whole
// session if this was its last live connection, otherwise just this
// connection. The
// daemon's NotifyConnectionProblem hook gets first refusal — returning
// true means the daemon is handling recovery itself and the core should
// leave the connection slot alone.
func (d *Dispatcher) HandleConnectionTimeout(sid, cid int) {
	s := d.Store.Session(sid)
	if s == nil {
		return
	}
	conn := s.Connection(cid)
	if conn == nil {
		return
	}

	if _, err := conn.Conn.Peername(); err == nil {
		return
	}

	if d.Hooks != nil && d.Hooks.NotifyConnectionProblem(sid, cid) {
		return
	}

	onDrained := d.FailDrainedTask(sid)
	if s.LiveConnectionCount() <= 1 {
		_ = d.Store.ReleaseSession(sid, onDrained)
		return
	}
	_ = d.Store.ReleaseConnection(sid, cid, onDrained)
}

// FailDrainedTask returns the onDrained callback DeactivateConnection and
// DeactivateAllConnections expect: it disarms the task's timer and reports
// a delivery failure for whatever was still pending under that tag.
func (d *Dispatcher) FailDrainedTask(sid int) func(tag uint32) {
	return func(tag uint32) {
		d.disarmTaskTimer(tag)
		if p, ok := d.registryFor(sid).remove(tag); ok {
			if t := p.task(); t != nil {
				d.Completer.CompleteTask(t, scsi.StatusGood, scsi.DeliveryFailure)
			} else if req := p.taskMgmt(); req != nil {
				d.Completer.CompleteTaskManagement(req.Function(), req.ReferencedTaskTag(), scsi.DeliveryFailure)
			}
		}
	}
}
