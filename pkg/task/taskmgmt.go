package task

import (
	"sync/atomic"

	"github.com/go-iscsi/initiator/pkg/scsi"
)

// tmfRequest is the taskMgmtRequest implementation the dispatcher builds
// for each outgoing task-management verb.
type tmfRequest struct {
	function          scsi.TaskManagementFunction
	lun               uint64
	referencedTaskTag uint32
}

func (r *tmfRequest) Function() scsi.TaskManagementFunction { return r.function }
func (r *tmfRequest) LUN() uint64                           { return r.lun }
func (r *tmfRequest) ReferencedTaskTag() uint32             { return r.referencedTaskTag }

// submitTMF picks a live connection on the session (the first one whose
// sources are enabled), enqueues a task-management tag on it, and kicks
// off BeginTask if the connection was idle.
func (d *Dispatcher) submitTMF(sid int, lun uint64, function scsi.TaskManagementFunction, referencedTaskTag uint32) error {
	s := d.Store.Session(sid)
	if s == nil {
		return ErrNoConnection
	}

	conns := s.Connections()
	var cid = -1
	for _, c := range conns {
		if c.SourcesEnabled() {
			cid = c.CID
			break
		}
	}
	if cid < 0 {
		return ErrNoConnection
	}
	conn := s.Connection(cid)

	id := uint16(atomic.AddUint32(&d.tmfCounter, 1))
	tag := BuildTag(TypeTaskMgmt, uint16(lun), uint32(id))

	d.registryFor(sid).put(&pending{
		tag:     tag,
		payload: &tmfRequest{function: function, lun: lun, referencedTaskTag: referencedTaskTag},
		cid:     cid,
	})

	wasEmpty := conn.TaskQueue.Len() == 0
	conn.TaskQueue.Push(tag)
	if wasEmpty {
		d.BeginTask(sid, cid)
	}
	return nil
}

// AbortTask requests the target abort one outstanding task, identified by
// the initiator task tag it was dispatched with.
func (d *Dispatcher) AbortTask(sid int, lun uint64, referencedITT uint32) error {
	return d.submitTMF(sid, lun, scsi.TMFAbortTask, referencedITT)
}

// AbortTaskSet requests the target abort every task in lun's task set.
func (d *Dispatcher) AbortTaskSet(sid int, lun uint64) error {
	return d.submitTMF(sid, lun, scsi.TMFAbortTaskSet, 0)
}

// ClearACA clears an outstanding Auto Contingent Allegiance condition on lun.
func (d *Dispatcher) ClearACA(sid int, lun uint64) error {
	return d.submitTMF(sid, lun, scsi.TMFClearACA, 0)
}

// ClearTaskSet clears lun's entire task set without aborting the LUN itself.
func (d *Dispatcher) ClearTaskSet(sid int, lun uint64) error {
	return d.submitTMF(sid, lun, scsi.TMFClearTaskSet, 0)
}

// LogicalUnitReset requests a reset of lun.
func (d *Dispatcher) LogicalUnitReset(sid int, lun uint64) error {
	return d.submitTMF(sid, lun, scsi.TMFLogicalUnitReset, 0)
}

// TargetReset requests a reset of every LUN on the session's target.
func (d *Dispatcher) TargetReset(sid int) error {
	return d.submitTMF(sid, 0, scsi.TMFTargetReset, 0)
}
