package task

import (
	"time"

	iscsi "github.com/go-iscsi/initiator"
	"github.com/go-iscsi/initiator/pkg/pdu"
	"github.com/go-iscsi/initiator/pkg/scsi"
	"github.com/go-iscsi/initiator/pkg/session"
)

// RecvOne performs one RecvHeader+RecvData cycle on conn and dispatches
// the PDU to the opcode handler that applies. It blocks for up to the
// connection's socket receive timeout; callers run it in a per-connection
// loop.
func (d *Dispatcher) RecvOne(sid, cid int) error {
	s := d.Store.Session(sid)
	if s == nil {
		return iscsi.ErrUnknownSession
	}
	conn := s.Connection(cid)
	if conn == nil {
		return iscsi.ErrUnknownConnection
	}

	b, data, err := d.recvPDU(conn)
	if err != nil {
		d.HandleConnectionTimeout(sid, cid)
		return err
	}

	switch b.Opcode() {
	case pdu.OpSCSIResponse:
		return d.handleSCSIResponse(s, conn, pdu.ParseSCSIResponse(*b), data)
	case pdu.OpDataIn:
		return d.handleDataIn(s, conn, pdu.ParseDataIn(*b), data)
	case pdu.OpR2T:
		return d.handleR2T(s, conn, pdu.ParseR2T(*b))
	case pdu.OpNopIn:
		return d.handleNopIn(s, conn, pdu.ParseNopIn(*b))
	case pdu.OpAsyncMessage:
		return d.handleAsyncMessage(s, conn, pdu.ParseAsyncMessage(*b))
	case pdu.OpTaskMgmtRsp:
		return d.handleTaskMgmtResponse(s, conn, pdu.ParseTaskMgmtResponse(*b))
	case pdu.OpReject:
		return d.handleReject(s, conn, pdu.ParseReject(*b))
	default:
		return iscsi.ErrUnsupportedOpcode
	}
}

// recvPDU implements RecvHeader+RecvData: read the 48-byte BHS, reject a
// non-zero AHS, verify the header digest, read the (padded) data segment
// and verify the data digest.
func (d *Dispatcher) recvPDU(conn *session.Connection) (*pdu.BHS, []byte, error) {
	conn.Conn.Lock()
	defer conn.Conn.Unlock()

	var b pdu.BHS
	if err := conn.Conn.ReadFull(b[:]); err != nil {
		return nil, nil, err
	}
	if b.TotalAHSLength() != 0 {
		return nil, nil, iscsi.ErrNonZeroAHS
	}

	if conn.Params.HeaderDigest != pdu.DigestNone {
		digest := make([]byte, pdu.DigestLen)
		if err := conn.Conn.ReadFull(digest); err != nil {
			return nil, nil, err
		}
		if !pdu.VerifyDigest(b[:], digest) {
			return nil, nil, iscsi.ErrDigestMismatch
		}
	}

	dataLen := b.DataSegmentLength()
	if dataLen == 0 {
		return &b, nil, nil
	}

	padded := pdu.PaddedLength(dataLen)
	buf := make([]byte, padded)
	if err := conn.Conn.ReadFull(buf); err != nil {
		return nil, nil, err
	}
	data := buf[:dataLen]

	if conn.Params.DataDigest != pdu.DigestNone {
		digest := make([]byte, pdu.DigestLen)
		if err := conn.Conn.ReadFull(digest); err != nil {
			return nil, nil, err
		}
		if !pdu.VerifyDigest(data, digest) {
			return nil, nil, iscsi.ErrDigestMismatch
		}
	}
	return &b, data, nil
}

func (d *Dispatcher) handleSCSIResponse(s *session.Session, conn *session.Connection, r *pdu.SCSIResponse, sense []byte) error {
	tag := r.InitiatorTaskTag()
	s.UpdateFromResponse(conn, r.StatSN(), r.ExpCmdSN(), r.MaxCmdSN(),
		session.ShouldAdvanceExpStatSN(false, r.StatSN(), tag, false))

	p, ok := d.registryFor(s.SessionID).remove(tag)
	if !ok {
		return iscsi.ErrTaskNotFound
	}
	t := p.task()
	if t == nil {
		return iscsi.ErrTaskNotFound
	}
	if r.ResidualCount() > 0 {
		t.SetRealizedDataTransferCount(t.RequestedTransferLength() - r.ResidualCount())
	}

	d.completeCurrentTask(s, conn, p)

	if r.Status() == scsi.StatusCheckCondition && len(sense) > 2 {
		d.Completer.CompleteTaskWithSense(t, r.Status(), r.ServiceResponse(), sense[2:])
	} else {
		d.Completer.CompleteTask(t, r.Status(), r.ServiceResponse())
	}
	return nil
}

func (d *Dispatcher) handleDataIn(s *session.Session, conn *session.Connection, r *pdu.DataIn, data []byte) error {
	advance := session.ShouldAdvanceExpStatSN(false, r.StatSN(), r.InitiatorTaskTag(), !r.StatusPresent())
	s.UpdateFromResponse(conn, r.StatSN(), 0, 0, advance)

	tag := r.InitiatorTaskTag()
	p, ok := d.registryFor(s.SessionID).get(tag)
	if !ok {
		return iscsi.ErrTaskNotFound
	}
	t := p.task()
	if t == nil {
		return iscsi.ErrTaskNotFound
	}

	if _, err := t.WriteAt(r.BufferOffset(), data); err != nil {
		return err
	}
	t.IncrementRealizedDataTransferCount(uint32(len(data)))

	if !r.StatusPresent() {
		return nil
	}

	d.registryFor(s.SessionID).remove(tag)
	if r.ResidualCount() > 0 {
		t.SetRealizedDataTransferCount(t.RequestedTransferLength() - r.ResidualCount())
	}
	d.completeCurrentTask(s, conn, p)
	d.Completer.CompleteTask(t, r.Status(), scsi.TaskComplete)
	return nil
}

func (d *Dispatcher) handleR2T(s *session.Session, conn *session.Connection, r *pdu.R2T) error {
	s.UpdateFromResponse(conn, r.StatSN(), r.ExpCmdSN(), r.MaxCmdSN(), false)

	tag := r.InitiatorTaskTag()
	p, ok := d.registryFor(s.SessionID).get(tag)
	if !ok {
		return iscsi.ErrTaskNotFound
	}
	t := p.task()
	if t == nil {
		return iscsi.ErrTaskNotFound
	}
	return d.ProcessDataOut(s.SessionID, conn.CID, t, tag, r.TargetTransferTag(),
		r.BufferOffset(), r.DesiredDataTransferLength())
}

func (d *Dispatcher) handleNopIn(s *session.Session, conn *session.Connection, n *pdu.NopIn) error {
	advance := session.ShouldAdvanceExpStatSN(false, n.StatSN(), n.InitiatorTaskTag(), false)
	s.UpdateFromResponse(conn, n.StatSN(), n.ExpCmdSN(), n.MaxCmdSN(), advance)

	if n.IsLatencyProbeReply() {
		tag := n.InitiatorTaskTag()
		d.registryFor(s.SessionID).remove(tag)
		if !conn.TaskStart.IsZero() {
			conn.LatencyMs = time.Since(conn.TaskStart).Seconds() * 1000
		}
		d.completeCurrentTaskByTag(s, conn, tag)
		return nil
	}

	// Target-initiated ping: echo it back with the target's ttt.
	reply := pdu.BuildNopOut(0, pdu.ReservedTag, n.TargetTransferTag(), true)
	s.PrepareSend(conn, true, reply.SetCmdSN, reply.SetExpStatSN)
	return d.sendPDU(conn, &reply.BHS, nil)
}

func (d *Dispatcher) handleAsyncMessage(s *session.Session, conn *session.Connection, a *pdu.AsyncMessage) error {
	s.UpdateFromResponse(conn, a.StatSN(), a.ExpCmdSN(), a.MaxCmdSN(), false)

	onDrained := d.FailDrainedTask(s.SessionID)
	switch a.Event() {
	case pdu.AsyncDropAll:
		_ = d.Store.ReleaseSession(s.SessionID, onDrained)
	case pdu.AsyncDropConnection:
		_ = d.Store.ReleaseConnection(s.SessionID, conn.CID, onDrained)
	case pdu.AsyncLogout, pdu.AsyncNegotiateParams:
		_ = d.Store.DeactivateConnection(s.SessionID, conn.CID, onDrained)
	case pdu.AsyncSCSIEvent, pdu.AsyncVendor:
		// No transport-layer action; the mid-layer may still care.
	}

	if d.Hooks != nil && a.Event() != pdu.AsyncSCSIEvent && a.Event() != pdu.AsyncVendor {
		d.Hooks.NotifyAsyncEvent(s.SessionID, a.Event(), a.Param1(), a.Param2(), a.Param3())
	}
	return nil
}

func (d *Dispatcher) handleTaskMgmtResponse(s *session.Session, conn *session.Connection, r *pdu.TaskMgmtResponse) error {
	tag := r.InitiatorTaskTag()
	s.UpdateFromResponse(conn, r.StatSN(), r.ExpCmdSN(), r.MaxCmdSN(),
		session.ShouldAdvanceExpStatSN(false, r.StatSN(), tag, false))

	p, ok := d.registryFor(s.SessionID).remove(tag)
	if !ok {
		return iscsi.ErrTaskNotFound
	}
	req := p.taskMgmt()
	d.completeCurrentTask(s, conn, p)
	if req != nil {
		d.Completer.CompleteTaskManagement(req.Function(), req.ReferencedTaskTag(), r.ServiceResponse())
	}
	return nil
}

func (d *Dispatcher) handleReject(s *session.Session, conn *session.Connection, r *pdu.Reject) error {
	s.UpdateFromResponse(conn, r.StatSN(), r.ExpCmdSN(), r.MaxCmdSN(), false)
	if d.Hooks != nil {
		d.Hooks.NotifyConnectionProblem(s.SessionID, conn.CID)
	}
	return nil
}

// completeCurrentTask pops tag's pending task off conn.task_queue (it must
// be the head) and begins the next queued task, if any. It also records
// the completed task's throughput sample and arms a latency probe on
// rolling-window roll-over.
//
// p.cid is the connection the task was actually dispatched on; the
// response can arrive on conn (the queue-holding connection) even when
// that differs, since a session's connections share one task_queue per
// connection but a multi-connection session can still see a task's final
// SCSI Response land anywhere. Pop and bandwidth-account against the
// owning connection, not the receiving one.
func (d *Dispatcher) completeCurrentTask(s *session.Session, conn *session.Connection, p *pending) {
	owner := conn
	if p.cid != conn.CID {
		if c := s.Connection(p.cid); c != nil {
			owner = c
		}
	}

	d.disarmTaskTimer(p.tag)
	if head, ok := owner.TaskQueue.Head(); ok && head == p.tag {
		owner.TaskQueue.Pop()
	}
	owner.AddDataToTransfer(-int64(p.requestedBytes))

	if !p.startedAt.IsZero() {
		if owner.RecordCompletedTask(int64(p.requestedBytes), time.Since(p.startedAt)) {
			d.EnqueueLatencyProbe(s.SessionID, owner)
		}
	}

	if _, ok := owner.TaskQueue.Head(); ok {
		d.BeginTask(s.SessionID, owner.CID)
	}
}

func (d *Dispatcher) completeCurrentTaskByTag(s *session.Session, conn *session.Connection, tag uint32) {
	d.disarmTaskTimer(tag)
	if head, ok := conn.TaskQueue.Head(); ok && head == tag {
		conn.TaskQueue.Pop()
	}
	if _, ok := conn.TaskQueue.Head(); ok {
		d.BeginTask(s.SessionID, conn.CID)
	}
}
