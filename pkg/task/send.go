package task

import (
	"time"

	"github.com/go-iscsi/initiator/pkg/pdu"
	"github.com/go-iscsi/initiator/pkg/scsi"
	"github.com/go-iscsi/initiator/pkg/session"
)

// BeginTask peeks (never pops) the head of conn's task_queue and sends the
// PDU that starts it: a SCSI Command for a task tag, a NOP-Out for a
// latency probe tag, or a Task Management Function Request for a
// management tag. Popping the head is complete_current_task's job, run
// once the exchange finishes.
func (d *Dispatcher) BeginTask(sid, cid int) error {
	s := d.Store.Session(sid)
	if s == nil {
		return nil
	}
	conn := s.Connection(cid)
	if conn == nil {
		return nil
	}
	tag, ok := conn.TaskQueue.Head()
	if !ok {
		return nil
	}

	typ, _, _ := DecodeTag(tag)
	switch typ {
	case TypeSCSI:
		return d.beginSCSITask(s, conn, tag)
	case TypeLatency:
		return d.beginLatencyProbe(s, conn, tag)
	case TypeTaskMgmt:
		return d.beginTaskMgmt(s, conn, tag)
	default:
		return nil
	}
}

func (d *Dispatcher) beginSCSITask(s *session.Session, conn *session.Connection, tag uint32) error {
	reg := d.registryFor(s.SessionID)
	p, ok := reg.get(tag)
	if !ok {
		return nil
	}
	t := p.task()
	if t == nil {
		return nil
	}

	cmd := pdu.BuildSCSICommand(t.LUN(), tag, t.CDB(), t.Direction(), t.Attribute(),
		t.RequestedTransferLength())

	s.PrepareSend(conn, false, cmd.SetCmdSN, cmd.SetExpStatSN)

	p.startedAt = time.Now()
	conn.TaskStart = p.startedAt

	if err := d.sendPDU(conn, &cmd.BHS, nil); err != nil {
		d.HandleConnectionTimeout(s.SessionID, conn.CID)
		return err
	}
	d.armTaskTimer(s.SessionID, conn.CID, tag)

	if t.Direction() == scsi.DirectionWrite && s.Negotiated.ImmediateData {
		return d.sendImmediateData(s, conn, t, tag)
	}
	return nil
}

// sendImmediateData sends the unsolicited first-burst data immediately
// following a Write command PDU, sized to the connection's
// immediate_data_length, per §4.4.
func (d *Dispatcher) sendImmediateData(s *session.Session, conn *session.Connection, t scsi.ScsiTask, itt uint32) error {
	total := t.RequestedTransferLength()
	burst := conn.ImmediateDataLength
	if burst > total {
		burst = total
	}
	if burst == 0 {
		return nil
	}

	buf := make([]byte, burst)
	if _, err := t.ReadAt(0, buf); err != nil {
		return err
	}

	out := pdu.BuildDataOut(t.LUN(), itt, pdu.ReservedTag, 0, 0, burst == total)
	if err := d.sendPDU(conn, &out.BHS, buf); err != nil {
		d.HandleConnectionTimeout(s.SessionID, conn.CID)
		return err
	}
	t.IncrementRealizedDataTransferCount(burst)
	return nil
}

func (d *Dispatcher) beginLatencyProbe(s *session.Session, conn *session.Connection, itt uint32) error {
	n := pdu.BuildNopOut(0, itt, pdu.ReservedTag, true)
	s.PrepareSend(conn, true, n.SetCmdSN, n.SetExpStatSN)
	conn.TaskStart = time.Now()
	if err := d.sendPDU(conn, &n.BHS, nil); err != nil {
		d.HandleConnectionTimeout(s.SessionID, conn.CID)
		return err
	}
	d.armTaskTimer(s.SessionID, conn.CID, itt)
	return nil
}

func (d *Dispatcher) beginTaskMgmt(s *session.Session, conn *session.Connection, tag uint32) error {
	reg := d.registryFor(s.SessionID)
	p, ok := reg.get(tag)
	if !ok {
		return nil
	}
	req := p.taskMgmt()
	if req == nil {
		return nil
	}
	r := pdu.BuildTaskMgmtRequest(req.Function(), req.LUN(), tag, req.ReferencedTaskTag())
	s.PrepareSend(conn, false, r.SetCmdSN, r.SetExpStatSN)
	if err := d.sendPDU(conn, &r.BHS, nil); err != nil {
		d.HandleConnectionTimeout(s.SessionID, conn.CID)
		return err
	}
	d.armTaskTimer(s.SessionID, conn.CID, tag)
	return nil
}

// ProcessDataOut sends solicited Data-Out bursts in answer to an R2T,
// splitting desiredLength into segments no larger than
// MaxSendDataSegmentLength, per §4.5.
func (d *Dispatcher) ProcessDataOut(sid, cid int, t scsi.ScsiTask, itt uint32, ttt uint32, bufferOffset, desiredLength uint32) error {
	s := d.Store.Session(sid)
	if s == nil {
		return nil
	}
	conn := s.Connection(cid)
	if conn == nil {
		return nil
	}

	segment := conn.Params.MaxSendDataSegmentLength
	if segment == 0 {
		segment = desiredLength
	}

	var dataSN uint32
	for sent := uint32(0); sent < desiredLength; {
		n := segment
		if remaining := desiredLength - sent; n > remaining {
			n = remaining
		}
		final := sent+n >= desiredLength

		buf := make([]byte, n)
		if _, err := t.ReadAt(bufferOffset+sent, buf); err != nil {
			return err
		}

		out := pdu.BuildDataOut(t.LUN(), itt, ttt, bufferOffset+sent, dataSN, final)
		if err := d.sendPDU(conn, &out.BHS, buf); err != nil {
			d.HandleConnectionTimeout(sid, cid)
			return err
		}
		t.IncrementRealizedDataTransferCount(n)
		sent += n
		dataSN++
	}
	return nil
}

// sendPDU implements the §4.6 framing rule: build the scatter-gather
// vector (BHS, optional header digest, data, zero padding, optional data
// digest) and perform a single vectored send under io_lock.
func (d *Dispatcher) sendPDU(conn *session.Connection, b *pdu.BHS, data []byte) error {
	b.SetDataSegmentLength(uint32(len(data)))

	segments := make([][]byte, 0, 5)
	segments = append(segments, b[:])
	if hd := pdu.BuildHeaderDigest(b, conn.Params.HeaderDigest); hd != nil {
		segments = append(segments, hd)
	}
	if len(data) > 0 {
		segments = append(segments, data)
		if pad := pdu.PaddingLen(uint32(len(data))); pad > 0 {
			segments = append(segments, make([]byte, pad))
		}
		if dd := pdu.BuildDataDigest(data, conn.Params.DataDigest); dd != nil {
			segments = append(segments, dd)
		}
	}

	conn.Conn.Lock()
	defer conn.Conn.Unlock()
	return conn.Conn.WriteVectored(segments...)
}

// taskMgmtRequest is implemented by the mid-layer's task-management task
// handles, distinct from scsi.ScsiTask since a TMF carries its own
// referenced tag rather than a CDB.
type taskMgmtRequest interface {
	Function() scsi.TaskManagementFunction
	LUN() uint64
	ReferencedTaskTag() uint32
}
