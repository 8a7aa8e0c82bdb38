package pdu

import "github.com/go-iscsi/initiator/pkg/scsi"

// SCSICommand builds the initiator's SCSI Command PDU (opcode 0x01).
type SCSICommand struct {
	BHS
}

// BuildSCSICommand fills in a SCSI Command BHS. CmdSN/ExpStatSN are left
// to the sequence-number engine, which writes them immediately before
// send so the "immediate" decision is made at send time, not build time.
// Whether unsolicited Data-Out follows is a task-dispatcher decision, not
// a BHS field, and is made separately by the caller.
func BuildSCSICommand(lun uint64, itt uint32, cdb []byte, dir scsi.Direction,
	attr scsi.TaskAttribute, expectedTransferLength uint32) *SCSICommand {

	c := &SCSICommand{}
	c.SetOpcode(OpSCSICommand)
	c.SetLUN(lun)
	c.SetInitiatorTaskTag(itt)

	flags := FlagFinal | byte(attr)&0x07
	switch dir {
	case scsi.DirectionRead:
		flags |= FlagRead
	case scsi.DirectionWrite:
		flags |= FlagWrite
	case scsi.DirectionBidirectional:
		flags |= FlagRead | FlagWrite
	}
	c.SetFlags(flags)

	c.setField32(20, expectedTransferLength)
	copy(c.BHS[32:48], cdb)

	return c
}

func (c *SCSICommand) ExpectedDataTransferLength() uint32 { return c.field32(20) }

func (c *SCSICommand) SetCmdSN(sn uint32)    { c.setField32(24, sn) }
func (c *SCSICommand) SetExpStatSN(sn uint32) { c.setField32(28, sn) }
func (c *SCSICommand) CmdSN() uint32          { return c.field32(24) }

func (c *SCSICommand) Read() bool  { return c.Flags()&FlagRead != 0 }
func (c *SCSICommand) Write() bool { return c.Flags()&FlagWrite != 0 }

func (c *SCSICommand) CDB() []byte { return c.BHS[32:48] }

// ParseSCSICommand interprets a raw BHS previously decoded off the wire as
// a SCSI Command, for tests and for peer-side tooling.
func ParseSCSICommand(raw BHS) *SCSICommand {
	return &SCSICommand{raw}
}

// SCSIResponse is the target's SCSI Response PDU (opcode 0x21).
type SCSIResponse struct {
	BHS
}

func ParseSCSIResponse(raw BHS) *SCSIResponse {
	return &SCSIResponse{raw}
}

// Response is the PDU-level response field: 0x00 means the command
// reached the target and completed; anything else means the iSCSI layer
// itself could not deliver it.
func (r *SCSIResponse) Response() byte { return r.BHS[2] }

func (r *SCSIResponse) Status() scsi.Status { return scsi.Status(r.BHS[3]) }

func (r *SCSIResponse) StatSN() uint32    { return r.field32(24) }
func (r *SCSIResponse) ExpCmdSN() uint32  { return r.field32(28) }
func (r *SCSIResponse) MaxCmdSN() uint32  { return r.field32(32) }
func (r *SCSIResponse) ResidualCount() uint32 { return r.field32(44) }

// ServiceResponse translates the PDU response field to the service
// response the mid-layer expects.
func (r *SCSIResponse) ServiceResponse() scsi.ServiceResponse {
	if r.Response() == 0x00 {
		return scsi.TaskComplete
	}
	return scsi.ServiceDeliveryOrTargetFailure
}
