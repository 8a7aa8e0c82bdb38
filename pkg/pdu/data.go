package pdu

import "github.com/go-iscsi/initiator/pkg/scsi"

// DataOut is an initiator Data-Out PDU (opcode 0x05), used for both
// unsolicited and solicited (R2T-triggered) bursts; the only difference
// between the two is the target transfer tag value.
type DataOut struct {
	BHS
}

// BuildDataOut fills in one Data-Out segment. ttt is ReservedTag for an
// unsolicited burst.
func BuildDataOut(lun uint64, itt, ttt uint32, bufferOffset uint32, dataSN uint32, final bool) *DataOut {
	d := &DataOut{}
	d.SetOpcode(OpDataOut)
	d.SetLUN(lun)
	d.SetInitiatorTaskTag(itt)
	d.setField32(20, ttt)
	d.setField32(36, dataSN)
	d.setField32(40, bufferOffset)
	if final {
		d.SetFlags(FlagFinal)
	}
	return d
}

func (d *DataOut) Final() bool            { return d.Flags()&FlagFinal != 0 }
func (d *DataOut) TargetTransferTag() uint32 { return d.field32(20) }
func (d *DataOut) DataSN() uint32         { return d.field32(36) }
func (d *DataOut) BufferOffset() uint32   { return d.field32(40) }

func ParseDataOut(raw BHS) *DataOut { return &DataOut{raw} }

// DataIn is a target Data-In PDU (opcode 0x25).
type DataIn struct {
	BHS
}

func ParseDataIn(raw BHS) *DataIn { return &DataIn{raw} }

func (d *DataIn) StatusPresent() bool        { return d.Flags()&FlagStatus != 0 }
func (d *DataIn) Final() bool                { return d.Flags()&FlagFinal != 0 }
func (d *DataIn) Status() scsi.Status        { return scsi.Status(d.BHS[3]) }
func (d *DataIn) TargetTransferTag() uint32  { return d.field32(20) }
func (d *DataIn) StatSN() uint32             { return d.field32(24) }
func (d *DataIn) DataSN() uint32             { return d.field32(36) }
func (d *DataIn) BufferOffset() uint32       { return d.field32(40) }
func (d *DataIn) ResidualCount() uint32      { return d.field32(44) }

// R2T is a target Ready-To-Transfer PDU (opcode 0x31). R2T never advances
// CmdSN and is excluded from the exp_stat_sn advancement rule.
type R2T struct {
	BHS
}

func ParseR2T(raw BHS) *R2T { return &R2T{raw} }

func (r *R2T) TargetTransferTag() uint32      { return r.field32(20) }
func (r *R2T) StatSN() uint32                 { return r.field32(24) }
func (r *R2T) ExpCmdSN() uint32               { return r.field32(28) }
func (r *R2T) MaxCmdSN() uint32               { return r.field32(32) }
func (r *R2T) R2TSN() uint32                  { return r.field32(36) }
func (r *R2T) BufferOffset() uint32           { return r.field32(40) }
func (r *R2T) DesiredDataTransferLength() uint32 { return r.field32(44) }
