package pdu

// NopOut is the initiator's keepalive/latency-probe PDU (opcode 0x00).
type NopOut struct {
	BHS
}

// BuildNopOut builds a NOP-Out. A self-initiated latency probe sets
// ttt=ReservedTag and itt to a real tag so the target is required to
// reply; an echo of a target-initiated ping sets itt=ReservedTag and ttt
// to the value the target supplied.
func BuildNopOut(lun uint64, itt, ttt uint32, immediate bool) *NopOut {
	n := &NopOut{}
	n.SetOpcode(OpNopOut)
	n.SetImmediate(immediate)
	n.SetLUN(lun)
	n.SetInitiatorTaskTag(itt)
	n.setField32(20, ttt)
	return n
}

func (n *NopOut) SetCmdSN(sn uint32)     { n.setField32(24, sn) }
func (n *NopOut) SetExpStatSN(sn uint32) { n.setField32(28, sn) }
func (n *NopOut) TargetTransferTag() uint32 { return n.field32(20) }

// NopIn is the target's keepalive/latency-probe reply (opcode 0x20).
type NopIn struct {
	BHS
}

func ParseNopIn(raw BHS) *NopIn { return &NopIn{raw} }

func (n *NopIn) TargetTransferTag() uint32 { return n.field32(20) }
func (n *NopIn) StatSN() uint32            { return n.field32(24) }
func (n *NopIn) ExpCmdSN() uint32          { return n.field32(28) }
func (n *NopIn) MaxCmdSN() uint32          { return n.field32(32) }

// IsLatencyProbeReply reports whether this NOP-In answers an
// initiator-originated ping (rather than being a target-initiated one the
// initiator must echo back).
func (n *NopIn) IsLatencyProbeReply() bool {
	return n.TargetTransferTag() == ReservedTag
}
