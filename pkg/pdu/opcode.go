// Package pdu packs and unpacks iSCSI Protocol Data Units: the fixed
// 48-byte Basic Header Segment plus digests and data segment, for the PDU
// types the core session/connection engine sends and receives.
package pdu

// Opcode identifies the PDU type, the low 6 bits of BHS byte 0.
type Opcode byte

const (
	OpNopOut       Opcode = 0x00
	OpSCSICommand  Opcode = 0x01
	OpTaskMgmtReq  Opcode = 0x02
	OpDataOut      Opcode = 0x05
	OpLogoutReq    Opcode = 0x06

	OpNopIn        Opcode = 0x20
	OpSCSIResponse Opcode = 0x21
	OpTaskMgmtRsp  Opcode = 0x22
	OpDataIn       Opcode = 0x25
	OpLogoutRsp    Opcode = 0x26
	OpR2T          Opcode = 0x31
	OpAsyncMessage Opcode = 0x32
	OpReject       Opcode = 0x3f

	opcodeMask Opcode = 0x3f
)

// ImmediateFlag is BHS byte 0, bit 6 — set on initiator PDUs that must not
// consume a CmdSN.
const ImmediateFlag byte = 0x40

// BHS byte 1 flags, opcode-specific bit meanings reused across PDU types
// for the subset the core supports.
const (
	FlagFinal  byte = 0x80 // SCSI Command, Data-Out/In, TMF: F bit
	FlagRead   byte = 0x40 // SCSI Command: R bit
	FlagWrite  byte = 0x20 // SCSI Command: W bit
	FlagStatus byte = 0x01 // Data-In: S bit (status present)
)

// AsyncEvent is the one-byte code carried in an Async Message PDU.
type AsyncEvent byte

const (
	AsyncSCSIEvent      AsyncEvent = 0
	AsyncLogout         AsyncEvent = 1
	AsyncDropConnection AsyncEvent = 2
	AsyncDropAll        AsyncEvent = 3
	AsyncNegotiateParams AsyncEvent = 4
	AsyncVendor         AsyncEvent = 255
)

// ReservedTag marks an unsolicited target transfer tag or an unused
// initiator task tag, per RFC 3720.
const ReservedTag uint32 = 0xFFFFFFFF

// ReservedStatSN marks a StatSN field that must not advance exp_stat_sn
// (used on retried/duplicate status PDUs).
const ReservedStatSN uint32 = 0xFFFFFFFF
