package pdu

// AsyncMessage is the target-initiated Async Message PDU (opcode 0x32),
// used for session/connection-level events not tied to a particular task.
type AsyncMessage struct {
	BHS
}

func ParseAsyncMessage(raw BHS) *AsyncMessage { return &AsyncMessage{raw} }

func (a *AsyncMessage) StatSN() uint32   { return a.field32(24) }
func (a *AsyncMessage) ExpCmdSN() uint32 { return a.field32(28) }
func (a *AsyncMessage) MaxCmdSN() uint32 { return a.field32(32) }
func (a *AsyncMessage) Event() AsyncEvent { return AsyncEvent(a.BHS[36]) }
func (a *AsyncMessage) VendorCode() byte  { return a.BHS[37] }
func (a *AsyncMessage) Param1() uint16    { return uint16(a.BHS[38])<<8 | uint16(a.BHS[39]) }
func (a *AsyncMessage) Param2() uint16    { return uint16(a.BHS[40])<<8 | uint16(a.BHS[41]) }
func (a *AsyncMessage) Param3() uint16    { return uint16(a.BHS[42])<<8 | uint16(a.BHS[43]) }

// Reject is the target's Reject PDU (opcode 0x3f), carrying a copy of the
// rejected PDU's header in the data segment.
type Reject struct {
	BHS
}

func ParseReject(raw BHS) *Reject { return &Reject{raw} }

// Reject reason codes, RFC 3720 §10.17.1.
const (
	RejectReasonDataDigestError byte = 0x02
	RejectReasonSNACK           byte = 0x03
	RejectReasonProtocolError   byte = 0x04
	RejectReasonCmdNotSupported byte = 0x05
	RejectReasonImmediateCmdReject byte = 0x06
	RejectReasonTaskInProgress  byte = 0x07
	RejectReasonInvalidDataAck  byte = 0x08
	RejectReasonInvalidPDUField byte = 0x09
	RejectReasonLongOpNotSupported byte = 0x0a
	RejectReasonNegotiationReset byte = 0x0b
	RejectReasonWaitingForLogout byte = 0x0c
)

func (r *Reject) Reason() byte      { return r.BHS[2] }
func (r *Reject) StatSN() uint32    { return r.field32(24) }
func (r *Reject) ExpCmdSN() uint32  { return r.field32(28) }
func (r *Reject) MaxCmdSN() uint32  { return r.field32(32) }
