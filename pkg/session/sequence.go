package session

import "sync/atomic"

// PrepareSend writes cmd_sn and exp_stat_sn into an outgoing PDU via the
// supplied setters, and advances session.cmd_sn unless immediate is set.
// Data-Out PDUs never call this — they carry no CmdSN field at all.
func (s *Session) PrepareSend(conn *Connection, immediate bool, setCmdSN, setExpStatSN func(uint32)) {
	setCmdSN(s.CmdSN())
	setExpStatSN(conn.ExpStatSN())
	if !immediate {
		atomic.AddUint32(&s.cmdSN, 1)
	}
}

// UpdateFromResponse applies "larger replaces" semantics to ExpCmdSN and
// MaxCmdSN from a received target PDU, and advances ExpStatSN on the
// owning connection unless the PDU is exempt.
//
// Exempt from ExpStatSN advancement: R2T, a StatSN of 0xFFFFFFFF, an ITT
// of 0xFFFFFFFF (unsolicited target PDU), or a Data-In without the status
// bit — callers pass advanceExpStatSN=false for those.
func (s *Session) UpdateFromResponse(conn *Connection, statSN, expCmdSN, maxCmdSN uint32, advanceExpStatSN bool) {
	casMax(&s.expCmdSN, expCmdSN)
	casMax(&s.maxCmdSN, maxCmdSN)
	if advanceExpStatSN {
		conn.AdvanceExpStatSN()
	}
	_ = statSN
}

// casMax atomically replaces *addr with newVal if newVal is larger,
// looping on contention the way a larger-replaces counter must.
func casMax(addr *uint32, newVal uint32) {
	for {
		cur := atomic.LoadUint32(addr)
		if newVal <= cur {
			return
		}
		if atomic.CompareAndSwapUint32(addr, cur, newVal) {
			return
		}
	}
}

// ShouldAdvanceExpStatSN implements the §4.3 exemption rule given a
// decoded target PDU's fields.
func ShouldAdvanceExpStatSN(isR2T bool, statSN uint32, itt uint32, isDataInWithoutStatus bool) bool {
	if isR2T {
		return false
	}
	if statSN == 0xFFFFFFFF {
		return false
	}
	if itt == 0xFFFFFFFF {
		return false
	}
	if isDataInWithoutStatus {
		return false
	}
	return true
}
