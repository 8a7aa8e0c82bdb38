package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareSendAdvancesCmdSNUnlessImmediate(t *testing.T) {
	s := newSession(0, "iqn.test:seq", DefaultNegotiated())
	c := &Connection{}

	var cmdSN, expStatSN uint32
	s.PrepareSend(c, false, func(v uint32) { cmdSN = v }, func(v uint32) { expStatSN = v })
	assert.EqualValues(t, 0, cmdSN)
	assert.EqualValues(t, 1, s.CmdSN())
	assert.EqualValues(t, 0, expStatSN)

	s.PrepareSend(c, true, func(v uint32) { cmdSN = v }, func(v uint32) { expStatSN = v })
	assert.EqualValues(t, 1, cmdSN)
	assert.EqualValues(t, 1, s.CmdSN(), "immediate PDUs reuse cmd_sn without advancing it")
}

func TestUpdateFromResponseLargerReplaces(t *testing.T) {
	s := newSession(0, "iqn.test:seq2", DefaultNegotiated())
	c := &Connection{}

	s.UpdateFromResponse(c, 5, 10, 20, true)
	assert.EqualValues(t, 10, s.ExpCmdSN())
	assert.EqualValues(t, 20, s.MaxCmdSN())
	assert.EqualValues(t, 1, c.ExpStatSN())

	// A stale, smaller value must not regress the counters.
	s.UpdateFromResponse(c, 5, 3, 15, true)
	assert.EqualValues(t, 10, s.ExpCmdSN())
	assert.EqualValues(t, 20, s.MaxCmdSN())
	assert.EqualValues(t, 2, c.ExpStatSN())
}

func TestUpdateFromResponseSkipsExpStatSNForExemptPDUs(t *testing.T) {
	s := newSession(0, "iqn.test:seq3", DefaultNegotiated())
	c := &Connection{}

	s.UpdateFromResponse(c, 0xFFFFFFFF, 1, 1, false)
	assert.EqualValues(t, 0, c.ExpStatSN())
}

func TestShouldAdvanceExpStatSNExemptions(t *testing.T) {
	assert.False(t, ShouldAdvanceExpStatSN(true, 1, 1, false), "R2T never advances exp_stat_sn")
	assert.False(t, ShouldAdvanceExpStatSN(false, 0xFFFFFFFF, 1, false))
	assert.False(t, ShouldAdvanceExpStatSN(false, 1, 0xFFFFFFFF, false))
	assert.False(t, ShouldAdvanceExpStatSN(false, 1, 1, true))
	assert.True(t, ShouldAdvanceExpStatSN(false, 1, 1, false))
}
