package pdu

import (
	"testing"

	"github.com/go-iscsi/initiator/pkg/scsi"
	"github.com/stretchr/testify/assert"
)

func TestSCSICommandRoundTrip(t *testing.T) {
	cdb := make([]byte, 16)
	cdb[0] = scsi.OpRead10
	cmd := BuildSCSICommand(7, 0x1234, cdb, scsi.DirectionRead, scsi.AttributeSimple, 4096)
	cmd.SetCmdSN(42)
	cmd.SetExpStatSN(1)

	raw := cmd.BHS
	parsed := ParseSCSICommand(raw)

	assert.Equal(t, OpSCSICommand, parsed.Opcode())
	assert.EqualValues(t, 7, parsed.LUN())
	assert.EqualValues(t, 0x1234, parsed.InitiatorTaskTag())
	assert.EqualValues(t, 4096, parsed.ExpectedDataTransferLength())
	assert.EqualValues(t, 42, parsed.CmdSN())
	assert.True(t, parsed.Read())
	assert.False(t, parsed.Write())
	assert.Equal(t, cdb, parsed.CDB())
}

func TestDataOutRoundTrip(t *testing.T) {
	d := BuildDataOut(3, 0x10, ReservedTag, 8192, 2, true)
	raw := d.BHS
	parsed := ParseDataOut(raw)

	assert.EqualValues(t, 3, parsed.LUN())
	assert.EqualValues(t, 0x10, parsed.InitiatorTaskTag())
	assert.EqualValues(t, ReservedTag, parsed.TargetTransferTag())
	assert.EqualValues(t, 8192, parsed.BufferOffset())
	assert.EqualValues(t, 2, parsed.DataSN())
	assert.True(t, parsed.Final())
}

func TestNopOutRoundTrip(t *testing.T) {
	n := BuildNopOut(0, 0x99, ReservedTag, true)
	assert.True(t, n.Immediate())
	assert.EqualValues(t, ReservedTag, n.TargetTransferTag())
	assert.EqualValues(t, 0x99, n.InitiatorTaskTag())
}

func TestTaskMgmtRequestRoundTrip(t *testing.T) {
	req := BuildTaskMgmtRequest(scsi.TMFAbortTask, 1, 0x55, 0x44)
	raw := req.BHS
	parsed := &TaskMgmtRequest{raw}

	assert.Equal(t, scsi.TMFAbortTask, parsed.Function())
	assert.EqualValues(t, 0x44, parsed.field32(20))
}

func TestDataSegmentLengthIs24BitBigEndian(t *testing.T) {
	var b BHS
	b.SetDataSegmentLength(0x00ABCDEF & 0xFFFFFF)
	assert.EqualValues(t, 0xABCDEF, b.DataSegmentLength())
}

func TestPaddedLengthDivisibleByFour(t *testing.T) {
	for _, n := range []uint32{0, 1, 2, 3, 4, 5, 511, 512, 8191, 8192} {
		padded := PaddedLength(n)
		assert.EqualValues(t, 0, padded%4)
		assert.True(t, padded >= n)
	}
}

func TestSCSIResponseServiceResponse(t *testing.T) {
	var raw BHS
	raw.SetOpcode(OpSCSIResponse)
	raw[2] = 0x00
	raw[3] = byte(scsi.StatusGood)
	r := ParseSCSIResponse(raw)
	assert.Equal(t, scsi.TaskComplete, r.ServiceResponse())
	assert.Equal(t, scsi.StatusGood, r.Status())

	raw[2] = 0x01
	r = ParseSCSIResponse(raw)
	assert.Equal(t, scsi.ServiceDeliveryOrTargetFailure, r.ServiceResponse())
}

func TestHeaderDigestRoundTrip(t *testing.T) {
	var b BHS
	b.SetOpcode(OpNopOut)
	digest := BuildHeaderDigest(&b, DigestCRC32C)
	assert.Len(t, digest, 4)
	assert.True(t, VerifyDigest(b[:], digest))

	b[0] ^= 0xff
	assert.False(t, VerifyDigest(b[:], digest))
}

func TestNoDigestWhenDisabled(t *testing.T) {
	var b BHS
	assert.Nil(t, BuildHeaderDigest(&b, DigestNone))
	assert.Nil(t, BuildDataDigest([]byte{1, 2, 3}, DigestNone))
}
