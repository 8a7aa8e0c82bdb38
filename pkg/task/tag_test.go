package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAndDecodeTagRoundTrip(t *testing.T) {
	tag := BuildTag(TypeSCSI, 7, 0xBEEF1234)
	typ, lun, id := DecodeTag(tag)
	assert.Equal(t, TypeSCSI, typ)
	assert.EqualValues(t, 7, lun)
	assert.EqualValues(t, 0x1234, id)
}

func TestTagTypeOccupiesTopByte(t *testing.T) {
	tag := BuildTag(TypeLatency, 0, 0)
	assert.EqualValues(t, TypeLatency, tag>>24)

	tag = BuildTag(TypeTaskMgmt, 0, 0)
	assert.EqualValues(t, TypeTaskMgmt, tag>>24)
}
