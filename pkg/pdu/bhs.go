package pdu

import (
	"encoding/binary"
)

// BHSLen is the fixed Basic Header Segment length, bytes.
const BHSLen = 48

// DigestLen is the length of a header or data digest when enabled.
const DigestLen = 4

// BHS is the raw 48-byte Basic Header Segment, common to every PDU.
// Opcode-specific fields are read and written through the per-type
// builders/parsers in this package; BHS only exposes the fields that are
// laid out identically across every opcode this core supports.
type BHS [BHSLen]byte

func (b *BHS) Opcode() Opcode {
	return Opcode(b[0] & byte(opcodeMask))
}

func (b *BHS) SetOpcode(op Opcode) {
	b[0] = (b[0] &^ byte(opcodeMask)) | byte(op)
}

func (b *BHS) Immediate() bool {
	return b[0]&ImmediateFlag != 0
}

func (b *BHS) SetImmediate(v bool) {
	if v {
		b[0] |= ImmediateFlag
	} else {
		b[0] &^= ImmediateFlag
	}
}

func (b *BHS) Flags() byte {
	return b[1]
}

func (b *BHS) SetFlags(f byte) {
	b[1] = f
}

func (b *BHS) TotalAHSLength() byte {
	return b[4]
}

// DataSegmentLength reads the 3-byte, big-endian data segment length
// stored in bytes 5..7.
func (b *BHS) DataSegmentLength() uint32 {
	return uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
}

func (b *BHS) SetDataSegmentLength(n uint32) {
	b[5] = byte(n >> 16)
	b[6] = byte(n >> 8)
	b[7] = byte(n)
}

func (b *BHS) LUN() uint64 {
	return binary.BigEndian.Uint64(b[8:16])
}

func (b *BHS) SetLUN(lun uint64) {
	binary.BigEndian.PutUint64(b[8:16], lun)
}

func (b *BHS) InitiatorTaskTag() uint32 {
	return binary.BigEndian.Uint32(b[16:20])
}

func (b *BHS) SetInitiatorTaskTag(tag uint32) {
	binary.BigEndian.PutUint32(b[16:20], tag)
}

// PaddedLength rounds a data segment length up to the next 4-byte
// boundary, per RFC 3720 §3.2.
func PaddedLength(n uint32) uint32 {
	return n + ((4 - n%4) & 3)
}

// field32 and setField32 read/write a big-endian uint32 at a byte offset
// within the BHS, shared by the opcode-specific accessors in the other
// files of this package.
func (b *BHS) field32(offset int) uint32 {
	return binary.BigEndian.Uint32(b[offset : offset+4])
}

func (b *BHS) setField32(offset int, v uint32) {
	binary.BigEndian.PutUint32(b[offset:offset+4], v)
}
