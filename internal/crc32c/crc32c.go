// Package crc32c computes the Castagnoli CRC32 used for iSCSI header and
// data digests (RFC 3720 §3.2.2.1, polynomial 0x1EDC6F41).
package crc32c

import (
	"encoding/binary"
	"hash/crc32"
)

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32C of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// Digest accumulates a CRC32C across multiple writes, for cases where the
// header and padded data segment are available in separate slices.
type Digest struct {
	crc uint32
}

func New() *Digest {
	return &Digest{}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.crc = crc32.Update(d.crc, table, p)
	return len(p), nil
}

func (d *Digest) Sum32() uint32 {
	return d.crc
}

func (d *Digest) Reset() {
	d.crc = 0
}

// AppendDigest returns data with its own CRC32C appended in wire order
// (big-endian), the form used for header and data digests on the wire.
func AppendDigest(data []byte) []byte {
	sum := Checksum(data)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, sum)
	return append(append([]byte{}, data...), buf...)
}

// Valid reports whether data, followed by a trailing 4-byte big-endian
// CRC32C, is self-consistent.
func Valid(dataWithDigest []byte) bool {
	if len(dataWithDigest) < 4 {
		return false
	}
	split := len(dataWithDigest) - 4
	want := binary.BigEndian.Uint32(dataWithDigest[split:])
	return Checksum(dataWithDigest[:split]) == want
}
