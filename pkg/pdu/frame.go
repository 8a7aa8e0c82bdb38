package pdu

import "github.com/go-iscsi/initiator/internal/crc32c"

// Digest selects whether a header or data digest is present on a
// connection, negotiated during login (out of scope here) and supplied to
// the core as an already-negotiated connection parameter.
type Digest int

const (
	DigestNone Digest = iota
	DigestCRC32C
)

// BuildHeaderDigest returns the 4-byte CRC32C of a BHS, or nil if digests
// are disabled on the connection.
func BuildHeaderDigest(b *BHS, d Digest) []byte {
	if d == DigestNone {
		return nil
	}
	sum := crc32c.Checksum(b[:])
	return []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
}

// BuildDataDigest returns the 4-byte CRC32C of the unpadded data segment,
// or nil if digests are disabled.
func BuildDataDigest(data []byte, d Digest) []byte {
	if d == DigestNone {
		return nil
	}
	sum := crc32c.Checksum(data)
	return []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
}

// VerifyDigest recomputes the CRC32C of payload and compares it against a
// 4-byte big-endian digest read off the wire.
func VerifyDigest(payload []byte, digest []byte) bool {
	if len(digest) != 4 {
		return false
	}
	sum := crc32c.Checksum(payload)
	return byte(sum>>24) == digest[0] && byte(sum>>16) == digest[1] &&
		byte(sum>>8) == digest[2] && byte(sum) == digest[3]
}

// PaddingLen returns the number of zero padding bytes (0..3) needed to
// round a data segment up to a 4-byte boundary.
func PaddingLen(n uint32) int {
	return int(PaddedLength(n) - n)
}
