package session

import "github.com/go-iscsi/initiator/pkg/pdu"

// Negotiated is the subset of RFC 3720 session keys the send path and
// receive loop consult. Login/security negotiation is out of scope here;
// an external controller supplies the negotiated values once a connection
// reaches full-feature phase, via CreateSession/CreateConnection.
type Negotiated struct {
	InitialR2T             bool
	ImmediateData          bool
	FirstBurstLength       uint32
	MaxBurstLength         uint32
	MaxOutstandingR2T      uint16
	DataPDUInOrder         bool
	DataSequenceInOrder    bool
	ErrorRecoveryLevel     int
	MaxConnections         uint16
	DefaultTime2Wait       uint16
	DefaultTime2Retain     uint16
	TargetPortalGroupTag   uint16
	TargetSessionIdentifyingHandle uint16
}

// DefaultNegotiated returns the RFC 3720 default session keys.
func DefaultNegotiated() Negotiated {
	return Negotiated{
		InitialR2T:           true,
		ImmediateData:        true,
		FirstBurstLength:     65536,
		MaxBurstLength:       262144,
		MaxOutstandingR2T:    1,
		DataPDUInOrder:       true,
		DataSequenceInOrder:  true,
		ErrorRecoveryLevel:   0,
		MaxConnections:       1,
		DefaultTime2Wait:     2,
		DefaultTime2Retain:   20,
		TargetPortalGroupTag: 1,
	}
}

// ConnParams is the subset of RFC 3720 connection keys the PDU framing
// layer consults.
type ConnParams struct {
	HeaderDigest             pdu.Digest
	DataDigest               pdu.Digest
	MaxSendDataSegmentLength uint32
	MaxRecvDataSegmentLength uint32
	UseIfMarker              bool
	UseOfMarker              bool
	IfMarkInt                uint32
	OfMarkInt                uint32
	InitialExpStatSN         uint32
}

// DefaultConnParams returns the RFC 3720 default connection keys.
func DefaultConnParams() ConnParams {
	return ConnParams{
		HeaderDigest:             pdu.DigestNone,
		DataDigest:               pdu.DigestNone,
		MaxSendDataSegmentLength: 8192,
		MaxRecvDataSegmentLength: 8192,
		IfMarkInt:                8192,
		OfMarkInt:                8192,
	}
}
