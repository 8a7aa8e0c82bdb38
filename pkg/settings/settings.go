// Package settings loads the initiator's static defaults from an ini file:
// timeouts, digest preference, data segment sizes, and the portal list a
// daemon connects to at startup. The bandwidth window size is not read
// from the file; it is the fixed session.BandwidthWindow.
package settings

import (
	"time"

	"github.com/go-iscsi/initiator/pkg/pdu"
	"gopkg.in/ini.v1"
)

// Portal is one statically-configured target portal.
type Portal struct {
	TargetIQN string
	Address   string
	Port      uint16
	Iface     string
}

// Settings is the full set of static initiator defaults.
type Settings struct {
	ConnectTimeout     time.Duration
	IOTimeout          time.Duration
	TaskTimeout        time.Duration
	HeaderDigest       pdu.Digest
	DataDigest         pdu.Digest
	MaxSendDataSegment uint32
	MaxRecvDataSegment uint32

	Portals []Portal
}

// Defaults matches the RFC 3720 negotiated defaults the session package
// already falls back to when a caller omits overrides.
func Defaults() Settings {
	return Settings{
		ConnectTimeout:     1 * time.Second,
		IOTimeout:          20 * time.Second,
		TaskTimeout:        20 * time.Second,
		HeaderDigest:       pdu.DigestNone,
		DataDigest:         pdu.DigestNone,
		MaxSendDataSegment: 8192,
		MaxRecvDataSegment: 8192,
	}
}

// Load reads an ini file of the form:
//
//	[initiator]
//	connect_timeout = 1s
//	io_timeout = 20s
//	task_timeout = 20s
//	header_digest = crc32c
//	data_digest = none
//	max_send_data_segment = 8192
//	max_recv_data_segment = 8192
//
//	[portal "target.iqn.example:disk0"]
//	address = 10.0.0.5
//	port = 3260
//	iface = eth0
//
// Any key absent from the file keeps its Defaults() value.
func Load(path string) (Settings, error) {
	s := Defaults()

	cfg, err := ini.Load(path)
	if err != nil {
		return s, err
	}

	if sec, err := cfg.GetSection("initiator"); err == nil {
		applyDuration(sec, "connect_timeout", &s.ConnectTimeout)
		applyDuration(sec, "io_timeout", &s.IOTimeout)
		applyDuration(sec, "task_timeout", &s.TaskTimeout)
		applyDigest(sec, "header_digest", &s.HeaderDigest)
		applyDigest(sec, "data_digest", &s.DataDigest)
		applyUint32(sec, "max_send_data_segment", &s.MaxSendDataSegment)
		applyUint32(sec, "max_recv_data_segment", &s.MaxRecvDataSegment)
	}

	for _, sec := range cfg.Sections() {
		iqn, ok := portalIQN(sec.Name())
		if !ok {
			continue
		}
		s.Portals = append(s.Portals, Portal{
			TargetIQN: iqn,
			Address:   sec.Key("address").String(),
			Port:      uint16(sec.Key("port").MustUint(3260)),
			Iface:     sec.Key("iface").String(),
		})
	}
	return s, nil
}

func applyDuration(sec *ini.Section, key string, dst *time.Duration) {
	if !sec.HasKey(key) {
		return
	}
	if d, err := time.ParseDuration(sec.Key(key).String()); err == nil {
		*dst = d
	}
}

func applyUint32(sec *ini.Section, key string, dst *uint32) {
	if !sec.HasKey(key) {
		return
	}
	*dst = uint32(sec.Key(key).MustUint64(uint64(*dst)))
}

func applyDigest(sec *ini.Section, key string, dst *pdu.Digest) {
	if !sec.HasKey(key) {
		return
	}
	if sec.Key(key).String() == "crc32c" {
		*dst = pdu.DigestCRC32C
	} else {
		*dst = pdu.DigestNone
	}
}

// portalIQN extracts the quoted target IQN from a `[portal "iqn"]` section
// name, ini.v1's convention for named sub-sections.
func portalIQN(sectionName string) (string, bool) {
	const prefix = `portal "`
	if len(sectionName) < len(prefix)+1 || sectionName[:len(prefix)] != prefix {
		return "", false
	}
	if sectionName[len(sectionName)-1] != '"' {
		return "", false
	}
	return sectionName[len(prefix) : len(sectionName)-1], true
}
