// Package transport owns the TCP socket a connection uses: dialing with a
// connect timeout and optional interface bind, socket-level send/recv
// timeouts, a peername liveness probe, and the serialised vectored
// send/recv primitives the PDU framing layer builds on.
package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

var (
	ErrInvalidPortal = errors.New("invalid portal address")
	ErrBroken        = errors.New("connection is broken")
)

// DefaultConnectTimeout is the default TCP connect timeout, per the
// session/connection store defaults.
const DefaultConnectTimeout = 1 * time.Second

// DefaultIOTimeout is the default socket send/recv timeout.
const DefaultIOTimeout = 20 * time.Second

// Conn is the TCP stream exclusively owned by one connection. io_lock
// serialises the send path and the workloop's recv path, since both may
// touch the socket concurrently.
type Conn struct {
	tcp *net.TCPConn
	fd  int

	mu sync.Mutex
}

// Dial opens a TCP connection to portalAddr:portalPort, optionally bound
// to hostIface, with a connect timeout and socket-level I/O timeouts.
func Dial(portalAddr string, portalPort uint16, hostIface string, connectTimeout, ioTimeout time.Duration) (*Conn, error) {
	if portalAddr == "" {
		return nil, ErrInvalidPortal
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if ioTimeout <= 0 {
		ioTimeout = DefaultIOTimeout
	}

	dialer := net.Dialer{Timeout: connectTimeout}
	if hostIface != "" {
		dialer.Control = bindToDeviceControl(hostIface)
	}

	raddr := net.JoinHostPort(portalAddr, portString(portalPort))
	nc, err := dialer.Dial("tcp", raddr)
	if err != nil {
		return nil, err
	}
	tcp := nc.(*net.TCPConn)

	c := &Conn{tcp: tcp, fd: netfd.GetFdFromConn(tcp)}
	if err := c.SetTimeouts(ioTimeout, ioTimeout); err != nil {
		_ = tcp.Close()
		return nil, err
	}
	return c, nil
}

func portString(p uint16) string {
	if p == 0 {
		p = 3260
	}
	return itoa(int(p))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// SetTimeouts applies socket-level SO_RCVTIMEO/SO_SNDTIMEO, matching the
// source's socket-option based timeout handling rather than per-call Go
// deadlines, so a bind-to-device socket configured via raw fd keeps a
// single consistent timeout mechanism.
func (c *Conn) SetTimeouts(recv, send time.Duration) error {
	if err := setSockoptTimeout(c.fd, unix.SO_RCVTIMEO, recv); err != nil {
		return err
	}
	return setSockoptTimeout(c.fd, unix.SO_SNDTIMEO, send)
}

func setSockoptTimeout(fd int, opt int, d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv)
}

// Peername probes liveness the way HandleTaskTimeout does: a failed
// getpeername means the connection is broken.
func (c *Conn) Peername() (net.Addr, error) {
	_, err := unix.Getpeername(c.fd)
	if err != nil {
		return nil, ErrBroken
	}
	return c.tcp.RemoteAddr(), nil
}

// Lock acquires io_lock. A caller must hold it across a complete SendPDU
// vectored write or a complete RecvHeader+RecvData pair.
func (c *Conn) Lock()   { c.mu.Lock() }
func (c *Conn) Unlock() { c.mu.Unlock() }

// WriteVectored performs a single vectored send of the supplied segments
// (BHS, optional header digest, data, padding, optional data digest).
func (c *Conn) WriteVectored(segments ...[]byte) error {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range segments {
		buf = append(buf, s...)
	}
	_, err := c.tcp.Write(buf)
	return err
}

// ReadFull reads exactly len(buf) bytes, equivalent to MSG_WAITALL.
func (c *Conn) ReadFull(buf []byte) error {
	_, err := readFull(c.tcp, buf)
	return err
}

func readFull(r net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Conn) Close() error {
	return c.tcp.Close()
}

func (c *Conn) LocalAddr() net.Addr  { return c.tcp.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.tcp.RemoteAddr() }
func (c *Conn) Fd() int              { return c.fd }
