//go:build linux

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// bindToDeviceControl returns a net.Dialer Control func that binds the
// socket to a specific host interface via SO_BINDTODEVICE, mirroring the
// interface-scoped socket setup the CAN transport uses for its raw
// sockets.
func bindToDeviceControl(iface string) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.BindToDevice(int(fd), iface)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
