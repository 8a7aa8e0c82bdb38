//go:build !linux

package transport

import "syscall"

// bindToDeviceControl is a no-op outside Linux; SO_BINDTODEVICE has no
// portable equivalent, and host-interface binding is a best-effort
// optimisation, not a correctness requirement of the core.
func bindToDeviceControl(iface string) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		return nil
	}
}
