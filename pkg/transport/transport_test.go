package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialInvalidPortal(t *testing.T) {
	_, err := Dial("", 3260, "", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidPortal)
}

func TestDialAndWriteVectoredRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	serverDone := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- nil
			return
		}
		defer conn.Close()
		buf := make([]byte, 8)
		_, _ = readFull(conn, buf)
		serverDone <- buf
	}()

	c, err := Dial("127.0.0.1", uint16(addr.Port), "", 2*time.Second, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	c.Lock()
	err = c.WriteVectored([]byte{1, 2, 3, 4}, []byte{5, 6, 7, 8})
	c.Unlock()
	require.NoError(t, err)

	select {
	case got := <-serverDone:
		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive data")
	}
}

func TestReadFullOnShortConnReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte{1, 2})
		conn.Close()
	}()

	c, err := Dial("127.0.0.1", uint16(addr.Port), "", 2*time.Second, 2*time.Second)
	require.NoError(t, err)
	defer c.Close()

	buf := make([]byte, 48)
	err = c.ReadFull(buf)
	assert.Error(t, err)
}
