package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHooks struct {
	created   []int
	destroyed []int
	refuse    bool
}

func (f *fakeHooks) CreateTargetForId(sid int) bool {
	f.created = append(f.created, sid)
	return !f.refuse
}

func (f *fakeHooks) DestroyTargetForId(sid int) {
	f.destroyed = append(f.destroyed, sid)
}

func listen(t *testing.T) (*net.TCPListener, string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { _ = c }()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return ln.(*net.TCPListener), addr.IP.String(), uint16(addr.Port)
}

func TestCreateSessionAllocatesSlotAndFirstConnection(t *testing.T) {
	ln, addr, port := listen(t)
	defer ln.Close()

	hooks := &fakeHooks{}
	st := NewStore(hooks, nil)

	sid, cid, err := st.CreateSession("iqn.test:target0", addr, port, "", nil, nil, 2*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sid, 0)
	assert.Equal(t, 0, cid)

	s := st.Session(sid)
	require.NotNil(t, s)
	require.NotNil(t, s.Connection(cid))
}

func TestActivateConnectionCreatesTargetOnce(t *testing.T) {
	ln, addr, port := listen(t)
	defer ln.Close()

	hooks := &fakeHooks{}
	st := NewStore(hooks, nil)

	sid, cid, err := st.CreateSession("iqn.test:target1", addr, port, "", nil, nil, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, st.ActivateConnection(sid, cid))
	assert.Equal(t, []int{sid}, hooks.created)
	assert.EqualValues(t, 1, st.Session(sid).NumActiveConnections())
	assert.True(t, st.Session(sid).Active())
}

func TestActivateConnectionFailureRollsBack(t *testing.T) {
	ln, addr, port := listen(t)
	defer ln.Close()

	hooks := &fakeHooks{refuse: true}
	st := NewStore(hooks, nil)

	sid, cid, err := st.CreateSession("iqn.test:target2", addr, port, "", nil, nil, 2*time.Second)
	require.NoError(t, err)

	err = st.ActivateConnection(sid, cid)
	assert.Error(t, err)
	assert.EqualValues(t, 0, st.Session(sid).NumActiveConnections())
	assert.False(t, st.Session(sid).Active())
}

func TestDeactivateConnectionDrainsQueueAndDestroysTarget(t *testing.T) {
	ln, addr, port := listen(t)
	defer ln.Close()

	hooks := &fakeHooks{}
	st := NewStore(hooks, nil)

	sid, cid, err := st.CreateSession("iqn.test:target3", addr, port, "", nil, nil, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, st.ActivateConnection(sid, cid))

	conn := st.Session(sid).Connection(cid)
	conn.TaskQueue.Push(0xAABBCC)
	conn.TaskQueue.Push(0xDDEEFF)

	var drained []uint32
	require.NoError(t, st.DeactivateConnection(sid, cid, func(tag uint32) {
		drained = append(drained, tag)
	}))

	assert.Equal(t, []uint32{0xAABBCC, 0xDDEEFF}, drained)
	assert.EqualValues(t, 0, st.Session(sid).NumActiveConnections())
	assert.Equal(t, []int{sid}, hooks.destroyed)
	assert.False(t, conn.SourcesEnabled())
}

func TestReleaseSessionClearsSlot(t *testing.T) {
	ln, addr, port := listen(t)
	defer ln.Close()

	st := NewStore(&fakeHooks{}, nil)
	sid, _, err := st.CreateSession("iqn.test:target4", addr, port, "", nil, nil, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, st.ReleaseSession(sid, nil))
	assert.Nil(t, st.Session(sid))
	_, ok := st.SessionByIQN("iqn.test:target4")
	assert.False(t, ok)
}

func TestNoFreeSlotWhenSessionsExhausted(t *testing.T) {
	ln, addr, port := listen(t)
	defer ln.Close()

	st := NewStore(&fakeHooks{}, nil)
	for i := 0; i < KMaxSessions; i++ {
		_, _, err := st.CreateSession("iqn.test:many"+string(rune('a'+i)), addr, port, "", nil, nil, 2*time.Second)
		require.NoError(t, err)
	}
	_, _, err := st.CreateSession("iqn.test:overflow", addr, port, "", nil, nil, 2*time.Second)
	assert.ErrorIs(t, err, ErrNoFreeSlot)
}
