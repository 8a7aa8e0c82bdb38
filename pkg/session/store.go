package session

import (
	"log/slog"
	"sync"
	"time"

	iscsi "github.com/go-iscsi/initiator"
	"github.com/go-iscsi/initiator/pkg/transport"
)

var (
	ErrNoFreeSlot         = iscsi.ErrNoFreeSlot
	ErrUnknownSession     = iscsi.ErrUnknownSession
	ErrUnknownConnection  = iscsi.ErrUnknownConnection
	ErrTargetCreateFailed = iscsi.ErrTargetCreateFailed
)

func NewStatusError(status iscsi.Status, err error) *iscsi.StatusError {
	return iscsi.NewStatusError(status, err)
}

const StatusTryAgain = iscsi.StatusTryAgain

// TargetHooks lets an external controller create/destroy the SCSI-layer
// target object as a session's first connection activates and its last
// one deactivates. Task tags drained on deactivation are reported through
// the onDrained callback of the deactivate/release calls, not through
// these hooks.
type TargetHooks interface {
	CreateTargetForId(sessionID int) bool
	DestroyTargetForId(sessionID int)
}

// Store is the fixed-slot array of sessions, one per target, the top of
// the session/connection lifecycle.
type Store struct {
	mu       sync.Mutex
	sessions [KMaxSessions]*Session
	targets  map[string]int // IQN -> session id

	hooks  TargetHooks
	logger *slog.Logger
}

func NewStore(hooks TargetHooks, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		targets: make(map[string]int),
		hooks:   hooks,
		logger:  logger.With("component", "session.Store"),
	}
}

// Session returns the session at sid, or nil if the slot is empty.
func (st *Store) Session(sid int) *Session {
	if sid < 0 || sid >= KMaxSessions {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[sid]
}

// SessionByIQN returns the session id for targetIQN, and false if none
// exists. Maintained for OS registry population, per the target-creation
// hooks design.
func (st *Store) SessionByIQN(targetIQN string) (int, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sid, ok := st.targets[targetIQN]
	return sid, ok
}

func (st *Store) freeSessionSlot() int {
	for i, s := range st.sessions {
		if s == nil {
			return i
		}
	}
	return -1
}

// CreateSession scans for a free session slot, allocates a session with
// RFC 3720 default negotiated parameters (or the caller's override), then
// opens its first connection. On any failure it rewinds in reverse
// allocation order.
func (st *Store) CreateSession(targetIQN, portalAddr string, portalPort uint16, hostIface string,
	negotiated *Negotiated, connParams *ConnParams, connectTimeout time.Duration) (sid int, cid int, err error) {

	neg := DefaultNegotiated()
	if negotiated != nil {
		neg = *negotiated
	}

	st.mu.Lock()
	sid = st.freeSessionSlot()
	if sid < 0 {
		st.mu.Unlock()
		return -1, -1, ErrNoFreeSlot
	}
	s := newSession(sid, targetIQN, neg)
	st.sessions[sid] = s
	st.targets[targetIQN] = sid
	st.mu.Unlock()

	cid, err = st.CreateConnection(sid, portalAddr, portalPort, hostIface, connParams, connectTimeout)
	if err != nil {
		st.mu.Lock()
		delete(st.targets, targetIQN)
		st.sessions[sid] = nil
		st.mu.Unlock()
		return -1, -1, err
	}
	return sid, cid, nil
}

func (s *Session) freeConnectionSlot() int {
	for i, c := range s.connections {
		if c == nil {
			return i
		}
	}
	return -1
}

// CreateConnection scans for a free connection slot, dials the portal
// with a connect timeout and optional interface bind, and stores the
// connection's negotiated parameters. Both event sources start disabled.
func (st *Store) CreateConnection(sid int, portalAddr string, portalPort uint16, hostIface string,
	connParams *ConnParams, connectTimeout time.Duration) (cid int, err error) {

	s := st.Session(sid)
	if s == nil {
		return -1, ErrUnknownSession
	}

	params := DefaultConnParams()
	if connParams != nil {
		params = *connParams
	}

	s.mu.Lock()
	cid = s.freeConnectionSlot()
	if cid < 0 {
		s.mu.Unlock()
		return -1, ErrNoFreeSlot
	}
	s.mu.Unlock()

	tcp, err := transport.Dial(portalAddr, portalPort, hostIface, connectTimeout, 0)
	if err != nil {
		return -1, err
	}

	conn := newConnection(cid, tcp, params, portalAddr, portalPort, hostIface)

	s.mu.Lock()
	s.connections[cid] = conn
	s.mu.Unlock()

	st.logger.Debug("connection created", "sid", sid, "cid", cid, "portal", portalAddr)
	return cid, nil
}

// ActivateConnection enables both event sources, computes
// immediate_data_length, and atomically increments num_active_connections.
// When that transitions 0->1 it calls the external target creator;
// failure disables the sources again and returns TryAgain.
func (st *Store) ActivateConnection(sid, cid int) error {
	s := st.Session(sid)
	if s == nil {
		return ErrUnknownSession
	}
	c := s.Connection(cid)
	if c == nil {
		return ErrUnknownConnection
	}

	c.ImmediateDataLength = min32(c.Params.MaxSendDataSegmentLength, s.Negotiated.FirstBurstLength)
	c.EnableSources()

	if s.numActiveConnections.Add(1) == 1 {
		if st.hooks == nil || st.hooks.CreateTargetForId(sid) {
			s.active.Store(true)
			return nil
		}
		c.DisableSources()
		s.numActiveConnections.Add(-1)
		return NewStatusError(StatusTryAgain, ErrTargetCreateFailed)
	}
	return nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// ActivateAllConnections activates every connection of a session.
func (st *Store) ActivateAllConnections(sid int) error {
	s := st.Session(sid)
	if s == nil {
		return ErrUnknownSession
	}
	for _, c := range s.Connections() {
		if err := st.ActivateConnection(sid, c.CID); err != nil {
			return err
		}
	}
	return nil
}

// DeactivateConnection disables both sources, then drains task_queue,
// reporting each drained tag to onDrained (supplied by the task
// dispatcher, which owns the tag->task lookup). It decrements the active
// count and destroys the target on a 1->0 transition.
func (st *Store) DeactivateConnection(sid, cid int, onDrained func(tag uint32)) error {
	s := st.Session(sid)
	if s == nil {
		return ErrUnknownSession
	}
	c := s.Connection(cid)
	if c == nil {
		return ErrUnknownConnection
	}

	c.DisableSources()
	for _, tag := range c.TaskQueue.Drain() {
		if onDrained != nil {
			onDrained(tag)
		}
	}

	if s.numActiveConnections.Add(-1) == 0 {
		s.active.Store(false)
		if st.hooks != nil {
			st.hooks.DestroyTargetForId(sid)
		}
	}
	return nil
}

// DeactivateAllConnections deactivates every connection of a session.
func (st *Store) DeactivateAllConnections(sid int, onDrained func(tag uint32)) error {
	s := st.Session(sid)
	if s == nil {
		return ErrUnknownSession
	}
	for _, c := range s.Connections() {
		if err := st.DeactivateConnection(sid, c.CID, onDrained); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseConnection deactivates if active, clears the slot before closing
// the socket (so concurrent readers see it gone first), then closes the
// socket.
func (st *Store) ReleaseConnection(sid, cid int, onDrained func(tag uint32)) error {
	s := st.Session(sid)
	if s == nil {
		return ErrUnknownSession
	}
	c := s.Connection(cid)
	if c == nil {
		return ErrUnknownConnection
	}

	if c.SourcesEnabled() {
		if err := st.DeactivateConnection(sid, cid, onDrained); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.connections[cid] = nil
	s.mu.Unlock()

	return c.Conn.Close()
}

// ReleaseSession releases every connection, then clears the session slot.
func (st *Store) ReleaseSession(sid int, onDrained func(tag uint32)) error {
	s := st.Session(sid)
	if s == nil {
		return ErrUnknownSession
	}
	for _, c := range s.Connections() {
		if err := st.ReleaseConnection(sid, c.CID, onDrained); err != nil {
			st.logger.Warn("error releasing connection during session release", "sid", sid, "cid", c.CID, "err", err)
		}
	}

	st.mu.Lock()
	delete(st.targets, s.TargetIQN)
	st.sessions[sid] = nil
	st.mu.Unlock()
	return nil
}

// LiveConnectionCount counts the session's non-empty connection slots, used
// by HandleConnectionTimeout to decide between releasing one connection
// or the whole session.
func (s *Session) LiveConnectionCount() int {
	return len(s.Connections())
}
