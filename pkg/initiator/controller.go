// Package initiator is the module's single public entry point: a
// Controller wiring the session/connection store to the task dispatcher
// and exposing the full session, connection, and task-management
// lifecycle to an external SCSI mid-layer.
package initiator

import (
	"log/slog"
	"time"

	"github.com/go-iscsi/initiator/pkg/scsi"
	"github.com/go-iscsi/initiator/pkg/session"
	"github.com/go-iscsi/initiator/pkg/task"
)

// Controller is the analogue of a CANopen Network: the one object a host
// application holds to drive every session this process manages.
type Controller struct {
	Store      *session.Store
	Dispatcher *task.Dispatcher
}

// New builds a Controller. completer receives every task outcome;
// targetHooks is consulted on the session's first/last connection
// activation/deactivation; daemonHooks receives async events and
// connection-trouble notifications the core itself does not resolve.
func New(completer scsi.TaskCompleter, targetHooks session.TargetHooks, daemonHooks task.DaemonHooks, logger *slog.Logger) *Controller {
	store := session.NewStore(targetHooks, logger)
	return &Controller{
		Store:      store,
		Dispatcher: task.NewDispatcher(store, completer, daemonHooks, logger),
	}
}

func (c *Controller) SetTaskTimeout(d time.Duration) { c.Dispatcher.SetTaskTimeout(d) }

// CreateSession allocates a session and its first connection.
func (c *Controller) CreateSession(targetIQN, portalAddr string, portalPort uint16, hostIface string,
	negotiated *session.Negotiated, connParams *session.ConnParams, connectTimeout time.Duration) (sid, cid int, err error) {
	return c.Store.CreateSession(targetIQN, portalAddr, portalPort, hostIface, negotiated, connParams, connectTimeout)
}

// CreateConnection opens an additional connection on an existing session.
func (c *Controller) CreateConnection(sid int, portalAddr string, portalPort uint16, hostIface string,
	connParams *session.ConnParams, connectTimeout time.Duration) (cid int, err error) {
	return c.Store.CreateConnection(sid, portalAddr, portalPort, hostIface, connParams, connectTimeout)
}

func (c *Controller) ActivateConnection(sid, cid int) error {
	return c.Store.ActivateConnection(sid, cid)
}

func (c *Controller) ActivateAllConnections(sid int) error {
	return c.Store.ActivateAllConnections(sid)
}

func (c *Controller) DeactivateConnection(sid, cid int) error {
	return c.Store.DeactivateConnection(sid, cid, c.Dispatcher.FailDrainedTask(sid))
}

func (c *Controller) DeactivateAllConnections(sid int) error {
	return c.Store.DeactivateAllConnections(sid, c.Dispatcher.FailDrainedTask(sid))
}

func (c *Controller) ReleaseConnection(sid, cid int) error {
	return c.Store.ReleaseConnection(sid, cid, c.Dispatcher.FailDrainedTask(sid))
}

func (c *Controller) ReleaseSession(sid int) error {
	return c.Store.ReleaseSession(sid, c.Dispatcher.FailDrainedTask(sid))
}

// ProcessTask dispatches a SCSI task onto sid's best connection.
func (c *Controller) ProcessTask(sid int, t scsi.ScsiTask) (task.DispatchStatus, error) {
	return c.Dispatcher.ProcessTask(sid, t)
}

func (c *Controller) AbortTask(sid int, lun uint64, referencedITT uint32) error {
	return c.Dispatcher.AbortTask(sid, lun, referencedITT)
}

func (c *Controller) AbortTaskSet(sid int, lun uint64) error {
	return c.Dispatcher.AbortTaskSet(sid, lun)
}

func (c *Controller) ClearACA(sid int, lun uint64) error {
	return c.Dispatcher.ClearACA(sid, lun)
}

func (c *Controller) ClearTaskSet(sid int, lun uint64) error {
	return c.Dispatcher.ClearTaskSet(sid, lun)
}

func (c *Controller) LogicalUnitReset(sid int, lun uint64) error {
	return c.Dispatcher.LogicalUnitReset(sid, lun)
}

func (c *Controller) TargetReset(sid int) error {
	return c.Dispatcher.TargetReset(sid)
}

// RunConnection is the per-connection receive-loop workload: it calls
// RecvOne repeatedly and returns once the connection is released or
// deactivated, or as soon as RecvOne returns any error (a socket error or
// a PDU it could not handle). A host application spawns one of these per
// activated connection.
func (c *Controller) RunConnection(sid, cid int) {
	for {
		s := c.Store.Session(sid)
		if s == nil {
			return
		}
		conn := s.Connection(cid)
		if conn == nil || !conn.SourcesEnabled() {
			return
		}
		if err := c.Dispatcher.RecvOne(sid, cid); err != nil {
			return
		}
	}
}
