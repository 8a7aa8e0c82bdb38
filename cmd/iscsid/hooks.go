package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/go-iscsi/initiator/pkg/pdu"
	"github.com/go-iscsi/initiator/pkg/scsi"
)

// loggingCompleter is a placeholder scsi.TaskCompleter for the daemon
// harness: a real deployment would hand task outcomes back to a SCSI
// mid-layer (e.g. a tcmu handler); this just logs them.
type loggingCompleter struct{}

func (c *loggingCompleter) CompleteTask(t scsi.ScsiTask, status scsi.Status, response scsi.ServiceResponse) {
	log.WithFields(log.Fields{
		"tagged_task_id": t.TaggedTaskID(),
		"status":         status,
		"response":       response,
	}).Debug("task complete")
}

func (c *loggingCompleter) CompleteTaskWithSense(t scsi.ScsiTask, status scsi.Status, response scsi.ServiceResponse, sense []byte) {
	log.WithFields(log.Fields{
		"tagged_task_id": t.TaggedTaskID(),
		"status":         status,
		"response":       response,
		"sense_len":      len(sense),
	}).Warn("task complete with sense data")
}

func (c *loggingCompleter) CompleteTaskManagement(function scsi.TaskManagementFunction, taggedTaskID uint32, response scsi.ServiceResponse) {
	log.WithFields(log.Fields{
		"function":       function,
		"tagged_task_id": taggedTaskID,
		"response":       response,
	}).Debug("task management complete")
}

// loggingTargetHooks stands in for whatever local SCSI target object a
// real deployment creates once a session has a live connection.
type loggingTargetHooks struct{}

func (h *loggingTargetHooks) CreateTargetForId(sessionID int) bool {
	log.Debugf("session %d: target created", sessionID)
	return true
}

func (h *loggingTargetHooks) DestroyTargetForId(sessionID int) {
	log.Debugf("session %d: target destroyed", sessionID)
}

// loggingDaemonHooks logs async events and reports every connection
// problem as unhandled, letting the core's own recovery policy run.
type loggingDaemonHooks struct{}

func (h *loggingDaemonHooks) NotifyAsyncEvent(sid int, event pdu.AsyncEvent, param1, param2, param3 uint16) {
	log.WithFields(log.Fields{
		"sid": sid, "event": event, "param1": param1, "param2": param2, "param3": param3,
	}).Info("async event")
}

func (h *loggingDaemonHooks) NotifyConnectionProblem(sid, cid int) bool {
	log.Warnf("session %d connection %d reported a problem", sid, cid)
	return false
}
