package pdu

import "github.com/go-iscsi/initiator/pkg/scsi"

// taskMgmtFunctionBit marks byte 1 bit 7, always set on a TMF request.
const taskMgmtFunctionBit = 0x80

// TaskMgmtRequest is the initiator's Task Management Function Request
// PDU (opcode 0x02).
type TaskMgmtRequest struct {
	BHS
}

func BuildTaskMgmtRequest(function scsi.TaskManagementFunction, lun uint64, itt uint32, referencedTaskTag uint32) *TaskMgmtRequest {
	t := &TaskMgmtRequest{}
	t.SetOpcode(OpTaskMgmtReq)
	t.SetFlags(taskMgmtFunctionBit | byte(function)&0x7f)
	t.SetLUN(lun)
	t.SetInitiatorTaskTag(itt)
	t.setField32(20, referencedTaskTag)
	return t
}

func (t *TaskMgmtRequest) Function() scsi.TaskManagementFunction {
	return scsi.TaskManagementFunction(t.Flags() &^ taskMgmtFunctionBit)
}

func (t *TaskMgmtRequest) SetCmdSN(sn uint32)     { t.setField32(24, sn) }
func (t *TaskMgmtRequest) SetExpStatSN(sn uint32) { t.setField32(28, sn) }

// TaskMgmtResponse is the target's Task Management Function Response PDU
// (opcode 0x22).
type TaskMgmtResponse struct {
	BHS
}

func ParseTaskMgmtResponse(raw BHS) *TaskMgmtResponse { return &TaskMgmtResponse{raw} }

// Response codes from RFC 3720 Table 26.
const (
	TMFResponseFunctionComplete byte = 0x00
	TMFResponseTaskNotExist     byte = 0x01
	TMFResponseLUNNotExist      byte = 0x02
	TMFResponseTaskStillAllegiant byte = 0x03
	TMFResponseFunctionNotSupported byte = 0x05
	TMFResponseFunctionRejected byte = 0xFF
)

func (t *TaskMgmtResponse) ResponseCode() byte { return t.BHS[2] }

func (t *TaskMgmtResponse) StatSN() uint32   { return t.field32(24) }
func (t *TaskMgmtResponse) ExpCmdSN() uint32 { return t.field32(28) }
func (t *TaskMgmtResponse) MaxCmdSN() uint32 { return t.field32(32) }

// ServiceResponse translates the response code to the service response
// the mid-layer expects.
func (t *TaskMgmtResponse) ServiceResponse() scsi.ServiceResponse {
	switch t.ResponseCode() {
	case TMFResponseFunctionComplete:
		return scsi.TaskComplete
	case TMFResponseFunctionRejected:
		return scsi.FunctionRejected
	default:
		return scsi.ServiceDeliveryOrTargetFailure
	}
}
