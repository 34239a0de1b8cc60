package progress

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IPCStage is the approval state of an Interim Payment Certificate.
// Stages are ordered: a higher value is further along.
type IPCStage int

const (
	IPCNotSubmitted IPCStage = iota
	IPCSubmitted
	IPCInProcess
	IPCReleased
)

// IPCCount is the number of IPC milestones tracked per site
const IPCCount = 6

// ParseIPCStage maps a case-insensitive label onto a stage
func ParseIPCStage(label string) (IPCStage, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "not submitted":
		return IPCNotSubmitted, true
	case "submitted":
		return IPCSubmitted, true
	case "in process":
		return IPCInProcess, true
	case "released":
		return IPCReleased, true
	default:
		return IPCNotSubmitted, false
	}
}

func (s IPCStage) String() string {
	switch s {
	case IPCNotSubmitted:
		return "Not Submitted"
	case IPCSubmitted:
		return "Submitted"
	case IPCInProcess:
		return "In Process"
	case IPCReleased:
		return "Released"
	default:
		return fmt.Sprintf("IPCStage(%d)", int(s))
	}
}

// Color returns the display color for the stage
func (s IPCStage) Color() string {
	switch s {
	case IPCSubmitted:
		return "#f39c12"
	case IPCInProcess:
		return "#3498db"
	case IPCReleased:
		return "#2ecc71"
	default:
		return "#95a5a6"
	}
}

// MarshalJSON encodes the stage as its label
func (s IPCStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a stage label
func (s *IPCStage) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	stage, ok := ParseIPCStage(label)
	if !ok {
		return fmt.Errorf("unknown IPC stage %q", label)
	}
	*s = stage
	return nil
}

// IPCStatus is the state of every IPC milestone for a site
type IPCStatus struct {
	Stages [IPCCount]IPCStage
}

// Best returns the furthest stage reached across all milestones
func (s IPCStatus) Best() IPCStage {
	best := IPCNotSubmitted
	for _, stage := range s.Stages {
		if stage > best {
			best = stage
		}
	}
	return best
}

// AnyReleased reports whether at least one milestone has been released
func (s IPCStatus) AnyReleased() bool {
	return s.Best() == IPCReleased
}

type ipcStatusJSON struct {
	IPC1      IPCStage `json:"ipc_1"`
	IPC2      IPCStage `json:"ipc_2"`
	IPC3      IPCStage `json:"ipc_3"`
	IPC4      IPCStage `json:"ipc_4"`
	IPC5      IPCStage `json:"ipc_5"`
	IPC6      IPCStage `json:"ipc_6"`
	BestStage IPCStage `json:"ipc_best_stage"`
}

// MarshalJSON encodes the milestones as ipc_1..ipc_6 plus the best stage
func (s IPCStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(ipcStatusJSON{
		IPC1:      s.Stages[0],
		IPC2:      s.Stages[1],
		IPC3:      s.Stages[2],
		IPC4:      s.Stages[3],
		IPC5:      s.Stages[4],
		IPC6:      s.Stages[5],
		BestStage: s.Best(),
	})
}

// UnmarshalJSON decodes the ipc_1..ipc_6 form
func (s *IPCStatus) UnmarshalJSON(data []byte) error {
	var raw ipcStatusJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Stages = [IPCCount]IPCStage{raw.IPC1, raw.IPC2, raw.IPC3, raw.IPC4, raw.IPC5, raw.IPC6}
	return nil
}
