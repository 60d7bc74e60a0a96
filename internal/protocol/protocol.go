package protocol

import "encoding/json"

const Version = "1.0"

// Command types (client -> server).
const (
	TypeTriggerSwitch = "TRIGGER_SWITCH"
	TypeActivateDoor  = "ACTIVATE_DOOR"
	TypeSetLocked     = "SET_LOCKED"
	TypeResetPrefab   = "RESET_PREFAB"
	TypeStartQuest    = "START_QUEST"
	TypeDoorState     = "DOOR_STATE"
)

// Reply and event types (server -> client).
const (
	TypeAck   = "ACK"
	TypeError = "ERROR"
	TypeDoor  = "DOOR"
	TypeAudit = "AUDIT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
