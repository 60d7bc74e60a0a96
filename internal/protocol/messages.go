package protocol

// CommandMsg is every control command; Type selects which fields apply.
type CommandMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	Actor           string   `json:"actor,omitempty"`
	Pos             [3]int   `json:"pos"`
	Locked          *bool    `json:"locked,omitempty"`
	PrefabID        string   `json:"prefab_id,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

type AckMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	Tick            uint64   `json:"tick"`
	Open            *bool    `json:"open,omitempty"`
	Locked          *bool    `json:"locked,omitempty"`
	On              *bool    `json:"on,omitempty"`
	Prefabs         []string `json:"prefabs,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

type DoorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Pos             [3]int `json:"pos"`
	Block           string `json:"block"`
	Owner           string `json:"owner,omitempty"`
	Locked          bool   `json:"locked"`
	Open            bool   `json:"open"`
	TemplateLocked  bool   `json:"template_locked"`
}

// AuditMsg is pushed to every connected client as changes happen.
type AuditMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	EntryID         string         `json:"entry_id"`
	Tick            uint64         `json:"tick"`
	Actor           string         `json:"actor"`
	Action          string         `json:"action"`
	Pos             [3]int         `json:"pos"`
	Reason          string         `json:"reason,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

func Ack(id string, tick uint64) AckMsg {
	return AckMsg{Type: TypeAck, ProtocolVersion: Version, ID: id, Tick: tick}
}

func Error(id, code, msg string) ErrorMsg {
	if !IsKnownCode(code) {
		code = ErrInternal
	}
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ID: id, Code: code, Message: msg}
}
