package protocol

import (
	_ "embed"
	"encoding/json"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/command.schema.json
var commandSchemaJSON string

var commandSchema = jsonschema.MustCompileString("command.schema.json", commandSchemaJSON)

// DecodeCommand parses and validates a control command.
func DecodeCommand(b []byte) (CommandMsg, error) {
	var cmd CommandMsg
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return cmd, oops.Code(ErrProtoBadRequest).Wrapf(err, "invalid json")
	}
	if err := commandSchema.Validate(doc); err != nil {
		return cmd, oops.Code(ErrProtoBadRequest).Wrapf(err, "invalid command")
	}
	if err := json.Unmarshal(b, &cmd); err != nil {
		return cmd, oops.Code(ErrProtoBadRequest).Wrap(err)
	}
	if cmd.ProtocolVersion != Version {
		return cmd, oops.Code(ErrProtoBadRequest).
			With("protocol_version", cmd.ProtocolVersion).
			Errorf("unsupported protocol version %q", cmd.ProtocolVersion)
	}
	return cmd, nil
}
