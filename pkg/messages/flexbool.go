package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// FlexBool is a boolean that also accepts the encodings the game server
// produces in practice: "true"/"false" strings (any case), 0/1 and null.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch t := v.(type) {
	case bool:
		*b = FlexBool(t)
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		if err != nil {
			return fmt.Errorf("invalid boolean string %q", t)
		}
		*b = FlexBool(parsed)
	case float64:
		switch t {
		case 0:
			*b = false
		case 1:
			*b = true
		default:
			return fmt.Errorf("invalid boolean number %v", t)
		}
	default:
		return fmt.Errorf("invalid boolean value %s", string(data))
	}
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// JSONSchema describes the accepted encodings.
func (FlexBool) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "boolean"},
			{Type: "string", Pattern: `^\s*([Tt][Rr][Uu][Ee]|[Ff][Aa][Ll][Ss][Ee]|[TtFf01])\s*$`},
			{Type: "integer", Enum: []interface{}{0, 1}},
			{Type: "null"},
		},
	}
}
