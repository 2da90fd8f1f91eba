package messages

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedPayload is returned for a game state topic payload that is
// neither an action message nor a game state message.
var ErrUnrecognizedPayload = errors.New("payload is neither an action nor a game state message")

type discriminator struct {
	Type string `json:"type"`
}

// DecodeGameMessage classifies and decodes a payload from the game state topic.
// It returns either *ActionMessage or *GameStateMessage.
//
// When the payload carries a "type" field it decides the shape. Otherwise the
// payload is tried as an action message (it must have a non-empty action),
// then as a game state message (it must have a game_state object).
func DecodeGameMessage(payload []byte) (interface{}, error) {
	d := &discriminator{}
	if err := json.Unmarshal(payload, d); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	switch d.Type {
	case MessageTypeAction:
		msg, err := DecodeActionMessage(payload)
		if err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, fmt.Errorf("action message has no action")
		}
		return msg, nil
	case MessageTypeGameState:
		msg, err := DecodeGameStateMessage(payload)
		if err != nil {
			return nil, err
		}
		if msg.GameState == nil {
			return nil, fmt.Errorf("game state message has no game_state")
		}
		return msg, nil
	case "":
	default:
		return nil, fmt.Errorf("unknown message type %q", d.Type)
	}

	action, actionErr := DecodeActionMessage(payload)
	if actionErr == nil && action.Action != "" {
		return action, nil
	}

	state, err := DecodeGameStateMessage(payload)
	if err == nil && state.GameState != nil {
		return state, nil
	}

	if actionErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, actionErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	return nil, ErrUnrecognizedPayload
}

func DecodeActionMessage(payload []byte) (*ActionMessage, error) {
	msg := &ActionMessage{}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("failed to decode action message: %w", err)
	}
	return msg, nil
}

func DecodeGameStateMessage(payload []byte) (*GameStateMessage, error) {
	msg := &GameStateMessage{}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("failed to decode game state message: %w", err)
	}
	return msg, nil
}

func DecodeVisibilityRequest(payload []byte) (*VisibilityRequest, error) {
	msg := &VisibilityRequest{}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("failed to decode visibility request: %w", err)
	}
	return msg, nil
}

func DecodeDeviceStatusMessage(payload []byte) (*DeviceStatusMessage, error) {
	msg := &DeviceStatusMessage{}
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("failed to decode device status message: %w", err)
	}
	return msg, nil
}
