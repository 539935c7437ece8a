package agui

import (
	"encoding/json"
)

// RawEvent is a stream object reduced to an event name and its payload.
type RawEvent struct {
	Event string
	Data  map[string]any
}

// wireNames maps the snake_case names some servers emit onto the names used
// by the rest of the client.
var wireNames = map[string]EventName{
	"message_start":   RunStarted,
	"message_delta":   RunContent,
	"message_end":     RunCompleted,
	"tool_call_start": ToolCallStarted,
	"tool_call_delta": ToolCallStarted,
	"tool_call_end":   ToolCallCompleted,
	"error":           RunError,
}

// Normalize classifies a decoded stream object. Two shapes are accepted:
//
//	{"event": "message_delta", "data": {...}}   envelope
//	{"event": "RunContent", "content": "..."}   flat, the object is the payload
//
// The second return value is false when obj carries no string event name.
func Normalize(obj map[string]any) (RawEvent, bool) {
	name, ok := obj["event"].(string)
	if !ok {
		return RawEvent{}, false
	}

	data, hasData := obj["data"]
	if !hasData {
		return RawEvent{Event: mapName(name), Data: obj}, true
	}

	return RawEvent{Event: mapName(name), Data: envelopePayload(data)}, true
}

func envelopePayload(data any) map[string]any {
	switch v := data.(type) {
	case map[string]any:
		return v
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil && parsed != nil {
			return parsed
		}
		return map[string]any{"content": v}
	default:
		return map[string]any{}
	}
}

func mapName(name string) string {
	if mapped, ok := wireNames[name]; ok {
		return string(mapped)
	}
	return name
}
