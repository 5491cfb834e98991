package orchestrator

import "encoding/json"

// decodeArguments parses a ToolCall's JSON-text arguments. An empty or
// malformed payload yields an empty argument map rather than failing
// the whole tool call — individual tools validate their own required
// fields and report a clear error back through the Tool message.
func decodeArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{}, err
	}
	return args, nil
}
