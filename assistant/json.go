package assistant

import "encoding/json"

// toJSON marshals v for embedding in a tool-result message's Content. A
// marshal failure (only possible for non-JSON-able values a tool
// shouldn't be returning) degrades to an error payload rather than
// panicking the node.
func toJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(b)
}
