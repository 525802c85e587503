package models

// ToolInvocation is one tool call, alive for the duration of the request.
type ToolInvocation struct {
	Tool         string         `json:"tool"`
	Params       map[string]any `json:"params"`
	InvocationID string         `json:"invocation_id"`
	SessionID    string         `json:"session_id"`
}
