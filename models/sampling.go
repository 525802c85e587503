package models

import "time"

// SamplingRequest asks the calling agent to reason about input the server
// cannot resolve on its own.
type SamplingRequest struct {
	SamplingID     string         `json:"sampling_id"`
	SessionID      string         `json:"-"`
	InvocationID   string         `json:"-"`
	Prompt         SamplingPrompt `json:"prompt"`
	ExpectedSchema map[string]any `json:"expected_schema"`
	Deadline       time.Time      `json:"-"`
}

// SamplingPrompt is the payload shown to the agent.
type SamplingPrompt struct {
	System    string `json:"system"`
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens"`
}
