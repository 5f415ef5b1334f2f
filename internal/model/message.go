package model

import "encoding/json"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleLegacyAI is written by older clients for assistant messages.
	RoleLegacyAI Role = "ai"
)

// ResponseKind distinguishes a SQL-backed answer from a metadata or
// clarification answer.
type ResponseKind string

const (
	ResponseSQL  ResponseKind = "sql"
	ResponseMeta ResponseKind = "meta"
)

// Row is one result record keyed by column name.
type Row map[string]any

type AssistantPayload struct {
	Explanation  string       `json:"explanation"`
	SQL          string       `json:"sql,omitempty"`
	Rows         []Row        `json:"data"`
	ResponseKind ResponseKind `json:"response_type"`
	// Detail carries the raw failure description for failed exchanges.
	Detail string `json:"detail,omitempty"`
}

// Message is the canonical in-memory message. Exactly one of Content
// (user), Assistant (assistant) or Raw (unrecognised record) is meaningful.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content,omitempty"`
	Assistant *AssistantPayload `json:"assistant,omitempty"`
	Raw       json.RawMessage   `json:"raw,omitempty"`
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func AssistantMessage(p AssistantPayload) Message {
	return Message{Role: RoleAssistant, Assistant: &p}
}

// Recognized reports whether the message was decoded into a known shape.
func (m Message) Recognized() bool {
	return m.Raw == nil
}
