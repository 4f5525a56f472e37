// Package devin provides a client for the Devin session API.
//
// A session is a remote, stateful conversation with the coding agent. The
// client creates sessions, reads their status and transcript, and sends
// follow-up messages. Completion is decided by the caller; this package only
// reports what the API returned.
//
// Key types:
//   - [Client]: HTTP client for the session API
//   - [Session]: a session read, with its transcript and derived counters
//   - [CreatedSession]: the response to session creation
//   - [APIError]: a non-2xx response, unwrapping to a sentinel error
//
// For testing, use [MockClient] which serves scripted sessions without any
// network access.
package devin

import (
	"encoding/json"

	"devinflow/internal/status"
)

// Message types reported in a session transcript.
const (
	MessageTypeDevin       = "devin_message"
	MessageTypeUser        = "user_message"
	MessageTypeInitialUser = "initial_user_message"
)

// Message is a single entry in a session transcript.
type Message struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// IsDevin reports whether the message was written by the agent.
func (m Message) IsDevin() bool {
	return m.Type == MessageTypeDevin
}

// CreateSessionRequest is the body of a session creation call.
type CreateSessionRequest struct {
	Prompt       string   `json:"prompt"`
	Idempotent   bool     `json:"idempotent"`
	KnowledgeIDs []string `json:"knowledge_ids"`
	PlaybookID   string   `json:"playbook_id,omitempty"`
	Title        string   `json:"title,omitempty"`
}

// CreatedSession is the response to a session creation call.
type CreatedSession struct {
	SessionID  string `json:"session_id"`
	URL        string `json:"url,omitempty"`
	Status     string `json:"status,omitempty"`
	Title      string `json:"title,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	PlaybookID string `json:"playbook_id,omitempty"`
	IsNew      bool   `json:"is_new_session,omitempty"`
}

// Session is the result of reading a session.
//
// MessageCount, DevinMessageCount and LastDevinMessage are derived from
// Messages by [Session.Derive]; the client calls it on every read.
type Session struct {
	SessionID  string          `json:"session_id"`
	Status     string          `json:"status"`
	StatusEnum string          `json:"status_enum,omitempty"`
	Title      string          `json:"title,omitempty"`
	CreatedAt  string          `json:"created_at,omitempty"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
	PlaybookID string          `json:"playbook_id,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Messages   []Message       `json:"messages"`
	Structured json.RawMessage `json:"structured_output,omitempty"`

	MessageCount      int    `json:"message_count"`
	DevinMessageCount int    `json:"devin_message_count"`
	LastDevinMessage  string `json:"last_devin_message,omitempty"`
}

// Derive fills the counters computed from the transcript.
func (s *Session) Derive() {
	s.MessageCount = len(s.Messages)
	s.DevinMessageCount = 0
	s.LastDevinMessage = ""
	for _, m := range s.Messages {
		if m.IsDevin() {
			s.DevinMessageCount++
			s.LastDevinMessage = m.Message
		}
	}
}

// LastMessage returns the text of the final transcript entry, or "".
func (s *Session) LastMessage() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Message
}

// MessageBeforeLast returns the text of the entry before the final one, or ""
// when the transcript has fewer than two entries.
func (s *Session) MessageBeforeLast() string {
	if len(s.Messages) < 2 {
		return ""
	}
	return s.Messages[len(s.Messages)-2].Message
}

// IsCompleted reports whether the vendor status fields classify as terminal.
func (s *Session) IsCompleted() bool {
	return status.IsCompleted(s.Status, s.StatusEnum)
}

// IsFailure reports whether the vendor status fields classify as a failure.
func (s *Session) IsFailure() bool {
	return status.IsFailure(s.Status, s.StatusEnum)
}

// ChatRequest is the body of a send-message call.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResult is the outcome of a send-message call.
type ChatResult struct {
	SessionID   string          `json:"session_id"`
	MessageSent bool            `json:"message_sent"`
	Raw         json.RawMessage `json:"raw_response,omitempty"`
}
