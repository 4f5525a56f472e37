package devin

import (
	"context"
	"fmt"
	"sync"
)

// MockRead is one scripted response to [MockClient.GetSession].
type MockRead struct {
	Session *Session
	Err     error
}

// MockClient implements [API] with scripted sessions for testing.
//
// Each call to CreateSession consumes the next entry of Scripts and binds it
// to the new session id. GetSession walks that script one read per call and
// repeats the final read once the script is exhausted. A session created
// after Scripts runs out reads as an empty running session.
type MockClient struct {
	// Scripts holds one read sequence per created session, in creation order.
	Scripts [][]MockRead

	// CreateErr, when set, is returned by every CreateSession call.
	CreateErr error

	// ChatErr, when set, is returned by every ChatSession call.
	ChatErr error

	// IDPrefix is prepended to generated session ids. Defaults to "devin-mock-".
	IDPrefix string

	mu       sync.Mutex
	created  []CreateSessionRequest
	chats    map[string][]string
	reads    map[string]int
	bindings map[string][]MockRead
}

// CreateSession records the request and binds the next script.
func (m *MockClient) CreateSession(ctx context.Context, prompt, playbookID, title string) (*CreatedSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.bindings == nil {
		m.bindings = make(map[string][]MockRead)
		m.reads = make(map[string]int)
	}

	prefix := m.IDPrefix
	if prefix == "" {
		prefix = "devin-mock-"
	}
	index := len(m.created)
	id := fmt.Sprintf("%s%d", prefix, index+1)

	m.created = append(m.created, CreateSessionRequest{
		Prompt:     prompt,
		PlaybookID: playbookID,
		Title:      title,
	})
	if index < len(m.Scripts) {
		m.bindings[id] = m.Scripts[index]
	}

	return &CreatedSession{
		SessionID: id,
		URL:       SessionURL(id),
		Status:    "running",
		Title:     title,
		IsNew:     true,
	}, nil
}

// GetSession returns the next scripted read for the session.
func (m *MockClient) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reads == nil {
		m.reads = make(map[string]int)
	}
	n := m.reads[sessionID]
	m.reads[sessionID] = n + 1

	script, ok := m.bindings[sessionID]
	if !ok || len(script) == 0 {
		return &Session{SessionID: sessionID, Status: "running"}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}

	read := script[n]
	if read.Err != nil {
		return nil, read.Err
	}
	s := *read.Session
	s.SessionID = sessionID
	s.Messages = append([]Message(nil), read.Session.Messages...)
	s.Derive()
	return &s, nil
}

// ChatSession records the message.
func (m *MockClient) ChatSession(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ChatErr != nil {
		return nil, m.ChatErr
	}
	if m.chats == nil {
		m.chats = make(map[string][]string)
	}
	m.chats[sessionID] = append(m.chats[sessionID], message)
	return &ChatResult{SessionID: sessionID, MessageSent: true}, nil
}

// Created returns the recorded CreateSession requests in call order.
func (m *MockClient) Created() []CreateSessionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CreateSessionRequest(nil), m.created...)
}

// Reads returns how many times GetSession was called for a session.
func (m *MockClient) Reads(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[sessionID]
}

// Chats returns the messages sent to a session.
func (m *MockClient) Chats(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.chats[sessionID]...)
}

// SleepingSession builds a session whose transcript ends with result followed
// by the "sleep" completion token.
func SleepingSession(statusValue, result string) *Session {
	return &Session{
		Status: statusValue,
		Messages: []Message{
			{Type: MessageTypeInitialUser, Message: "prompt"},
			{Type: MessageTypeDevin, Message: result},
			{Type: MessageTypeDevin, Message: "sleep"},
		},
	}
}

// RunningSession builds a session that has not finished.
func RunningSession(messages ...string) *Session {
	s := &Session{Status: "running"}
	for _, msg := range messages {
		s.Messages = append(s.Messages, Message{Type: MessageTypeDevin, Message: msg})
	}
	return s
}
