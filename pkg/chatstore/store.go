package chatstore

import (
	"slices"
	"sync"

	"github.com/docker/agentos-client/pkg/chat"
)

// Store holds the conversation state a run streams into.
type Store interface {
	Messages() []chat.Message
	AppendMessage(msg chat.Message)
	LastMessage() (chat.Message, bool)
	// UpdateLastMessage applies fn to the last message in place. It reports
	// false when there is no message.
	UpdateLastMessage(fn func(*chat.Message)) bool

	SessionID() string
	SetSessionID(id string)

	Sessions() []chat.SessionEntry
	// AddSession records entry unless a session with the same id exists.
	AddSession(entry chat.SessionEntry) bool
	RemoveSession(id string)

	SetStreaming(streaming bool)
	IsStreaming() bool
	SetStreamingError(msg string)
	StreamingError() string

	Reset()
}

// Memory is an in-memory Store safe for concurrent use.
type Memory struct {
	mu             sync.RWMutex
	messages       []chat.Message
	sessionID      string
	sessions       []chat.SessionEntry
	streaming      bool
	streamingError string
	listeners      []func()
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

// OnChange registers fn to be called after every mutation. Listeners run
// outside the lock and may read from the store.
func (m *Memory) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Memory) notify() {
	m.mu.RLock()
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func (m *Memory) Messages() []chat.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]chat.Message, len(m.messages))
	for i := range m.messages {
		out[i] = m.messages[i].Clone()
	}
	return out
}

func (m *Memory) AppendMessage(msg chat.Message) {
	m.mu.Lock()
	m.messages = append(m.messages, msg.Clone())
	m.mu.Unlock()
	m.notify()
}

func (m *Memory) LastMessage() (chat.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.messages) == 0 {
		return chat.Message{}, false
	}
	return m.messages[len(m.messages)-1].Clone(), true
}

func (m *Memory) UpdateLastMessage(fn func(*chat.Message)) bool {
	m.mu.Lock()
	if len(m.messages) == 0 {
		m.mu.Unlock()
		return false
	}
	fn(&m.messages[len(m.messages)-1])
	m.mu.Unlock()

	m.notify()
	return true
}

func (m *Memory) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

func (m *Memory) SetSessionID(id string) {
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
	m.notify()
}

func (m *Memory) Sessions() []chat.SessionEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sessions)
}

func (m *Memory) AddSession(entry chat.SessionEntry) bool {
	m.mu.Lock()
	if slices.ContainsFunc(m.sessions, func(s chat.SessionEntry) bool { return s.SessionID == entry.SessionID }) {
		m.mu.Unlock()
		return false
	}
	// Newest first, the way session lists are displayed.
	m.sessions = slices.Insert(m.sessions, 0, entry)
	m.mu.Unlock()

	m.notify()
	return true
}

func (m *Memory) RemoveSession(id string) {
	m.mu.Lock()
	m.sessions = slices.DeleteFunc(m.sessions, func(s chat.SessionEntry) bool { return s.SessionID == id })
	m.mu.Unlock()
	m.notify()
}

func (m *Memory) SetStreaming(streaming bool) {
	m.mu.Lock()
	m.streaming = streaming
	m.mu.Unlock()
	m.notify()
}

func (m *Memory) IsStreaming() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streaming
}

func (m *Memory) SetStreamingError(msg string) {
	m.mu.Lock()
	m.streamingError = msg
	m.mu.Unlock()
	m.notify()
}

func (m *Memory) StreamingError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streamingError
}

// Reset clears the conversation but keeps the session list and listeners.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.messages = nil
	m.sessionID = ""
	m.streaming = false
	m.streamingError = ""
	m.mu.Unlock()
	m.notify()
}
