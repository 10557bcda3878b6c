// Package memory provides the bounded, ordered store of conversation turns.
//
// A Memory keeps messages in insertion order, pins the system prompt to
// position 0, and enforces a FIFO sliding window over the non-system turns
// when a capacity is configured.
package memory

import (
	"sync"

	"github.com/kbukum/uniai/llm"
)

// Memory is an ordered, capacity-bounded message store. The zero value is
// not usable; construct with New or NewWithSystemPrompt.
//
// All methods are safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	messages   []llm.Message
	maxHistory int
}

// New creates an empty memory. maxHistory bounds the number of non-system
// messages kept; 0 means unbounded.
func New(maxHistory int) *Memory {
	return &Memory{maxHistory: maxHistory}
}

// NewWithSystemPrompt creates a memory seeded with a leading system message.
// An empty prompt seeds nothing.
func NewWithSystemPrompt(systemPrompt string, maxHistory int) *Memory {
	m := New(maxHistory)
	if systemPrompt != "" {
		m.messages = []llm.Message{llm.SystemMessage(systemPrompt)}
	}
	return m
}

// Append adds a message to the tail. When the non-system message count is at
// capacity, the oldest non-system message is evicted first, one per append,
// so the conversational turns form a strict FIFO window. Appending a
// system-role message routes to SetSystemPrompt instead.
func (m *Memory) Append(msg llm.Message) {
	if msg.Role == llm.RoleSystem {
		m.SetSystemPrompt(msg.Content)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(1)
	m.messages = append(m.messages, msg)
}

// History returns a snapshot of all messages in insertion order, system
// prompt first if present. The returned slice is a copy; mutating it does
// not affect the memory.
func (m *Memory) History() []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the total number of stored messages, including the system
// prompt.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Clear empties the store. With keepSystemPrompt, the leading system
// message (if any) is retained.
func (m *Memory) Clear(keepSystemPrompt bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keepSystemPrompt && m.hasSystemLocked() {
		m.messages = []llm.Message{m.messages[0]}
		return
	}
	m.messages = nil
}

// SetSystemPrompt replaces or inserts the leading system message. The system
// prompt never counts against the history capacity. An empty text removes
// the system message.
func (m *Memory) SetSystemPrompt(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if text == "" {
		if m.hasSystemLocked() {
			m.messages = m.messages[1:]
		}
		return
	}

	if m.hasSystemLocked() {
		m.messages[0] = llm.SystemMessage(text)
		return
	}
	m.messages = append([]llm.Message{llm.SystemMessage(text)}, m.messages...)
}

// SystemPrompt returns the current system prompt, if one is set.
func (m *Memory) SystemPrompt() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hasSystemLocked() {
		return m.messages[0].Content, true
	}
	return "", false
}

// PopLast removes and returns the most recent message. The system prompt is
// never popped; PopLast reports false when only the system prompt (or
// nothing) remains.
func (m *Memory) PopLast() (llm.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.messages)
	if n == 0 || (n == 1 && m.hasSystemLocked()) {
		return llm.Message{}, false
	}
	last := m.messages[n-1]
	m.messages = m.messages[:n-1]
	return last, true
}

// SetMaxHistory changes the capacity. Shrinking below the current
// non-system count evicts the oldest non-system messages immediately.
// 0 means unbounded.
func (m *Memory) SetMaxHistory(maxHistory int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxHistory = maxHistory
	m.evictLocked(0)
}

// Restore replaces the entire contents with the given messages, preserving
// their order. A leading system message keeps its position-0 pinning; the
// capacity rule is applied as if the messages were appended one by one.
func (m *Memory) Restore(msgs []llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = nil
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			if m.hasSystemLocked() {
				m.messages[0] = msg
			} else {
				m.messages = append([]llm.Message{msg}, m.messages...)
			}
			continue
		}
		m.evictLocked(1)
		m.messages = append(m.messages, msg)
	}
}

// evictLocked removes the oldest non-system messages until the non-system
// count leaves room for pending additional messages within maxHistory.
func (m *Memory) evictLocked(pending int) {
	if m.maxHistory <= 0 {
		return
	}
	for m.nonSystemLocked()+pending > m.maxHistory {
		if !m.removeOldestNonSystemLocked() {
			return
		}
	}
}

func (m *Memory) nonSystemLocked() int {
	n := len(m.messages)
	if m.hasSystemLocked() {
		n--
	}
	return n
}

func (m *Memory) hasSystemLocked() bool {
	return len(m.messages) > 0 && m.messages[0].Role == llm.RoleSystem
}

func (m *Memory) removeOldestNonSystemLocked() bool {
	start := 0
	if m.hasSystemLocked() {
		start = 1
	}
	if start >= len(m.messages) {
		return false
	}
	m.messages = append(m.messages[:start], m.messages[start+1:]...)
	return true
}
