package conversation

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bizmatters/agent-builder/code-editor/internal/models"
)

// MessageLog is an ordered chat log. Messages are only appended, except that a
// message carrying a progress id may be replaced in place through Upsert.
type MessageLog struct {
	mu       sync.RWMutex
	messages []models.ConversationMessage
	progress map[string]int
	now      func() time.Time
}

// NewMessageLog creates an empty log
func NewMessageLog() *MessageLog {
	return &MessageLog{
		progress: make(map[string]int),
		now:      time.Now,
	}
}

// Append adds msg to the end of the log, filling in id and timestamp when unset
func (l *MessageLog) Append(msg models.ConversationMessage) models.ConversationMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(msg)
}

// Upsert replaces the message registered under progressID, or appends msg if
// there is none. It reports whether an existing message was replaced.
func (l *MessageLog) Upsert(progressID string, msg models.ConversationMessage) (models.ConversationMessage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg.ProgressID = progressID
	idx, ok := l.progress[progressID]
	if !ok {
		return l.appendLocked(msg), false
	}

	prev := l.messages[idx]
	msg.ID = prev.ID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = l.now()
	}
	l.messages[idx] = msg
	return msg, true
}

// Messages returns a copy of the log
func (l *MessageLog) Messages() []models.ConversationMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ConversationMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Recent returns up to n of the newest messages, oldest first
func (l *MessageLog) Recent(n int) []models.ConversationMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := max(0, len(l.messages)-n)
	out := make([]models.ConversationMessage, len(l.messages)-start)
	copy(out, l.messages[start:])
	return out
}

// Len returns the number of messages
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Reset empties the log
func (l *MessageLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.progress = make(map[string]int)
}

func (l *MessageLog) appendLocked(msg models.ConversationMessage) models.ConversationMessage {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = l.now()
	}
	if msg.ProgressID != "" {
		l.progress[msg.ProgressID] = len(l.messages)
	}
	l.messages = append(l.messages, msg)
	return msg
}
