package ingest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/trawl/logger"
)

// MessageType is the severity of an inbox message.
type MessageType int

const (
	MessageInfo MessageType = iota
	MessageError
)

func (t MessageType) String() string {
	if t == MessageError {
		return "ERROR"
	}
	return "INFO"
}

// Message is one user-facing status message.
type Message struct {
	ID      int64
	Type    MessageType
	Module  string
	Subject string
	Details string
}

func (m Message) String() string {
	return fmt.Sprintf("[%d] %s %s: %s", m.ID, m.Type, m.Module, m.Subject)
}

// Inbox receives user-facing messages.
type Inbox interface {
	PostMessage(msg Message)
}

// MessageIDs allocates message identifiers. Allocation is atomic so one
// allocator can be shared by every module of a process.
type MessageIDs struct {
	last atomic.Int64
}

// Next returns the next identifier, starting at 1.
func (m *MessageIDs) Next() int64 {
	return m.last.Add(1)
}

// MessageLog is an in-memory inbox keeping messages in posting order.
type MessageLog struct {
	mu       sync.Mutex
	messages []Message
}

var _ Inbox = (*MessageLog)(nil)

func (l *MessageLog) PostMessage(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// Messages returns a copy of the posted messages.
func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// LogInbox writes messages to a zap logger.
type LogInbox struct {
	Logger *zap.SugaredLogger
}

var _ Inbox = LogInbox{}

func (l LogInbox) PostMessage(msg Message) {
	log := l.Logger
	if log == nil {
		log = logger.Logger
	}
	fields := []interface{}{
		"message_id", msg.ID,
		logger.FieldModule, msg.Module,
	}
	if msg.Type == MessageError {
		log.Warnw(msg.Subject, fields...)
		return
	}
	log.Infow(msg.Subject, fields...)
}

// MultiInbox posts every message to each inbox in order.
type MultiInbox []Inbox

func (m MultiInbox) PostMessage(msg Message) {
	for _, inbox := range m {
		inbox.PostMessage(msg)
	}
}
