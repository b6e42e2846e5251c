package ingest

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/logger"
)

// processMessageIDs is used when Services.MessageIDs is nil, so every
// module of a process draws from one sequence.
var processMessageIDs MessageIDs

// Services bundles the host collaborators handed to every module.
type Services struct {
	Blackboard blackboard.Store
	Events     blackboard.DataEventSink
	Inbox      Inbox
	MessageIDs *MessageIDs
	Case       Case
	Logger     *zap.SugaredLogger
}

// PostMessage allocates the next message ID and posts to the inbox.
func (s *Services) PostMessage(msgType MessageType, module, subject, details string) Message {
	ids := s.MessageIDs
	if ids == nil {
		ids = &processMessageIDs
	}
	msg := Message{
		ID:      ids.Next(),
		Type:    msgType,
		Module:  module,
		Subject: subject,
		Details: details,
	}
	if s.Inbox != nil {
		s.Inbox.PostMessage(msg)
	}
	return msg
}

// FireModuleDataEvent notifies consumers that new artifacts exist.
func (s *Services) FireModuleDataEvent(module string, artifactType blackboard.ArtifactType) {
	if s.Events != nil {
		s.Events.FireModuleDataEvent(module, artifactType)
	}
}

// Log returns the services logger, falling back to the global logger.
func (s *Services) Log() *zap.SugaredLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.Logger
}

// NewRunID returns an identifier for one pipeline run.
func NewRunID() string {
	return uuid.NewString()
}
