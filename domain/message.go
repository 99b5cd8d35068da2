// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once appended to the log.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	StatusMessage  MessageType = "status"
	PublicMessage  MessageType = "message"
	PrivateMessage MessageType = "private_message"
)

const (
	// Broadcast is the reserved recipient and system sender for the whole room.
	Broadcast = "Todos"

	JoinedText     = "entra na sala..."
	InactivityText = "removed for inactivity"

	// TimeLayout formats Message.Time, which is for display only.
	TimeLayout = "15:04:05"
)

// Message represents an immutable chat event.
// Sequence is assigned by the message log and is the only ordering source.
type Message struct {
	ID       uuid.UUID
	Sequence uint64
	From     string
	To       string
	Text     string
	Type     MessageType
	Time     string
	Lang     string
}

func NewMessage(from, to, text string, messageType MessageType, at time.Time) Message {
	return Message{
		ID:   uuid.New(),
		From: from,
		To:   to,
		Text: text,
		Type: messageType,
		Time: at.Format(TimeLayout),
	}
}

// NewStatusMessage builds a room-wide announcement about name.
func NewStatusMessage(name, text string, at time.Time) Message {
	return NewMessage(name, Broadcast, text, StatusMessage, at)
}
