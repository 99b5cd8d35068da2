package repositories

import (
	"chat-relay/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored as protobuf wire messages. Field numbers are part of the
// on-disk format and must never be reused.
const (
	participantName     protowire.Number = 1
	participantLastSeen protowire.Number = 2

	messageID       protowire.Number = 1
	messageSequence protowire.Number = 2
	messageFrom     protowire.Number = 3
	messageTo       protowire.Number = 4
	messageText     protowire.Number = 5
	messageType     protowire.Number = 6
	messageTime     protowire.Number = 7
	messageLang     protowire.Number = 8
)

func encodeParticipant(p domain.Participant) []byte {
	var b []byte
	b = appendString(b, participantName, p.Name)
	b = protowire.AppendTag(b, participantLastSeen, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.LastSeen.UnixNano()))
	return b
}

func decodeParticipant(b []byte) (domain.Participant, error) {
	var p domain.Participant
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == participantName && typ == protowire.BytesType:
			return consumeString(b, &p.Name)
		case num == participantLastSeen && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			p.LastSeen = time.Unix(0, int64(v)).UTC()
			return n, nil
		}
		return skip(num, typ, b)
	})
	return p, err
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, messageID, m.ID.String())
	b = protowire.AppendTag(b, messageSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Sequence)
	b = appendString(b, messageFrom, m.From)
	b = appendString(b, messageTo, m.To)
	b = appendString(b, messageText, m.Text)
	b = appendString(b, messageType, string(m.Type))
	b = appendString(b, messageTime, m.Time)
	if m.Lang != "" {
		b = appendString(b, messageLang, m.Lang)
	}
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var (
		m      domain.Message
		rawID  string
		rawTyp string
	)
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ == protowire.BytesType {
			switch num {
			case messageID:
				return consumeString(b, &rawID)
			case messageFrom:
				return consumeString(b, &m.From)
			case messageTo:
				return consumeString(b, &m.To)
			case messageText:
				return consumeString(b, &m.Text)
			case messageType:
				return consumeString(b, &rawTyp)
			case messageTime:
				return consumeString(b, &m.Time)
			case messageLang:
				return consumeString(b, &m.Lang)
			}
		}
		if num == messageSequence && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Sequence = v
			return n, nil
		}
		return skip(num, typ, b)
	})
	if err != nil {
		return domain.Message{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %d: %w", m.Sequence, err)
	}
	m.ID = id
	m.Type = domain.MessageType(rawTyp)
	return m, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func consumeString(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

// consumeFields walks every field of b, calling fn with the bytes following the tag.
// fn returns how many of them it consumed.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
