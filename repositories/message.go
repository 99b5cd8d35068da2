//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	messagePrefix = "msg:"
	sequenceKey   = "seq:messages"
	// How many sequence numbers Badger leases at once.
	sequenceBandwidth = 100
	// Highest possible 20 digit key, reverse iteration starts from here.
	lastMessageKey = messagePrefix + "99999999999999999999"
)

var errReadOnlyLog = stderrors.New("message log opened read-only")

type IMessageRepository interface {
	Append(message domain.Message) (uint64, error)
	AppendMany(messages []domain.Message) ([]uint64, error)
	QueryFor(viewer string, limit *int) ([]domain.Message, error)
	GetMany(sequences []uint64) ([]domain.Message, error)
}

// MessageRepository is the append-only message log.
// Appends are serialized so that sequence order, commit order and query order agree.
type MessageRepository struct {
	mu            sync.Mutex
	db            *badger.DB
	log           *slog.Logger
	sequence      *badger.Sequence
	limitMessages *int
}

// NewMessageRepository leases the log sequence from db.
// limitMessages caps queries that do not carry their own limit, nil means unbounded.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	sequence, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return &MessageRepository{db: db, log: log, sequence: sequence, limitMessages: limitMessages}, nil
}

// NewMessageReader opens the log without leasing the sequence, so it works on
// a read-only db. Appends on a reader fail.
func NewMessageReader(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Close returns the unused leased sequence numbers to Badger.
func (m *MessageRepository) Close() error {
	if m.sequence == nil {
		return nil
	}
	return m.sequence.Release()
}

func (m *MessageRepository) Append(message domain.Message) (uint64, error) {
	sequences, err := m.AppendMany([]domain.Message{message})
	if err != nil {
		return 0, err
	}
	return sequences[0], nil
}

// AppendMany stores messages as one contiguous block in a single transaction.
// The key is formatted as "msg:{sequence_padded}" with 20-digit zero padding so
// lexicographical order is sequence order.
func (m *MessageRepository) AppendMany(messages []domain.Message) ([]uint64, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sequence == nil {
		return nil, errors.Storage(errReadOnlyLog)
	}

	sequences := make([]uint64, len(messages))
	for i := range messages {
		seq, err := m.sequence.Next()
		if err != nil {
			return nil, errors.Storage(err)
		}
		sequences[i] = seq
	}
	err := m.db.Update(func(txn *badger.Txn) error {
		for i, message := range messages {
			if message.ID == uuid.Nil {
				message.ID = uuid.New()
			}
			message.Sequence = sequences[i]
			if err := txn.Set(messageKey(sequences[i]), encodeMessage(message)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(err)
	}
	return sequences, nil
}

// QueryFor returns the messages viewer may see, newest first.
// A positive limit bounds the result; otherwise the visible set is returned
// whole, capped only by the configured default.
func (m *MessageRepository) QueryFor(viewer string, limit *int) ([]domain.Message, error) {
	return m.scan(m.maxMessages(limit), func(message domain.Message) bool {
		return domain.IsVisible(message, viewer)
	})
}

// Tail returns the last messages of the log regardless of visibility, newest first.
// A non-positive limit returns the whole log.
func (m *MessageRepository) Tail(limit int) ([]domain.Message, error) {
	return m.scan(limit, func(domain.Message) bool { return true })
}

func (m *MessageRepository) scan(maxMessages int, keep func(domain.Message) bool) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek([]byte(lastMessageKey)); it.ValidForPrefix(prefix); it.Next() {
			if maxMessages > 0 && len(messages) == maxMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", maxMessages))
				break
			}
			message, err := readMessage(it.Item())
			if err != nil {
				return err
			}
			if keep(message) {
				messages = append(messages, message)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(err)
	}
	return messages, nil
}

// GetMany loads messages by sequence, keeping the order of sequences.
// Unknown sequences are skipped.
func (m *MessageRepository) GetMany(sequences []uint64) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		for _, seq := range lo.Uniq(sequences) {
			item, err := txn.Get(messageKey(seq))
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			message, err := readMessage(item)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(err)
	}
	return messages, nil
}

func (m *MessageRepository) maxMessages(limit *int) int {
	if limit != nil && *limit > 0 {
		return *limit
	}
	if m.limitMessages != nil && *m.limitMessages > 0 {
		return *m.limitMessages
	}
	return 0
}

func readMessage(item *badger.Item) (domain.Message, error) {
	var message domain.Message
	err := item.Value(func(val []byte) error {
		var err error
		message, err = decodeMessage(val)
		return err
	})
	return message, err
}

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, seq))
}
