//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const (
	participantPrefix = "participant:"
	// Optimistic transactions racing on the same key are replayed this many times.
	maxConflictRetries = 3
	// Each batch is two operations per participant (read + delete), far below
	// Badger's default transaction limits.
	defaultEvictBatchSize = 256
)

type IParticipantRepository interface {
	Join(name string) (domain.Participant, error)
	Heartbeat(name string) error
	Get(name string) (domain.Participant, error)
	List() ([]domain.Participant, error)
	Stale(cutoff time.Time) ([]domain.Participant, error)
	Evict(observed []domain.Participant) ([]string, error)
	EvictStaleBefore(cutoff time.Time) ([]string, error)
}

type ParticipantRepository struct {
	db             *badger.DB
	log            *slog.Logger
	clock          clock.Clock
	evictBatchSize int
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger, clock clock.Clock) ParticipantRepository {
	return ParticipantRepository{db: db, log: log, clock: clock, evictBatchSize: defaultEvictBatchSize}
}

// Join registers name with lastSeen set to now.
// The existence check and the write share one transaction, so two concurrent
// joins on the same name cannot both succeed.
func (r ParticipantRepository) Join(name string) (domain.Participant, error) {
	participant := domain.Participant{Name: name, LastSeen: r.clock.Now()}
	err := update(r.db, func(txn *badger.Txn) error {
		_, err := getParticipant(txn, name)
		switch {
		case err == nil:
			return errors.ErrAlreadyExists
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(participantKey(name), encodeParticipant(participant))
	})
	switch {
	case err == nil:
		return participant, nil
	case stderrors.Is(err, errors.ErrAlreadyExists):
		return domain.Participant{}, err
	default:
		return domain.Participant{}, errors.Storage(err)
	}
}

// Heartbeat refreshes lastSeen. The new value is always strictly greater than
// the stored one, even if the clock went backwards or did not move.
func (r ParticipantRepository) Heartbeat(name string) error {
	err := update(r.db, func(txn *badger.Txn) error {
		participant, err := getParticipant(txn, name)
		if err != nil {
			return err
		}
		now := r.clock.Now()
		if !now.After(participant.LastSeen) {
			now = participant.LastSeen.Add(time.Nanosecond)
		}
		participant.LastSeen = now
		return txn.Set(participantKey(name), encodeParticipant(participant))
	})
	return mapLookupError(err)
}

func (r ParticipantRepository) Get(name string) (domain.Participant, error) {
	var participant domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		participant, err = getParticipant(txn, name)
		return err
	})
	if err != nil {
		return domain.Participant{}, mapLookupError(err)
	}
	return participant, nil
}

func (r ParticipantRepository) List() ([]domain.Participant, error) {
	return r.scan(func(domain.Participant) bool { return true })
}

// Stale returns every participant last seen strictly before cutoff.
func (r ParticipantRepository) Stale(cutoff time.Time) ([]domain.Participant, error) {
	return r.scan(func(p domain.Participant) bool { return p.IsStale(cutoff) })
}

// Evict deletes the observed participants whose stored lastSeen still matches
// the observed value. A participant refreshed since it was observed is kept.
// Deletes commit in batches of evictBatchSize so a large backlog never exceeds
// Badger's transaction size. Inside a batch, a heartbeat committing in between
// makes Badger replay the batch, which then sees the fresher record.
// On failure the names evicted by earlier batches are returned with the error.
func (r ParticipantRepository) Evict(observed []domain.Participant) ([]string, error) {
	if len(observed) == 0 {
		return nil, nil
	}
	var evicted []string
	for _, batch := range lo.Chunk(observed, r.evictBatchSize) {
		names, err := r.evictBatch(batch)
		if err != nil {
			return evicted, errors.Storage(err)
		}
		evicted = append(evicted, names...)
	}
	return evicted, nil
}

func (r ParticipantRepository) evictBatch(batch []domain.Participant) ([]string, error) {
	var evicted []string
	err := update(r.db, func(txn *badger.Txn) error {
		evicted = evicted[:0]
		for _, o := range batch {
			current, err := getParticipant(txn, o.Name)
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if current.LastSeen.UnixNano() != o.LastSeen.UnixNano() {
				r.log.Debug("Participant refreshed since scan, keeping it", "name", o.Name)
				continue
			}
			if err = txn.Delete(participantKey(o.Name)); err != nil {
				return err
			}
			evicted = append(evicted, o.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

func (r ParticipantRepository) EvictStaleBefore(cutoff time.Time) ([]string, error) {
	stale, err := r.Stale(cutoff)
	if err != nil {
		return nil, err
	}
	return r.Evict(stale)
}

func (r ParticipantRepository) scan(keep func(domain.Participant) bool) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(participantPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var participant domain.Participant
			err := it.Item().Value(func(val []byte) error {
				var err error
				participant, err = decodeParticipant(val)
				return err
			})
			if err != nil {
				return err
			}
			if keep(participant) {
				participants = append(participants, participant)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Storage(err)
	}
	return participants, nil
}

func getParticipant(txn *badger.Txn, name string) (domain.Participant, error) {
	item, err := txn.Get(participantKey(name))
	if err != nil {
		return domain.Participant{}, err
	}
	var participant domain.Participant
	err = item.Value(func(val []byte) error {
		participant, err = decodeParticipant(val)
		return err
	})
	return participant, err
}

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

func mapLookupError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return errors.ErrNotFound
	default:
		return errors.Storage(err)
	}
}

// update runs fn in a read-write transaction, replaying it when Badger detects
// that a concurrent transaction committed a key fn has read.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
